package identity

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// AccessState classifies a principal for admission decisions.
type AccessState int

const (
	// StateAnonymous means no session-bound principal.
	StateAnonymous AccessState = iota
	// StateUnverified is an authenticated local account awaiting email
	// verification.
	StateUnverified
	// StateVerified may reach protected functionality, subject to the
	// bearer-token dual check.
	StateVerified
)

func (s AccessState) String() string {
	switch s {
	case StateUnverified:
		return "authenticated:unverified"
	case StateVerified:
		return "authenticated:verified"
	default:
		return "anonymous"
	}
}

// ClassifyUser maps a user record to its access state. Federated accounts
// enter directly at verified.
func ClassifyUser(user *User) AccessState {
	if user == nil {
		return StateAnonymous
	}
	if user.Verified() {
		return StateVerified
	}
	return StateUnverified
}

// AccessGate is the per-request admission state machine. It owns session
// establishment, the single authoritative login_count increment, the
// session+cache dual check, and logout teardown.
type AccessGate struct {
	users    UserStore
	sessions SessionStore
	cache    TokenCache
	tokens   TokenService

	sessionTTL time.Duration
	bearerTTL  time.Duration
	logger     Logger
	now        func() time.Time
}

// NewAccessGate wires a gate from its collaborators.
func NewAccessGate(users UserStore, sessions SessionStore, cache TokenCache, tokens TokenService) *AccessGate {
	return &AccessGate{
		users:      users,
		sessions:   sessions,
		cache:      cache,
		tokens:     tokens,
		sessionTTL: SessionTTL,
		bearerTTL:  BearerTokenTTL,
		logger:     defLogger{},
		now:        time.Now,
	}
}

// WithLogger sets the gate logger.
func (g *AccessGate) WithLogger(l Logger) *AccessGate {
	g.logger = normalizeLogger(l)
	return g
}

// WithTTLs overrides session and bearer lifetimes.
func (g *AccessGate) WithTTLs(session, bearer time.Duration) *AccessGate {
	if session > 0 {
		g.sessionTTL = session
	}
	if bearer > 0 {
		g.bearerTTL = bearer
	}
	return g
}

// WithClock overrides the gate clock. Test hook.
func (g *AccessGate) WithClock(now func() time.Time) *AccessGate {
	g.now = now
	return g
}

// MintBearer signs a fresh bearer token for the user, caches it under the
// user's bearer key (silently replacing any prior token), and increments
// login_count. This is the single authoritative counting point: one call
// per explicit login action, regardless of which path triggered it.
func (g *AccessGate) MintBearer(ctx context.Context, user *User) (string, error) {
	token, err := g.tokens.Mint(user)
	if err != nil {
		return "", err
	}

	if err := g.cache.Set(ctx, BearerKey(user.ID), token, g.bearerTTL); err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to cache bearer token")
	}

	if err := g.users.IncrementLoginCount(ctx, user.ID); err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to update login count")
	}
	user.LoginCount++

	return token, nil
}

// EstablishSession persists the principal into a fresh session record and,
// for explicit login actions, mints a bearer token. Passive
// re-identification (login=false) creates the session without touching the
// token cache or the login counter.
func (g *AccessGate) EstablishSession(ctx context.Context, user *User, login bool) (sid string, bearer string, err error) {
	if user == nil || user.ID == uuid.Nil {
		return "", "", errors.New("cannot establish a session without a user", errors.CategoryInternal)
	}

	sid = uuid.NewString()
	state := &SessionState{UserID: user.ID, IssuedAt: g.now()}
	if err := g.sessions.Put(ctx, sid, state, g.sessionTTL); err != nil {
		return "", "", errors.Wrap(err, errors.CategoryInternal, "failed to persist session")
	}

	if login {
		bearer, err = g.MintBearer(ctx, user)
		if err != nil {
			return "", "", err
		}
	}

	g.logger.Debug("session established", "user_id", user.ID, "login", login)
	return sid, bearer, nil
}

// Identify resolves a session id to its user without enforcing any guard.
// Anonymous requests resolve to ErrUnauthenticated.
func (g *AccessGate) Identify(ctx context.Context, sid string) (*User, error) {
	if sid == "" {
		return nil, ErrUnauthenticated
	}

	state, err := g.sessions.Get(ctx, sid)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load session")
	}

	user, err := g.users.FindByID(ctx, state.UserID)
	if err != nil {
		if IsNotFound(err) {
			// Session survived its user; treat as anonymous.
			return nil, ErrUnauthenticated
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load session principal")
	}

	return user, nil
}

// Admit runs the protected-resource guard: session state first, then
// verification state, then the bearer-token dual check. The token must be
// present in the cache, decode to the session principal, and pass
// signature/expiry validation. Admission touches last_session_at.
func (g *AccessGate) Admit(ctx context.Context, sid string) (*User, error) {
	user, err := g.Identify(ctx, sid)
	if err != nil {
		return nil, err
	}

	if ClassifyUser(user) == StateUnverified {
		return nil, ErrEmailUnverified
	}

	raw, err := g.cache.Get(ctx, BearerKey(user.ID))
	if err != nil {
		if errors.Is(err, ErrTokenNotCached) {
			g.logger.Warn("admit: no cached token", "user_id", user.ID)
			return nil, ErrUnauthenticated
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to read token cache")
	}

	claims, err := g.tokens.Validate(raw)
	if err != nil {
		// Signature or expiry failure on a cached token.
		g.logger.Warn("admit: cached token failed validation", "user_id", user.ID, "error", err)
		return nil, err
	}

	if claims.UserID() != user.ID.String() {
		g.logger.Error("admit: cached token identity mismatch", "user_id", user.ID)
		return nil, ErrUnauthenticated
	}

	if err := g.users.TrackSession(ctx, user.ID); err != nil {
		g.logger.Error("admit: failed to refresh session timestamp", "error", err)
	}

	return user, nil
}

// RequireRole admits the request and additionally demands a minimum role.
func (g *AccessGate) RequireRole(ctx context.Context, sid string, min UserRole) (*User, error) {
	user, err := g.Admit(ctx, sid)
	if err != nil {
		return nil, err
	}

	if !user.Role.IsAtLeast(min) {
		return nil, ErrForbidden
	}
	return user, nil
}

// Logout tears down a principal's authenticated state: bearer token first,
// then the session record. Both are attempted even when one fails; the
// cookie is cleared by the HTTP layer. A partial failure cannot resurrect
// access because Admit requires session AND cache agreement.
func (g *AccessGate) Logout(ctx context.Context, sid string) error {
	state, err := g.sessions.Get(ctx, sid)
	if err != nil && !errors.Is(err, ErrSessionNotFound) {
		g.logger.Error("logout: failed to load session", "error", err)
	}

	var firstErr error

	if state != nil {
		if err := g.cache.Del(ctx, BearerKey(state.UserID)); err != nil {
			g.logger.Error("logout: failed to drop cached token", "error", err)
			firstErr = err
		}
	}

	if err := g.sessions.Delete(ctx, sid); err != nil {
		g.logger.Error("logout: failed to destroy session", "error", err)
		if firstErr == nil {
			firstErr = err
		}
	}

	if firstErr != nil {
		return errors.Wrap(firstErr, errors.CategoryOperation, "logout completed partially")
	}
	return nil
}

// RevokeBearer drops the user's cached bearer token, forcing a fresh login
// before the next admission. Used after password changes.
func (g *AccessGate) RevokeBearer(ctx context.Context, userID uuid.UUID) error {
	return g.cache.Del(ctx, BearerKey(userID))
}
