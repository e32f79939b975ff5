package identity

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
)

// LocalStrategy verifies password credentials against the credential store.
type LocalStrategy struct {
	store    UserStore
	activity ActivityRecorder
	logger   Logger
	now      func() time.Time
}

// NewLocalStrategy will create a password strategy backed by the given store.
func NewLocalStrategy(store UserStore, activity ActivityRecorder) *LocalStrategy {
	return &LocalStrategy{
		store:    store,
		activity: activity,
		logger:   defLogger{},
		now:      time.Now,
	}
}

// WithLogger sets the strategy logger.
func (s *LocalStrategy) WithLogger(l Logger) *LocalStrategy {
	s.logger = normalizeLogger(l)
	return s
}

// WithClock overrides the strategy clock. Test hook.
func (s *LocalStrategy) WithClock(now func() time.Time) *LocalStrategy {
	s.now = now
	return s
}

// Authenticate resolves password credentials to a canonical user. On
// success it refreshes last_session_at and records an activity fact. It
// never adjusts login_count: the gate increments the counter exactly once
// per explicit login action.
func (s *LocalStrategy) Authenticate(ctx context.Context, creds Credentials) (*User, error) {
	payload, ok := creds.(PasswordCredentials)
	if !ok {
		return nil, errors.New("local strategy requires password credentials", errors.CategoryBadInput)
	}

	user, err := s.store.GetByUsername(ctx, payload.Identifier)
	if err != nil {
		if IsNotFound(err) {
			s.logger.Warn("local auth: no user for identifier", "identifier", payload.Identifier)
			return nil, ErrIdentityNotFound
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve user during verification")
	}

	// Federated accounts have no stored hash to compare against.
	if !user.HasPassword() {
		s.logger.Warn("local auth: passwordless account", "user_id", user.ID)
		return nil, ErrBadCredential
	}

	if err := ComparePasswordAndHash(payload.Password, user.PasswordHash); err != nil {
		s.logger.Warn("local auth: credential mismatch", "user_id", user.ID)
		return nil, ErrBadCredential
	}

	if err := s.store.TrackSession(ctx, user.ID); err != nil {
		s.logger.Error("local auth: failed to track session", "error", err)
	} else {
		at := s.now()
		user.LastSessionAt = &at
	}

	if err := s.activity.Record(ctx, user.ID, s.now()); err != nil {
		s.logger.Error("local auth: failed to record activity", "error", err)
	}

	return user, nil
}

var _ Strategy = (*LocalStrategy)(nil)
