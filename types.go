package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Logger is the minimal logging surface the core depends on. The binary
// wires a structured logger; tests and zero-value construction fall back to
// defLogger.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

type defLogger struct{}

func (l defLogger) Debug(format string, args ...any) {}
func (l defLogger) Info(format string, args ...any)  {}
func (l defLogger) Warn(format string, args ...any) {
	fmt.Printf("WRN "+format+"\n", args...)
}
func (l defLogger) Error(format string, args ...any) {
	fmt.Printf("ERR "+format+"\n", args...)
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}

// UserStore is the slice of the credential store the strategies, the gate,
// and the verification issuer depend on. The bun repository implements it;
// tests substitute an in-memory fake.
type UserStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByVerificationToken(ctx context.Context, token string) (*User, error)

	Register(ctx context.Context, user *User) (*User, error)

	// TrackSession refreshes last_session_at for the user.
	TrackSession(ctx context.Context, id uuid.UUID) error
	// IncrementLoginCount bumps login_count by exactly one. The counter is
	// monotonic; there is no decrement.
	IncrementLoginCount(ctx context.Context, id uuid.UUID) error

	SetVerificationToken(ctx context.Context, id uuid.UUID, token string, expiry time.Time) error
	// ConsumeVerificationToken clears the token fields and flips
	// is_email_verified in a single update keyed on the token value, so two
	// racing consumers cannot both succeed. A second consumption reports a
	// missing token.
	ConsumeVerificationToken(ctx context.Context, token string) (*User, error)

	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	UpdateName(ctx context.Context, id uuid.UUID, name string) error
	// UpdateFederatedProfile refreshes the display name carried by a
	// federated assertion.
	UpdateFederatedProfile(ctx context.Context, id uuid.UUID, name string) error
}

// ActivityRecorder appends authentication facts to the activity log.
type ActivityRecorder interface {
	Record(ctx context.Context, userID uuid.UUID, at time.Time) error
}

// StatsStore is the aggregate query surface the statistics service uses.
type StatsStore interface {
	CountUsers(ctx context.Context) (int, error)
	// CountActiveSince counts users whose last_session_at is at or after t.
	CountActiveSince(ctx context.Context, t time.Time) (int, error)
	// DistinctActiveByDay returns per-calendar-day distinct user counts for
	// activity in [from, to). Days without activity produce no row.
	DistinctActiveByDay(ctx context.Context, from, to time.Time) ([]DayCount, error)
}

// TokenCache is the ephemeral bearer-token store: one live token per user,
// server-enforced TTL, replace on reissue. Get returns ErrTokenNotCached on
// a miss or an expired entry.
type TokenCache interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, key string) error
}

// BearerKey is the cache key holding the bearer token for a user.
func BearerKey(id uuid.UUID) string {
	return "user_token:" + id.String()
}

// Mailer delivers HTML mail. Failures are reported, never fatal.
type Mailer interface {
	Send(ctx context.Context, to, subject, html string) error
}

// Credentials is the input to an authentication strategy. Each strategy
// accepts exactly one concrete credential type.
type Credentials interface {
	Kind() string
}

// PasswordCredentials authenticate a local account.
type PasswordCredentials struct {
	Identifier string
	Password   string
}

// Kind implements Credentials.
func (PasswordCredentials) Kind() string { return "password" }

// FederatedAssertion is a validated identity assertion from an external
// provider: the provider vouches for control of Email.
type FederatedAssertion struct {
	Email       string
	DisplayName string
	// Subject is the provider's stable subject claim for this identity.
	Subject string
}

// Kind implements Credentials.
func (FederatedAssertion) Kind() string { return "federated" }

// Strategy is a pluggable credential verifier. Every variant resolves to a
// canonical user record and records an activity fact on success. Strategies
// never touch login_count; the access gate owns the counter.
type Strategy interface {
	Authenticate(ctx context.Context, creds Credentials) (*User, error)
}

// AssertionVerifier validates a raw provider assertion (an ID token) and
// maps it to a FederatedAssertion.
type AssertionVerifier interface {
	Verify(ctx context.Context, rawAssertion string) (*FederatedAssertion, error)
}
