package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/goliatone/go-errors"
)

// VerificationTokenTTL is the lifetime of an email verification token.
const VerificationTokenTTL = 24 * time.Hour

const verificationTokenBytes = 20

// GenerateVerificationToken returns a high-entropy single-use token.
func GenerateVerificationToken() (string, error) {
	buf := make([]byte, verificationTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to generate verification token")
	}
	return hex.EncodeToString(buf), nil
}

// Issuer manages single-use, time-bound email verification tokens.
type Issuer struct {
	store  UserStore
	mailer Mailer
	gate   *AccessGate

	baseURL string
	ttl     time.Duration
	logger  Logger
	now     func() time.Time
}

// NewIssuer creates a verification issuer. baseURL is the externally
// reachable prefix of the verify-email endpoint.
func NewIssuer(store UserStore, mailer Mailer, gate *AccessGate, baseURL string) *Issuer {
	return &Issuer{
		store:   store,
		mailer:  mailer,
		gate:    gate,
		baseURL: baseURL,
		ttl:     VerificationTokenTTL,
		logger:  defLogger{},
		now:     time.Now,
	}
}

// WithLogger sets the issuer logger.
func (i *Issuer) WithLogger(l Logger) *Issuer {
	i.logger = normalizeLogger(l)
	return i
}

// WithTTL overrides the token lifetime.
func (i *Issuer) WithTTL(ttl time.Duration) *Issuer {
	if ttl > 0 {
		i.ttl = ttl
	}
	return i
}

// WithClock overrides the issuer clock. Test hook.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

// Issue generates a fresh token, persists it on the user with its expiry,
// and hands the verification email to the mailer. A delivery failure is
// reported as ErrMailDelivery but never rolls back issuance: the token
// stays valid and can be re-sent.
func (i *Issuer) Issue(ctx context.Context, user *User) (string, error) {
	token, err := GenerateVerificationToken()
	if err != nil {
		return "", err
	}

	expiry := i.now().Add(i.ttl)
	if err := i.store.SetVerificationToken(ctx, user.ID, token, expiry); err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to persist verification token")
	}
	user.VerificationToken = token
	user.TokenExpiry = &expiry

	if err := i.deliver(ctx, user, token); err != nil {
		i.logger.Error("verification email delivery failed", "user_id", user.ID, "error", err)
		return token, errors.Wrap(err, ErrMailDelivery.Category, ErrMailDelivery.Message).WithTextCode(ErrMailDelivery.TextCode)
	}

	return token, nil
}

// Consume validates and spends a verification token. Unknown or already
// consumed tokens report ErrVerificationNotFound; matched but stale tokens
// report ErrVerificationExpired and stay invalid. On success the token
// fields are cleared and is_email_verified flips in a single store update,
// and a fresh bearer credential is minted for the now-verified user. The
// bearer is handed to the caller but must never appear in a user-visible
// URL; this distinguishes the verification path from the login path, where
// the token is optionally exposed for API consumption.
func (i *Issuer) Consume(ctx context.Context, token string) (*User, string, error) {
	if token == "" {
		return nil, "", ErrVerificationNotFound
	}

	user, err := i.store.GetByVerificationToken(ctx, token)
	if err != nil {
		if IsNotFound(err) {
			return nil, "", ErrVerificationNotFound
		}
		return nil, "", errors.Wrap(err, errors.CategoryInternal, "failed to look up verification token")
	}

	if user.TokenExpiry == nil || i.now().After(*user.TokenExpiry) {
		return nil, "", ErrVerificationExpired
	}

	// Keyed on the token value: a concurrent consumer that lost the race
	// observes zero updated rows and reports not-found, so the verified
	// flag can only flip once.
	verified, err := i.store.ConsumeVerificationToken(ctx, token)
	if err != nil {
		if IsNotFound(err) {
			return nil, "", ErrVerificationNotFound
		}
		return nil, "", errors.Wrap(err, errors.CategoryInternal, "failed to consume verification token")
	}

	bearer, err := i.gate.MintBearer(ctx, verified)
	if err != nil {
		i.logger.Error("post-verification bearer mint failed", "user_id", verified.ID, "error", err)
		return verified, "", err
	}

	return verified, bearer, nil
}

// Resend re-delivers the verification email for an authenticated but
// unverified principal. Verified principals are a no-op success. A live
// token is re-sent as-is so in-flight email links stay valid; an expired
// or absent token is reissued.
func (i *Issuer) Resend(ctx context.Context, user *User) error {
	if user.Verified() {
		return nil
	}

	if user.HasLiveVerificationToken(i.now()) {
		if err := i.deliver(ctx, user, user.VerificationToken); err != nil {
			i.logger.Error("verification email re-delivery failed", "user_id", user.ID, "error", err)
			return errors.Wrap(err, ErrMailDelivery.Category, ErrMailDelivery.Message).WithTextCode(ErrMailDelivery.TextCode)
		}
		return nil
	}

	_, err := i.Issue(ctx, user)
	return err
}

func (i *Issuer) deliver(ctx context.Context, user *User, token string) error {
	url := fmt.Sprintf("%s/verify-email?token=%s", i.baseURL, token)
	return i.mailer.Send(ctx, user.Username, verificationSubject, VerificationEmailHTML(url))
}

const verificationSubject = "Please Verify Your Email Address"

// VerificationEmailHTML renders the verification email body.
func VerificationEmailHTML(url string) string {
	return fmt.Sprintf(`<div style="font-family: Arial, sans-serif; color: #333; padding: 20px; text-align: center;">
  <h1>Verify Your Email Address</h1>
  <p>Thank you for signing up. Please click the button below to verify your email address and complete the registration process.</p>
  <a href="%[1]s" style="background-color: #3498db; color: #ffffff; padding: 10px 20px; border-radius: 5px; text-decoration: none; display: inline-block;">Verify Email</a>
  <p>If you did not create an account, no further action is required.</p>
  <p style="font-size: 12px; color: #777;">If the button does not work, copy and paste this URL into your browser:</p>
  <p><a href="%[1]s">%[1]s</a></p>
</div>`, url)
}
