package identity

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
)

// FederatedStrategy resolves a provider identity assertion to a canonical
// user with a find-or-create-by-email policy. A collision with an existing
// local account is rejected, never merged: merging would leave a federated
// flag and a password hash on the same row, which the data model forbids.
type FederatedStrategy struct {
	store    UserStore
	activity ActivityRecorder
	logger   Logger
	now      func() time.Time
}

// NewFederatedStrategy creates a federated-identity strategy.
func NewFederatedStrategy(store UserStore, activity ActivityRecorder) *FederatedStrategy {
	return &FederatedStrategy{
		store:    store,
		activity: activity,
		logger:   defLogger{},
		now:      time.Now,
	}
}

// WithLogger sets the strategy logger.
func (s *FederatedStrategy) WithLogger(l Logger) *FederatedStrategy {
	s.logger = normalizeLogger(l)
	return s
}

// WithClock overrides the strategy clock. Test hook.
func (s *FederatedStrategy) WithClock(now func() time.Time) *FederatedStrategy {
	s.now = now
	return s
}

// Authenticate resolves a federated assertion. New identities are
// provisioned as federated, verified accounts without a password; known
// federated identities get their display name and session timestamp
// refreshed. Every successful resolution appends an activity fact.
func (s *FederatedStrategy) Authenticate(ctx context.Context, creds Credentials) (*User, error) {
	assertion, ok := creds.(FederatedAssertion)
	if !ok {
		return nil, errors.New("federated strategy requires an identity assertion", errors.CategoryBadInput)
	}

	email := strings.TrimSpace(assertion.Email)
	if email == "" || assertion.Subject == "" {
		return nil, ErrProviderAssertion
	}

	user, err := s.store.GetByUsername(ctx, email)
	if err != nil {
		if IsNotFound(err) {
			return s.provision(ctx, email, assertion.DisplayName)
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to resolve federated identity")
	}

	if !user.Federated {
		s.logger.Warn("federated auth: assertion collides with a local account", "email", email)
		return nil, ErrIdentityCollision
	}

	if err := s.store.UpdateFederatedProfile(ctx, user.ID, assertion.DisplayName); err != nil {
		s.logger.Error("federated auth: failed to refresh profile", "error", err)
	} else {
		user.Name = assertion.DisplayName
	}

	if err := s.store.TrackSession(ctx, user.ID); err != nil {
		s.logger.Error("federated auth: failed to track session", "error", err)
	} else {
		at := s.now()
		user.LastSessionAt = &at
	}

	if err := s.activity.Record(ctx, user.ID, s.now()); err != nil {
		s.logger.Error("federated auth: failed to record activity", "error", err)
	}

	return user, nil
}

func (s *FederatedStrategy) provision(ctx context.Context, email, name string) (*User, error) {
	signedUp := s.now()
	record := &User{
		Username:      email,
		Name:          name,
		Federated:     true,
		EmailVerified: true,
		Role:          RoleMember,
		SignedUpAt:    &signedUp,
	}

	if id, err := hashid.NewUUID(email); err == nil {
		record.ID = id
	}

	user, err := s.store.Register(ctx, record)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to provision federated user")
	}

	s.logger.Info("federated auth: provisioned user", "user_id", user.ID, "email", email)

	if err := s.activity.Record(ctx, user.ID, s.now()); err != nil {
		s.logger.Error("federated auth: failed to record activity", "error", err)
	}

	return user, nil
}

var _ Strategy = (*FederatedStrategy)(nil)
