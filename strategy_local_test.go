package identity_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	identity "github.com/harborauth/go-identity"
)

func hashOf(t *testing.T, password string) string {
	t.Helper()
	hash, err := identity.HashPassword(password)
	require.NoError(t, err)
	return hash
}

func TestLocalStrategyAuthenticateSuccess(t *testing.T) {
	ctx := context.Background()

	user := &identity.User{
		ID:           uuid.New(),
		Username:     "member@example.com",
		PasswordHash: hashOf(t, "Sup3rS3cret!"),
		LoginCount:   3,
	}

	store := new(MockUserStore)
	activity := new(MockActivityRecorder)

	store.On("GetByUsername", mock.Anything, "member@example.com").Return(user, nil).Once()
	store.On("TrackSession", mock.Anything, user.ID).Return(nil).Once()
	activity.On("Record", mock.Anything, user.ID, mock.Anything).Return(nil).Once()

	strategy := identity.NewLocalStrategy(store, activity)

	got, err := strategy.Authenticate(ctx, identity.PasswordCredentials{
		Identifier: "member@example.com",
		Password:   "Sup3rS3cret!",
	})
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.NotNil(t, got.LastSessionAt)

	// Credential verification never moves the login counter.
	assert.Equal(t, 3, got.LoginCount)
	store.AssertNotCalled(t, "IncrementLoginCount", mock.Anything, mock.Anything)

	store.AssertExpectations(t)
	activity.AssertExpectations(t)
}

func TestLocalStrategyUnknownIdentifier(t *testing.T) {
	store := new(MockUserStore)
	store.On("GetByUsername", mock.Anything, "ghost@example.com").
		Return(nil, identity.ErrIdentityNotFound).Once()

	strategy := identity.NewLocalStrategy(store, nopActivity{})

	_, err := strategy.Authenticate(context.Background(), identity.PasswordCredentials{
		Identifier: "ghost@example.com",
		Password:   "whatever",
	})
	assert.ErrorIs(t, err, identity.ErrIdentityNotFound)
	store.AssertExpectations(t)
}

func TestLocalStrategyWrongPassword(t *testing.T) {
	user := &identity.User{
		ID:           uuid.New(),
		Username:     "member@example.com",
		PasswordHash: hashOf(t, "Sup3rS3cret!"),
	}

	store := new(MockUserStore)
	store.On("GetByUsername", mock.Anything, "member@example.com").Return(user, nil).Once()

	strategy := identity.NewLocalStrategy(store, nopActivity{})

	_, err := strategy.Authenticate(context.Background(), identity.PasswordCredentials{
		Identifier: "member@example.com",
		Password:   "NotTheS3cret!",
	})
	assert.ErrorIs(t, err, identity.ErrBadCredential)
	store.AssertNotCalled(t, "TrackSession", mock.Anything, mock.Anything)
}

func TestLocalStrategyPasswordlessAccount(t *testing.T) {
	user := &identity.User{
		ID:        uuid.New(),
		Username:  "federated@example.com",
		Federated: true,
	}

	store := new(MockUserStore)
	store.On("GetByUsername", mock.Anything, "federated@example.com").Return(user, nil).Once()

	strategy := identity.NewLocalStrategy(store, nopActivity{})

	_, err := strategy.Authenticate(context.Background(), identity.PasswordCredentials{
		Identifier: "federated@example.com",
		Password:   "anything at all",
	})
	assert.ErrorIs(t, err, identity.ErrBadCredential)
}

func TestLocalStrategyRejectsForeignCredentials(t *testing.T) {
	strategy := identity.NewLocalStrategy(new(MockUserStore), nopActivity{})

	_, err := strategy.Authenticate(context.Background(), identity.FederatedAssertion{
		Email:   "someone@example.com",
		Subject: "sub",
	})
	assert.Error(t, err)
}

func TestLocalStrategySucceedsWhenTrackingFails(t *testing.T) {
	user := &identity.User{
		ID:           uuid.New(),
		Username:     "member@example.com",
		PasswordHash: hashOf(t, "Sup3rS3cret!"),
	}

	store := new(MockUserStore)
	activity := new(MockActivityRecorder)

	store.On("GetByUsername", mock.Anything, "member@example.com").Return(user, nil).Once()
	store.On("TrackSession", mock.Anything, user.ID).
		Return(assert.AnError).Once()
	activity.On("Record", mock.Anything, user.ID, mock.Anything).
		Return(assert.AnError).Once()

	strategy := identity.NewLocalStrategy(store, activity).
		WithClock(func() time.Time { return time.Now() })

	got, err := strategy.Authenticate(context.Background(), identity.PasswordCredentials{
		Identifier: "member@example.com",
		Password:   "Sup3rS3cret!",
	})
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
}
