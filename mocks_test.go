package identity_test

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	identity "github.com/harborauth/go-identity"
)

// MockUserStore implements identity.UserStore
type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) FindByID(ctx context.Context, id uuid.UUID) (*identity.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*identity.User)
	return user, args.Error(1)
}

func (m *MockUserStore) GetByUsername(ctx context.Context, username string) (*identity.User, error) {
	args := m.Called(ctx, username)
	user, _ := args.Get(0).(*identity.User)
	return user, args.Error(1)
}

func (m *MockUserStore) GetByVerificationToken(ctx context.Context, token string) (*identity.User, error) {
	args := m.Called(ctx, token)
	user, _ := args.Get(0).(*identity.User)
	return user, args.Error(1)
}

func (m *MockUserStore) Register(ctx context.Context, user *identity.User) (*identity.User, error) {
	args := m.Called(ctx, user)
	out, _ := args.Get(0).(*identity.User)
	return out, args.Error(1)
}

func (m *MockUserStore) TrackSession(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockUserStore) IncrementLoginCount(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockUserStore) SetVerificationToken(ctx context.Context, id uuid.UUID, token string, expiry time.Time) error {
	args := m.Called(ctx, id, token, expiry)
	return args.Error(0)
}

func (m *MockUserStore) ConsumeVerificationToken(ctx context.Context, token string) (*identity.User, error) {
	args := m.Called(ctx, token)
	user, _ := args.Get(0).(*identity.User)
	return user, args.Error(1)
}

func (m *MockUserStore) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	args := m.Called(ctx, id, passwordHash)
	return args.Error(0)
}

func (m *MockUserStore) UpdateName(ctx context.Context, id uuid.UUID, name string) error {
	args := m.Called(ctx, id, name)
	return args.Error(0)
}

func (m *MockUserStore) UpdateFederatedProfile(ctx context.Context, id uuid.UUID, name string) error {
	args := m.Called(ctx, id, name)
	return args.Error(0)
}

// MockMailer implements identity.Mailer
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(ctx context.Context, to, subject, html string) error {
	args := m.Called(ctx, to, subject, html)
	return args.Error(0)
}

// MockActivityRecorder implements identity.ActivityRecorder
type MockActivityRecorder struct {
	mock.Mock
}

func (m *MockActivityRecorder) Record(ctx context.Context, userID uuid.UUID, at time.Time) error {
	args := m.Called(ctx, userID, at)
	return args.Error(0)
}

// MockStatsStore implements identity.StatsStore
type MockStatsStore struct {
	mock.Mock
}

func (m *MockStatsStore) CountUsers(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockStatsStore) CountActiveSince(ctx context.Context, t time.Time) (int, error) {
	args := m.Called(ctx, t)
	return args.Int(0), args.Error(1)
}

func (m *MockStatsStore) DistinctActiveByDay(ctx context.Context, from, to time.Time) ([]identity.DayCount, error) {
	args := m.Called(ctx, from, to)
	days, _ := args.Get(0).([]identity.DayCount)
	return days, args.Error(1)
}

// memUsers is an in-memory UserStore used where full store behavior
// matters more than call assertions.
type memUsers struct {
	mu    sync.Mutex
	users map[uuid.UUID]*identity.User
}

func newMemUsers(users ...*identity.User) *memUsers {
	s := &memUsers{users: map[uuid.UUID]*identity.User{}}
	for _, u := range users {
		// Seeds are cloned like Register's inserts so callers keeping the
		// original pointer never alias the stored record.
		clone := *u
		s.users[u.ID] = &clone
	}
	return s
}

func (s *memUsers) get(id uuid.UUID) *identity.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id]
}

func (s *memUsers) FindByID(ctx context.Context, id uuid.UUID) (*identity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		clone := *u
		return &clone, nil
	}
	return nil, identity.ErrIdentityNotFound
}

func (s *memUsers) GetByUsername(ctx context.Context, username string) (*identity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			clone := *u
			return &clone, nil
		}
	}
	return nil, identity.ErrIdentityNotFound
}

func (s *memUsers) GetByVerificationToken(ctx context.Context, token string) (*identity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.VerificationToken != "" && u.VerificationToken == token {
			clone := *u
			return &clone, nil
		}
	}
	return nil, identity.ErrVerificationNotFound
}

func (s *memUsers) Register(ctx context.Context, user *identity.User) (*identity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.Role == "" {
		user.Role = identity.RoleMember
	}
	clone := *user
	s.users[user.ID] = &clone
	return user, nil
}

func (s *memUsers) TrackSession(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		now := time.Now()
		u.LastSessionAt = &now
		return nil
	}
	return identity.ErrIdentityNotFound
}

func (s *memUsers) IncrementLoginCount(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.LoginCount++
		return nil
	}
	return identity.ErrIdentityNotFound
}

func (s *memUsers) SetVerificationToken(ctx context.Context, id uuid.UUID, token string, expiry time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.VerificationToken = token
		u.TokenExpiry = &expiry
		return nil
	}
	return identity.ErrIdentityNotFound
}

func (s *memUsers) ConsumeVerificationToken(ctx context.Context, token string) (*identity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.VerificationToken != "" && u.VerificationToken == token {
			u.VerificationToken = ""
			u.TokenExpiry = nil
			u.EmailVerified = true
			clone := *u
			return &clone, nil
		}
	}
	return nil, identity.ErrVerificationNotFound
}

func (s *memUsers) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.PasswordHash = passwordHash
		return nil
	}
	return identity.ErrIdentityNotFound
}

func (s *memUsers) UpdateName(ctx context.Context, id uuid.UUID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.Name = name
		return nil
	}
	return identity.ErrIdentityNotFound
}

func (s *memUsers) UpdateFederatedProfile(ctx context.Context, id uuid.UUID, name string) error {
	return s.UpdateName(ctx, id, name)
}

// nopActivity drops activity facts.
type nopActivity struct{}

func (nopActivity) Record(ctx context.Context, userID uuid.UUID, at time.Time) error {
	return nil
}

// failingCache rejects a chosen operation to exercise partial failures.
type failingCache struct {
	identity.TokenCache
	failSet bool
	failGet bool
	failDel bool
	err     error
}

func (c *failingCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if c.failSet {
		return c.err
	}
	return c.TokenCache.Set(ctx, key, value, ttl)
}

func (c *failingCache) Get(ctx context.Context, key string) (string, error) {
	if c.failGet {
		return "", c.err
	}
	return c.TokenCache.Get(ctx, key)
}

func (c *failingCache) Del(ctx context.Context, key string) error {
	if c.failDel {
		return c.err
	}
	return c.TokenCache.Del(ctx, key)
}

// failingSessions rejects deletes to exercise partial logout.
type failingSessions struct {
	identity.SessionStore
	failDelete bool
	err        error
}

func (s *failingSessions) Delete(ctx context.Context, sid string) error {
	if s.failDelete {
		return s.err
	}
	return s.SessionStore.Delete(ctx, sid)
}
