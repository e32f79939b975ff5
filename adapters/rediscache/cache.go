// Package rediscache backs the token cache and the session store with
// Redis, so authenticated state survives process restarts and is shared
// across replicas.
package rediscache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/redis/go-redis/v9"

	identity "github.com/harborauth/go-identity"
)

// TokenCache stores one bearer token per user under the user's bearer
// key. Redis enforces the TTL server side.
type TokenCache struct {
	client *redis.Client
}

var _ identity.TokenCache = (*TokenCache)(nil)

func NewTokenCache(client *redis.Client) *TokenCache {
	return &TokenCache{client: client}
}

func (c *TokenCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to store token")
	}
	return nil
}

func (c *TokenCache) Get(ctx context.Context, key string) (string, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", identity.ErrTokenNotCached
		}
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to read token")
	}
	return val, nil
}

func (c *TokenCache) Del(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to delete token")
	}
	return nil
}

const sessionKeyPrefix = "identity_session:"

// SessionStore persists session records as JSON values with a rolling
// TTL: every Get pushes the expiry forward by the configured lifetime.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ identity.SessionStore = (*SessionStore)(nil)

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = identity.SessionTTL
	}
	return &SessionStore{client: client, ttl: ttl}
}

func (s *SessionStore) Get(ctx context.Context, sid string) (*identity.SessionState, error) {
	raw, err := s.client.GetEx(ctx, sessionKeyPrefix+sid, s.ttl).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, identity.ErrSessionNotFound
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to read session")
	}

	state := &identity.SessionState{}
	if err := json.Unmarshal([]byte(raw), state); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to decode session")
	}

	return state, nil
}

func (s *SessionStore) Put(ctx context.Context, sid string, state *identity.SessionState, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.ttl
	}

	raw, err := json.Marshal(state)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to encode session")
	}

	if err := s.client.Set(ctx, sessionKeyPrefix+sid, raw, ttl).Err(); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to store session")
	}
	return nil
}

func (s *SessionStore) Delete(ctx context.Context, sid string) error {
	if err := s.client.Del(ctx, sessionKeyPrefix+sid).Err(); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to delete session")
	}
	return nil
}
