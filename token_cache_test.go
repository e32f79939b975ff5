package identity_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	identity "github.com/harborauth/go-identity"
)

func TestBearerKey(t *testing.T) {
	id := uuid.New()
	assert.Equal(t, "user_token:"+id.String(), identity.BearerKey(id))
}

func TestMemoryTokenCacheSetGetDel(t *testing.T) {
	ctx := context.Background()
	cache := identity.NewMemoryTokenCache()

	key := identity.BearerKey(uuid.New())

	_, err := cache.Get(ctx, key)
	assert.ErrorIs(t, err, identity.ErrTokenNotCached)

	require.NoError(t, cache.Set(ctx, key, "token-one", time.Hour))

	got, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "token-one", got)

	// A new token replaces the previous one silently.
	require.NoError(t, cache.Set(ctx, key, "token-two", time.Hour))
	got, err = cache.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "token-two", got)

	require.NoError(t, cache.Del(ctx, key))
	_, err = cache.Get(ctx, key)
	assert.ErrorIs(t, err, identity.ErrTokenNotCached)

	// Deleting again is not an error.
	assert.NoError(t, cache.Del(ctx, key))
}

func TestMemoryTokenCacheExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	cache := identity.NewMemoryTokenCache().WithClock(func() time.Time { return now })

	key := identity.BearerKey(uuid.New())
	require.NoError(t, cache.Set(ctx, key, "token", time.Hour))

	now = now.Add(59 * time.Minute)
	_, err := cache.Get(ctx, key)
	assert.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = cache.Get(ctx, key)
	assert.ErrorIs(t, err, identity.ErrTokenNotCached)
}
