package identity_test

import (
	"context"
	"testing"
	"time"
	"unsafe"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	identity "github.com/harborauth/go-identity"
)

func TestMemorySessionStorePutGetDelete(t *testing.T) {
	ctx := context.Background()
	store := identity.NewMemorySessionStore()

	sid := uuid.NewString()
	state := &identity.SessionState{UserID: uuid.New(), IssuedAt: time.Now()}

	_, err := store.Get(ctx, sid)
	assert.ErrorIs(t, err, identity.ErrSessionNotFound)

	require.NoError(t, store.Put(ctx, sid, state, time.Hour))

	got, err := store.Get(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, state.UserID, got.UserID)

	require.NoError(t, store.Delete(ctx, sid))
	_, err = store.Get(ctx, sid)
	assert.ErrorIs(t, err, identity.ErrSessionNotFound)
}

func TestMemorySessionStoreCopiesSessionIDs(t *testing.T) {
	ctx := context.Background()
	store := identity.NewMemorySessionStore()

	// Cookie values arrive as zero-copy views over a request buffer that
	// the server reuses between requests; the store must keep its own copy.
	buf := []byte(uuid.NewString())
	sid := string(buf)
	state := &identity.SessionState{UserID: uuid.New()}
	require.NoError(t, store.Put(ctx, unsafe.String(&buf[0], len(buf)), state, time.Hour))

	_, err := store.Get(ctx, unsafe.String(&buf[0], len(buf)))
	require.NoError(t, err)

	// The next request overwrites the buffer in place.
	copy(buf, []byte(uuid.NewString()))

	got, err := store.Get(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, state.UserID, got.UserID)
}

func TestMemorySessionStoreRollingExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	store := identity.NewMemorySessionStore().WithClock(func() time.Time { return now })

	sid := uuid.NewString()
	require.NoError(t, store.Put(ctx, sid, &identity.SessionState{UserID: uuid.New()}, time.Hour))

	// Each read pushes the window forward, so a session touched every 40
	// minutes outlives its nominal one hour.
	for i := 0; i < 3; i++ {
		now = now.Add(40 * time.Minute)
		_, err := store.Get(ctx, sid)
		require.NoError(t, err)
	}

	// Left untouched past the ttl, the session lapses.
	now = now.Add(61 * time.Minute)
	_, err := store.Get(ctx, sid)
	assert.ErrorIs(t, err, identity.ErrSessionNotFound)
}
