package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisWindow(t *testing.T) (*RedisFixedWindow, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cli := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cli.Close() })
	return NewRedisFixedWindow(cli, 10, 60*time.Second), mr
}

func TestRedisFixedWindow(t *testing.T) {
	rw, mr := newRedisWindow(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		ok, err := rw.Allow(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, ok, "request %d", i+1)
	}

	ok, err := rw.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)

	// denied requests do not extend or bump the window
	assert.Equal(t, "10", mustGet(t, mr, "ratelimit:identify:u1"))
	assert.Equal(t, 60*time.Second, mr.TTL("ratelimit:identify:u1"))

	// other users are independent
	ok, err = rw.Allow(ctx, "u2")
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(59 * time.Second)
	ok, err = rw.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)

	mr.FastForward(2 * time.Second)
	ok, err = rw.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1", mustGet(t, mr, "ratelimit:identify:u1"))
}

func TestRedisFixedWindow_Unavailable(t *testing.T) {
	rw, mr := newRedisWindow(t)
	mr.Close()

	ok, err := rw.Allow(context.Background(), "u1")
	assert.Error(t, err)
	assert.False(t, ok)
}

func mustGet(t *testing.T, mr *miniredis.Miniredis, key string) string {
	t.Helper()
	v, err := mr.Get(key)
	require.NoError(t, err)
	return v
}
