package utils

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
)

func newTestThrottle(t *testing.T, limit int, window time.Duration) (*LoginThrottle, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewLoginThrottle(client, limit, window), mr
}

func TestLoginThrottleBlocksAtLimit(t *testing.T) {
	lt, _ := newTestThrottle(t, 3, 15*time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.True(t, lt.Allow(ctx, "admin@acme.test"))
		lt.RecordFailure(ctx, "admin@acme.test")
	}
	require.False(t, lt.Allow(ctx, "admin@acme.test"))

	// Other accounts are unaffected.
	require.True(t, lt.Allow(ctx, "other@acme.test"))
}

func TestLoginThrottleResetClearsFailures(t *testing.T) {
	lt, _ := newTestThrottle(t, 2, 15*time.Minute)
	ctx := context.Background()

	lt.RecordFailure(ctx, "admin@acme.test")
	lt.RecordFailure(ctx, "admin@acme.test")
	require.False(t, lt.Allow(ctx, "admin@acme.test"))

	lt.Reset(ctx, "admin@acme.test")
	require.True(t, lt.Allow(ctx, "admin@acme.test"))
}

func TestLoginThrottleWindowExpires(t *testing.T) {
	lt, mr := newTestThrottle(t, 2, time.Minute)
	ctx := context.Background()

	lt.RecordFailure(ctx, "admin@acme.test")
	lt.RecordFailure(ctx, "admin@acme.test")
	require.False(t, lt.Allow(ctx, "admin@acme.test"))

	mr.FastForward(2 * time.Minute)
	require.True(t, lt.Allow(ctx, "admin@acme.test"))
}

func TestLoginThrottleFailureCarriesTTL(t *testing.T) {
	lt, mr := newTestThrottle(t, 2, time.Minute)

	lt.RecordFailure(context.Background(), "admin@acme.test")

	// The counter and its expiry are written atomically: a counter
	// without a TTL would lock the account out until the next successful
	// login.
	key := lt.key("admin@acme.test")
	require.True(t, mr.Exists(key))
	require.Greater(t, mr.TTL(key), time.Duration(0))
}

func TestLoginThrottleFailsOpenWithoutRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	lt := NewLoginThrottle(client, 2, time.Minute)

	mr.Close()

	// A broken cache must not lock accounts out.
	require.True(t, lt.Allow(context.Background(), "admin@acme.test"))
}
