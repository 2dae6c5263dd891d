package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlexKimmel/tidegate/internal/ratelimit"
)

func setup(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return server, client
}

func TestLimiter_Scenario(t *testing.T) {
	server, client := setup(t)
	lim := New(client, "")
	ctx := context.Background()
	p := ratelimit.Policy{Window: time.Minute, Max: 3}
	now := time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC)

	for i, want := range []int{2, 1, 0} {
		dec, err := lim.Allow(ctx, "k", p, now)
		require.NoError(t, err)
		require.True(t, dec.Allowed, "call %d", i+1)
		assert.Equal(t, want, dec.Remaining)
		assert.Equal(t, now.Add(time.Minute), dec.Reset)
	}

	dec, err := lim.Allow(ctx, "k", p, now)
	require.NoError(t, err)
	assert.False(t, dec.Allowed)
	assert.Equal(t, 0, dec.Remaining)

	server.FastForward(61 * time.Second)
	now = now.Add(61 * time.Second)

	dec, err = lim.Allow(ctx, "k", p, now)
	require.NoError(t, err)
	assert.True(t, dec.Allowed)
	assert.Equal(t, 2, dec.Remaining)
	assert.Equal(t, now.Add(time.Minute), dec.Reset)
}

func TestLimiter_UsesPrefixAndExpiresKeys(t *testing.T) {
	server, client := setup(t)
	lim := New(client, "beach:rl:")
	p := ratelimit.Policy{Window: 30 * time.Second, Max: 5}

	_, err := lim.Allow(context.Background(), "api-patch-10.0.0.1", p, time.Now())
	require.NoError(t, err)

	require.True(t, server.Exists("beach:rl:api-patch-10.0.0.1"))
	assert.Equal(t, 30*time.Second, server.TTL("beach:rl:api-patch-10.0.0.1"))

	server.FastForward(31 * time.Second)
	assert.False(t, server.Exists("beach:rl:api-patch-10.0.0.1"))
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	_, client := setup(t)
	lim := New(client, "")
	ctx := context.Background()
	p := ratelimit.Policy{Window: time.Minute, Max: 1}
	now := time.Now()

	dec, err := lim.Allow(ctx, "a", p, now)
	require.NoError(t, err)
	require.True(t, dec.Allowed)
	dec, err = lim.Allow(ctx, "a", p, now)
	require.NoError(t, err)
	require.False(t, dec.Allowed)

	dec, err = lim.Allow(ctx, "b", p, now)
	require.NoError(t, err)
	assert.True(t, dec.Allowed)
}

func TestLimiter_ReturnsErrorWhenRedisIsDown(t *testing.T) {
	server, client := setup(t)
	lim := New(client, "")
	server.Close()

	_, err := lim.Allow(context.Background(), "k", ratelimit.Policy{Window: time.Minute, Max: 1}, time.Now())
	assert.Error(t, err)
}
