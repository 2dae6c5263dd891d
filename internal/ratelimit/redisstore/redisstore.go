// Package redisstore is a fixed-window limiter whose counters live in Redis,
// so every gateway instance shares one budget per key.
package redisstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AlexKimmel/tidegate/internal/ratelimit"
)

const DefaultPrefix = "tidegate:rl"

// The expiry is set only when the counter is created, so the window is
// anchored at the first request. A key left without a TTL gets one again.
var fixedWindow = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

type Limiter struct {
	client redis.Scripter
	prefix string
}

func New(client redis.Scripter, prefix string) *Limiter {
	prefix = strings.Trim(prefix, ":")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Limiter{client: client, prefix: prefix}
}

// Close is a no-op; the caller owns the Redis client.
func (l *Limiter) Close() error { return nil }

func (l *Limiter) Allow(ctx context.Context, key string, p ratelimit.Policy, now time.Time) (ratelimit.Decision, error) {
	windowMS := p.Window.Milliseconds()
	if windowMS < 1 {
		windowMS = 1
	}

	res, err := fixedWindow.Run(ctx, l.client, []string{l.key(key)}, windowMS).Int64Slice()
	if err != nil {
		return ratelimit.Decision{}, fmt.Errorf("redis fixed window for key %v: %w", key, err)
	}
	if len(res) != 2 {
		return ratelimit.Decision{}, fmt.Errorf("redis fixed window for key %v: unexpected reply %v", key, res)
	}

	count, ttl := int(res[0]), res[1]
	remaining := p.Max - count
	if remaining < 0 {
		remaining = 0
	}

	return ratelimit.Decision{
		Allowed:   count <= p.Max,
		Limit:     p.Max,
		Remaining: remaining,
		Reset:     now.Add(time.Duration(ttl) * time.Millisecond),
	}, nil
}

func (l *Limiter) key(k string) string { return l.prefix + ":" + k }
