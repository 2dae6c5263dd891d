package ratelimit

import (
	"context"
	"time"
)

type Policy struct {
	Window time.Duration // fixed window length
	Max    int           // requests allowed per window
}

type Decision struct {
	Allowed   bool
	Limit     int       // max per window
	Remaining int       // requests left in this window (min 0)
	Reset     time.Time // end of the current window, fixed at window start
}

// ResetUnixMilli returns the window end as epoch milliseconds.
func (d Decision) ResetUnixMilli() int64 { return d.Reset.UnixMilli() }

// RetryAfter returns the whole seconds until the window resets, rounded up.
func (d Decision) RetryAfter(now time.Time) int64 {
	left := d.Reset.Sub(now)
	if left <= 0 {
		return 0
	}
	return int64((left + time.Second - 1) / time.Second)
}

type Limiter interface {
	Allow(ctx context.Context, key string, p Policy, now time.Time) (Decision, error)
	Close() error
}
