package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AlexKimmel/tidegate/internal/ratelimit"
)

const DefaultSweepInterval = 60 * time.Second

// Entry is the counter state for one key within its current window.
type Entry struct {
	Count int
	Reset time.Time
}

// Limiter is a process-local fixed-window counter. Counts are not shared
// between instances, so N replicas admit up to N*Max per window.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*Entry

	now      func() time.Time
	interval time.Duration
	onSweep  func(removed int)

	started   atomic.Bool
	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

type Option func(*Limiter)

// WithClock overrides the clock used by Check and the sweep.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithSweepInterval sets how often expired entries are removed. Zero disables the sweep.
func WithSweepInterval(d time.Duration) Option {
	return func(l *Limiter) { l.interval = d }
}

// WithOnSweep registers a callback invoked after every sweep pass.
func WithOnSweep(fn func(removed int)) Option {
	return func(l *Limiter) { l.onSweep = fn }
}

func New(opts ...Option) *Limiter {
	l := &Limiter{
		entries:  make(map[string]*Entry),
		now:      time.Now,
		interval: DefaultSweepInterval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Start launches the background sweep. It runs until ctx is done or Close is called.
func (l *Limiter) Start(ctx context.Context) {
	l.startOnce.Do(func() {
		if l.interval <= 0 {
			return
		}
		l.started.Store(true)

		t := time.NewTicker(l.interval)
		go func() {
			defer close(l.done)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-l.stop:
					return
				case <-t.C:
					l.Sweep()
				}
			}
		}()
	})
}

// Close stops the sweep and waits for it to exit.
func (l *Limiter) Close() error {
	l.stopOnce.Do(func() { close(l.stop) })
	if l.started.Load() {
		<-l.done
	}
	return nil
}

func (l *Limiter) Allow(_ context.Context, key string, p ratelimit.Policy, now time.Time) (ratelimit.Decision, error) {
	return l.check(key, p, now), nil
}

// Check counts one request for key against p using the limiter clock.
func (l *Limiter) Check(key string, p ratelimit.Policy) ratelimit.Decision {
	return l.check(key, p, l.now())
}

func (l *Limiter) check(key string, p ratelimit.Policy, now time.Time) ratelimit.Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok || now.After(e.Reset) {
		e = &Entry{Reset: now.Add(p.Window)}
		l.entries[key] = e
	}
	e.Count++

	remaining := p.Max - e.Count
	if remaining < 0 {
		remaining = 0
	}

	return ratelimit.Decision{
		Allowed:   e.Count <= p.Max,
		Limit:     p.Max,
		Remaining: remaining,
		Reset:     e.Reset,
	}
}

// Sweep deletes every entry whose window has ended and returns how many were removed.
func (l *Limiter) Sweep() int {
	now := l.now()

	l.mu.Lock()
	removed := 0
	for k, e := range l.entries {
		if now.After(e.Reset) {
			delete(l.entries, k)
			removed++
		}
	}
	l.mu.Unlock()

	if l.onSweep != nil {
		l.onSweep(removed)
	}
	return removed
}

// Len returns the number of tracked keys, expired or not.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Peek returns a copy of the entry for key without counting a request.
func (l *Limiter) Peek(key string) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}
