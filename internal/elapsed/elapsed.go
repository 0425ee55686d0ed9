// Package elapsed formats the time since a commit and keeps that string
// fresh with a cancellable ticker.
package elapsed

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultInterval is the refresh period of a Ticker.
const DefaultInterval = time.Second

// Format renders d as "{days}d {hours}h {minutes}m {seconds}s". Days are
// unbounded, the other fields wrap at their natural period. Negative
// durations render as zero.
func Format(d time.Duration) string {
	total := int64(d / time.Second)
	if total < 0 {
		total = 0
	}
	days := total / 86400
	hours := total / 3600 % 24
	minutes := total / 60 % 60
	seconds := total % 60
	return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
}

// Since formats the time elapsed between since and now.
func Since(since, now time.Time) string {
	return Format(now.Sub(since))
}

// Ticker recomputes the elapsed time since a fixed instant once per interval.
// A Ticker runs at most once; Stop releases it.
type Ticker struct {
	since    time.Time
	interval time.Duration
	now      func() time.Time

	ctx     context.Context
	cancel  context.CancelFunc
	stopped chan struct{}
	once    sync.Once
	started atomic.Bool
	count   atomic.Int64
}

// Option configures a Ticker.
type Option func(*Ticker)

// WithInterval overrides DefaultInterval.
func WithInterval(d time.Duration) Option {
	return func(t *Ticker) {
		if d > 0 {
			t.interval = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Ticker) { t.now = now }
}

// NewTicker creates a ticker for the time elapsed since since.
func NewTicker(since time.Time, opts ...Option) *Ticker {
	ctx, cancel := context.WithCancel(context.Background())
	t := &Ticker{
		since:    since,
		interval: DefaultInterval,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start computes the first value immediately and returns it, then calls fn
// with a fresh value once per interval until Stop. fn runs on the ticker's
// goroutine and must not call Stop.
func (t *Ticker) Start(fn func(string)) string {
	first := t.compute()
	if !t.started.CompareAndSwap(false, true) {
		return first
	}

	go func() {
		defer close(t.stopped)
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()

		for {
			select {
			case <-t.ctx.Done():
				return
			case <-ticker.C:
				// Stop may have raced with the tick.
				if t.ctx.Err() != nil {
					return
				}
				fn(t.compute())
			}
		}
	}()
	return first
}

// Stop cancels the ticker and waits for its goroutine to exit. No value is
// computed after Stop returns. Stop is idempotent.
func (t *Ticker) Stop() {
	t.once.Do(func() {
		t.cancel()
		if t.started.Load() {
			<-t.stopped
		}
	})
}

// Since returns the instant the ticker measures from.
func (t *Ticker) Since() time.Time {
	return t.since
}

// Computations returns how many values the ticker has produced.
func (t *Ticker) Computations() int64 {
	return t.count.Load()
}

func (t *Ticker) compute() string {
	t.count.Add(1)
	return Since(t.since, t.now())
}
