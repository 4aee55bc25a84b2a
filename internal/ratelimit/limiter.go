// Package ratelimit implements the two-tier, time-windowed request pacing
// described in spec.md §4.4: a per-host limiter and a single process-wide
// global limiter, each a mutex-guarded counter rather than a leaky
// bucket — the Go translation of the original implementation's
// RequestManager (requestmanager.py), which enforced the same
// max-requests-per-period scheme per domain and globally.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Window is a single fixed-window request counter: a window opens with the
// first request after the previous window has lasted Period, and at most
// Max requests are admitted per window; once the quota is reached, Acquire
// blocks until the window rolls over, then resets. Because windows are
// fixed rather than sliding, up to 2*Max requests can fall within one
// Period-long span that straddles a rollover.
type Window struct {
	Max    int
	Period time.Duration

	mu          sync.Mutex
	count       int
	windowStart time.Time
}

// NewWindow creates a window-counter tier.
func NewWindow(max int, period time.Duration) *Window {
	return &Window{Max: max, Period: period}
}

// Acquire blocks, if necessary, until a request may be admitted under this
// tier's quota, then records it.
func (w *Window) Acquire(ctx context.Context) error {
	for {
		w.mu.Lock()
		now := time.Now()
		if w.windowStart.IsZero() || now.Sub(w.windowStart) >= w.Period {
			w.windowStart = now
			w.count = 0
		}
		if w.count < w.Max {
			w.count++
			w.mu.Unlock()
			return nil
		}
		wait := w.Period - now.Sub(w.windowStart)
		w.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// SetParams overrides Max/Period, used when a host's robots.txt Request-rate
// directive takes precedence over the configured default (spec.md §4.4).
func (w *Window) SetParams(max int, period time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Max = max
	w.Period = period
}

// Limiter pairs a per-host Window with the process-wide global Window; a
// request is admitted only once both tiers agree (spec.md §4.4: "A request
// completes only when both tiers permit").
type Limiter struct {
	host   *Window
	global *Window
}

// NewLimiter builds a per-host limiter sharing the given global tier.
func NewLimiter(host, global *Window) *Limiter {
	return &Limiter{host: host, global: global}
}

// Acquire blocks until both the host and global tiers admit one request.
// The host tier is checked first since it is typically the tighter
// constraint and fails fast without consuming a global slot.
func (l *Limiter) Acquire(ctx context.Context) error {
	if err := l.host.Acquire(ctx); err != nil {
		return err
	}
	return l.global.Acquire(ctx)
}

// HostWindow exposes the per-host tier so robots.txt Request-rate overrides
// can be applied to it directly.
func (l *Limiter) HostWindow() *Window {
	return l.host
}
