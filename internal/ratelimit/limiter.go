// Package ratelimit provides the sliding-window throttle shared by every
// outbound Scryfall request, including retries.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter is a sliding-window request throttle. Single-process scope;
// waiters are served in FIFO arrival order with no further fairness
// guarantee.
type Limiter struct {
	mu     sync.Mutex
	max    int
	window time.Duration
	calls  []time.Time
}

// New creates a limiter allowing max calls per trailing window.
func New(max int, window time.Duration) *Limiter {
	return &Limiter{max: max, window: window}
}

// Wait blocks until fewer than max calls were recorded in the trailing
// window, then records a new call. Returns early with the context error
// on cancellation.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := time.Now()
		l.prune(now)
		if len(l.calls) < l.max {
			l.calls = append(l.calls, now)
			l.mu.Unlock()
			return nil
		}
		wait := l.window - now.Sub(l.calls[0])
		l.mu.Unlock()

		if wait <= 0 {
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// prune drops timestamps outside the trailing window. Caller holds mu.
func (l *Limiter) prune(now time.Time) {
	cut := 0
	for cut < len(l.calls) && now.Sub(l.calls[cut]) >= l.window {
		cut++
	}
	if cut > 0 {
		l.calls = append(l.calls[:0], l.calls[cut:]...)
	}
}
