package opensky

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTimedOut is returned by Limiter.Acquire when the caller's context
// expires before a slot becomes free.
var ErrTimedOut = errors.New("opensky: rate limit wait timed out")

// Limiter is a sliding-window rate limiter: at most maxCalls admissions in
// any window of length period. Safe for concurrent use.
type Limiter struct {
	mu       sync.Mutex
	maxCalls int
	period   time.Duration
	calls    []time.Time

	// now is swappable for tests; defaults to time.Now (monotonic).
	now func() time.Time
}

// NewLimiter creates a limiter admitting maxCalls per period.
func NewLimiter(maxCalls int, period time.Duration) *Limiter {
	if maxCalls < 1 {
		maxCalls = 1
	}
	return &Limiter{
		maxCalls: maxCalls,
		period:   period,
		now:      time.Now,
	}
}

// Acquire blocks until admitting one more call keeps the in-window count at
// or below the limit, then records the call. Returns ErrTimedOut (wrapping
// the context error) if ctx is done first.
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := l.now()
		l.trim(now)

		if len(l.calls) < l.maxCalls {
			l.calls = append(l.calls, now)
			l.mu.Unlock()
			return nil
		}

		// Oldest in-window call decides how long until a slot frees up.
		wait := l.period - now.Sub(l.calls[0])
		l.mu.Unlock()

		if wait <= 0 {
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(ErrTimedOut, ctx.Err())
		case <-timer.C:
		}
	}
}

// trim drops call records that have aged out of the window. Caller holds mu.
func (l *Limiter) trim(now time.Time) {
	cutoff := 0
	for cutoff < len(l.calls) && now.Sub(l.calls[cutoff]) >= l.period {
		cutoff++
	}
	if cutoff > 0 {
		l.calls = append(l.calls[:0], l.calls[cutoff:]...)
	}
}

// InWindow returns the number of admissions currently inside the window.
func (l *Limiter) InWindow() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.trim(l.now())
	return len(l.calls)
}
