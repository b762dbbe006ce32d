package sync

import (
	"sync"
	"time"
)

// DefaultMaxBackoff caps the backed-off sync interval.
const DefaultMaxBackoff = 5 * time.Minute

// Backoff adjusts the sync engine's timer cadence after whole-batch
// transport failures. Per-event retry accounting lives in the event
// records, not here.
type Backoff struct {
	mu        sync.Mutex
	base      time.Duration
	max       time.Duration
	cur       time.Duration
	restoreAt time.Time
}

// NewBackoff creates a controller with the given baseline and cap.
func NewBackoff(base, max time.Duration) *Backoff {
	if max < base {
		max = base
	}
	return &Backoff{base: base, max: max, cur: base}
}

// Interval returns the current timer interval, restoring the baseline once
// the cooldown has elapsed.
func (b *Backoff) Interval(now time.Time) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.restoreAt.IsZero() && !now.Before(b.restoreAt) {
		b.cur = b.base
		b.restoreAt = time.Time{}
	}
	return b.cur
}

// Fail doubles the interval (capped at max) and schedules restoration of
// the baseline after a cooldown of 3x the backed-off interval. It returns
// the new interval.
func (b *Backoff) Fail(now time.Time) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cur *= 2
	if b.cur > b.max {
		b.cur = b.max
	}
	b.restoreAt = now.Add(3 * b.cur)
	return b.cur
}

// SetBase replaces the baseline interval (live syncInterval update) and
// resets any backoff in progress.
func (b *Backoff) SetBase(base time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.base = base
	if b.max < base {
		b.max = base
	}
	b.cur = base
	b.restoreAt = time.Time{}
}
