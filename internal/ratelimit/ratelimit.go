// Package ratelimit implements per-user sliding-window admission control.
package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

// ExceededError is returned when a user is over the limit. RetryAfter is the
// time until the oldest recorded request ages out of the window.
type ExceededError struct {
	RetryAfter time.Duration
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %.0fs", e.RetryAfter.Seconds())
}

// Limiter tracks request timestamps per user in a trailing window. State is
// in-memory only: a restart clears all buckets, which is fine for an abuse
// throttle. The limiter is owned by the application and passed to handlers,
// never a package-level singleton.
type Limiter struct {
	max    int
	window time.Duration

	mu      sync.Mutex
	buckets map[int64][]time.Time

	now func() time.Time // swapped out in tests
}

// New creates a Limiter allowing max requests per user within window.
func New(max int, window time.Duration) *Limiter {
	return &Limiter{
		max:     max,
		window:  window,
		buckets: make(map[int64][]time.Time),
		now:     time.Now,
	}
}

// Check records a request for userID if the user is under the limit, or
// returns *ExceededError. Expired timestamps are pruned lazily on each call;
// buckets are append-only so the slice stays in chronological order and
// front-pruning is correct.
func (l *Limiter) Check(userID int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	windowStart := now.Add(-l.window)

	bucket := l.buckets[userID]
	i := 0
	for i < len(bucket) && bucket[i].Before(windowStart) {
		i++
	}
	bucket = bucket[i:]

	if len(bucket) >= l.max {
		l.buckets[userID] = bucket
		return &ExceededError{RetryAfter: bucket[0].Sub(windowStart)}
	}

	l.buckets[userID] = append(bucket, now)
	return nil
}

// Reset forgets all recorded requests for userID.
func (l *Limiter) Reset(userID int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, userID)
}
