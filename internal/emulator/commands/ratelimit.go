package commands

import (
	"sync"
	"time"
)

const (
	// DefaultRateLimit is the per-sender command budget per window when the
	// configuration does not set one.
	DefaultRateLimit = 60

	defaultRateLimitWindow = time.Minute
)

// RateLimiter enforces a per-sender sliding-window limit on command
// dispatches. It keeps the dispatch timestamps for each sender within the
// current window and prunes stale entries on every Allow call, so memory
// stays bounded to O(limit) per active sender.
//
// RateLimiter is safe for concurrent use.
type RateLimiter struct {
	mu       sync.Mutex
	limit    int
	window   time.Duration
	counters map[string][]time.Time
}

// NewRateLimiter allows at most limit dispatches per sender within window.
// Non-positive arguments fall back to the defaults.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = DefaultRateLimit
	}
	if window <= 0 {
		window = defaultRateLimitWindow
	}
	return &RateLimiter{
		limit:    limit,
		window:   window,
		counters: make(map[string][]time.Time),
	}
}

// Allow records a dispatch for the sender and reports whether it is within
// budget. A false return means the sender has exhausted the current window.
func (r *RateLimiter) Allow(senderID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-r.window)

	existing := r.counters[senderID]
	valid := existing[:0]
	for _, t := range existing {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}

	if len(valid) >= r.limit {
		r.counters[senderID] = valid
		return false
	}

	r.counters[senderID] = append(valid, now)
	return true
}

// Remaining returns how many dispatches the sender has left in the current
// window.
func (r *RateLimiter) Remaining(senderID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-r.window)
	count := 0
	for _, t := range r.counters[senderID] {
		if t.After(cutoff) {
			count++
		}
	}
	if rem := r.limit - count; rem > 0 {
		return rem
	}
	return 0
}
