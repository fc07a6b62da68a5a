package core

import (
	"sync"
	"time"
)

// maxTrackedKeys bounds the limiter's memory when hosts emit high-cardinality
// metric keys; expired entries are pruned once the map fills up.
const maxTrackedKeys = 1024

// RateLimiter bounds repeated actions to one per interval, tracked per key so
// a single noisy metric or message cannot silence diagnostics from others.
type RateLimiter struct {
	interval time.Duration
	mu       sync.Mutex
	last     map[string]time.Time
}

// NewRateLimiter creates a per-key rate limiter with the given interval
func NewRateLimiter(interval time.Duration) *RateLimiter {
	return &RateLimiter{
		interval: interval,
		last:     make(map[string]time.Time),
	}
}

// Allow reports whether the action identified by key may proceed. The first
// call for a key always passes; subsequent calls pass once per interval.
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if last, ok := r.last[key]; ok && now.Sub(last) < r.interval {
		return false
	}

	if len(r.last) >= maxTrackedKeys {
		for k, last := range r.last {
			if now.Sub(last) >= r.interval {
				delete(r.last, k)
			}
		}
	}

	r.last[key] = now
	return true
}
