package spam

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	// RateLimitWindow / MaxRequestsPerWindow give the minimum gap between
	// accepted requests from one identity (60s / 5 = 12s).
	RateLimitWindow      = time.Minute
	MaxRequestsPerWindow = 5

	// MaxTrackedIdentities bounds limiter memory regardless of how many
	// distinct IPs show up; the least recently seen entry is evicted.
	MaxTrackedIdentities = 5000
)

// RateLimiter is a leaky-bucket style throttle: one timestamp per identity,
// a rejected request does not reset the clock. State lives in an LRU cache
// whose entries expire after RateLimitWindow, so an idle identity costs
// nothing and an expired entry behaves as absent.
type RateLimiter struct {
	mu    sync.Mutex
	cache *expirable.LRU[string, time.Time]
	now   func() time.Time
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		cache: expirable.NewLRU[string, time.Time](MaxTrackedIdentities, nil, RateLimitWindow),
		now:   time.Now,
	}
}

// Allow reports whether a request from identity may proceed and, if so,
// records it. The read-compare-write runs under one lock so two concurrent
// requests cannot both pass the gate.
func (l *RateLimiter) Allow(identity string) bool {
	minGap := RateLimitWindow / MaxRequestsPerWindow

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if last, ok := l.cache.Get(identity); ok && now.Sub(last) < minGap {
		return false
	}
	l.cache.Add(identity, now)
	return true
}
