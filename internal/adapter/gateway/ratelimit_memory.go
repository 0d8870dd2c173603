package gateway

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter is a sliding-window rate limiter backed by a mutex-guarded
// map of request timestamps per key. Single-process only; deployments with
// more than one gateway instance should use the Redis limiter.
type MemoryLimiter struct {
	mu          sync.Mutex
	requests    map[string][]time.Time
	maxRequests int
	window      time.Duration
	now         func() time.Time
}

func NewMemoryLimiter(maxRequests int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		requests:    make(map[string][]time.Time),
		maxRequests: maxRequests,
		window:      window,
		now:         time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	kept := l.requests[key][:0]
	for _, ts := range l.requests[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= l.maxRequests {
		l.requests[key] = kept
		return false, nil
	}

	l.requests[key] = append(kept, now)
	return true, nil
}
