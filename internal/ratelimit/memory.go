package ratelimit

import (
	"context"
	"sync"
	"time"
)

// sweepThreshold is the number of tracked keys above which expired windows are dropped.
const sweepThreshold = 1024

// windowCounter counts hits for one key inside one window.
type windowCounter struct {
	index int64
	hits  int
}

// MemoryLimiter is a per-process fixed-window limiter.
type MemoryLimiter struct {
	mu   sync.Mutex
	keys map[string]windowCounter
}

// NewMemoryLimiter constructs a MemoryLimiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{keys: make(map[string]windowCounter)}
}

// Allow records one hit for key and reports whether it fits in the current window.
func (l *MemoryLimiter) Allow(_ context.Context, key string, limit int, window time.Duration, now time.Time) (Result, error) {
	if limit <= 0 || key == "" {
		return Result{Allowed: true}, nil
	}
	index, reset := windowStart(now, window)

	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.keys) >= sweepThreshold {
		l.sweepLocked(index)
	}

	counter := l.keys[key]
	if counter.index != index {
		counter = windowCounter{index: index}
	}
	if counter.hits >= limit {
		return Result{Reset: reset}, nil
	}
	counter.hits++
	l.keys[key] = counter
	return Result{Allowed: true, Remaining: limit - counter.hits, Reset: reset}, nil
}

func (l *MemoryLimiter) sweepLocked(current int64) {
	for key, counter := range l.keys {
		if counter.index != current {
			delete(l.keys, key)
		}
	}
}
