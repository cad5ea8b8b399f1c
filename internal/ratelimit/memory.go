package ratelimit

import (
	"context"
	"sync"
	"time"
)

// memoryPruneInterval bounds how often stale per-user counters are dropped.
const memoryPruneInterval = 60

type memoryEntry struct {
	window int64
	count  int
}

// MemoryLimiter implements a fixed-window in-memory rate limiter. It is the
// fallback backend when Redis is disabled or unreachable.
type MemoryLimiter struct {
	mu        sync.Mutex
	counters  map[string]*memoryEntry
	lastPrune int64
}

// NewMemoryLimiter constructs a MemoryLimiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		counters: make(map[string]*memoryEntry),
	}
}

// Allow checks whether the request should be allowed in the current second.
func (l *MemoryLimiter) Allow(_ context.Context, key string, limit int, now time.Time) (Result, error) {
	if limit <= 0 || key == "" {
		return Result{Allowed: true}, nil
	}
	sec := now.Unix()
	reset := time.Unix(sec+1, 0).UTC()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.pruneLocked(sec)

	entry := l.counters[key]
	if entry == nil {
		entry = &memoryEntry{window: sec}
		l.counters[key] = entry
	}
	if entry.window != sec {
		entry.window = sec
		entry.count = 0
	}
	if entry.count >= limit {
		return Result{Allowed: false, Remaining: 0, Reset: reset}, nil
	}
	entry.count++
	return Result{Allowed: true, Remaining: limit - entry.count, Reset: reset}, nil
}

// pruneLocked drops counters whose window has long passed so the map does not
// grow with one entry per user forever. Caller holds l.mu.
func (l *MemoryLimiter) pruneLocked(sec int64) {
	if sec-l.lastPrune < memoryPruneInterval {
		return
	}
	l.lastPrune = sec
	for key, entry := range l.counters {
		if sec-entry.window > 1 {
			delete(l.counters, key)
		}
	}
}
