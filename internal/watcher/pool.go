package watcher

import (
	"sync"
	"time"
)

// PoolTracker holds the identity of the pool currently believed active.
// Observe must be called in stream order; reordering corrupts failover
// detection. No debounce here - suppression is the Engine's job.
//
// Mutation is confined to the ingest goroutine; the mutex makes Current
// and LastSeen safe to read from the liveness endpoint.
type PoolTracker struct {
	mu       sync.RWMutex
	current  string
	lastSeen time.Time
}

// NewPoolTracker seeds the tracker with the configured initial pool.
func NewPoolTracker(initialPool string) *PoolTracker {
	return &PoolTracker{current: initialPool}
}

// Observe compares the outcome's pool against the stored one. A change
// returns a FailoverEvent and updates the stored pool. Outcomes whose pool
// could not be determined never cause a transition.
func (pt *PoolTracker) Observe(outcome RequestOutcome) (FailoverEvent, bool) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	pt.lastSeen = outcome.Timestamp

	if outcome.Pool == "" || outcome.Pool == pt.current {
		return FailoverEvent{}, false
	}

	event := FailoverEvent{
		Previous: pt.current,
		Current:  outcome.Pool,
		At:       outcome.Timestamp,
	}
	pt.current = outcome.Pool
	return event, true
}

// Current returns the pool currently believed active.
func (pt *PoolTracker) Current() string {
	pt.mu.RLock()
	defer pt.mu.RUnlock()
	return pt.current
}

// LastSeen returns the timestamp of the last observed record.
func (pt *PoolTracker) LastSeen() time.Time {
	pt.mu.RLock()
	defer pt.mu.RUnlock()
	return pt.lastSeen
}
