package watcher

import "sync"

// Window is a fixed-capacity FIFO of the most recent request outcomes.
// Insertion evicts the oldest entry at capacity. The error count is
// maintained incrementally so Snapshot is O(1).
//
// Ingest is confined to the single ingest goroutine; the RWMutex exists so
// Snapshot can be read concurrently (health endpoint) without a torn view.
type Window struct {
	mu         sync.RWMutex
	outcomes   []RequestOutcome
	capacity   int
	head       int // index of the oldest entry once full
	length     int
	errorCount int
}

// WindowSnapshot is a consistent view of the window's derived values.
type WindowSnapshot struct {
	Length     int
	ErrorCount int
	ErrorRate  float64 // fraction in [0,1]; 0 for an empty window
}

// NewWindow creates a window holding at most capacity outcomes.
func NewWindow(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{
		outcomes: make([]RequestOutcome, capacity),
		capacity: capacity,
	}
}

// Ingest appends an outcome, evicting the oldest entry when at capacity.
func (w *Window) Ingest(outcome RequestOutcome) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.length == w.capacity {
		evicted := w.outcomes[w.head]
		if evicted.IsError {
			w.errorCount--
		}
		w.outcomes[w.head] = outcome
		w.head = (w.head + 1) % w.capacity
	} else {
		w.outcomes[(w.head+w.length)%w.capacity] = outcome
		w.length++
	}

	if outcome.IsError {
		w.errorCount++
	}
}

// Snapshot returns the current length, error count and error rate.
func (w *Window) Snapshot() WindowSnapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()

	snap := WindowSnapshot{
		Length:     w.length,
		ErrorCount: w.errorCount,
	}
	if w.length > 0 {
		snap.ErrorRate = float64(w.errorCount) / float64(w.length)
	}
	return snap
}

// Capacity returns the configured window size.
func (w *Window) Capacity() int { return w.capacity }
