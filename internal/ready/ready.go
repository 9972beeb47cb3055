// Package ready provides the process-wide readiness events handlers use
// to bound their waits: one for the first successful DAW connection and
// one for a populated browser catalog. Events are monotonic for the
// process lifetime: reconnections and refreshes never clear them.
package ready

import (
	"sync"
	"time"
)

// Event is a one-shot readiness signal. Zero value is unset.
type Event struct {
	mu   sync.Mutex
	ch   chan struct{}
	done bool
}

func (e *Event) channel() chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ch == nil {
		e.ch = make(chan struct{})
	}
	return e.ch
}

// Set marks the event. Subsequent Sets are no-ops.
func (e *Event) Set() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done {
		return
	}
	e.done = true
	if e.ch == nil {
		e.ch = make(chan struct{})
	}
	close(e.ch)
}

// IsSet reports whether the event has fired.
func (e *Event) IsSet() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.done
}

// Wait blocks until the event fires or the timeout expires. Returns true
// when the event fired. A zero or negative timeout polls without blocking.
func (e *Event) Wait(timeout time.Duration) bool {
	if e.IsSet() {
		return true
	}
	if timeout <= 0 {
		return false
	}
	select {
	case <-e.channel():
		return true
	case <-time.After(timeout):
		return e.IsSet()
	}
}

// Signals bundles the two bridge readiness events.
type Signals struct {
	// DawConnected fires on the first established TCP session.
	DawConnected Event
	// CatalogPopulated fires when a catalog populate completes with at
	// least one item.
	CatalogPopulated Event
}
