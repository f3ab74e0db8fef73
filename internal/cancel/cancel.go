// Package cancel provides the level-triggered stop flag shared between a run's
// controller and its worker.
package cancel

import (
	"sync/atomic"
	"time"
)

// Signal is the read side of a cancellation flag.
type Signal interface {
	Cancelled() bool
}

// Flag is set once and stays set.
type Flag struct {
	set atomic.Bool
}

// New returns an unset flag.
func New() *Flag {
	return &Flag{}
}

// Cancel sets the flag. Safe to call more than once.
func (f *Flag) Cancel() {
	f.set.Store(true)
}

// Cancelled reports whether Cancel has been called.
func (f *Flag) Cancelled() bool {
	return f.set.Load()
}

// Never is a Signal that is never cancelled.
var Never Signal = never{}

type never struct{}

func (never) Cancelled() bool { return false }

// Sleep waits for d, waking every poll to check sig. It returns false if the
// signal was observed before d elapsed.
func Sleep(sig Signal, d, poll time.Duration) bool {
	if sig == nil {
		sig = Never
	}
	if poll <= 0 {
		poll = d
	}
	deadline := time.Now().Add(d)
	for {
		if sig.Cancelled() {
			return false
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return true
		}
		time.Sleep(min(poll, remaining))
	}
}
