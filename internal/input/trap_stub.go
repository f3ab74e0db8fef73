//go:build !windows && !linux

package input

import "log/slog"

// Trap is unavailable on this platform.
type Trap struct {
	events chan KeyEvent
}

// NewTrap returns a trap whose Start always fails.
func NewTrap(devices []string, logger *slog.Logger) *Trap {
	return &Trap{events: make(chan KeyEvent)}
}

func (t *Trap) Start() error { return ErrUnsupported }

func (t *Trap) Stop() error { return nil }

func (t *Trap) Events() <-chan KeyEvent { return t.events }
