// Package input captures global key events and injects synthetic key presses.
package input

import (
	"errors"
	"time"
)

// ErrUnsupported is returned by capture and injection on platforms without a backend.
var ErrUnsupported = errors.New("not supported on this platform")

// KeyEvent is one edge of a physical key, named in the keys vocabulary.
type KeyEvent struct {
	Key  string
	Down bool
	Time time.Time
	// Injected is set for events synthesized by software, including our own injector.
	Injected bool
}

// eventBuffer is the capacity of a trap's event channel. Events are dropped
// when it is full so the OS hook never blocks.
const eventBuffer = 256
