package macro

import (
	"math"
	"time"
)

// Action kinds as they appear in stored macros.
const (
	KindKeyPress = "keypress"
	KindKeyHold  = "keyhold"
	KindSleep    = "sleep"
)

// Action is one step of a macro. The set of implementations is closed:
// KeyPress, KeyHold and Sleep.
type Action interface {
	Kind() string
	isAction()
}

// KeyPress is a quick tap of Key.
type KeyPress struct {
	Key string
}

// KeyHold holds Key down for Seconds.
type KeyHold struct {
	Key     string
	Seconds float64
}

// Sleep waits for Seconds without touching the keyboard.
type Sleep struct {
	Seconds float64
}

func (KeyPress) Kind() string { return KindKeyPress }
func (KeyHold) Kind() string  { return KindKeyHold }
func (Sleep) Kind() string    { return KindSleep }

func (KeyPress) isAction() {}
func (KeyHold) isAction()  {}
func (Sleep) isAction()    {}

// Duration converts the hold time to a time.Duration.
func (a KeyHold) Duration() time.Duration { return Seconds(a.Seconds) }

// Duration converts the wait time to a time.Duration.
func (a Sleep) Duration() time.Duration { return Seconds(a.Seconds) }

// Seconds converts fractional seconds to a time.Duration.
func Seconds(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}

// Round rounds seconds to two decimal places, never below 0.01.
func Round(s float64) float64 {
	r := math.Round(s*100) / 100
	if r < 0.01 {
		return 0.01
	}
	return r
}

// KeyOf returns the key an action touches, or "" for Sleep.
func KeyOf(a Action) string {
	switch v := a.(type) {
	case KeyPress:
		return v.Key
	case KeyHold:
		return v.Key
	}
	return ""
}
