// Package macro holds the action model: the closed set of actions, loop
// policies, macros, and their persisted record form.
package macro

import (
	"fmt"

	"keyloop/internal/keys"
)

// DefaultDescription is used for recorded macros saved without one.
const DefaultDescription = "Custom recorded macro"

// Macro is a named, ordered list of actions with a loop policy.
type Macro struct {
	Name        string
	Description string
	Actions     []Action
	Loop        LoopPolicy
	BuiltIn     bool
}

// WithLoop returns a copy of m with a different loop policy.
func (m Macro) WithLoop(p LoopPolicy) Macro {
	c := m.Clone()
	c.Loop = p
	return c
}

// Clone returns a copy that shares nothing mutable with m.
func (m Macro) Clone() Macro {
	c := m
	c.Actions = append([]Action(nil), m.Actions...)
	return c
}

// SameName reports whether two macro names identify the same macro.
// Names are compared exactly, case included.
func SameName(a, b string) bool {
	return a == b
}

// Validate checks the invariants of every action and the name.
func (m Macro) Validate() error {
	if m.Name == "" {
		return &MalformedError{Reason: "empty name"}
	}
	for i, a := range m.Actions {
		if err := validateAction(a); err != nil {
			return &MalformedError{Name: m.Name, Step: i + 1, Reason: err.Error()}
		}
	}
	if m.Loop.Mode == LoopCount && m.Loop.Count < 1 {
		return &MalformedError{Name: m.Name, Reason: fmt.Sprintf("loop count %d", m.Loop.Count)}
	}
	return nil
}

func validateAction(a Action) error {
	switch v := a.(type) {
	case KeyPress:
		return validateKey(v.Key)
	case KeyHold:
		if err := validateKey(v.Key); err != nil {
			return err
		}
		if !(v.Seconds > 0) {
			return fmt.Errorf("hold duration must be positive, got %v", v.Seconds)
		}
	case Sleep:
		if !(v.Seconds > 0) {
			return fmt.Errorf("sleep duration must be positive, got %v", v.Seconds)
		}
	case nil:
		return fmt.Errorf("nil action")
	default:
		return fmt.Errorf("unsupported action %T", a)
	}
	return nil
}

func validateKey(k string) error {
	if k == "" {
		return fmt.Errorf("empty key")
	}
	if !keys.Valid(k) {
		return fmt.Errorf("unknown key %q", k)
	}
	return nil
}
