package macro

import (
	"fmt"

	"keyloop/internal/keys"
)

// ActionRecord is the stored form of an Action.
type ActionRecord struct {
	Type     string  `json:"type" yaml:"type"`
	Key      string  `json:"key,omitempty" yaml:"key,omitempty"`
	Duration float64 `json:"duration,omitempty" yaml:"duration,omitempty"`
	Delay    float64 `json:"delay,omitempty" yaml:"delay,omitempty"`
}

// Record is the stored form of a Macro.
//
// Loop defaults to true when absent. A LoopCount of zero while looping means
// repeat until stopped.
type Record struct {
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Actions     []ActionRecord `json:"actions" yaml:"actions"`
	Loop        *bool          `json:"loop,omitempty" yaml:"loop,omitempty"`
	LoopCount   int            `json:"loop_count,omitempty" yaml:"loop_count,omitempty"`
}

// ToRecord converts a macro to its stored form.
func ToRecord(m Macro) Record {
	r := Record{
		Name:        m.Name,
		Description: m.Description,
		Actions:     make([]ActionRecord, 0, len(m.Actions)),
	}
	for _, a := range m.Actions {
		r.Actions = append(r.Actions, toActionRecord(a))
	}

	loop := true
	switch m.Loop.Mode {
	case LoopOnce:
		loop = false
	case LoopCount:
		r.LoopCount = max(m.Loop.Count, 1)
	}
	r.Loop = &loop
	return r
}

func toActionRecord(a Action) ActionRecord {
	switch v := a.(type) {
	case KeyPress:
		return ActionRecord{Type: KindKeyPress, Key: v.Key}
	case KeyHold:
		return ActionRecord{Type: KindKeyHold, Key: v.Key, Duration: v.Seconds}
	case Sleep:
		return ActionRecord{Type: KindSleep, Delay: v.Seconds}
	}
	return ActionRecord{}
}

// FromRecord validates a stored macro and converts it to a Macro.
// Any violation yields a *MalformedError.
func FromRecord(r Record) (Macro, error) {
	if r.Name == "" {
		return Macro{}, &MalformedError{Reason: "empty name"}
	}
	if r.LoopCount < 0 {
		return Macro{}, &MalformedError{Name: r.Name, Reason: fmt.Sprintf("negative loop_count %d", r.LoopCount)}
	}

	m := Macro{
		Name:        r.Name,
		Description: r.Description,
		Actions:     make([]Action, 0, len(r.Actions)),
	}
	for i, ar := range r.Actions {
		a, err := fromActionRecord(ar)
		if err != nil {
			return Macro{}, &MalformedError{Name: r.Name, Step: i + 1, Reason: err.Error()}
		}
		m.Actions = append(m.Actions, a)
	}

	switch {
	case r.Loop != nil && !*r.Loop:
		m.Loop = Once()
	case r.LoopCount > 0:
		m.Loop = Times(r.LoopCount)
	default:
		m.Loop = Infinite()
	}
	return m, nil
}

func fromActionRecord(ar ActionRecord) (Action, error) {
	var a Action
	switch ar.Type {
	case KindKeyPress:
		a = KeyPress{Key: keys.Normalize(ar.Key)}
	case KindKeyHold:
		a = KeyHold{Key: keys.Normalize(ar.Key), Seconds: ar.Duration}
	case KindSleep:
		a = Sleep{Seconds: ar.Delay}
	default:
		return nil, fmt.Errorf("unknown action type %q", ar.Type)
	}
	if err := validateAction(a); err != nil {
		return nil, err
	}
	return a, nil
}
