package macro

import (
	"errors"
	"fmt"
)

// ErrMalformed matches every *MalformedError.
var ErrMalformed = errors.New("malformed macro")

// MalformedError reports a stored or constructed macro that violates the
// action model. Step is 1-based; zero means the macro as a whole.
type MalformedError struct {
	Name   string
	Step   int
	Reason string
}

func (e *MalformedError) Error() string {
	switch {
	case e.Name == "":
		return fmt.Sprintf("malformed macro: %s", e.Reason)
	case e.Step > 0:
		return fmt.Sprintf("malformed macro %q: step %d: %s", e.Name, e.Step, e.Reason)
	default:
		return fmt.Sprintf("malformed macro %q: %s", e.Name, e.Reason)
	}
}

func (e *MalformedError) Is(target error) bool {
	return target == ErrMalformed
}

// IsMalformed reports whether err wraps a *MalformedError.
func IsMalformed(err error) bool {
	var me *MalformedError
	return errors.As(err, &me)
}
