// Package window locates and focuses the application window keystrokes are sent to.
package window

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when no visible window matches the title filters.
var ErrNotFound = errors.New("target window not found")

// Handle is an opaque window identifier. Focused means "whatever window
// currently has keyboard focus" and is used where windows cannot be enumerated.
type Handle uintptr

const Focused Handle = 0

// Locator finds windows by title.
type Locator interface {
	Find(filters []string) (Handle, bool)
}

// Info is a visible top-level window.
type Info struct {
	Handle Handle
	Title  string
}

// Match reports whether title contains any filter, ignoring case.
// An empty filter list matches everything.
func Match(title string, filters []string) bool {
	if len(filters) == 0 {
		return true
	}
	lower := strings.ToLower(title)
	for _, f := range filters {
		f = strings.ToLower(strings.TrimSpace(f))
		if f != "" && strings.Contains(lower, f) {
			return true
		}
	}
	return false
}

// FindIn returns the first window in list whose title matches filters.
func FindIn(list []Info, filters []string) (Handle, bool) {
	for _, w := range list {
		if w.Title == "" {
			continue
		}
		if Match(w.Title, filters) {
			return w.Handle, true
		}
	}
	return 0, false
}

// Resolve finds a window with l and wraps ErrNotFound with the filters tried.
func Resolve(l Locator, filters []string) (Handle, error) {
	h, ok := l.Find(filters)
	if !ok {
		return 0, fmt.Errorf("%w (searched for %s)", ErrNotFound, strings.Join(filters, ", "))
	}
	return h, nil
}

// System is the Locator backed by the operating system's window list.
type System struct{}

// NewSystem returns the platform locator.
func NewSystem() *System { return &System{} }

// Find returns the first visible window whose title contains one of filters.
func (s *System) Find(filters []string) (Handle, bool) {
	return find(filters)
}

// List returns visible, titled top-level windows.
func (s *System) List() []Info {
	return list()
}
