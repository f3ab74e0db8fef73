package storage

import (
	"fmt"
	"log/slog"

	"keyloop/internal/macro"
)

// Library is the combined view of built-in and recorded macros. Names are
// unique across both; built-ins win a collision.
type Library struct {
	store    *Store
	builtins []macro.Macro
	logger   *slog.Logger
}

// NewLibrary combines store with builtins.
func NewLibrary(store *Store, builtins []macro.Macro, logger *slog.Logger) *Library {
	if logger == nil {
		logger = slog.Default()
	}
	bs := make([]macro.Macro, 0, len(builtins))
	for _, m := range builtins {
		m = m.Clone()
		m.BuiltIn = true
		bs = append(bs, m)
	}
	return &Library{store: store, builtins: bs, logger: logger}
}

func (l *Library) builtin(name string) (macro.Macro, bool) {
	for _, m := range l.builtins {
		if macro.SameName(m.Name, name) {
			return m.Clone(), true
		}
	}
	return macro.Macro{}, false
}

// List returns built-ins first, then recorded macros sorted by name.
func (l *Library) List() []macro.Macro {
	out := make([]macro.Macro, 0, len(l.builtins))
	for _, m := range l.builtins {
		out = append(out, m.Clone())
	}
	for _, m := range l.store.LoadAll() {
		if _, clash := l.builtin(m.Name); clash {
			l.logger.Warn("recorded macro shadows a built-in, ignoring", "macro", m.Name)
			continue
		}
		out = append(out, m)
	}
	return out
}

// Get returns the macro called name.
func (l *Library) Get(name string) (macro.Macro, error) {
	if m, ok := l.builtin(name); ok {
		return m, nil
	}
	return l.store.Load(name)
}

// Exists reports whether any macro is called name.
func (l *Library) Exists(name string) bool {
	if _, ok := l.builtin(name); ok {
		return true
	}
	return l.store.Exists(name)
}

// SaveRecording stores a recorded macro. Without overwrite, an existing name
// is rejected with ErrExists. Built-in names are always rejected.
func (l *Library) SaveRecording(m macro.Macro, overwrite bool) error {
	if _, ok := l.builtin(m.Name); ok {
		return fmt.Errorf("%w: %q is a built-in", ErrExists, m.Name)
	}
	if !overwrite && l.store.Exists(m.Name) {
		return fmt.Errorf("%w: %q", ErrExists, m.Name)
	}
	m = m.Clone()
	m.BuiltIn = false
	if m.Description == "" {
		m.Description = macro.DefaultDescription
	}
	return l.store.Save(m)
}

// Delete removes a recorded macro.
func (l *Library) Delete(name string) error {
	if _, ok := l.builtin(name); ok {
		return fmt.Errorf("%w: %q", ErrBuiltIn, name)
	}
	return l.store.Delete(name)
}

// SetLoop changes the stored loop policy of a recorded macro.
func (l *Library) SetLoop(name string, p macro.LoopPolicy) (macro.Macro, error) {
	if _, ok := l.builtin(name); ok {
		return macro.Macro{}, fmt.Errorf("%w: %q", ErrBuiltIn, name)
	}
	m, err := l.store.Load(name)
	if err != nil {
		return macro.Macro{}, err
	}
	m = m.WithLoop(p)
	if err := l.store.Save(m); err != nil {
		return macro.Macro{}, err
	}
	return m, nil
}
