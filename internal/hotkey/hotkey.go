// Package hotkey matches global key combinations against the captured key
// event stream and fires callbacks.
package hotkey

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"keyloop/internal/input"
	"keyloop/internal/keys"
)

// DefaultDebounce is the minimum time between two firings of one hotkey.
const DefaultDebounce = 300 * time.Millisecond

// Source delivers key events.
type Source interface {
	Subscribe(fn func(input.KeyEvent)) (func(), error)
}

// sideless maps right-hand modifiers to the generic name so "ctrl+f1"
// matches either control key.
var sideless = map[string]string{
	"ctrl_r":  "ctrl",
	"alt_r":   "alt",
	"shift_r": "shift",
}

// Manager handles global hotkey registration and matching
type Manager struct {
	mu           sync.Mutex
	hotkeys      []*registeredHotkey
	currentState map[string]bool // keys currently held
	debounce     time.Duration
	now          func() time.Time
	logger       *slog.Logger
	unsubscribe  func()
}

type registeredHotkey struct {
	parts    []string // e.g. ["ctrl", "f1"]
	original string
	callback func()
	lastFire time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithDebounce sets the minimum interval between firings of one hotkey.
func WithDebounce(d time.Duration) Option {
	return func(m *Manager) { m.debounce = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a new hotkey manager
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		currentState: make(map[string]bool),
		debounce:     DefaultDebounce,
		now:          time.Now,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Parse splits a combo such as "Ctrl+F1" into normalized key names.
func Parse(combo string) ([]string, error) {
	if strings.TrimSpace(combo) == "" {
		return nil, fmt.Errorf("empty hotkey")
	}
	raw := strings.Split(combo, "+")
	parts := make([]string, 0, len(raw))
	for _, p := range raw {
		name := keys.Normalize(p)
		if !keys.Valid(name) {
			return nil, fmt.Errorf("hotkey %q: %w: %q", combo, keys.ErrUnknownKey, strings.TrimSpace(p))
		}
		if s, ok := sideless[name]; ok && len(raw) > 1 {
			name = s
		}
		parts = append(parts, name)
	}
	return parts, nil
}

// Register registers a hotkey string (e.g. "f1", "ctrl+alt+r") and a
// callback. Callbacks run on their own goroutine.
func (m *Manager) Register(combo string, callback func()) error {
	parts, err := Parse(combo)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.hotkeys = append(m.hotkeys, &registeredHotkey{
		parts:    parts,
		original: combo,
		callback: callback,
	})
	return nil
}

// Clear removes all registered hotkeys
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hotkeys = nil
}

// Start subscribes to src. Injected events are ignored so playback cannot
// trigger hotkeys.
func (m *Manager) Start(src Source) error {
	unsub, err := src.Subscribe(m.handle)
	if err != nil {
		return fmt.Errorf("hotkey subscribe: %w", err)
	}
	m.mu.Lock()
	m.unsubscribe = unsub
	m.mu.Unlock()
	return nil
}

// Stop detaches from the event source.
func (m *Manager) Stop() {
	m.mu.Lock()
	unsub := m.unsubscribe
	m.unsubscribe = nil
	m.currentState = make(map[string]bool)
	m.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

func (m *Manager) handle(ev input.KeyEvent) {
	if ev.Injected {
		return
	}
	m.UpdateState(ev.Key, ev.Down)
}

// UpdateState updates the internal state of a key and checks for matches.
// Auto-repeat down-edges of a held key do not re-trigger.
func (m *Manager) UpdateState(key string, isDown bool) {
	key = keys.Normalize(key)

	m.mu.Lock()
	names := []string{key}
	if s, ok := sideless[key]; ok {
		names = append(names, s)
	}
	if !isDown {
		for _, n := range names {
			delete(m.currentState, n)
		}
		m.mu.Unlock()
		return
	}
	if m.currentState[key] {
		m.mu.Unlock()
		return
	}
	for _, n := range names {
		m.currentState[n] = true
	}
	fire := m.matchesLocked(key)
	m.mu.Unlock()

	for _, fn := range fire {
		go fn()
	}
}

// matchesLocked returns callbacks of hotkeys completed by trigger.
func (m *Manager) matchesLocked(trigger string) []func() {
	now := m.now()
	var out []func()
	for _, hk := range m.hotkeys {
		if !m.completes(hk, trigger) {
			continue
		}
		if !hk.lastFire.IsZero() && now.Sub(hk.lastFire) < m.debounce {
			m.logger.Debug("hotkey debounced", "hotkey", hk.original)
			continue
		}
		hk.lastFire = now
		m.logger.Info("hotkey triggered", "hotkey", hk.original)
		out = append(out, hk.callback)
	}
	return out
}

// completes reports whether trigger is part of hk and every part is held.
func (m *Manager) completes(hk *registeredHotkey, trigger string) bool {
	involved := false
	for _, part := range hk.parts {
		if !m.currentState[part] {
			return false
		}
		if part == trigger || sideless[trigger] == part {
			involved = true
		}
	}
	return involved
}
