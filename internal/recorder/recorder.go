// Package recorder turns live key-down/key-up events into a macro action list.
//
// A Recorder moves Idle -> Waiting -> Recording -> Idle. While recording,
// a release becomes a KeyPress or a KeyHold depending on how long the key was
// down, and idle time between keys longer than the gap threshold becomes a
// Sleep. Function keys are never recorded; they are reserved for hotkeys.
package recorder

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"keyloop/internal/input"
	"keyloop/internal/keys"
	"keyloop/internal/macro"
)

// State is the recorder's lifecycle stage.
type State int

const (
	Idle State = iota
	Waiting
	Recording
)

func (s State) String() string {
	switch s {
	case Waiting:
		return "waiting"
	case Recording:
		return "recording"
	default:
		return "idle"
	}
}

// ErrBusy is returned when a recording is requested while one is active.
var ErrBusy = errors.New("recorder is busy")

// Source delivers global key events.
type Source interface {
	Subscribe(fn func(input.KeyEvent)) (unsubscribe func(), err error)
}

// Config controls key bindings and timing thresholds.
type Config struct {
	StartKey      string
	StopKey       string
	GapThreshold  time.Duration
	HoldThreshold time.Duration
	// Now is used for events without a timestamp and for Stop.
	Now    func() time.Time
	Logger *slog.Logger
}

// DefaultConfig returns F9 to start, Esc to stop, a 100ms gap and a 200ms hold threshold.
func DefaultConfig() Config {
	return Config{
		StartKey:      "f9",
		StopKey:       "esc",
		GapThreshold:  100 * time.Millisecond,
		HoldThreshold: 200 * time.Millisecond,
	}
}

// Validate checks the key bindings and thresholds.
func (c Config) Validate() error {
	if !keys.Valid(c.StartKey) {
		return fmt.Errorf("start key: %w: %q", keys.ErrUnknownKey, c.StartKey)
	}
	if !keys.Valid(c.StopKey) {
		return fmt.Errorf("stop key: %w: %q", keys.ErrUnknownKey, c.StopKey)
	}
	if keys.IsFunctionKey(c.StopKey) {
		return fmt.Errorf("stop key %q must not be a function key", c.StopKey)
	}
	if keys.Normalize(c.StartKey) == keys.Normalize(c.StopKey) {
		return fmt.Errorf("start and stop key are both %q", c.StopKey)
	}
	if c.GapThreshold <= 0 || c.HoldThreshold <= 0 {
		return fmt.Errorf("thresholds must be positive")
	}
	return nil
}

// CallbackError wraps a panic raised while handling a key event.
type CallbackError struct {
	Key   string
	Value any
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("key event handler panicked on %q: %v", e.Key, e.Value)
}

// Recorder captures one macro at a time from a Source.
type Recorder struct {
	cfg Config
	src Source

	mu            sync.Mutex
	state         State
	actions       []macro.Action
	pressed       map[string]time.Time
	lastAction    time.Time
	ignoreStartUp bool
	onStart       func()
	unsubscribe   func()
	done          chan struct{}
}

// New creates a recorder reading from src.
func New(src Source, cfg Config) (*Recorder, error) {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	cfg.StartKey = keys.Normalize(cfg.StartKey)
	cfg.StopKey = keys.Normalize(cfg.StopKey)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	done := make(chan struct{})
	close(done)
	return &Recorder{cfg: cfg, src: src, done: done}, nil
}

// WaitForStartKey arms the recorder. The first press of the start key begins
// recording and calls onStart synchronously on the event goroutine.
func (r *Recorder) WaitForStartKey(onStart func()) error {
	return r.begin(Waiting, onStart)
}

// Start begins recording immediately.
func (r *Recorder) Start() error {
	return r.begin(Recording, nil)
}

func (r *Recorder) begin(to State, onStart func()) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Idle {
		return ErrBusy
	}

	unsubscribe, err := r.src.Subscribe(r.handle)
	if err != nil {
		return fmt.Errorf("subscribe to key events: %w", err)
	}
	r.unsubscribe = unsubscribe
	r.onStart = onStart
	r.done = make(chan struct{})
	r.state = to
	if to == Recording {
		r.resetLocked(r.cfg.Now(), false)
		r.cfg.Logger.Info("recording started", "stop_key", r.cfg.StopKey)
	} else {
		r.cfg.Logger.Info("waiting for start key", "start_key", r.cfg.StartKey)
	}
	return nil
}

func (r *Recorder) resetLocked(now time.Time, ignoreStartUp bool) {
	r.actions = nil
	r.pressed = make(map[string]time.Time)
	r.lastAction = now
	r.ignoreStartUp = ignoreStartUp
}

// Stop ends recording or waiting and returns the recorded actions.
func (r *Recorder) Stop() []macro.Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.state {
	case Recording:
		r.finishLocked(r.cfg.Now())
	case Waiting:
		r.detachLocked()
	}
	return r.copyActionsLocked()
}

// State returns the current lifecycle stage.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Actions returns a copy of the actions recorded so far.
func (r *Recorder) Actions() []macro.Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.copyActionsLocked()
}

// Done is closed when the current recording (or wait) ends.
func (r *Recorder) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

func (r *Recorder) copyActionsLocked() []macro.Action {
	return append([]macro.Action(nil), r.actions...)
}

func (r *Recorder) handle(ev input.KeyEvent) {
	if onStart := r.dispatch(ev); onStart != nil {
		r.safeCall(ev, onStart)
	}
}

func (r *Recorder) safeCall(ev input.KeyEvent, fn func()) {
	defer r.recoverEvent(ev)
	fn()
}

func (r *Recorder) recoverEvent(ev input.KeyEvent) {
	if p := recover(); p != nil {
		r.cfg.Logger.Error("key event dropped", "err", &CallbackError{Key: ev.Key, Value: p})
	}
}

func (r *Recorder) dispatch(ev input.KeyEvent) (onStart func()) {
	defer r.recoverEvent(ev)
	r.mu.Lock()
	defer r.mu.Unlock()

	key := keys.Normalize(ev.Key)
	now := ev.Time
	if now.IsZero() {
		now = r.cfg.Now()
	}

	switch r.state {
	case Waiting:
		if ev.Down && key == r.cfg.StartKey {
			r.state = Recording
			r.resetLocked(now, true)
			r.cfg.Logger.Info("recording started", "stop_key", r.cfg.StopKey)
			return r.onStart
		}
	case Recording:
		r.recordLocked(key, ev.Down, now)
	}
	return nil
}

func (r *Recorder) recordLocked(key string, down bool, now time.Time) {
	if keys.IsFunctionKey(key) {
		delete(r.pressed, key)
		return
	}

	if down {
		if key == r.cfg.StopKey {
			r.finishLocked(now)
			return
		}
		if _, held := r.pressed[key]; !held {
			r.pressed[key] = now
		}
		return
	}

	if key == r.cfg.StopKey {
		return
	}
	if r.ignoreStartUp && key == r.cfg.StartKey {
		r.ignoreStartUp = false
		delete(r.pressed, key)
		return
	}

	pressedAt, tracked := r.pressed[key]
	ref := now
	if tracked {
		ref = pressedAt
	}
	if len(r.actions) > 0 {
		if gap := ref.Sub(r.lastAction); gap > r.cfg.GapThreshold {
			r.actions = append(r.actions, macro.Sleep{Seconds: macro.Round(gap.Seconds())})
		}
	}

	var a macro.Action = macro.KeyPress{Key: key}
	if tracked {
		if held := now.Sub(pressedAt); held > r.cfg.HoldThreshold {
			a = macro.KeyHold{Key: key, Seconds: macro.Round(held.Seconds())}
		}
	}
	r.actions = append(r.actions, a)
	r.lastAction = now
	delete(r.pressed, key)
	r.cfg.Logger.Debug("recorded action", "kind", a.Kind(), "key", key)
}

func (r *Recorder) finishLocked(now time.Time) {
	if len(r.actions) > 0 {
		if gap := now.Sub(r.lastAction); gap > r.cfg.GapThreshold {
			r.actions = append(r.actions, macro.Sleep{Seconds: macro.Round(gap.Seconds())})
		}
	}
	r.detachLocked()
	r.cfg.Logger.Info("recording stopped", "actions", len(r.actions))
}

func (r *Recorder) detachLocked() {
	if r.unsubscribe != nil {
		r.unsubscribe()
		r.unsubscribe = nil
	}
	r.state = Idle
	r.onStart = nil
	r.pressed = nil
	close(r.done)
}
