// Package player replays a macro's actions through a key injector, honouring
// the loop policy and a cancellation signal.
package player

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"keyloop/internal/cancel"
	"keyloop/internal/macro"
	"keyloop/internal/window"
)

// DefaultSleepPoll is how often a Sleep action checks for cancellation.
const DefaultSleepPoll = 100 * time.Millisecond

// Injector presses a key in a window. A zero hold means a tap. While holding,
// the injector polls sig and releases early once it is set.
type Injector interface {
	Press(h window.Handle, key string, hold time.Duration, sig cancel.Signal) error
}

// Outcome is how a playback ended.
type Outcome int

const (
	Completed Outcome = iota
	Cancelled
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Cancelled:
		return "cancelled"
	case Failed:
		return "failed"
	default:
		return "completed"
	}
}

// ExecutionError is an injector failure (or a panic) during playback.
type ExecutionError struct {
	Key  string
	Step int
	Err  error
}

func (e *ExecutionError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("playback failed at step %d: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("playback failed at step %d (%s): %v", e.Step, e.Key, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// IsExecutionError reports whether err wraps an *ExecutionError.
func IsExecutionError(err error) bool {
	var ee *ExecutionError
	return errors.As(err, &ee)
}

// Player runs macros.
type Player struct {
	injector  Injector
	observer  Observer
	sleepPoll time.Duration
	logger    *slog.Logger
}

// Option configures a Player.
type Option func(*Player)

// WithObserver sets the progress observer.
func WithObserver(o Observer) Option {
	return func(p *Player) { p.observer = o }
}

// WithSleepPoll sets the cancellation poll interval used during Sleep actions.
func WithSleepPoll(d time.Duration) Option {
	return func(p *Player) {
		if d > 0 {
			p.sleepPoll = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Player) { p.logger = l }
}

// New creates a player around inj.
func New(inj Injector, opts ...Option) *Player {
	p := &Player{
		injector:  inj,
		observer:  nopObserver{},
		sleepPoll: DefaultSleepPoll,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.observer == nil {
		p.observer = nopObserver{}
	}
	return p
}

// Play runs m against h until it completes, fails, or sig is set.
// The signal is checked before and after every action. The returned error is
// non-nil only for Failed.
func (p *Player) Play(m macro.Macro, h window.Handle, sig cancel.Signal) (Outcome, error) {
	if sig == nil {
		sig = cancel.Never
	}
	if len(m.Actions) == 0 {
		p.report(Progress{Event: EventComplete, Macro: m.Name, Message: completeMessage(m)})
		return Completed, nil
	}

	limit, bounded := m.Loop.MaxIterations()
	total := len(m.Actions)
	for iteration := 1; !bounded || iteration <= limit; iteration++ {
		if sig.Cancelled() {
			return Cancelled, nil
		}
		pr := Progress{Event: EventLoopStart, Macro: m.Name, Iteration: iteration}
		if bounded {
			pr.Iterations = limit
		}
		pr.Message = loopMessage(iteration, pr.Iterations)
		p.report(pr)

		for i, a := range m.Actions {
			if sig.Cancelled() {
				return Cancelled, nil
			}
			step := Progress{Macro: m.Name, Step: i + 1, Total: total, Iteration: iteration}
			if err := p.run(a, step, h, sig); err != nil {
				p.logger.Error("playback failed", "macro", m.Name, "step", i+1, "err", err)
				return Failed, err
			}
			if sig.Cancelled() {
				return Cancelled, nil
			}
		}
	}

	p.report(Progress{Event: EventComplete, Macro: m.Name, Message: completeMessage(m)})
	return Completed, nil
}

func (p *Player) run(a macro.Action, step Progress, h window.Handle, sig cancel.Signal) error {
	switch v := a.(type) {
	case macro.KeyPress:
		return p.press(step, h, v.Key, 0, sig)
	case macro.KeyHold:
		return p.press(step, h, v.Key, v.Duration(), sig)
	case macro.Sleep:
		step.Event = EventWait
		step.Duration = v.Duration()
		step.Message = stepMessage(step, fmt.Sprintf("Waiting for %s seconds...", formatSeconds(v.Seconds)))
		p.report(step)
		cancel.Sleep(sig, v.Duration(), p.sleepPoll)
		return nil
	default:
		return &ExecutionError{Step: step.Step, Err: fmt.Errorf("unsupported action %T", a)}
	}
}

func (p *Player) press(step Progress, h window.Handle, key string, hold time.Duration, sig cancel.Signal) error {
	display := displayKey(key)
	step.Key = key
	step.Duration = hold
	step.Event = EventPress
	if hold > 0 {
		step.Message = stepMessage(step, fmt.Sprintf("Pressing %s for %.2f seconds", display, hold.Seconds()))
	} else {
		step.Message = stepMessage(step, "Pressing "+display)
	}
	p.report(step)

	if err := p.injector.Press(h, key, hold, sig); err != nil {
		return &ExecutionError{Key: key, Step: step.Step, Err: err}
	}

	step.Event = EventRelease
	step.Message = stepMessage(step, "Released "+display)
	p.report(step)
	return nil
}

func (p *Player) report(pr Progress) {
	p.observer.OnProgress(pr)
}
