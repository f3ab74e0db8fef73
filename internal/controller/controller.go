// Package controller runs at most one macro at a time on a worker goroutine
// and coordinates start, stop and completion with the rest of the app.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"keyloop/internal/cancel"
	"keyloop/internal/macro"
	"keyloop/internal/player"
	"keyloop/internal/window"
)

// DefaultStopTimeout bounds how long Stop waits for the worker.
const DefaultStopTimeout = 2 * time.Second

// ErrAlreadyRunning is returned by Start while a run is active.
var ErrAlreadyRunning = errors.New("a macro is already running")

// Runner plays one macro to completion, failure or cancellation.
type Runner interface {
	Play(m macro.Macro, h window.Handle, sig cancel.Signal) (player.Outcome, error)
}

// Run summarizes a finished run.
type Run struct {
	ID       string
	Macro    string
	Started  time.Time
	Finished time.Time
	Outcome  player.Outcome
	Err      error
}

// Options configures a Controller.
type Options struct {
	StopTimeout time.Duration
	// Observer receives the error and done reports for each run.
	Observer player.Observer
	// OnRun is called once per run after it finishes.
	OnRun  func(Run)
	Logger *slog.Logger
	Now    func() time.Time
}

type runState struct {
	id      string
	macro   macro.Macro
	flag    *cancel.Flag
	done    chan struct{}
	started time.Time
	// ended is set under Controller.mu once playback returns, before the
	// worker reports and exits.
	ended bool
}

// Controller owns the single playback worker.
type Controller struct {
	runner Runner
	opts   Options

	mu      sync.Mutex
	current *runState
	lastErr error
}

// New creates a controller around runner.
func New(runner Runner, opts Options) *Controller {
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = DefaultStopTimeout
	}
	if opts.Observer == nil {
		opts.Observer = player.ObserverFunc(func(player.Progress) {})
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Controller{runner: runner, opts: opts}
}

// Start launches m against h and returns immediately.
func (c *Controller) Start(m macro.Macro, h window.Handle) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil && !closed(c.current.done) {
		return ErrAlreadyRunning
	}

	rs := &runState{
		id:      uuid.Must(uuid.NewV7()).String(),
		macro:   m.Clone(),
		flag:    cancel.New(),
		done:    make(chan struct{}),
		started: c.opts.Now(),
	}
	c.current = rs
	c.lastErr = nil
	c.opts.Logger.Info("macro started", "macro", m.Name, "run", rs.id, "loop", m.Loop.String())

	go c.work(rs, h)
	return nil
}

// Stop cancels the active run and waits up to the stop timeout for it to
// exit. A worker that does not exit in time is detached; it stops at its next
// cancellation check. Stop is a no-op when nothing is running.
func (c *Controller) Stop() {
	c.mu.Lock()
	rs := c.current
	c.mu.Unlock()
	if rs == nil {
		return
	}

	rs.flag.Cancel()
	select {
	case <-rs.done:
	case <-time.After(c.opts.StopTimeout):
		c.opts.Logger.Warn("macro did not stop in time, detaching", "macro", rs.macro.Name, "run", rs.id)
	}

	c.mu.Lock()
	if c.current == rs {
		c.current = nil
	}
	c.mu.Unlock()
}

// IsRunning reports whether a worker exists and has not finished. It stays
// true until the done report and OnRun have returned.
func (c *Controller) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil && !closed(c.current.done)
}

// Status is a point-in-time view of the controller.
type Status struct {
	Running   bool
	Macro     string
	RunID     string
	Started   time.Time
	LastError error
}

// Status reports the active run and the last error. A run counts as running
// until its playback returns, so the done report already sees it idle.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Status{LastError: c.lastErr}
	if c.playing() {
		st.Running = true
		st.Macro = c.current.macro.Name
		st.RunID = c.current.id
		st.Started = c.current.started
	}
	return st
}

// Current returns the running macro, if any.
func (c *Controller) Current() (macro.Macro, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.playing() {
		return macro.Macro{}, false
	}
	return c.current.macro, true
}

func (c *Controller) playing() bool {
	return c.current != nil && !c.current.ended && !closed(c.current.done)
}

// LastError returns the error of the most recent run that failed, or nil.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Wait blocks until the current worker has reported and exited, or ctx is done.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	rs := c.current
	c.mu.Unlock()
	if rs == nil {
		return nil
	}
	select {
	case <-rs.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) work(rs *runState, h window.Handle) {
	defer func() {
		c.mu.Lock()
		if c.current == rs {
			c.current = nil
		}
		c.mu.Unlock()
		close(rs.done)
	}()

	outcome, err := c.play(rs, h)
	finished := c.opts.Now()

	c.mu.Lock()
	rs.ended = true
	if c.current == rs {
		c.lastErr = err
	}
	c.mu.Unlock()

	if err != nil {
		c.opts.Logger.Error("macro failed", "macro", rs.macro.Name, "run", rs.id, "err", err)
		c.opts.Observer.OnProgress(player.Progress{
			Event:   player.EventError,
			Macro:   rs.macro.Name,
			Message: "Error: " + err.Error(),
			Err:     err,
		})
	} else {
		c.opts.Logger.Info("macro finished", "macro", rs.macro.Name, "run", rs.id, "outcome", outcome.String())
	}
	c.opts.Observer.OnProgress(player.Progress{Event: player.EventDone, Macro: rs.macro.Name, Message: doneMessage(outcome)})

	if c.opts.OnRun != nil {
		c.opts.OnRun(Run{
			ID:       rs.id,
			Macro:    rs.macro.Name,
			Started:  rs.started,
			Finished: finished,
			Outcome:  outcome,
			Err:      err,
		})
	}
}

func (c *Controller) play(rs *runState, h window.Handle) (outcome player.Outcome, err error) {
	defer func() {
		if p := recover(); p != nil {
			outcome = player.Failed
			err = &player.ExecutionError{Err: fmt.Errorf("panic: %v", p)}
		}
	}()
	return c.runner.Play(rs.macro, h, rs.flag)
}

func doneMessage(o player.Outcome) string {
	switch o {
	case player.Cancelled:
		return "Macro stopped"
	case player.Failed:
		return "Macro aborted"
	default:
		return "Macro finished"
	}
}

func closed(ch chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
