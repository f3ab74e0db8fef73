package controller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keyloop/internal/cancel"
	"keyloop/internal/macro"
	"keyloop/internal/player"
	"keyloop/internal/window"
)

// funcRunner adapts a function to Runner.
type funcRunner func(m macro.Macro, h window.Handle, sig cancel.Signal) (player.Outcome, error)

func (f funcRunner) Play(m macro.Macro, h window.Handle, sig cancel.Signal) (player.Outcome, error) {
	return f(m, h, sig)
}

// untilCancelled blocks until sig is set.
func untilCancelled(_ macro.Macro, _ window.Handle, sig cancel.Signal) (player.Outcome, error) {
	for !sig.Cancelled() {
		time.Sleep(time.Millisecond)
	}
	return player.Cancelled, nil
}

type events struct {
	mu  sync.Mutex
	got []player.Progress
}

func (e *events) OnProgress(p player.Progress) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.got = append(e.got, p)
}

func (e *events) count(ev player.Event) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, p := range e.got {
		if p.Event == ev {
			n++
		}
	}
	return n
}

func demo() macro.Macro {
	return macro.Macro{Name: "demo", Actions: []macro.Action{macro.KeyPress{Key: "a"}}, Loop: macro.Infinite()}
}

func TestStartIsSingleFlight(t *testing.T) {
	c := New(funcRunner(untilCancelled), Options{})

	require.NoError(t, c.Start(demo(), window.Focused))
	assert.True(t, c.IsRunning())
	assert.ErrorIs(t, c.Start(demo(), window.Focused), ErrAlreadyRunning)

	cur, ok := c.Current()
	require.True(t, ok)
	assert.Equal(t, "demo", cur.Name)

	c.Stop()
	assert.False(t, c.IsRunning())
	_, ok = c.Current()
	assert.False(t, ok)

	require.NoError(t, c.Start(demo(), window.Focused))
	c.Stop()
}

func TestStopWhenIdleIsNoop(t *testing.T) {
	c := New(funcRunner(untilCancelled), Options{})
	c.Stop()
	c.Stop()
	assert.False(t, c.IsRunning())
	assert.NoError(t, c.Wait(context.Background()))
}

func TestEachRunGetsFreshFlag(t *testing.T) {
	var mu sync.Mutex
	var sigs []cancel.Signal
	c := New(funcRunner(func(m macro.Macro, h window.Handle, sig cancel.Signal) (player.Outcome, error) {
		mu.Lock()
		sigs = append(sigs, sig)
		mu.Unlock()
		return untilCancelled(m, h, sig)
	}), Options{})

	require.NoError(t, c.Start(demo(), window.Focused))
	c.Stop()
	require.NoError(t, c.Start(demo(), window.Focused))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(sigs) == 2
	}, time.Second, time.Millisecond)

	mu.Lock()
	assert.True(t, sigs[0].Cancelled())
	assert.False(t, sigs[1].Cancelled())
	mu.Unlock()
	c.Stop()
}

func TestStopDetachesStuckWorker(t *testing.T) {
	release := make(chan struct{})
	var calls int
	var mu sync.Mutex
	c := New(funcRunner(func(m macro.Macro, h window.Handle, sig cancel.Signal) (player.Outcome, error) {
		mu.Lock()
		calls++
		first := calls == 1
		mu.Unlock()
		if first {
			<-release
			return player.Cancelled, nil
		}
		return untilCancelled(m, h, sig)
	}), Options{StopTimeout: 30 * time.Millisecond})

	require.NoError(t, c.Start(demo(), window.Focused))
	start := time.Now()
	c.Stop()
	assert.Less(t, time.Since(start), time.Second)
	assert.False(t, c.IsRunning())

	require.NoError(t, c.Start(demo(), window.Focused))
	close(release)
	time.Sleep(20 * time.Millisecond)
	assert.True(t, c.IsRunning(), "a detached worker must not clear the next run")
	c.Stop()
}

func TestFailureIsReportedOnce(t *testing.T) {
	obs := &events{}
	runs := make(chan Run, 1)
	failure := &player.ExecutionError{Key: "a", Step: 1, Err: errors.New("denied")}
	c := New(funcRunner(func(macro.Macro, window.Handle, cancel.Signal) (player.Outcome, error) {
		return player.Failed, failure
	}), Options{Observer: obs, OnRun: func(r Run) { runs <- r }})

	require.NoError(t, c.Start(demo(), window.Focused))
	require.NoError(t, c.Wait(context.Background()))
	r := <-runs

	assert.False(t, c.IsRunning())
	assert.ErrorIs(t, c.LastError(), failure)
	assert.Equal(t, 1, obs.count(player.EventError))
	assert.Equal(t, 1, obs.count(player.EventDone))

	assert.Equal(t, player.Failed, r.Outcome)
	assert.Equal(t, "demo", r.Macro)
	id, err := uuid.Parse(r.ID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
	assert.False(t, r.Finished.Before(r.Started))
}

func TestPanicBecomesExecutionError(t *testing.T) {
	obs := &events{}
	c := New(funcRunner(func(macro.Macro, window.Handle, cancel.Signal) (player.Outcome, error) {
		panic("injector exploded")
	}), Options{Observer: obs})

	require.NoError(t, c.Start(demo(), window.Focused))
	require.Eventually(t, func() bool { return obs.count(player.EventDone) == 1 }, time.Second, time.Millisecond)

	assert.True(t, player.IsExecutionError(c.LastError()))
	assert.ErrorContains(t, c.LastError(), "injector exploded")
	assert.Equal(t, 1, obs.count(player.EventError))
}

func TestSuccessClearsLastError(t *testing.T) {
	fail := true
	var mu sync.Mutex
	c := New(funcRunner(func(macro.Macro, window.Handle, cancel.Signal) (player.Outcome, error) {
		mu.Lock()
		defer mu.Unlock()
		if fail {
			return player.Failed, &player.ExecutionError{Err: errors.New("x")}
		}
		return player.Completed, nil
	}), Options{})

	require.NoError(t, c.Start(demo(), window.Focused))
	require.NoError(t, c.Wait(context.Background()))
	require.Eventually(t, func() bool { return !c.IsRunning() }, time.Second, time.Millisecond)
	assert.Error(t, c.LastError())

	mu.Lock()
	fail = false
	mu.Unlock()
	require.NoError(t, c.Start(demo(), window.Focused))
	require.Eventually(t, func() bool { return !c.IsRunning() }, time.Second, time.Millisecond)
	assert.NoError(t, c.LastError())
}

type instantInjector struct{}

func (instantInjector) Press(window.Handle, string, time.Duration, cancel.Signal) error { return nil }

func TestStopInterruptsLongSleep(t *testing.T) {
	m := macro.Macro{
		Name:    "afk",
		Actions: []macro.Action{macro.KeyPress{Key: "space"}, macro.Sleep{Seconds: 120}},
		Loop:    macro.Infinite(),
	}
	c := New(player.New(instantInjector{}), Options{})
	require.NoError(t, c.Start(m, window.Focused))
	time.Sleep(30 * time.Millisecond)

	start := time.Now()
	c.Stop()
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.False(t, c.IsRunning())
	assert.NoError(t, c.LastError())
}

func TestWaitHonoursContext(t *testing.T) {
	c := New(funcRunner(untilCancelled), Options{})
	require.NoError(t, c.Start(demo(), window.Focused))
	defer c.Stop()

	ctx, cancelCtx := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancelCtx()
	assert.ErrorIs(t, c.Wait(ctx), context.DeadlineExceeded)
}

func TestStatusSnapshot(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := New(funcRunner(untilCancelled), Options{Now: func() time.Time { return start }})
	assert.False(t, c.Status().Running)

	require.NoError(t, c.Start(demo(), window.Focused))
	st := c.Status()
	assert.True(t, st.Running)
	assert.Equal(t, "demo", st.Macro)
	assert.Equal(t, start, st.Started)
	assert.NotEmpty(t, st.RunID)

	c.Stop()
	assert.False(t, c.Status().Running)
	assert.Empty(t, c.Status().RunID)
}

func TestWaitReturnsAfterReportsAndOnRun(t *testing.T) {
	var mu sync.Mutex
	var doneReported, onRunCalled, runningDuringDone, statusDuringDone bool

	c := New(funcRunner(func(macro.Macro, window.Handle, cancel.Signal) (player.Outcome, error) {
		return player.Completed, nil
	}), Options{})
	c.opts.Observer = player.ObserverFunc(func(p player.Progress) {
		if p.Event != player.EventDone {
			return
		}
		running, st := c.IsRunning(), c.Status()
		time.Sleep(50 * time.Millisecond)
		mu.Lock()
		doneReported = true
		runningDuringDone = running
		statusDuringDone = st.Running
		mu.Unlock()
	})
	c.opts.OnRun = func(Run) {
		mu.Lock()
		onRunCalled = true
		mu.Unlock()
	}

	require.NoError(t, c.Start(demo(), window.Focused))
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, c.Wait(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, doneReported)
	assert.True(t, onRunCalled)
	assert.True(t, runningDuringDone, "the worker is alive while it reports")
	assert.False(t, statusDuringDone, "status already shows the finished run as idle")
	assert.False(t, c.IsRunning())
}

func TestStartWaitsForPreviousDoneReport(t *testing.T) {
	release := make(chan struct{})
	obs := &events{}
	c := New(funcRunner(func(macro.Macro, window.Handle, cancel.Signal) (player.Outcome, error) {
		return player.Completed, nil
	}), Options{})
	c.opts.Observer = player.ObserverFunc(func(p player.Progress) {
		if p.Event == player.EventDone {
			<-release
		}
		obs.OnProgress(p)
	})

	require.NoError(t, c.Start(demo(), window.Focused))
	require.Eventually(t, func() bool { return !c.Status().Running }, time.Second, time.Millisecond)
	assert.ErrorIs(t, c.Start(demo(), window.Focused), ErrAlreadyRunning)

	close(release)
	require.NoError(t, c.Wait(context.Background()))
	assert.Equal(t, 1, obs.count(player.EventDone))
	require.NoError(t, c.Start(demo(), window.Focused))
	require.NoError(t, c.Wait(context.Background()))
	assert.Equal(t, 2, obs.count(player.EventDone))
}
