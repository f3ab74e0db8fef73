package player

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"keyloop/internal/macro"
)

// Event classifies a progress report.
type Event string

const (
	EventLoopStart Event = "loop_start"
	EventPress     Event = "press"
	EventRelease   Event = "release"
	EventWait      Event = "wait"
	EventComplete  Event = "complete"
	EventError     Event = "error"
	EventDone      Event = "done"
)

// Progress is one report from a running macro. Step and Total are set for
// per-action events; Iterations is zero for unbounded loops.
type Progress struct {
	Event      Event
	Macro      string
	Step       int
	Total      int
	Iteration  int
	Iterations int
	Key        string
	Duration   time.Duration
	Message    string
	Err        error
}

// Observer receives progress reports on the playback goroutine.
type Observer interface {
	OnProgress(Progress)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Progress)

func (f ObserverFunc) OnProgress(p Progress) { f(p) }

// Observers fans reports out to several observers in order.
type Observers []Observer

func (obs Observers) OnProgress(p Progress) {
	for _, o := range obs {
		if o != nil {
			o.OnProgress(p)
		}
	}
}

type nopObserver struct{}

func (nopObserver) OnProgress(Progress) {}

func stepMessage(p Progress, text string) string {
	return fmt.Sprintf("[Step %d/%d] %s", p.Step, p.Total, text)
}

func loopMessage(iteration, iterations int) string {
	if iterations > 0 {
		return fmt.Sprintf("Starting macro (loop %d/%d)", iteration, iterations)
	}
	return fmt.Sprintf("Starting macro (loop %d)", iteration)
}

func completeMessage(m macro.Macro) string {
	if m.BuiltIn {
		return m.Name + " completed!"
	}
	return "Recorded macro completed!"
}

// displayKey renders key names the way they appear in progress messages.
func displayKey(key string) string {
	return strings.ToUpper(key)
}

// formatSeconds prints whole seconds with one decimal ("120.0") and keeps
// the precision of fractional ones ("0.25").
func formatSeconds(s float64) string {
	if s == float64(int64(s)) {
		return strconv.FormatFloat(s, 'f', 1, 64)
	}
	return strconv.FormatFloat(s, 'f', -1, 64)
}
