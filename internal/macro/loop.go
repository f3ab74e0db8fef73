package macro

import (
	"fmt"
	"strconv"
	"strings"
)

// LoopMode selects how many times a macro's action list runs.
type LoopMode int

const (
	LoopOnce LoopMode = iota
	LoopInfinite
	LoopCount
)

// LoopPolicy is a LoopMode plus the iteration count for LoopCount.
type LoopPolicy struct {
	Mode  LoopMode
	Count int
}

// Once runs the actions exactly one time.
func Once() LoopPolicy { return LoopPolicy{Mode: LoopOnce} }

// Infinite repeats until cancelled.
func Infinite() LoopPolicy { return LoopPolicy{Mode: LoopInfinite} }

// Times repeats n times. n < 1 is clamped to 1.
func Times(n int) LoopPolicy {
	if n < 1 {
		n = 1
	}
	return LoopPolicy{Mode: LoopCount, Count: n}
}

// MaxIterations returns the iteration bound and whether there is one.
// A stored count is ignored for LoopOnce.
func (p LoopPolicy) MaxIterations() (int, bool) {
	switch p.Mode {
	case LoopInfinite:
		return 0, false
	case LoopCount:
		return max(p.Count, 1), true
	default:
		return 1, true
	}
}

func (p LoopPolicy) String() string {
	switch p.Mode {
	case LoopInfinite:
		return "infinite"
	case LoopCount:
		return strconv.Itoa(max(p.Count, 1))
	default:
		return "once"
	}
}

// ParseLoop parses "once", "infinite" (or "forever") and positive integers.
func ParseLoop(s string) (LoopPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "once", "1":
		return Once(), nil
	case "infinite", "forever", "loop":
		return Infinite(), nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return LoopPolicy{}, fmt.Errorf("invalid loop policy %q: want once, infinite or a positive count", s)
	}
	return Times(n), nil
}
