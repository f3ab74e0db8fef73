package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"keyloop/internal/controller"
	"keyloop/internal/keys"
	"keyloop/internal/macro"
	"keyloop/internal/player"
	"keyloop/internal/storage"
	"keyloop/internal/window"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // The macro failed or could not be recorded
	ExitCommandError = 2 // Bad arguments, unknown macro, unreadable config
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// usageError classifies errors caused by user input.
func usageError(message string, err error) *ExitError {
	code := ExitFailure
	switch {
	case errors.Is(err, storage.ErrNotFound),
		errors.Is(err, storage.ErrExists),
		errors.Is(err, storage.ErrBuiltIn),
		errors.Is(err, storage.ErrReadOnly),
		errors.Is(err, keys.ErrUnknownKey),
		errors.Is(err, window.ErrNotFound),
		errors.Is(err, controller.ErrAlreadyRunning),
		macro.IsMalformed(err):
		code = ExitCommandError
	}
	return WrapExitError(code, message, err)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// progressPrinter writes each progress message on its own line.
type progressPrinter struct {
	mu sync.Mutex
	w  io.Writer
}

func (p *progressPrinter) OnProgress(pr player.Progress) {
	if pr.Message == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, pr.Message)
}

// observerList is a player.Observer whose members can be added after the
// controller holding it is built.
type observerList struct {
	mu   sync.RWMutex
	list player.Observers
}

func (o *observerList) Add(obs player.Observer) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.list = append(o.list, obs)
}

func (o *observerList) OnProgress(p player.Progress) {
	o.mu.RLock()
	list := o.list
	o.mu.RUnlock()
	list.OnProgress(p)
}
