package input

import (
	"fmt"
	"log/slog"
	"time"

	"keyloop/internal/cancel"
	"keyloop/internal/keys"
	"keyloop/internal/window"
)

// Defaults for injected key timing.
const (
	DefaultTap    = 100 * time.Millisecond
	DefaultPoll   = 10 * time.Millisecond
	DefaultSettle = 100 * time.Millisecond
)

// keyDevice emits raw key edges.
type keyDevice interface {
	keyDown(k keys.Key) error
	keyUp(k keys.Key) error
	Close() error
}

// InjectorOptions configures key timing.
type InjectorOptions struct {
	// Tap is how long a key is held for a plain press.
	Tap time.Duration
	// Poll bounds how long a hold can run past cancellation.
	Poll time.Duration
	// Settle is the pause after each release.
	Settle time.Duration
	Logger *slog.Logger
}

func (o *InjectorOptions) setDefaults() {
	if o.Tap <= 0 {
		o.Tap = DefaultTap
	}
	if o.Poll <= 0 {
		o.Poll = DefaultPoll
	}
	if o.Settle < 0 {
		o.Settle = 0
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Injector presses keys in a target window.
type Injector struct {
	dev   keyDevice
	opts  InjectorOptions
	focus func(window.Handle) error
}

// NewInjector opens the platform key device.
func NewInjector(opts InjectorOptions) (*Injector, error) {
	dev, err := openKeyDevice()
	if err != nil {
		return nil, fmt.Errorf("open key device: %w", err)
	}
	return newInjector(dev, opts), nil
}

func newInjector(dev keyDevice, opts InjectorOptions) *Injector {
	opts.setDefaults()
	return &Injector{dev: dev, opts: opts, focus: window.Focus}
}

// Press focuses h, presses key, holds it for hold (or the tap duration when
// hold is zero) and releases it. The key is always released, even when sig is
// cancelled mid-hold; the settle pause is skipped in that case.
func (i *Injector) Press(h window.Handle, key string, hold time.Duration, sig cancel.Signal) error {
	k, err := keys.Lookup(key)
	if err != nil {
		return err
	}
	if sig == nil {
		sig = cancel.Never
	}

	if err := i.focus(h); err != nil {
		i.opts.Logger.Debug("focus target window failed", "handle", h, "err", err)
	}

	if err := i.dev.keyDown(k); err != nil {
		return fmt.Errorf("key down %s: %w", k.Name, err)
	}
	if hold <= 0 {
		hold = i.opts.Tap
	}
	cancel.Sleep(sig, hold, i.opts.Poll)

	if err := i.dev.keyUp(k); err != nil {
		return fmt.Errorf("key up %s: %w", k.Name, err)
	}
	if i.opts.Settle > 0 && !sig.Cancelled() {
		cancel.Sleep(sig, i.opts.Settle, i.opts.Poll)
	}
	return nil
}

// Close releases the key device.
func (i *Injector) Close() error {
	return i.dev.Close()
}
