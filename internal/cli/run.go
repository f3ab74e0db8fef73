package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"keyloop/internal/input"
	"keyloop/internal/macro"
	"keyloop/internal/window"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	Loop    string
	Windows []string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run <name>",
		Short: "Play a macro into the target window",
		Long: `Play a macro into the first window whose title matches the configured
filters (or --window). Runs until the macro completes or Ctrl+C is pressed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMacro(cmd, rootOpts, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Loop, "loop", "", "override the loop policy: once, infinite or a count")
	cmd.Flags().StringSliceVar(&opts.Windows, "window", nil, "window title filter (repeatable; default from config)")

	return cmd
}

func runMacro(cmd *cobra.Command, rootOpts *RootOptions, opts *RunOptions, name string) error {
	a, err := loadApp(rootOpts)
	if err != nil {
		return err
	}

	m, err := a.lib.Get(name)
	if err != nil {
		return usageError("cannot run macro", err)
	}
	if opts.Loop != "" {
		p, err := macro.ParseLoop(opts.Loop)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --loop", err)
		}
		m = m.WithLoop(p)
	}

	titles := a.cfg.Window.Titles
	if len(opts.Windows) > 0 {
		titles = opts.Windows
	}
	h, err := window.Resolve(window.NewSystem(), titles)
	if err != nil {
		return usageError("cannot run macro", err)
	}

	inj, err := input.NewInjector(a.injectorOptions())
	if err != nil {
		return WrapExitError(ExitFailure, "failed to open key injector", err)
	}
	defer inj.Close()

	hist := a.openHistory()
	if hist != nil {
		defer hist.Close()
	}

	printer := &progressPrinter{w: cmd.OutOrStdout()}
	ctrl := a.newController(inj, printer, hist)

	ctx, stop := signal.NotifyContext(contextOrBackground(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := ctrl.Start(m, h); err != nil {
		return usageError("cannot run macro", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Running %s (loop: %s). Press Ctrl+C to stop.\n", m.Name, m.Loop)

	if err := ctrl.Wait(ctx); err != nil {
		ctrl.Stop()
	}
	if err := ctrl.LastError(); err != nil {
		return WrapExitError(ExitFailure, "macro failed", err)
	}
	return nil
}

func contextOrBackground(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
