package cli

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"keyloop/internal/input"
	"keyloop/internal/macro"
	"keyloop/internal/recorder"
	"keyloop/internal/storage"
)

// RecordOptions holds flags for the record command.
type RecordOptions struct {
	Description string
	Loop        string
	Overwrite   bool
}

// NewRecordCommand creates the record command.
func NewRecordCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecordOptions{}

	cmd := &cobra.Command{
		Use:   "record <name>",
		Short: "Record a new macro from live keystrokes",
		Long: `Arm the recorder and wait for the start key (F9 by default). Keystrokes are
recorded until the stop key (Esc by default) or Ctrl+C. Function keys are
never recorded.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecord(cmd, rootOpts, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Description, "description", "", "macro description")
	cmd.Flags().StringVar(&opts.Loop, "loop", "infinite", "loop policy: once, infinite or a count")
	cmd.Flags().BoolVar(&opts.Overwrite, "overwrite", false, "replace an existing recorded macro")

	return cmd
}

func runRecord(cmd *cobra.Command, rootOpts *RootOptions, opts *RecordOptions, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return WrapExitError(ExitCommandError, "macro name is required", nil)
	}
	loop, err := macro.ParseLoop(opts.Loop)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --loop", err)
	}

	a, err := loadApp(rootOpts)
	if err != nil {
		return err
	}
	if a.lib.Exists(name) && !opts.Overwrite {
		return usageError("cannot record", fmt.Errorf("%w: %q (use --overwrite to replace)", storage.ErrExists, name))
	}

	trap := input.NewTrap(a.cfg.Input.Devices, a.logger)
	if err := trap.Start(); err != nil {
		return WrapExitError(ExitFailure, "failed to capture keyboard", err)
	}
	defer trap.Stop()

	ctx, stop := signal.NotifyContext(contextOrBackground(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := input.NewHub()
	go hub.Run(ctx, trap.Events())

	rec, err := recorder.New(hub, a.recorderConfig())
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid recorder settings", err)
	}

	out := cmd.OutOrStdout()
	cfg := a.cfg.Recorder
	fmt.Fprintf(out, "Press %s to start recording, %s to stop.\n", strings.ToUpper(cfg.StartKey), strings.ToUpper(cfg.StopKey))
	if err := rec.WaitForStartKey(func() {
		fmt.Fprintln(out, "Recording...")
	}); err != nil {
		return WrapExitError(ExitFailure, "failed to arm recorder", err)
	}

	var actions []macro.Action
	select {
	case <-rec.Done():
		actions = rec.Actions()
	case <-ctx.Done():
		actions = rec.Stop()
	}
	if len(actions) == 0 {
		return WrapExitError(ExitFailure, "nothing recorded", nil)
	}

	m := macro.Macro{
		Name:        name,
		Description: opts.Description,
		Actions:     actions,
		Loop:        loop,
	}
	if err := a.lib.SaveRecording(m, opts.Overwrite); err != nil {
		return usageError("failed to save macro", err)
	}
	fmt.Fprintf(out, "Saved %s (%d steps, loop: %s)\n", name, len(actions), loop)
	return nil
}
