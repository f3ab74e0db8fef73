package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"keyloop/internal/autostart"
	"keyloop/internal/keys"
	"keyloop/internal/window"
)

// NewKeysCommand creates the keys command.
func NewKeysCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List key names usable in macros and hotkeys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			names := keys.Names()
			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), names)
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(names, " "))
			return nil
		},
	}
}

// NewWindowsCommand creates the windows command.
func NewWindowsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "windows",
		Short: "List visible windows and mark the ones matching the title filters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(rootOpts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, w := range window.NewSystem().List() {
				mark := " "
				if window.Match(w.Title, a.cfg.Window.Titles) {
					mark = "*"
				}
				fmt.Fprintf(out, "%s %#x  %s\n", mark, uintptr(w.Handle), w.Title)
			}
			return nil
		},
	}
}

// NewAutostartCommand creates the autostart command.
func NewAutostartCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "autostart",
		Short: "Manage launching keyloop serve at login",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "enable",
		Short: "Start keyloop serve at login",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			serveArgs := []string{"serve"}
			if rootOpts.ConfigPath != "" {
				serveArgs = append(serveArgs, "--config", rootOpts.ConfigPath)
			}
			entry, err := autostart.Current(serveArgs...)
			if err != nil {
				return WrapExitError(ExitFailure, "cannot enable autostart", err)
			}
			if err := autostart.Enable(entry); err != nil {
				return WrapExitError(ExitFailure, "cannot enable autostart", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Autostart enabled")
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "disable",
		Short: "Stop launching keyloop at login",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := autostart.Disable(); err != nil {
				return WrapExitError(ExitFailure, "cannot disable autostart", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Autostart disabled")
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Report whether autostart is enabled",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if autostart.IsEnabled() {
				fmt.Fprintln(cmd.OutOrStdout(), "enabled")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "disabled")
			}
			return nil
		},
	})

	return cmd
}
