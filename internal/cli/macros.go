package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"keyloop/internal/macro"
)

type macroSummary struct {
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	Loop        string `json:"loop"`
	Steps       int    `json:"steps"`
	Description string `json:"description,omitempty"`
}

func kind(m macro.Macro) string {
	if m.BuiltIn {
		return "built-in"
	}
	return "recorded"
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List built-in and recorded macros",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(rootOpts)
			if err != nil {
				return err
			}

			list := a.lib.List()
			summaries := make([]macroSummary, 0, len(list))
			for _, m := range list {
				summaries = append(summaries, macroSummary{
					Name:        m.Name,
					Kind:        kind(m),
					Loop:        m.Loop.String(),
					Steps:       len(m.Actions),
					Description: m.Description,
				})
			}

			out := cmd.OutOrStdout()
			if rootOpts.Format == "json" {
				return writeJSON(out, summaries)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tKIND\tLOOP\tSTEPS")
			for _, s := range summaries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", s.Name, s.Kind, s.Loop, s.Steps)
			}
			return tw.Flush()
		},
	}
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Print a macro as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(rootOpts)
			if err != nil {
				return err
			}
			m, err := a.lib.Get(args[0])
			if err != nil {
				return usageError("cannot show macro", err)
			}

			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), macro.ToRecord(m))
			}
			data, err := macro.EncodeYAML(m)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to encode macro", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a recorded macro",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(rootOpts)
			if err != nil {
				return err
			}
			if err := a.lib.Delete(args[0]); err != nil {
				return usageError("cannot delete macro", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}

// NewLoopCommand creates the loop command.
func NewLoopCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "loop <name> <once|infinite|N>",
		Short: "Change how often a recorded macro repeats",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := macro.ParseLoop(args[1])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid loop policy", err)
			}
			a, err := loadApp(rootOpts)
			if err != nil {
				return err
			}
			m, err := a.lib.SetLoop(args[0], p)
			if err != nil {
				return usageError("cannot change loop policy", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s now loops: %s\n", m.Name, m.Loop)
			return nil
		},
	}
}
