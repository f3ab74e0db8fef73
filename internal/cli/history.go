package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"keyloop/internal/history"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	Limit int
	Macro string
}

type runSummary struct {
	ID       string    `json:"id"`
	Macro    string    `json:"macro"`
	Started  time.Time `json:"started"`
	Duration string    `json:"duration"`
	Outcome  string    `json:"outcome"`
	Error    string    `json:"error,omitempty"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent macro runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(rootOpts)
			if err != nil {
				return err
			}
			hist, err := history.Open(a.cfgMgr.HistoryPath())
			if err != nil {
				return WrapExitError(ExitFailure, "failed to open run history", err)
			}
			defer hist.Close()

			ctx := contextOrBackground(cmd)
			out := cmd.OutOrStdout()

			if opts.Macro != "" {
				n, err := hist.CountByMacro(ctx, opts.Macro)
				if err != nil {
					return WrapExitError(ExitFailure, "failed to count runs", err)
				}
				fmt.Fprintf(out, "%s: %d runs\n", opts.Macro, n)
				return nil
			}

			entries, err := hist.Recent(ctx, opts.Limit)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to read run history", err)
			}

			runs := make([]runSummary, 0, len(entries))
			for _, e := range entries {
				runs = append(runs, runSummary{
					ID:       e.ID,
					Macro:    e.Macro,
					Started:  e.Started,
					Duration: e.Duration().Round(100 * time.Millisecond).String(),
					Outcome:  e.Outcome,
					Error:    e.Error,
				})
			}
			if rootOpts.Format == "json" {
				return writeJSON(out, runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "STARTED\tMACRO\tOUTCOME\tDURATION\tERROR")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Started.Local().Format("2006-01-02 15:04:05"), r.Macro, r.Outcome, r.Duration, r.Error)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "number of runs to show")
	cmd.Flags().StringVar(&opts.Macro, "macro", "", "only print the run count for this macro")

	return cmd
}
