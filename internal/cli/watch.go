package cli

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"keyloop/internal/network"
	"keyloop/internal/protocol"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	Addr  string
	Token string
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the progress of a keyloop serve instance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(rootOpts)
			if err != nil {
				return err
			}
			addr := opts.Addr
			if addr == "" {
				addr = fmt.Sprintf("127.0.0.1:%d", a.cfg.API.Port)
			}
			token := opts.Token
			if token == "" {
				token = a.cfg.API.Token
			}

			ctx, stop := signal.NotifyContext(contextOrBackground(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var mu sync.Mutex
			out := cmd.OutOrStdout()
			emit := func(format string, args ...any) {
				mu.Lock()
				defer mu.Unlock()
				fmt.Fprintf(out, format+"\n", args...)
			}

			client := network.NewWSClient(addr, token, a.logger)
			client.OnConnect = func(connected bool) {
				if connected {
					emit("Connected to %s", addr)
				} else {
					emit("Disconnected from %s", addr)
				}
			}
			client.OnStatus = func(st protocol.StatusPayload) {
				switch {
				case st.Running:
					emit("Status: running %s", st.Macro)
				case st.LastError != "":
					emit("Status: idle (last error: %s)", st.LastError)
				default:
					emit("Status: idle")
				}
			}
			client.OnProgress = func(p protocol.ProgressPayload) {
				if p.Message != "" {
					emit("%s", p.Message)
				}
			}
			return client.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "host:port of the keyloop API (default: local API port)")
	cmd.Flags().StringVar(&opts.Token, "token", "", "API token (default: from config)")

	return cmd
}
