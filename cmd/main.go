// keyloop records keystrokes into loop-able macros and replays them into a
// target window.
package main

import (
	"context"
	"fmt"
	"os"

	"keyloop/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
