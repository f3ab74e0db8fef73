package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keyloop/internal/macro"
	"keyloop/internal/storage"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "keyloop", cmd.Use)
	assert.Contains(t, cmd.Long, "Battlefield")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"list", "show", "run", "record", "delete", "loop", "history", "serve", "watch", "keys", "windows", "autostart"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	require.NotNil(t, cmd.PersistentFlags().Lookup("config"))
	require.NotNil(t, cmd.PersistentFlags().Lookup("log-level"))
}

func TestRecordCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	recordCmd, _, err := cmd.Find([]string{"record"})
	require.NoError(t, err)

	loopFlag := recordCmd.Flags().Lookup("loop")
	require.NotNil(t, loopFlag)
	assert.Equal(t, "infinite", loopFlag.DefValue)
	require.NotNil(t, recordCmd.Flags().Lookup("overwrite"))
}

// execute runs the CLI against a config file in a fresh directory.
func execute(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", configPath, "--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

// withRecorded seeds a recorded macro named Farm next to the config file.
func withRecorded(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.Open(filepath.Join(dir, "macros"), nil)
	require.NoError(t, err)
	require.NoError(t, store.Save(macro.Macro{
		Name:        "Farm",
		Description: "press e",
		Actions: []macro.Action{
			macro.KeyPress{Key: "e"},
			macro.Sleep{Seconds: 1.5},
		},
		Loop: macro.Infinite(),
	}))
	return filepath.Join(dir, "config.json")
}

func TestListShowsBuiltInsAndRecorded(t *testing.T) {
	cfg := withRecorded(t)

	out, err := execute(t, cfg, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "Battlefield 6 Space Bar AFK")
	assert.Contains(t, out, "Farm")
	assert.Contains(t, out, "recorded")

	out, err = execute(t, cfg, "--format", "json", "list")
	require.NoError(t, err)
	var summaries []macroSummary
	require.NoError(t, json.Unmarshal([]byte(out), &summaries))
	require.Len(t, summaries, 4)
}

func TestShowPrintsYAML(t *testing.T) {
	cfg := withRecorded(t)

	out, err := execute(t, cfg, "show", "Farm")
	require.NoError(t, err)
	assert.Contains(t, out, "name: Farm")
	assert.Contains(t, out, "type: keypress")

	_, err = execute(t, cfg, "show", "Missing")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestLoopCommand(t *testing.T) {
	cfg := withRecorded(t)

	out, err := execute(t, cfg, "loop", "Farm", "once")
	require.NoError(t, err)
	assert.Equal(t, "Farm now loops: once\n", out)

	_, err = execute(t, cfg, "loop", "Battlefield 6 Space Bar AFK", "once")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = execute(t, cfg, "loop", "Farm", "sometimes")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestDeleteCommand(t *testing.T) {
	cfg := withRecorded(t)

	out, err := execute(t, cfg, "delete", "Farm")
	require.NoError(t, err)
	assert.Equal(t, "Deleted Farm\n", out)

	out, err = execute(t, cfg, "list")
	require.NoError(t, err)
	assert.NotContains(t, out, "Farm")

	_, err = execute(t, cfg, "delete", "Farm")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestHistoryEmpty(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "config.json")

	out, err := execute(t, cfg, "history")
	require.NoError(t, err)
	assert.Equal(t, "No runs recorded\n", out)

	out, err = execute(t, cfg, "history", "--macro", "Farm")
	require.NoError(t, err)
	assert.Equal(t, "Farm: 0 runs\n", out)
}

func TestKeysCommand(t *testing.T) {
	out, err := execute(t, filepath.Join(t.TempDir(), "config.json"), "keys")
	require.NoError(t, err)
	names := strings.Fields(out)
	assert.Contains(t, names, "space")
	assert.Contains(t, names, "f9")
}

func TestRunUnknownMacro(t *testing.T) {
	_, err := execute(t, filepath.Join(t.TempDir(), "config.json"), "run", "Missing")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestInvalidFormat(t *testing.T) {
	_, err := execute(t, filepath.Join(t.TempDir(), "config.json"), "--format", "xml", "list")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(assert.AnError))
	assert.Equal(t, ExitCommandError, GetExitCode(WrapExitError(ExitCommandError, "bad", nil)))
	assert.Equal(t, ExitCommandError, GetExitCode(usageError("x", storage.ErrNotFound)))
	assert.Equal(t, ExitFailure, GetExitCode(usageError("x", assert.AnError)))
}
