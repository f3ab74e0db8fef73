package autostart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderDesktopEntry(t *testing.T) {
	out, err := render(xdgDesktopEntry, Entry{ExecutablePath: "/opt/key loop/keyloop", Args: []string{"serve"}})
	require.NoError(t, err)
	assert.Contains(t, string(out), "Exec=\"/opt/key loop/keyloop\" serve\n")
	assert.Contains(t, string(out), "Type=Application")
}

func TestRenderPlist(t *testing.T) {
	out, err := render(macLaunchAgentPlist, Entry{ExecutablePath: "/usr/local/bin/keyloop", Args: []string{"serve", "--log-level", "debug"}})
	require.NoError(t, err)
	s := string(out)
	assert.Contains(t, s, "<string>/usr/local/bin/keyloop</string>\n        <string>serve</string>\n        <string>--log-level</string>")
	assert.Contains(t, s, "<string>com.keyloop.serve</string>")
}

func TestCommandLine(t *testing.T) {
	assert.Equal(t, `"C:\Program Files\keyloop.exe" serve`, commandLine(Entry{ExecutablePath: `C:\Program Files\keyloop.exe`, Args: []string{"serve"}}))
}
