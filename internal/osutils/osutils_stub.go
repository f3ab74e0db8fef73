//go:build !windows

// Package osutils holds small OS integration helpers.
package osutils

import (
	"log/slog"
	"os"
)

// IsAdmin reports whether the process runs as root. Reading /dev/input and
// writing /dev/uinput usually needs root or input group membership.
func IsAdmin() bool {
	return os.Geteuid() == 0
}

// EnsureFirewallRule is a no-op outside Windows
func EnsureFirewallRule(port int) error {
	slog.Debug("firewall rule management is only supported on Windows", "port", port)
	return nil
}
