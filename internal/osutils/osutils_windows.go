//go:build windows

// Package osutils holds small OS integration helpers.
package osutils

import (
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"syscall"

	"golang.org/x/sys/windows"
)

const firewallRuleName = "keyloop API"

// IsAdmin checks if the current process has administrative privileges.
// Low-level hooks and SendInput cannot reach windows of elevated processes
// from a non-elevated one.
func IsAdmin() bool {
	var token windows.Token
	h, _ := windows.GetCurrentProcess()
	err := windows.OpenProcessToken(h, windows.TOKEN_QUERY, &token)
	if err != nil {
		return false
	}
	defer token.Close()

	var sid *windows.SID
	err = windows.AllocateAndInitializeSid(
		&windows.SECURITY_NT_AUTHORITY,
		2,
		windows.SECURITY_BUILTIN_DOMAIN_RID,
		windows.DOMAIN_ALIAS_RID_ADMINS,
		0, 0, 0, 0, 0, 0,
		&sid,
	)
	if err != nil {
		return false
	}
	defer windows.FreeSid(sid)

	member, err := token.IsMember(sid)
	if err != nil {
		return false
	}
	return member
}

// EnsureFirewallRule makes sure inbound TCP on the API port is allowed so
// watchers on the LAN can connect. Without elevation it asks for UAC.
func EnsureFirewallRule(port int) error {
	logger := slog.With("rule", firewallRuleName, "port", port)

	out, err := exec.Command("netsh", "advfirewall", "firewall", "show", "rule", "name="+firewallRuleName).CombinedOutput()
	text := string(out)
	if err == nil && strings.Contains(text, firewallRuleName) &&
		strings.Contains(text, fmt.Sprintf("%d", port)) && strings.Contains(text, "Allow") {
		logger.Debug("firewall rule present")
		return nil
	}

	psCommand := fmt.Sprintf(
		"Remove-NetFirewallRule -DisplayName '%s' -ErrorAction SilentlyContinue; New-NetFirewallRule -DisplayName '%s' -Direction Inbound -LocalPort %d -Protocol TCP -Action Allow -Profile Private",
		firewallRuleName, firewallRuleName, port,
	)

	if !IsAdmin() {
		logger.Info("requesting elevation to add firewall rule")
		verbPtr, _ := syscall.UTF16PtrFromString("runas")
		exePtr, _ := syscall.UTF16PtrFromString("powershell.exe")
		argPtr, _ := syscall.UTF16PtrFromString(fmt.Sprintf("-NoProfile -WindowStyle Hidden -Command \"%s\"", psCommand))

		if err := windows.ShellExecute(0, verbPtr, exePtr, argPtr, nil, windows.SW_HIDE); err != nil {
			return fmt.Errorf("launch elevated powershell: %w", err)
		}
		return nil
	}

	if out, err := exec.Command("powershell", "-NoProfile", "-Command", psCommand).CombinedOutput(); err != nil {
		return fmt.Errorf("create firewall rule: %w (output: %s)", err, strings.TrimSpace(string(out)))
	}
	logger.Info("firewall rule added")
	return nil
}
