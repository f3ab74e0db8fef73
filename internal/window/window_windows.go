//go:build windows

package window

import (
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32                  = windows.NewLazySystemDLL("user32.dll")
	procEnumWindows         = user32.NewProc("EnumWindows")
	procIsWindowVisible     = user32.NewProc("IsWindowVisible")
	procIsWindow            = user32.NewProc("IsWindow")
	procGetWindowTextW      = user32.NewProc("GetWindowTextW")
	procGetWindowTextLength = user32.NewProc("GetWindowTextLengthW")
	procSetForegroundWindow = user32.NewProc("SetForegroundWindow")
	procGetForegroundWindow = user32.NewProc("GetForegroundWindow")
)

func list() []Info {
	var out []Info
	cb := syscall.NewCallback(func(hwnd uintptr, _ uintptr) uintptr {
		if visible, _, _ := procIsWindowVisible.Call(hwnd); visible == 0 {
			return 1
		}
		if title := windowText(hwnd); title != "" {
			out = append(out, Info{Handle: Handle(hwnd), Title: title})
		}
		return 1
	})
	procEnumWindows.Call(cb, 0)
	return out
}

func find(filters []string) (Handle, bool) {
	return FindIn(list(), filters)
}

func windowText(hwnd uintptr) string {
	n, _, _ := procGetWindowTextLength.Call(hwnd)
	if n == 0 {
		return ""
	}
	buf := make([]uint16, n+1)
	procGetWindowTextW.Call(hwnd, uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	return windows.UTF16ToString(buf)
}

// Valid reports whether h still refers to a window.
func Valid(h Handle) bool {
	if h == Focused {
		return true
	}
	ret, _, _ := procIsWindow.Call(uintptr(h))
	return ret != 0
}

// Focus brings h to the foreground. It is a no-op for Focused or when h
// already has focus.
func Focus(h Handle) error {
	if h == Focused {
		return nil
	}
	if fg, _, _ := procGetForegroundWindow.Call(); Handle(fg) == h {
		return nil
	}
	if ret, _, err := procSetForegroundWindow.Call(uintptr(h)); ret == 0 {
		return err
	}
	return nil
}
