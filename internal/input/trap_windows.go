//go:build windows

package input

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"

	"keyloop/internal/keys"
)

var (
	user32                  = windows.NewLazySystemDLL("user32.dll")
	procSetWindowsHookEx    = user32.NewProc("SetWindowsHookExW")
	procCallNextHookEx      = user32.NewProc("CallNextHookEx")
	procUnhookWindowsHookEx = user32.NewProc("UnhookWindowsHookEx")
	procGetMessage          = user32.NewProc("GetMessageW")
	procTranslateMessage    = user32.NewProc("TranslateMessage")
	procDispatchMessage     = user32.NewProc("DispatchMessageW")
	procPostThreadMessage   = user32.NewProc("PostThreadMessageW")
	procSendInput           = user32.NewProc("SendInput")
	kernel32                = windows.NewLazySystemDLL("kernel32.dll")
	procGetModuleHandle     = kernel32.NewProc("GetModuleHandleW")
)

const (
	whKeyboardLL = 13
	wmQuit       = 0x0012
	wmKeyDown    = 0x0100
	wmKeyUp      = 0x0101
	wmSysKeyDown = 0x0104
	wmSysKeyUp   = 0x0105

	llkhfExtended = 0x01
	llkhfInjected = 0x10
)

type kbdllHookStruct struct {
	VkCode      uint32
	ScanCode    uint32
	Flags       uint32
	Time        uint32
	DwExtraInfo uintptr
}

type msg struct {
	Hwnd    syscall.Handle
	Message uint32
	Wparam  uintptr
	Lparam  uintptr
	Time    uint32
	Pt      struct{ X, Y int32 }
}

// Only one low-level hook is installed per process.
var (
	activeMu   sync.Mutex
	activeTrap *Trap
	hookProc   = syscall.NewCallback(keyboardHookProc)
)

// Trap captures keyboard events with a WH_KEYBOARD_LL hook.
type Trap struct {
	mu       sync.Mutex
	events   chan KeyEvent
	running  bool
	threadID uint32
	hook     uintptr
	done     chan struct{}
	logger   *slog.Logger
}

// NewTrap creates a keyboard trap. devices is ignored on Windows.
func NewTrap(devices []string, logger *slog.Logger) *Trap {
	if logger == nil {
		logger = slog.Default()
	}
	return &Trap{
		events: make(chan KeyEvent, eventBuffer),
		logger: logger,
	}
}

// Events returns the captured event stream. It is closed after Stop.
func (t *Trap) Events() <-chan KeyEvent {
	return t.events
}

// Start installs the hook on a dedicated OS thread and pumps its messages.
func (t *Trap) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return fmt.Errorf("trap already running")
	}

	activeMu.Lock()
	if activeTrap != nil {
		activeMu.Unlock()
		return fmt.Errorf("another keyboard trap is active")
	}
	activeTrap = t
	activeMu.Unlock()

	started := make(chan error, 1)
	t.done = make(chan struct{})

	// Hooks must be registered in the same thread that runs the message loop
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		defer close(t.done)

		t.threadID = windows.GetCurrentThreadId()
		hMod, _, _ := procGetModuleHandle.Call(0)
		hook, _, err := procSetWindowsHookEx.Call(whKeyboardLL, hookProc, hMod, 0)
		if hook == 0 {
			started <- fmt.Errorf("SetWindowsHookExW: %w", err)
			return
		}
		t.hook = hook
		started <- nil
		t.logger.Info("keyboard hook installed")

		var m msg
		for {
			ret, _, _ := procGetMessage.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
			if int32(ret) <= 0 {
				break
			}
			procTranslateMessage.Call(uintptr(unsafe.Pointer(&m)))
			procDispatchMessage.Call(uintptr(unsafe.Pointer(&m)))
		}

		procUnhookWindowsHookEx.Call(hook)
		t.logger.Info("keyboard hook removed")
	}()

	if err := <-started; err != nil {
		activeMu.Lock()
		activeTrap = nil
		activeMu.Unlock()
		return err
	}
	t.running = true
	return nil
}

// Stop removes the hook and closes the event stream.
func (t *Trap) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return nil
	}
	t.running = false

	procPostThreadMessage.Call(uintptr(t.threadID), wmQuit, 0, 0)
	<-t.done

	activeMu.Lock()
	activeTrap = nil
	activeMu.Unlock()
	close(t.events)
	return nil
}

func keyboardHookProc(nCode int, wParam uintptr, lParam uintptr) uintptr {
	if nCode == 0 {
		kbd := (*kbdllHookStruct)(unsafe.Pointer(lParam))
		activeMu.Lock()
		t := activeTrap
		activeMu.Unlock()
		if t != nil {
			t.dispatch(kbd, wParam)
		}
	}
	ret, _, _ := procCallNextHookEx.Call(0, uintptr(nCode), wParam, lParam)
	return ret
}

func (t *Trap) dispatch(kbd *kbdllHookStruct, wParam uintptr) {
	k, ok := keys.ByVK(uint16(kbd.VkCode))
	if !ok {
		return
	}
	// Extended ctrl and alt are the right-hand keys.
	if kbd.Flags&llkhfExtended != 0 {
		switch k.Name {
		case "ctrl":
			k, _ = keys.Lookup("ctrl_r")
		case "alt":
			k, _ = keys.Lookup("alt_r")
		}
	}

	ev := KeyEvent{
		Key:      k.Name,
		Down:     wParam == wmKeyDown || wParam == wmSysKeyDown,
		Time:     time.Now(),
		Injected: kbd.Flags&llkhfInjected != 0,
	}
	if !ev.Down && wParam != wmKeyUp && wParam != wmSysKeyUp {
		return
	}

	// Don't block the hook
	select {
	case t.events <- ev:
	default:
	}
}
