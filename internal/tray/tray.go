// Package tray provides the system tray menu for serve mode using
// getlantern/systray.
package tray

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/getlantern/systray"

	"keyloop/internal/player"
	"keyloop/internal/ui"
)

// Actions is what the tray menu drives.
type Actions interface {
	Macros() []string
	Selected() string
	Select(name string)
	Start() error
	Stop()
	Running() (name string, ok bool)
}

// Tray manages the system tray icon and menu
type Tray struct {
	// DashboardURL adds an "Open dashboard" item when set.
	DashboardURL string

	actions Actions
	onQuit  func()
	logger  *slog.Logger

	mu       sync.Mutex
	status   *systray.MenuItem
	macros   map[string]*systray.MenuItem
	lastLine string
	quitCh   chan struct{}
	quitOnce sync.Once
}

// New creates a new system tray. onQuit runs when the user picks Quit.
func New(actions Actions, onQuit func(), logger *slog.Logger) *Tray {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tray{
		actions: actions,
		onQuit:  onQuit,
		logger:  logger,
		macros:  make(map[string]*systray.MenuItem),
		quitCh:  make(chan struct{}),
	}
}

// Run starts the tray event loop (blocks until Stop or Quit)
func (t *Tray) Run() {
	systray.Run(t.setupMenu, t.exit)
}

// Stop stops the tray
func (t *Tray) Stop() {
	systray.Quit()
}

func (t *Tray) exit() {
	t.quitOnce.Do(func() { close(t.quitCh) })
}

// setupMenu is called when systray is ready
func (t *Tray) setupMenu() {
	systray.SetTitle("keyloop")
	systray.SetTooltip("keyloop macro player")
	systray.SetIcon(icon())

	t.mu.Lock()
	t.status = systray.AddMenuItem(statusTitle("", false), "")
	t.status.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	parent := systray.AddMenuItem("Macros", "Choose the macro the start hotkey runs")
	selected := t.actions.Selected()
	for _, name := range t.actions.Macros() {
		item := parent.AddSubMenuItem(name, "")
		if name == selected {
			item.Check()
		}
		t.mu.Lock()
		t.macros[name] = item
		t.mu.Unlock()
		t.onClick(item, func(name string) func() {
			return func() {
				t.actions.Select(name)
				t.refreshChecks()
			}
		}(name))
	}

	start := systray.AddMenuItem("Start", "Run the selected macro")
	stop := systray.AddMenuItem("Stop", "Stop the running macro")
	if t.DashboardURL != "" {
		dash := systray.AddMenuItem("Open dashboard", t.DashboardURL)
		t.onClick(dash, func() {
			if err := ui.OpenBrowser(t.DashboardURL); err != nil {
				t.logger.Warn("open dashboard failed", "err", err)
			}
		})
	}
	systray.AddSeparator()
	quit := systray.AddMenuItem("Quit", "Exit keyloop")

	t.onClick(start, func() {
		if err := t.actions.Start(); err != nil {
			t.logger.Warn("tray start failed", "err", err)
			t.setStatus("Error: " + err.Error())
		}
	})
	t.onClick(stop, t.actions.Stop)
	t.onClick(quit, func() {
		if t.onQuit != nil {
			t.onQuit()
		}
		systray.Quit()
	})
}

// onClick handles clicks on item until the tray exits
func (t *Tray) onClick(item *systray.MenuItem, fn func()) {
	go func() {
		for {
			select {
			case <-item.ClickedCh:
				fn()
			case <-t.quitCh:
				return
			}
		}
	}()
}

func (t *Tray) refreshChecks() {
	selected := t.actions.Selected()
	t.mu.Lock()
	defer t.mu.Unlock()
	for name, item := range t.macros {
		if name == selected {
			item.Check()
		} else {
			item.Uncheck()
		}
	}
}

func (t *Tray) setStatus(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if line == t.lastLine {
		return
	}
	t.lastLine = line
	if t.status != nil {
		t.status.SetTitle(line)
	}
}

// OnProgress mirrors playback progress in the status line.
func (t *Tray) OnProgress(p player.Progress) {
	switch p.Event {
	case player.EventDone:
		t.setStatus(statusTitle("", false))
	case player.EventError:
		t.setStatus(p.Message)
	default:
		name, running := t.actions.Running()
		if p.Message != "" {
			t.setStatus(fmt.Sprintf("%s: %s", name, p.Message))
		} else {
			t.setStatus(statusTitle(name, running))
		}
	}
}

func statusTitle(name string, running bool) string {
	if !running {
		return "Idle"
	}
	return "Running: " + name
}

const iconSize = 16

// icon builds a 16x16 32-bit ICO: a light key cap with a dark border.
func icon() []byte {
	const (
		headerLen = 6 + 16
		dibLen    = 40
		pixelLen  = iconSize * iconSize * 4
		maskLen   = iconSize * 4 // 1bpp rows padded to 32 bits
		imageLen  = dibLen + pixelLen + maskLen
	)
	buf := make([]byte, headerLen+imageLen)

	le16 := func(off int, v uint16) { buf[off], buf[off+1] = byte(v), byte(v>>8) }
	le32 := func(off int, v uint32) {
		le16(off, uint16(v))
		le16(off+2, uint16(v>>16))
	}

	// ICONDIR
	le16(2, 1) // type: icon
	le16(4, 1) // count
	// ICONDIRENTRY
	buf[6], buf[7] = iconSize, iconSize
	le16(10, 1)  // planes
	le16(12, 32) // bpp
	le32(14, imageLen)
	le32(18, headerLen)

	// BITMAPINFOHEADER; height is doubled for the AND mask
	d := headerLen
	le32(d, dibLen)
	le32(d+4, iconSize)
	le32(d+8, iconSize*2)
	le16(d+12, 1)
	le16(d+14, 32)
	le32(d+20, pixelLen)

	px := d + dibLen
	for y := 0; y < iconSize; y++ {
		for x := 0; x < iconSize; x++ {
			off := px + (y*iconSize+x)*4
			border := x <= 1 || y <= 1 || x >= iconSize-2 || y >= iconSize-2
			var b, g, r byte = 0xE8, 0xE8, 0xE8
			if border {
				b, g, r = 0x40, 0x30, 0x20
			}
			buf[off], buf[off+1], buf[off+2], buf[off+3] = b, g, r, 0xFF
		}
	}
	return buf
}
