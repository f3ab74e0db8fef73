//go:build linux

package input

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"keyloop/internal/keys"
)

const (
	evSyn = 0x00
	evKey = 0x01

	synReport = 0

	keyUp     = 0
	keyDown   = 1
	keyRepeat = 2
)

// inputEvent mirrors struct input_event on 64-bit Linux.
type inputEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

// Trap reads key events from evdev keyboards, multiplexed with epoll.
type Trap struct {
	mu      sync.Mutex
	devices []string
	events  chan KeyEvent
	files   []*os.File
	wakeFd  int
	running bool
	done    chan struct{}
	logger  *slog.Logger
}

// NewTrap creates a trap over the given device paths. With no paths, every
// /dev/input/by-path/*-event-kbd device is used.
func NewTrap(devices []string, logger *slog.Logger) *Trap {
	if logger == nil {
		logger = slog.Default()
	}
	return &Trap{
		devices: devices,
		events:  make(chan KeyEvent, eventBuffer),
		wakeFd:  -1,
		logger:  logger,
	}
}

// Events returns the captured event stream. It is closed after Stop.
func (t *Trap) Events() <-chan KeyEvent {
	return t.events
}

func discoverKeyboards() []string {
	var out []string
	for _, pattern := range []string{"/dev/input/by-path/*-event-kbd", "/dev/input/by-id/*-event-kbd"} {
		matches, _ := filepath.Glob(pattern)
		out = append(out, matches...)
		if len(out) > 0 {
			break
		}
	}
	return out
}

// Start opens the devices and begins reading.
func (t *Trap) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return fmt.Errorf("trap already running")
	}

	paths := t.devices
	if len(paths) == 0 {
		paths = discoverKeyboards()
	}
	if len(paths) == 0 {
		return fmt.Errorf("no keyboard devices found under /dev/input")
	}

	for _, p := range paths {
		f, err := os.OpenFile(p, os.O_RDONLY, 0)
		if err != nil {
			t.closeFiles()
			return fmt.Errorf("open %s: %w", p, err)
		}
		t.files = append(t.files, f)
	}

	wakeFd, err := unix.Eventfd(0, unix.EFD_CLOEXEC)
	if err != nil {
		t.closeFiles()
		return fmt.Errorf("eventfd: %w", err)
	}
	t.wakeFd = wakeFd

	t.done = make(chan struct{})
	readErr := make(chan error, 1)
	go func() {
		defer close(t.done)
		t.readLoop(readErr)
	}()
	go func() {
		select {
		case err := <-readErr:
			t.logger.Error("keyboard capture stopped", "err", err)
		case <-t.done:
		}
	}()

	t.running = true
	t.logger.Info("keyboard capture started", "devices", paths)
	return nil
}

// Stop wakes the reader, closes the devices and the event stream.
func (t *Trap) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return nil
	}
	t.running = false

	var one [8]byte
	binary.LittleEndian.PutUint64(one[:], 1)
	unix.Write(t.wakeFd, one[:])
	<-t.done

	unix.Close(t.wakeFd)
	t.wakeFd = -1
	t.closeFiles()
	close(t.events)
	return nil
}

func (t *Trap) closeFiles() {
	for _, f := range t.files {
		f.Close()
	}
	t.files = nil
}

func (t *Trap) readLoop(readErr chan<- error) {
	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		readErr <- fmt.Errorf("epoll_create1: %w", err)
		return
	}
	defer unix.Close(epfd)

	fdToFile := make(map[int]*os.File)
	for _, f := range t.files {
		fd := int(f.Fd())
		fdToFile[fd] = f
		event := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
		if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd, &event); err != nil {
			readErr <- fmt.Errorf("epoll_ctl_add %s: %w", f.Name(), err)
			return
		}
	}
	wake := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(t.wakeFd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, t.wakeFd, &wake); err != nil {
		readErr <- fmt.Errorf("epoll_ctl_add eventfd: %w", err)
		return
	}

	epollEvents := make([]unix.EpollEvent, 32)
	buf := make([]byte, binary.Size(inputEvent{}))
	reader := bytes.NewReader(buf)

	for {
		n, err := unix.EpollWait(epfd, epollEvents, -1)
		if err != nil {
			if errors.Is(err, syscall.EINTR) {
				continue
			}
			readErr <- fmt.Errorf("epoll_wait: %w", err)
			return
		}

		for i := 0; i < n; i++ {
			fd := int(epollEvents[i].Fd)
			if fd == t.wakeFd {
				return
			}
			f := fdToFile[fd]
			if epollEvents[i].Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
				readErr <- fmt.Errorf("device error/hangup: %s", f.Name())
				return
			}
			if _, err := f.Read(buf); err != nil {
				readErr <- fmt.Errorf("read from %s: %w", f.Name(), err)
				return
			}

			reader.Reset(buf)
			var ev inputEvent
			if err := binary.Read(reader, binary.LittleEndian, &ev); err != nil {
				continue
			}
			if ke, ok := translate(ev); ok {
				select {
				case t.events <- ke:
				default:
				}
			}
		}
	}
}

// translate converts a raw evdev event to a KeyEvent. Auto-repeat and
// non-key events are dropped.
func translate(ev inputEvent) (KeyEvent, bool) {
	if ev.Type != evKey || ev.Value == keyRepeat {
		return KeyEvent{}, false
	}
	k, ok := keys.ByEvdev(ev.Code)
	if !ok {
		return KeyEvent{}, false
	}
	return KeyEvent{
		Key:  k.Name,
		Down: ev.Value == keyDown,
		Time: time.Unix(ev.Sec, ev.Usec*int64(time.Microsecond)),
	}, true
}
