//go:build linux

package input

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"keyloop/internal/keys"
)

const (
	uiSetEvBit   = 0x40045564
	uiSetKeyBit  = 0x40045565
	uiDevCreate  = 0x5501
	uiDevDestroy = 0x5502

	busVirtual = 0x06
)

type uinputID struct {
	Bustype uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

// uinputUserDev mirrors struct uinput_user_dev.
type uinputUserDev struct {
	Name         [80]byte
	ID           uinputID
	FFEffectsMax uint32
	AbsMax       [64]int32
	AbsMin       [64]int32
	AbsFuzz      [64]int32
	AbsFlat      [64]int32
}

// uinputDevice is a virtual keyboard created through /dev/uinput.
type uinputDevice struct {
	f *os.File
}

func openKeyDevice() (keyDevice, error) {
	f, err := os.OpenFile("/dev/uinput", os.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, err
	}
	fd := int(f.Fd())

	if err := unix.IoctlSetInt(fd, uiSetEvBit, evKey); err != nil {
		f.Close()
		return nil, fmt.Errorf("UI_SET_EVBIT: %w", err)
	}
	if err := unix.IoctlSetInt(fd, uiSetEvBit, evSyn); err != nil {
		f.Close()
		return nil, fmt.Errorf("UI_SET_EVBIT: %w", err)
	}
	for _, name := range keys.Names() {
		k, _ := keys.Lookup(name)
		if err := unix.IoctlSetInt(fd, uiSetKeyBit, int(k.Evdev)); err != nil {
			f.Close()
			return nil, fmt.Errorf("UI_SET_KEYBIT %s: %w", name, err)
		}
	}

	var dev uinputUserDev
	copy(dev.Name[:], "keyloop virtual keyboard")
	dev.ID = uinputID{Bustype: busVirtual, Vendor: 0x1, Product: 0x1, Version: 1}
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, &dev); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return nil, fmt.Errorf("write uinput_user_dev: %w", err)
	}
	if err := unix.IoctlSetInt(fd, uiDevCreate, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("UI_DEV_CREATE: %w", err)
	}
	// Give the compositor time to pick up the new device.
	time.Sleep(200 * time.Millisecond)
	return &uinputDevice{f: f}, nil
}

func (d *uinputDevice) emit(typ, code uint16, value int32) error {
	now := time.Now()
	ev := inputEvent{
		Sec:   now.Unix(),
		Usec:  int64(now.Nanosecond() / 1000),
		Type:  typ,
		Code:  code,
		Value: value,
	}
	return binary.Write(d.f, binary.LittleEndian, &ev)
}

func (d *uinputDevice) key(k keys.Key, value int32) error {
	if err := d.emit(evKey, k.Evdev, value); err != nil {
		return err
	}
	return d.emit(evSyn, synReport, 0)
}

func (d *uinputDevice) keyDown(k keys.Key) error { return d.key(k, keyDown) }
func (d *uinputDevice) keyUp(k keys.Key) error   { return d.key(k, keyUp) }

func (d *uinputDevice) Close() error {
	unix.IoctlSetInt(int(d.f.Fd()), uiDevDestroy, 0)
	return d.f.Close()
}
