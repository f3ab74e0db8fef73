//go:build windows

package input

import (
	"fmt"
	"unsafe"

	"keyloop/internal/keys"
)

const (
	inputKeyboard        = 1
	keyeventfExtendedKey = 0x0001
	keyeventfKeyUp       = 0x0002
	keyeventfScanCode    = 0x0008
)

type keybdInput struct {
	Vk        uint16
	Scan      uint16
	Flags     uint32
	Time      uint32
	ExtraInfo uintptr
}

// keyboardInput matches the INPUT union sized for its largest member.
type keyboardInput struct {
	Type uint32
	Ki   keybdInput
	_    [8]byte
}

// sendInputDevice sends hardware scan codes, which games reading DirectInput accept.
type sendInputDevice struct{}

func openKeyDevice() (keyDevice, error) {
	if err := procSendInput.Find(); err != nil {
		return nil, err
	}
	return sendInputDevice{}, nil
}

func (sendInputDevice) send(k keys.Key, up bool) error {
	in := keyboardInput{Type: inputKeyboard}
	in.Ki.Scan = k.Scan
	in.Ki.Flags = keyeventfScanCode
	if k.Extended {
		in.Ki.Flags |= keyeventfExtendedKey
	}
	if up {
		in.Ki.Flags |= keyeventfKeyUp
	}
	ret, _, err := procSendInput.Call(1, uintptr(unsafe.Pointer(&in)), unsafe.Sizeof(in))
	if ret != 1 {
		return fmt.Errorf("SendInput: %w", err)
	}
	return nil
}

func (d sendInputDevice) keyDown(k keys.Key) error { return d.send(k, false) }
func (d sendInputDevice) keyUp(k keys.Key) error   { return d.send(k, true) }
func (sendInputDevice) Close() error               { return nil }
