// Package keys defines the logical key vocabulary shared by capture, storage and injection.
//
// Names are lowercase ("w", "space", "shift_r", "f9"). Each name maps to a Windows
// virtual-key code, a set-1 keyboard scan code (used by SendInput with
// KEYEVENTF_SCANCODE) and a Linux evdev code.
package keys

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownKey is returned when a key name is not part of the vocabulary.
var ErrUnknownKey = errors.New("unknown key")

// Key describes one physical key.
type Key struct {
	Name     string
	VK       uint16
	Scan     uint16
	Extended bool
	Evdev    uint16
}

var (
	byName  = map[string]Key{}
	byVK    = map[uint16]Key{}
	byEvdev = map[uint16]Key{}
)

// aliases maps alternative spellings to canonical names.
var aliases = map[string]string{
	"escape":    "esc",
	"return":    "enter",
	"control":   "ctrl",
	"ctrl_l":    "ctrl",
	"alt_l":     "alt",
	"alt_gr":    "alt_r",
	"shift_l":   "shift",
	"pageup":    "page_up",
	"pagedown":  "page_down",
	"pgup":      "page_up",
	"pgdn":      "page_down",
	"del":       "delete",
	"ins":       "insert",
	"capslock":  "caps_lock",
	"spacebar":  "space",
	"minus":     "-",
	"equal":     "=",
	"comma":     ",",
	"period":    ".",
	"slash":     "/",
	"backslash": "\\",
	"semicolon": ";",
	"quote":     "'",
	"grave":     "`",
}

func add(name string, vk, scan uint16, extended bool, evdev uint16) {
	k := Key{Name: name, VK: vk, Scan: scan, Extended: extended, Evdev: evdev}
	byName[name] = k
	if _, ok := byVK[vk]; !ok {
		byVK[vk] = k
	}
	if _, ok := byEvdev[evdev]; !ok {
		byEvdev[evdev] = k
	}
}

func init() {
	// Non-extended keys share set-1 scan codes with evdev codes.
	plain := func(name string, vk, scan uint16) { add(name, vk, scan, false, scan) }

	letters := "qwertyuiop" + "asdfghjkl" + "zxcvbnm"
	rowStart := []uint16{0x10, 0x1E, 0x2C}
	rows := []string{letters[:10], letters[10:19], letters[19:]}
	for i, row := range rows {
		for j, r := range row {
			plain(string(r), uint16(r-'a'+'A'), rowStart[i]+uint16(j))
		}
	}
	for d := 1; d <= 9; d++ {
		plain(fmt.Sprint(d), uint16('0'+d), uint16(0x01+d))
	}
	plain("0", '0', 0x0B)

	for n := 1; n <= 10; n++ {
		plain(fmt.Sprintf("f%d", n), uint16(0x6F+n), uint16(0x3A+n))
	}
	plain("f11", 0x7A, 0x57)
	plain("f12", 0x7B, 0x58)

	plain("esc", 0x1B, 0x01)
	plain("-", 0xBD, 0x0C)
	plain("=", 0xBB, 0x0D)
	plain("backspace", 0x08, 0x0E)
	plain("tab", 0x09, 0x0F)
	plain("[", 0xDB, 0x1A)
	plain("]", 0xDD, 0x1B)
	plain("enter", 0x0D, 0x1C)
	plain("ctrl", 0xA2, 0x1D)
	plain(";", 0xBA, 0x27)
	plain("'", 0xDE, 0x28)
	plain("`", 0xC0, 0x29)
	plain("shift", 0xA0, 0x2A)
	plain("\\", 0xDC, 0x2B)
	plain(",", 0xBC, 0x33)
	plain(".", 0xBE, 0x34)
	plain("/", 0xBF, 0x35)
	plain("shift_r", 0xA1, 0x36)
	plain("alt", 0xA4, 0x38)
	plain("space", 0x20, 0x39)
	plain("caps_lock", 0x14, 0x3A)

	add("ctrl_r", 0xA3, 0x1D, true, 97)
	add("alt_r", 0xA5, 0x38, true, 100)
	add("home", 0x24, 0x47, true, 102)
	add("up", 0x26, 0x48, true, 103)
	add("page_up", 0x21, 0x49, true, 104)
	add("left", 0x25, 0x4B, true, 105)
	add("right", 0x27, 0x4D, true, 106)
	add("end", 0x23, 0x4F, true, 107)
	add("down", 0x28, 0x50, true, 108)
	add("page_down", 0x22, 0x51, true, 109)
	add("insert", 0x2D, 0x52, true, 110)
	add("delete", 0x2E, 0x53, true, 111)

	// Generic modifier codes reported by some hooks.
	byVK[0x10] = byName["shift"]
	byVK[0x11] = byName["ctrl"]
	byVK[0x12] = byName["alt"]
}

// Normalize lowercases a key name and resolves aliases. It does not check
// that the result is known.
func Normalize(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	if len(n) > 1 {
		n = strings.ReplaceAll(n, " ", "_")
	}
	if a, ok := aliases[n]; ok {
		return a
	}
	return n
}

// Lookup returns the key for a (possibly aliased) name.
func Lookup(name string) (Key, error) {
	k, ok := byName[Normalize(name)]
	if !ok {
		return Key{}, fmt.Errorf("%w: %q", ErrUnknownKey, name)
	}
	return k, nil
}

// Valid reports whether name resolves to a known key.
func Valid(name string) bool {
	_, ok := byName[Normalize(name)]
	return ok
}

// ByVK maps a Windows virtual-key code to a key.
func ByVK(vk uint16) (Key, bool) {
	k, ok := byVK[vk]
	return k, ok
}

// ByEvdev maps a Linux evdev key code to a key.
func ByEvdev(code uint16) (Key, bool) {
	k, ok := byEvdev[code]
	return k, ok
}

// IsFunctionKey reports whether name is one of f1..f12.
// Function keys are reserved for application hotkeys and never recorded.
func IsFunctionKey(name string) bool {
	n := Normalize(name)
	if len(n) < 2 || n[0] != 'f' {
		return false
	}
	var num int
	if _, err := fmt.Sscanf(n[1:], "%d", &num); err != nil {
		return false
	}
	return num >= 1 && num <= 12 && n == fmt.Sprintf("f%d", num)
}

// Names returns every canonical key name, sorted.
func Names() []string {
	out := make([]string, 0, len(byName))
	for n := range byName {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
