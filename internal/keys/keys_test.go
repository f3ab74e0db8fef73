package keys

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupLetters(t *testing.T) {
	k, err := Lookup("W")
	require.NoError(t, err)
	assert.Equal(t, "w", k.Name)
	assert.Equal(t, uint16(0x57), k.VK)
	assert.Equal(t, uint16(0x11), k.Scan)
	assert.Equal(t, uint16(17), k.Evdev)
	assert.False(t, k.Extended)

	k, err = Lookup("m")
	require.NoError(t, err)
	assert.Equal(t, uint16(0x32), k.Scan)
}

func TestLookupAliases(t *testing.T) {
	for alias, want := range map[string]string{
		"Escape":  "esc",
		"RETURN":  "enter",
		"control": "ctrl",
		"PageUp":  "page_up",
		"page up": "page_up",
	} {
		k, err := Lookup(alias)
		require.NoError(t, err, alias)
		assert.Equal(t, want, k.Name, alias)
	}
}

func TestLookupUnknown(t *testing.T) {
	_, err := Lookup("hyper")
	require.ErrorIs(t, err, ErrUnknownKey)
	assert.False(t, Valid(""))
}

func TestExtendedKeys(t *testing.T) {
	up, err := Lookup("up")
	require.NoError(t, err)
	assert.True(t, up.Extended)
	assert.Equal(t, uint16(0x48), up.Scan)
	assert.Equal(t, uint16(103), up.Evdev)

	k, ok := ByEvdev(108)
	require.True(t, ok)
	assert.Equal(t, "down", k.Name)
}

func TestByVK(t *testing.T) {
	k, ok := ByVK(0x20)
	require.True(t, ok)
	assert.Equal(t, "space", k.Name)

	k, ok = ByVK(0x10)
	require.True(t, ok)
	assert.Equal(t, "shift", k.Name)

	k, ok = ByVK(0x7B)
	require.True(t, ok)
	assert.Equal(t, "f12", k.Name)

	_, ok = ByVK(0xFF)
	assert.False(t, ok)
}

func TestIsFunctionKey(t *testing.T) {
	assert.True(t, IsFunctionKey("f1"))
	assert.True(t, IsFunctionKey("F12"))
	assert.False(t, IsFunctionKey("f13"))
	assert.False(t, IsFunctionKey("f"))
	assert.False(t, IsFunctionKey("f01"))
	assert.False(t, IsFunctionKey("esc"))
}

func TestNamesCoverVocabulary(t *testing.T) {
	names := Names()
	assert.Contains(t, names, "space")
	assert.Contains(t, names, "0")
	assert.Contains(t, names, "caps_lock")
	assert.Len(t, names, 26+10+12+len([]string{
		"esc", "-", "=", "backspace", "tab", "[", "]", "enter", "ctrl", ";", "'", "`",
		"shift", "\\", ",", ".", "/", "shift_r", "alt", "space", "caps_lock",
		"ctrl_r", "alt_r", "home", "up", "page_up", "left", "right", "end", "down",
		"page_down", "insert", "delete",
	}))
}
