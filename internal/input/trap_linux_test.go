//go:build linux

package input

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTranslate(t *testing.T) {
	ev, ok := translate(inputEvent{Sec: 10, Usec: 500, Type: evKey, Code: 17, Value: keyDown})
	assert.True(t, ok)
	assert.Equal(t, "w", ev.Key)
	assert.True(t, ev.Down)
	assert.Equal(t, int64(10_000_500_000), ev.Time.UnixNano())

	ev, ok = translate(inputEvent{Type: evKey, Code: 103, Value: keyUp})
	assert.True(t, ok)
	assert.Equal(t, "up", ev.Key)
	assert.False(t, ev.Down)

	_, ok = translate(inputEvent{Type: evKey, Code: 17, Value: keyRepeat})
	assert.False(t, ok, "auto-repeat")
	_, ok = translate(inputEvent{Type: evSyn, Code: synReport})
	assert.False(t, ok, "sync")
	_, ok = translate(inputEvent{Type: evKey, Code: 0x2FF, Value: keyDown})
	assert.False(t, ok, "unknown code")
}
