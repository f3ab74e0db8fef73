package tray

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIconHeader(t *testing.T) {
	ico := icon()
	require.Len(t, ico, 22+40+16*16*4+16*4)

	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(ico[2:]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(ico[4:]))
	assert.Equal(t, byte(16), ico[6])
	assert.Equal(t, uint32(len(ico)-22), binary.LittleEndian.Uint32(ico[14:]))
	assert.Equal(t, uint32(22), binary.LittleEndian.Uint32(ico[18:]))
	assert.Equal(t, uint32(32), binary.LittleEndian.Uint32(ico[22+8:]))

	// every pixel is opaque
	for i := 22 + 40; i < 22+40+16*16*4; i += 4 {
		require.Equal(t, byte(0xFF), ico[i+3])
	}
}

func TestStatusTitle(t *testing.T) {
	assert.Equal(t, "Idle", statusTitle("Farm", false))
	assert.Equal(t, "Running: Farm", statusTitle("Farm", true))
}
