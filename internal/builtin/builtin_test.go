package builtin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keyloop/internal/macro"
)

func TestLoadBundledMacros(t *testing.T) {
	ms, err := Load()
	require.NoError(t, err)
	require.Len(t, ms, 3)

	names := []string{ms[0].Name, ms[1].Name, ms[2].Name}
	assert.Equal(t, []string{
		"Battlefield 6 Siege of Cairo AFK",
		"Battlefield 6 Liberation Peak AFK",
		"Battlefield 6 Space Bar AFK",
	}, names)

	for _, m := range ms {
		assert.True(t, m.BuiltIn, m.Name)
		assert.Equal(t, macro.Infinite(), m.Loop, m.Name)
		require.NoError(t, m.Validate(), m.Name)
	}
}

func TestSiegeOfCairoSequence(t *testing.T) {
	m := MustLoad()[0]
	require.Len(t, m.Actions, 12)
	assert.Equal(t, macro.KeyHold{Key: "w", Seconds: 15.70}, m.Actions[0])
	assert.Equal(t, macro.KeyHold{Key: "s", Seconds: 16.11}, m.Actions[6])
	assert.Equal(t, macro.Sleep{Seconds: 30}, m.Actions[11])
}

func TestTapSeriesExpansion(t *testing.T) {
	ms := MustLoad()

	peak := ms[1]
	// hold, 4 taps with 3 gaps, hold, 4 taps with 3 gaps
	assert.Len(t, peak.Actions, 1+7+1+7)
	assert.Equal(t, macro.Sleep{Seconds: 30}, peak.Actions[2])

	space := ms[2]
	assert.Len(t, space.Actions, 120+119)
	assert.Equal(t, macro.KeyPress{Key: "space"}, space.Actions[len(space.Actions)-1])
}
