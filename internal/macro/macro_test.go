package macro

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() Macro {
	return Macro{
		Name:        "farm",
		Description: "walk and jump",
		Actions: []Action{
			KeyHold{Key: "w", Seconds: 1.2},
			Sleep{Seconds: 0.5},
			KeyPress{Key: "space"},
			KeyPress{Key: "up"},
		},
		Loop: Times(3),
	}
}

func TestRecordRoundTrip(t *testing.T) {
	for _, loop := range []LoopPolicy{Once(), Infinite(), Times(1), Times(7)} {
		m := sample().WithLoop(loop)
		got, err := FromRecord(ToRecord(m))
		require.NoError(t, err)
		assert.Equal(t, m, got, loop.String())
	}
}

func TestRecordJSONShape(t *testing.T) {
	data, err := json.Marshal(ToRecord(sample()))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"name": "farm",
		"description": "walk and jump",
		"actions": [
			{"type": "keyhold", "key": "w", "duration": 1.2},
			{"type": "sleep", "delay": 0.5},
			{"type": "keypress", "key": "space"},
			{"type": "keypress", "key": "up"}
		],
		"loop": true,
		"loop_count": 3
	}`, string(data))
}

func TestOnceStoresLoopFalse(t *testing.T) {
	r := ToRecord(sample().WithLoop(Once()))
	require.NotNil(t, r.Loop)
	assert.False(t, *r.Loop)
	assert.Zero(t, r.LoopCount)
}

func TestFromRecordLoopDefaults(t *testing.T) {
	var r Record
	require.NoError(t, json.Unmarshal([]byte(`{"name":"x","actions":[{"type":"keypress","key":"a"}]}`), &r))
	m, err := FromRecord(r)
	require.NoError(t, err)
	assert.Equal(t, Infinite(), m.Loop)

	require.NoError(t, json.Unmarshal([]byte(`{"name":"x","actions":[],"loop":false,"loop_count":5}`), &r))
	m, err = FromRecord(r)
	require.NoError(t, err)
	assert.Equal(t, Once(), m.Loop)
	n, bounded := m.Loop.MaxIterations()
	assert.True(t, bounded)
	assert.Equal(t, 1, n)
}

func TestFromRecordNormalizesKeys(t *testing.T) {
	m, err := FromRecord(Record{Name: "x", Actions: []ActionRecord{{Type: KindKeyPress, Key: "Escape"}}})
	require.NoError(t, err)
	assert.Equal(t, KeyPress{Key: "esc"}, m.Actions[0])
}

func TestFromRecordRejectsMalformed(t *testing.T) {
	cases := map[string]Record{
		"unknown tag":   {Name: "x", Actions: []ActionRecord{{Type: "mouseclick", Key: "a"}}},
		"empty key":     {Name: "x", Actions: []ActionRecord{{Type: KindKeyPress}}},
		"unknown key":   {Name: "x", Actions: []ActionRecord{{Type: KindKeyPress, Key: "hyper"}}},
		"zero hold":     {Name: "x", Actions: []ActionRecord{{Type: KindKeyHold, Key: "w"}}},
		"negative wait": {Name: "x", Actions: []ActionRecord{{Type: KindSleep, Delay: -1}}},
		"empty name":    {Actions: []ActionRecord{{Type: KindKeyPress, Key: "a"}}},
		"bad count":     {Name: "x", LoopCount: -2},
	}
	for name, r := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromRecord(r)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformed))
			assert.True(t, IsMalformed(err))
		})
	}
}

func TestMalformedErrorMessage(t *testing.T) {
	_, err := FromRecord(Record{Name: "x", Actions: []ActionRecord{
		{Type: KindKeyPress, Key: "a"},
		{Type: "scroll"},
	}})
	assert.EqualError(t, err, `malformed macro "x": step 2: unknown action type "scroll"`)
}

func TestValidate(t *testing.T) {
	require.NoError(t, sample().Validate())

	bad := sample()
	bad.Actions = append(bad.Actions, KeyHold{Key: "w"})
	assert.ErrorIs(t, bad.Validate(), ErrMalformed)

	assert.ErrorIs(t, Macro{}.Validate(), ErrMalformed)
}

func TestWithLoopDoesNotAlias(t *testing.T) {
	m := sample()
	c := m.WithLoop(Once())
	c.Actions[0] = KeyPress{Key: "q"}
	assert.Equal(t, KeyHold{Key: "w", Seconds: 1.2}, m.Actions[0])
	assert.Equal(t, Times(3), m.Loop)
}

func TestSameNameIsExact(t *testing.T) {
	assert.True(t, SameName("Farm", "Farm"))
	assert.False(t, SameName("Farm", "farm"))
}

func TestLoopPolicy(t *testing.T) {
	n, ok := Infinite().MaxIterations()
	assert.False(t, ok)
	assert.Zero(t, n)

	n, ok = Times(4).MaxIterations()
	assert.True(t, ok)
	assert.Equal(t, 4, n)

	assert.Equal(t, Times(1), Times(0))
	assert.Equal(t, LoopPolicy{Mode: LoopOnce, Count: 9}.String(), "once")
}

func TestParseLoop(t *testing.T) {
	for in, want := range map[string]LoopPolicy{
		"once":     Once(),
		"Infinite": Infinite(),
		"forever":  Infinite(),
		"12":       Times(12),
	} {
		got, err := ParseLoop(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLoop("0")
	assert.Error(t, err)
	_, err = ParseLoop("sometimes")
	assert.Error(t, err)
}

func TestRoundAndSeconds(t *testing.T) {
	assert.Equal(t, 1.24, Round(1.2351))
	assert.Equal(t, 0.01, Round(0.001))
	assert.Equal(t, 1500*time.Millisecond, Sleep{Seconds: 1.5}.Duration())
	assert.Equal(t, 15700*time.Millisecond, KeyHold{Key: "w", Seconds: 15.7}.Duration())
}

func TestKeyOf(t *testing.T) {
	assert.Equal(t, "w", KeyOf(KeyHold{Key: "w", Seconds: 1}))
	assert.Equal(t, "", KeyOf(Sleep{Seconds: 1}))
}
