package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "f1", cfg.Hotkeys.StartKey)
	assert.Equal(t, "f2", cfg.Hotkeys.StopKey)
	assert.Equal(t, 100*time.Millisecond, cfg.Recorder.GapThreshold())
	assert.Equal(t, 200*time.Millisecond, cfg.Recorder.HoldThreshold())
	assert.Equal(t, 2*time.Second, cfg.Playback.StopTimeout())
	assert.Equal(t, 10*time.Millisecond, cfg.Playback.HoldPoll())
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"function stop key": func(c *Config) { c.Recorder.StopKey = "f4" },
		"unknown key":       func(c *Config) { c.Hotkeys.StartKey = "hyper" },
		"same hotkeys":      func(c *Config) { c.Hotkeys.StopKey = "F1" },
		"zero gap":          func(c *Config) { c.Recorder.GapThresholdMs = 0 },
		"zero tap":          func(c *Config) { c.Playback.TapMs = 0 },
		"bad port":          func(c *Config) { c.API.Port = 70000 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestManagerLoadMissingKeepsDefaults(t *testing.T) {
	m, err := NewManager(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)
	require.NoError(t, m.Load())
	assert.Equal(t, *DefaultConfig(), m.Get())
}

func TestManagerSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	m, err := NewManager(path)
	require.NoError(t, err)
	require.NoError(t, m.Update(func(c *Config) {
		c.Hotkeys.Selected = "Farm"
		c.Window.Titles = []string{"minecraft"}
	}))
	require.NoError(t, m.Save())

	m2, err := NewManager(path)
	require.NoError(t, err)
	changed := 0
	m2.RegisterChangeCallback(func() { changed++ })
	require.NoError(t, m2.Load())
	assert.Equal(t, 1, changed)
	assert.Equal(t, "Farm", m2.Get().Hotkeys.Selected)
	assert.Equal(t, []string{"minecraft"}, m2.Get().Window.Titles)
}

func TestManagerLoadPartialFileMergesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"playback": {"tap_ms": 50}}`), 0o644))

	m, err := NewManager(path)
	require.NoError(t, err)
	require.NoError(t, m.Load())
	cfg := m.Get()
	assert.Equal(t, 50, cfg.Playback.TapMs)
	assert.Equal(t, 100, cfg.Playback.SettleMs)
	assert.Equal(t, "esc", cfg.Recorder.StopKey)
}

func TestManagerLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"recorder": {"stop_key": "f3"}}`), 0o644))

	m, err := NewManager(path)
	require.NoError(t, err)
	assert.Error(t, m.Load())
	assert.Equal(t, "esc", m.Get().Recorder.StopKey)
}

func TestUpdateRejectsInvalid(t *testing.T) {
	m, err := NewManager(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)
	assert.Error(t, m.Update(func(c *Config) { c.Playback.TapMs = -1 }))
	assert.Equal(t, 100, m.Get().Playback.TapMs)
}

func TestStoragePathsResolveNextToConfig(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(filepath.Join(dir, "config.json"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "macros"), m.MacroDir())
	assert.Equal(t, filepath.Join(dir, "history.db"), m.HistoryPath())
}
