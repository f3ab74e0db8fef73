// Package config provides configuration management for keyloop.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"keyloop/internal/keys"
)

// Config represents the application configuration
type Config struct {
	Hotkeys  HotkeyConfig   `json:"hotkeys"`
	Recorder RecorderConfig `json:"recorder"`
	Playback PlaybackConfig `json:"playback"`
	Window   WindowConfig   `json:"window"`
	Storage  StorageConfig  `json:"storage"`
	API      APIConfig      `json:"api"`
	Input    InputConfig    `json:"input"`
	Logging  LoggingConfig  `json:"logging"`
}

// HotkeyConfig binds the global start/stop keys used in serve mode
type HotkeyConfig struct {
	// StartKey runs the selected macro (e.g. "f1")
	StartKey string `json:"start_key"`

	// StopKey stops the running macro (e.g. "f2")
	StopKey string `json:"stop_key"`

	// Selected is the macro the start key runs
	Selected string `json:"selected,omitempty"`
}

// RecorderConfig controls macro capture
type RecorderConfig struct {
	StartKey        string `json:"start_key"`
	StopKey         string `json:"stop_key"`
	GapThresholdMs  int    `json:"gap_threshold_ms"`
	HoldThresholdMs int    `json:"hold_threshold_ms"`
}

// PlaybackConfig controls key timing during replay
type PlaybackConfig struct {
	// TapMs is how long a KeyPress holds the key down
	TapMs int `json:"tap_ms"`

	// HoldPollMs bounds cancellation latency while a key is held
	HoldPollMs int `json:"hold_poll_ms"`

	// SleepPollMs bounds cancellation latency during Sleep actions
	SleepPollMs int `json:"sleep_poll_ms"`

	// SettleMs is the pause after each key release
	SettleMs int `json:"settle_ms"`

	// StopTimeoutMs is how long a stop request waits for the worker
	StopTimeoutMs int `json:"stop_timeout_ms"`
}

// WindowConfig selects the target window
type WindowConfig struct {
	// Titles are case-insensitive substrings matched against window titles
	Titles []string `json:"titles"`
}

// StorageConfig locates persisted data. Empty paths resolve under the config directory.
type StorageConfig struct {
	MacroDir  string `json:"macro_dir,omitempty"`
	HistoryDB string `json:"history_db,omitempty"`
}

// APIConfig controls the local HTTP API
type APIConfig struct {
	Enabled bool   `json:"enabled"`
	Port    int    `json:"port"`
	Token   string `json:"token,omitempty"`
}

// InputConfig lists capture devices (Linux evdev paths; empty means auto-detect)
type InputConfig struct {
	Devices []string `json:"devices,omitempty"`
}

// LoggingConfig sets the log level
type LoggingConfig struct {
	Level string `json:"level"`
}

// DefaultConfig returns a new Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Hotkeys: HotkeyConfig{
			StartKey: "f1",
			StopKey:  "f2",
		},
		Recorder: RecorderConfig{
			StartKey:        "f9",
			StopKey:         "esc",
			GapThresholdMs:  100,
			HoldThresholdMs: 200,
		},
		Playback: PlaybackConfig{
			TapMs:         100,
			HoldPollMs:    10,
			SleepPollMs:   100,
			SettleMs:      100,
			StopTimeoutMs: 2000,
		},
		Window: WindowConfig{
			Titles: []string{"battlefield", "bf2042"},
		},
		API: APIConfig{
			Enabled: false,
			Port:    18090,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate checks key names and timings
func (c *Config) Validate() error {
	for field, k := range map[string]string{
		"hotkeys.start_key":  c.Hotkeys.StartKey,
		"hotkeys.stop_key":   c.Hotkeys.StopKey,
		"recorder.start_key": c.Recorder.StartKey,
		"recorder.stop_key":  c.Recorder.StopKey,
	} {
		if !keys.Valid(k) {
			return fmt.Errorf("%s: %w: %q", field, keys.ErrUnknownKey, k)
		}
	}
	if keys.IsFunctionKey(c.Recorder.StopKey) {
		return fmt.Errorf("recorder.stop_key %q must not be a function key", c.Recorder.StopKey)
	}
	if keys.Normalize(c.Recorder.StartKey) == keys.Normalize(c.Recorder.StopKey) {
		return fmt.Errorf("recorder start and stop keys are both %q", c.Recorder.StopKey)
	}
	if keys.Normalize(c.Hotkeys.StartKey) == keys.Normalize(c.Hotkeys.StopKey) {
		return fmt.Errorf("hotkey start and stop keys are both %q", c.Hotkeys.StopKey)
	}
	if c.Recorder.GapThresholdMs <= 0 || c.Recorder.HoldThresholdMs <= 0 {
		return fmt.Errorf("recorder thresholds must be positive")
	}
	p := c.Playback
	if p.TapMs <= 0 || p.HoldPollMs <= 0 || p.SleepPollMs <= 0 || p.StopTimeoutMs <= 0 || p.SettleMs < 0 {
		return fmt.Errorf("playback timings must be positive")
	}
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("api.port %d out of range", c.API.Port)
	}
	return nil
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// GapThreshold is the minimum idle time recorded as a Sleep.
func (c RecorderConfig) GapThreshold() time.Duration { return ms(c.GapThresholdMs) }

// HoldThreshold is the minimum press length recorded as a KeyHold.
func (c RecorderConfig) HoldThreshold() time.Duration { return ms(c.HoldThresholdMs) }

func (c PlaybackConfig) Tap() time.Duration         { return ms(c.TapMs) }
func (c PlaybackConfig) HoldPoll() time.Duration    { return ms(c.HoldPollMs) }
func (c PlaybackConfig) SleepPoll() time.Duration   { return ms(c.SleepPollMs) }
func (c PlaybackConfig) Settle() time.Duration      { return ms(c.SettleMs) }
func (c PlaybackConfig) StopTimeout() time.Duration { return ms(c.StopTimeoutMs) }

// Manager handles loading and saving configuration
type Manager struct {
	mu         sync.Mutex
	configPath string
	config     *Config
	onChanged  func()
}

// NewManager creates a configuration manager for path. An empty path uses
// config.json in the per-user config directory.
func NewManager(path string) (*Manager, error) {
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, "config.json")
	}
	return &Manager{
		configPath: path,
		config:     DefaultConfig(),
	}, nil
}

// Dir returns (and creates) the per-user keyloop directory
func Dir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "keyloop")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		configDir = filepath.Join(appData, "keyloop")
	default:
		base := os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			base = filepath.Join(home, ".config")
		}
		configDir = filepath.Join(base, "keyloop")
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", err
	}
	return configDir, nil
}

// Path returns the config file location
func (m *Manager) Path() string {
	return m.configPath
}

// Load reads the configuration from disk. A missing file keeps the defaults.
func (m *Manager) Load() error {
	m.mu.Lock()
	data, err := os.ReadFile(m.configPath)
	if os.IsNotExist(err) {
		m.mu.Unlock()
		return nil
	}
	if err != nil {
		m.mu.Unlock()
		return err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("parse %s: %w", m.configPath, err)
	}
	if err := cfg.Validate(); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("invalid config %s: %w", m.configPath, err)
	}
	m.config = cfg
	onChanged := m.onChanged
	m.mu.Unlock()

	if onChanged != nil {
		onChanged()
	}
	return nil
}

// Save writes the configuration to disk
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(m.configPath), 0755); err != nil {
		return err
	}

	slog.Debug("saving configuration", "path", m.configPath, "bytes", len(data))
	return os.WriteFile(m.configPath, data, 0644)
}

// Get returns a copy of the current configuration
func (m *Manager) Get() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *m.config
	c.Window.Titles = append([]string(nil), m.config.Window.Titles...)
	c.Input.Devices = append([]string(nil), m.config.Input.Devices...)
	return c
}

// Update applies fn to the configuration and notifies the change callback
func (m *Manager) Update(fn func(*Config)) error {
	m.mu.Lock()
	next := *m.config
	fn(&next)
	if err := next.Validate(); err != nil {
		m.mu.Unlock()
		return err
	}
	m.config = &next
	onChanged := m.onChanged
	m.mu.Unlock()

	if onChanged != nil {
		onChanged()
	}
	return nil
}

// RegisterChangeCallback registers a function to be called when config changes
func (m *Manager) RegisterChangeCallback(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChanged = fn
}

// MacroDir resolves the macro directory
func (m *Manager) MacroDir() string {
	cfg := m.Get()
	if cfg.Storage.MacroDir != "" {
		return cfg.Storage.MacroDir
	}
	return filepath.Join(filepath.Dir(m.configPath), "macros")
}

// HistoryPath resolves the run history database
func (m *Manager) HistoryPath() string {
	cfg := m.Get()
	if cfg.Storage.HistoryDB != "" {
		return cfg.Storage.HistoryDB
	}
	return filepath.Join(filepath.Dir(m.configPath), "history.db")
}
