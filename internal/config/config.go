package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/tapdeck/tapdeck/internal/backend"
)

// Backend preference values accepted in the config file.
const (
	BackendNativeTap     = "native-tap"
	BackendScreenCapture = "screencapture"
	BackendDevice        = "device"
)

type Config struct {
	LogLevel           string      `json:"log_level"`
	Backend            string      `json:"backend"` // "native-tap", "screencapture" or "device"
	FilteredApps       []string    `json:"filtered_apps"`
	FallbackUnfiltered bool        `json:"fallback_unfiltered"`
	AcquireTimeoutMS   int         `json:"acquire_timeout_ms"`
	Audio              AudioConfig `json:"audio"`
}

type AudioConfig struct {
	DeviceID   string `json:"device_id"`
	SampleRate int    `json:"sample_rate"`
}

// Load reads the config from disk or returns defaults
func Load() (*Config, error) {
	path := configPath()

	// Default config
	cfg := &Config{
		LogLevel:           "info",
		Backend:            BackendNativeTap,
		FilteredApps:       nil,
		FallbackUnfiltered: false,
		AcquireTimeoutMS:   10000,
		Audio: AudioConfig{
			DeviceID:   "",
			SampleRate: 16000,
		},
	}

	// Load existing config if it exists
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	path := configPath()

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// BackendKind maps the configured preference onto a backend kind.
func (c *Config) BackendKind() (backend.Kind, error) {
	switch c.Backend {
	case BackendNativeTap, "":
		return backend.NativeProcessTap, nil
	case BackendScreenCapture:
		return backend.ScreenCaptureSystemAudio, nil
	case BackendDevice:
		return backend.GenericDeviceCapture, nil
	default:
		return backend.GenericDeviceCapture, fmt.Errorf("unknown backend preference: %q", c.Backend)
	}
}

// configPath returns the platform-specific config file path
func configPath() string {
	var base string

	switch runtime.GOOS {
	case "darwin":
		base = os.Getenv("HOME") + "/Library/Application Support"
	case "windows":
		base = os.Getenv("APPDATA")
	default: // linux
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = xdg
		} else {
			base = os.Getenv("HOME") + "/.config"
		}
	}

	return filepath.Join(base, "tapdeck", "config.json")
}

// RecordingsPath returns the platform-specific default recordings directory
func RecordingsPath() string {
	var base string

	switch runtime.GOOS {
	case "darwin":
		base = os.Getenv("HOME") + "/Library/Application Support"
	case "windows":
		base = os.Getenv("LOCALAPPDATA")
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			base = xdg
		} else {
			base = os.Getenv("HOME") + "/.local/share"
		}
	}

	return filepath.Join(base, "tapdeck", "recordings")
}
