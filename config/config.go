// Package config loads the daemon configuration from a TOML file with
// MEMO_* environment overrides. The pipeline treats the result as
// immutable for its lifetime.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

type Config struct {
	// InputDevice is the dedicated button device, e.g. /dev/input/by-id/...
	InputDevice string `toml:"input_device"`

	// AudioDevice is a capture device name, or "default".
	AudioDevice string `toml:"audio_device"`

	// OutputDir receives the finished WAV files.
	OutputDir string `toml:"output_dir"`

	// WhisperURL is the transcription endpoint.
	WhisperURL string `toml:"whisper_url"`

	// NtfyTopic is the notification endpoint.
	NtfyTopic string `toml:"ntfy_topic"`
}

// Load reads the config file at path, or the default location when path is
// empty, applies environment overrides, and ensures the output directory
// exists.
func Load(path string) (*Config, error) {
	if path == "" {
		path = defaultPath()
	}

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file not found at %s (create it or pass -config)", path)
	}

	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	applyEnvOverrides(&cfg)

	if cfg.AudioDevice == "" {
		cfg.AudioDevice = "default"
	}
	if cfg.InputDevice == "" {
		return nil, fmt.Errorf("input_device is not set in %s", path)
	}
	if cfg.OutputDir == "" {
		return nil, fmt.Errorf("output_dir is not set in %s", path)
	}
	if cfg.WhisperURL == "" {
		return nil, fmt.Errorf("whisper_url is not set in %s", path)
	}
	if cfg.NtfyTopic == "" {
		return nil, fmt.Errorf("ntfy_topic is not set in %s", path)
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory %s: %w", cfg.OutputDir, err)
	}

	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MEMO_INPUT_DEVICE"); v != "" {
		cfg.InputDevice = v
	}
	if v := os.Getenv("MEMO_AUDIO_DEVICE"); v != "" {
		cfg.AudioDevice = v
	}
	if v := os.Getenv("MEMO_OUTPUT_DIR"); v != "" {
		cfg.OutputDir = v
	}
	if v := os.Getenv("MEMO_WHISPER_URL"); v != "" {
		cfg.WhisperURL = v
	}
	if v := os.Getenv("MEMO_NTFY_TOPIC"); v != "" {
		cfg.NtfyTopic = v
	}
}

// defaultPath is ~/.config/memod/config.toml, honoring XDG_CONFIG_HOME.
func defaultPath() string {
	var configDir string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		configDir = filepath.Join(xdg, "memod")
	} else if home, err := os.UserHomeDir(); err == nil {
		configDir = filepath.Join(home, ".config", "memod")
	} else {
		configDir = "."
	}
	return filepath.Join(configDir, "config.toml")
}
