package config

import (
	"fmt"
	"strings"
	"time"
)

// GetDefaultConfig returns a fully populated default configuration.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults sets defaults for any unspecified fields. Explicit values
// are preserved.
func ApplyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
	cfg.Logging.Level = strings.ToUpper(cfg.Logging.Level)
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stderr"
	}

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	if cfg.API.Port == 0 {
		cfg.API.Port = 9280
	}

	if cfg.Loader.FetchTimeout == 0 {
		cfg.Loader.FetchTimeout = 10 * time.Second
	}
	if cfg.Loader.WindowBehind == 0 {
		cfg.Loader.WindowBehind = 0.2
	}
	if cfg.Loader.WindowAhead == 0 {
		cfg.Loader.WindowAhead = 2.0
	}

	if cfg.Media.Backend == "" {
		cfg.Media.Backend = "gst"
	}
	if cfg.Media.Fake.Duration == 0 {
		cfg.Media.Fake.Duration = 10.0
	}
	if cfg.Media.Fake.FPS == 0 {
		cfg.Media.Fake.FPS = 30.0
	}
}

// Validate checks configuration invariants.
func Validate(cfg *Config) error {
	switch cfg.Logging.Level {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("invalid logging level %q", cfg.Logging.Level)
	}
	switch cfg.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid logging format %q", cfg.Logging.Format)
	}

	if cfg.API.Port < 0 || cfg.API.Port > 65535 {
		return fmt.Errorf("invalid API port %d", cfg.API.Port)
	}

	switch cfg.Media.Backend {
	case "gst", "fake":
	default:
		return fmt.Errorf("invalid media backend %q (want gst or fake)", cfg.Media.Backend)
	}
	if cfg.Media.Fake.Duration < 0 {
		return fmt.Errorf("fake media duration must not be negative")
	}
	if cfg.Media.Fake.FPS <= 0 {
		return fmt.Errorf("fake media fps must be positive")
	}

	if cfg.Loader.WindowAhead <= 0 {
		return fmt.Errorf("loader window_ahead must be positive")
	}
	if cfg.Loader.WindowBehind < 0 {
		return fmt.Errorf("loader window_behind must not be negative")
	}
	return nil
}
