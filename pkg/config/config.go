// Package config loads and validates video-play configuration.
//
// Configuration sources, in order of precedence:
//  1. Environment variables (VIDEOPLAY_*)
//  2. Configuration file (YAML)
//  3. Default values
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/egnor/video-play/internal/logger"
	"github.com/egnor/video-play/pkg/api"
)

// Config is the video-play configuration.
type Config struct {
	// Logging controls log output behavior.
	Logging logger.Config `mapstructure:"logging" yaml:"logging"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	// Metrics controls Prometheus metrics collection.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// API configures the status API server.
	API api.APIConfig `mapstructure:"api" yaml:"api"`

	// Loader tunes frame loader instances.
	Loader LoaderConfig `mapstructure:"loader" yaml:"loader"`

	// Media selects and configures the decoder backend.
	Media MediaConfig `mapstructure:"media" yaml:"media"`
}

// MetricsConfig controls Prometheus metrics collection.
type MetricsConfig struct {
	// Enabled turns on the metrics registry and the /metrics endpoint.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// LoaderConfig tunes frame loader instances.
type LoaderConfig struct {
	// FetchTimeout bounds each seek+decode+import sequence. Zero disables
	// the bound.
	FetchTimeout time.Duration `mapstructure:"fetch_timeout" yaml:"fetch_timeout"`

	// WindowBehind and WindowAhead size the sliding request window the
	// play command keeps loaded around the playhead, in seconds.
	WindowBehind float64 `mapstructure:"window_behind" yaml:"window_behind"`
	WindowAhead  float64 `mapstructure:"window_ahead" yaml:"window_ahead"`
}

// MediaConfig selects the decoder backend.
type MediaConfig struct {
	// Backend is "gst" (GStreamer) or "fake" (scripted synthetic source).
	Backend string `mapstructure:"backend" yaml:"backend"`

	// Fake configures the synthetic source when Backend is "fake".
	Fake FakeMediaConfig `mapstructure:"fake" yaml:"fake"`
}

// FakeMediaConfig configures the synthetic media source.
type FakeMediaConfig struct {
	// Duration is the content length in seconds.
	Duration float64 `mapstructure:"duration" yaml:"duration"`

	// FPS is the synthesized frame rate.
	FPS float64 `mapstructure:"fps" yaml:"fps"`
}

// Load loads configuration from file, environment, and defaults.
// An empty configPath uses the default location; a missing file yields the
// default configuration.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}
	if !found {
		cfg := GetDefaultConfig()
		return cfg, nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// SaveConfig writes the configuration as YAML.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// setupViper configures environment variables and config file lookup.
// Environment variables use the VIDEOPLAY_ prefix with underscores, e.g.
// VIDEOPLAY_LOGGING_LEVEL=DEBUG.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("VIDEOPLAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(GetConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the config file if present; a missing file is not
// an error.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// durationDecodeHook parses strings like "500ms" into time.Duration.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if t != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch value := data.(type) {
		case string:
			return time.ParseDuration(value)
		case int, int64, float64:
			return data, nil
		default:
			return data, nil
		}
	}
}

// GetConfigDir returns the configuration directory, honoring
// $XDG_CONFIG_HOME.
func GetConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "videoplay")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "videoplay")
}

// GetDefaultConfigPath returns the default config file location.
func GetDefaultConfigPath() string {
	return filepath.Join(GetConfigDir(), "config.yaml")
}

// DefaultConfigExists reports whether a config file exists at the default
// location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}
