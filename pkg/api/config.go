package api

import "time"

// APIConfig holds status API server configuration.
type APIConfig struct {
	// Enabled controls whether the status API server runs at all.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the TCP port the server listens on.
	Port int `mapstructure:"port" yaml:"port"`

	// ReadTimeout bounds reading a request, WriteTimeout writing a
	// response, IdleTimeout keep-alive idleness.
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`

	// ShutdownTimeout bounds the grace period for in-flight requests
	// during shutdown.
	ShutdownTimeout time.Duration `mapstructure:"-" yaml:"-"`
}

// applyDefaults fills zero fields with working values, so a Server built
// directly (e.g. in tests) behaves the same as one built from config.
func (c *APIConfig) applyDefaults() {
	if c.Port == 0 {
		c.Port = 9280
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60 * time.Second
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
}
