package app

import (
	"fmt"
	"time"

	coreconfig "github.com/m3rciful/todobot/core/config"
	coredatabase "github.com/m3rciful/todobot/core/database"
)

// SessionConfig controls conversation session expiry.
type SessionConfig struct {
	// IdleTimeout drops a half-finished flow after this much inactivity; defaults to 15m.
	IdleTimeout time.Duration `yaml:"idle_timeout" envconfig:"SESSION_IDLE_TIMEOUT"`
	// SweepInterval is how often expired sessions are removed from memory.
	SweepInterval time.Duration `yaml:"sweep_interval" envconfig:"SESSION_SWEEP_INTERVAL"`
}

// OpsConfig controls the health and metrics HTTP server.
type OpsConfig struct {
	// Listen is the server address, e.g. ":9090"; empty disables the server.
	Listen string `yaml:"listen" envconfig:"OPS_LISTEN"`
}

// Config is the todobot configuration: the core sections plus database, session and ops.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
	Session  SessionConfig       `yaml:"session"`
	Ops      OpsConfig           `yaml:"ops"`
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	return &c.Config
}

const (
	defaultIdleTimeout   = 15 * time.Minute
	defaultSweepInterval = time.Minute
)

// LoadConfig reads path, overlays the environment and applies defaults.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.LoadInto(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates every section and fills defaults.
func (c *Config) Normalize() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}
	if err := c.Database.Normalize(); err != nil {
		return err
	}
	switch {
	case c.Session.IdleTimeout < 0:
		return fmt.Errorf("session.idle_timeout must be >= 0")
	case c.Session.IdleTimeout == 0:
		c.Session.IdleTimeout = defaultIdleTimeout
	}
	if c.Session.SweepInterval <= 0 {
		c.Session.SweepInterval = defaultSweepInterval
	}
	return nil
}
