// Package agent aggregates the per-subsystem configurations into the
// single YAML document the CLI loads at startup.
package agent

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/macshift/macshift/internal/engine"
	"github.com/macshift/macshift/internal/oui"
	"github.com/macshift/macshift/internal/watch"
)

// DefaultLogLevel is the default log level.
const DefaultLogLevel = "info"

// Config is the top-level configuration for macshift. It aggregates
// all subsystem configurations and is populated from a YAML
// configuration file via LoadConfig.
type Config struct {
	// LogLevel is the log level: "debug", "info", "warn", "error".
	// Default: "info"
	LogLevel string `yaml:"log_level"`

	Engine engine.Config `yaml:"engine"`
	Watch  watch.Config  `yaml:"watch"`
	OUI    oui.Config    `yaml:"oui"`
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	c.Engine.ApplyDefaults()
	c.Watch.ApplyDefaults()
	c.OUI.ApplyDefaults()
}

// Validate checks that required fields are set and values are
// acceptable.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("agent: config: invalid log_level %q", c.LogLevel)
	}
	if err := c.Engine.Validate(); err != nil {
		return err
	}
	if err := c.Watch.Validate(); err != nil {
		return err
	}
	if err := c.OUI.Validate(); err != nil {
		return err
	}
	return nil
}

// LoadConfig reads the YAML configuration at path. A missing file is
// not an error: every command works on defaults before any
// configuration has been written.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("agent: config: parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		// Run on defaults.
	default:
		return nil, fmt.Errorf("agent: config: read %s: %w", path, err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
