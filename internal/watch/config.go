package watch

import (
	"fmt"
	"time"
)

// DefaultInterval is the default schedule re-evaluation period.
const DefaultInterval = 30 * time.Second

// Config holds the watch loop's tunables.
type Config struct {
	// Interval is how often schedules are re-evaluated.
	// Default: 30s
	Interval time.Duration `yaml:"interval"`

	// Interfaces restricts the loop to the named interfaces. When
	// empty, all interfaces reported by the platform adapter are
	// watched.
	Interfaces []string `yaml:"interfaces"`
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Interval == 0 {
		c.Interval = DefaultInterval
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("watch: config: interval must be positive, got %s", c.Interval)
	}
	return nil
}
