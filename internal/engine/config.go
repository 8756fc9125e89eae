package engine

import (
	"fmt"
	"time"
)

const (
	// DefaultDataDir is where the persisted stores live.
	DefaultDataDir = "/var/lib/macshift"

	// DefaultLockTimeout bounds the wait for a store lock before the
	// operation fails with a busy error.
	DefaultLockTimeout = 5 * time.Second
)

// Config holds the engine's tunables.
type Config struct {
	// DataDir is the directory for the rule store, backup ledger,
	// filter store, and history log.
	// Default: /var/lib/macshift
	DataDir string `yaml:"data_dir"`

	// LockTimeout is the bounded wait for each store's exclusive file
	// lock. Default: 5s
	LockTimeout time.Duration `yaml:"lock_timeout"`
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir
	}
	if c.LockTimeout == 0 {
		c.LockTimeout = DefaultLockTimeout
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("engine: config: data_dir must not be empty")
	}
	if c.LockTimeout <= 0 {
		return fmt.Errorf("engine: config: lock_timeout must be positive, got %s", c.LockTimeout)
	}
	return nil
}
