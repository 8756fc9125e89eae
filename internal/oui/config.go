package oui

import "fmt"

// Config holds the registry tunables.
type Config struct {
	// RegistryURL is where Update downloads the IEEE OUI list.
	// Default: the IEEE published location.
	RegistryURL string `yaml:"registry_url"`
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.RegistryURL == "" {
		c.RegistryURL = DefaultRegistryURL
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.RegistryURL == "" {
		return fmt.Errorf("oui: config: registry_url must not be empty")
	}
	return nil
}
