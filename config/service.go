package config

import (
	"fmt"
	"slices"

	"github.com/kbukum/flowkit/logger"
)

var environments = []string{"development", "staging", "production"}

// ServiceConfig is the part of every binary's configuration the bootstrap
// app reads. Binaries embed it with `mapstructure:",squash"` so name,
// environment and logging stay top-level keys.
type ServiceConfig struct {
	Name        string `yaml:"name" mapstructure:"name"`
	Environment string `yaml:"environment" mapstructure:"environment"`
	// Version defaults to the build's version when empty.
	Version string `yaml:"version" mapstructure:"version"`
	// Debug lowers the default log level to debug. It is on in development.
	Debug   bool          `yaml:"debug" mapstructure:"debug"`
	Logging logger.Config `yaml:"logging" mapstructure:"logging"`
}

// GetServiceConfig is promoted to embedding structs, which then satisfy
// bootstrap.Config.
func (c *ServiceConfig) GetServiceConfig() *ServiceConfig { return c }

// ApplyDefaults derives logging defaults from the environment: debug
// logs in development, JSON logs in production. Explicit logging
// settings win.
func (c *ServiceConfig) ApplyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Environment == "development" {
		c.Debug = true
	}
	if c.Debug && c.Logging.Level == "" {
		c.Logging.Level = "debug"
	}
	if c.Environment == "production" && c.Logging.Format == "" {
		c.Logging.Format = logger.FormatJSON
	}
	c.Logging.ApplyDefaults()
}

// Validate checks the name, environment and logging settings.
func (c *ServiceConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("config.name is required")
	}
	if !slices.Contains(environments, c.Environment) {
		return fmt.Errorf("config.environment must be one of %v (got: %s)", environments, c.Environment)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("config.logging: %w", err)
	}
	return nil
}
