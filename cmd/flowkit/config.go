package main

import (
	"fmt"

	"github.com/kbukum/flowkit/api"
	"github.com/kbukum/flowkit/auth"
	"github.com/kbukum/flowkit/config"
	"github.com/kbukum/flowkit/credentials"
	"github.com/kbukum/flowkit/database"
	"github.com/kbukum/flowkit/encryption"
	"github.com/kbukum/flowkit/flow"
	"github.com/kbukum/flowkit/llm"
	"github.com/kbukum/flowkit/media"
	"github.com/kbukum/flowkit/observability"
	"github.com/kbukum/flowkit/ops"
	"github.com/kbukum/flowkit/redis"
	"github.com/kbukum/flowkit/runstore"
	"github.com/kbukum/flowkit/security"
	"github.com/kbukum/flowkit/server"
	"github.com/kbukum/flowkit/task"
	"github.com/kbukum/flowkit/task/httprunner"
	"github.com/kbukum/flowkit/task/localrunner"
)

// Config is the flowkit service configuration.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Server        server.Config        `yaml:"server" mapstructure:"server"`
	Engine        flow.Config          `yaml:"engine" mapstructure:"engine"`
	Tasks         TasksConfig          `yaml:"tasks" mapstructure:"tasks"`
	LLM           LLMConfig            `yaml:"llm" mapstructure:"llm"`
	Ops           ops.Config           `yaml:"ops" mapstructure:"ops"`
	Media         media.Config         `yaml:"media" mapstructure:"media"`
	Credentials   CredentialsConfig    `yaml:"credentials" mapstructure:"credentials"`
	Store         StoreConfig          `yaml:"store" mapstructure:"store"`
	Database      database.Config      `yaml:"database" mapstructure:"database"`
	Redis         redis.Config         `yaml:"redis" mapstructure:"redis"`
	API           api.Config           `yaml:"api" mapstructure:"api"`
	Auth          auth.Config          `yaml:"auth" mapstructure:"auth"`
	Security      security.GuardConfig `yaml:"security" mapstructure:"security"`
	Observability observability.Config `yaml:"observability" mapstructure:"observability"`
}

// TasksConfig selects where tasks run. With Remote.BaseURL empty, tasks
// go to the in-process runner.
type TasksConfig struct {
	task.Config `yaml:",inline" mapstructure:",squash"`

	Remote httprunner.Config  `yaml:"remote" mapstructure:"remote"`
	Local  localrunner.Config `yaml:"local" mapstructure:"local"`
	// Inline runs a task in-process when the runner cannot be reached.
	Inline bool `yaml:"inline" mapstructure:"inline"`
}

// LLMConfig configures the model providers.
type LLMConfig struct {
	Gemini llm.GeminiConfig `yaml:"gemini" mapstructure:"gemini"`
	OpenAI llm.OpenAIConfig `yaml:"openai" mapstructure:"openai"`
}

// CredentialsConfig holds the server-wide provider keys. When an
// encryption key is set, per-user keys are persisted in the database.
type CredentialsConfig struct {
	credentials.Defaults `yaml:",inline" mapstructure:",squash"`

	Encryption encryption.Config `yaml:"encryption" mapstructure:"encryption"`
}

// Persisted reports whether per-user keys live in the database.
func (c *CredentialsConfig) Persisted() bool { return c.Encryption.Key != "" }

// StoreConfig selects the run store.
type StoreConfig struct {
	Backend string              `yaml:"backend" mapstructure:"backend"`
	Redis   runstore.RedisConfig `yaml:"redis" mapstructure:"redis"`
}

// ApplyDefaults fills every section.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "flowkit"
	}
	c.ServiceConfig.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.Tasks.Config.ApplyDefaults()
	c.Tasks.Local.ApplyDefaults()
	c.Ops.ApplyDefaults()
	c.Media.ApplyDefaults()
	c.Credentials.Encryption.ApplyDefaults()
	if c.Store.Backend == "" {
		c.Store.Backend = string(runstore.BackendMemory)
	}
	if c.usesDatabase() {
		c.Database.ApplyDefaults()
	}
	if c.Store.Backend == string(runstore.BackendRedis) {
		c.Redis.Enabled = true
	}
	if c.Redis.Enabled {
		c.Redis.ApplyDefaults()
	}
	c.API.RateLimit.ApplyDefaults()
	c.Auth.ApplyDefaults()
	c.Observability.ApplyDefaults()
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.Tasks.Config.Validate(); err != nil {
		return err
	}
	if _, err := runstore.ParseBackend(c.Store.Backend); err != nil {
		return err
	}
	if c.Credentials.Persisted() {
		if err := c.Credentials.Encryption.Validate(); err != nil {
			return fmt.Errorf("credentials.%w", err)
		}
	}
	if c.usesDatabase() {
		if err := c.Database.Validate(); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if c.Redis.Enabled {
		if err := c.Redis.Validate(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	if c.Engine.MaxParallel < 0 {
		return fmt.Errorf("engine.max_parallel must not be negative (got: %d)", c.Engine.MaxParallel)
	}
	if err := c.API.RateLimit.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	return c.Observability.Validate()
}

func (c *Config) usesDatabase() bool {
	return c.Store.Backend == string(runstore.BackendSQL) || c.Credentials.Persisted()
}
