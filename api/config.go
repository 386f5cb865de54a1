package api

import (
	"fmt"
	"time"
)

// RateLimitConfig sets the per-IP token buckets of the mutating routes.
type RateLimitConfig struct {
	ExecuteLimit  int           `yaml:"execute_limit" mapstructure:"execute_limit"`
	ExecuteWindow time.Duration `yaml:"execute_window" mapstructure:"execute_window"`
	TaskLimit     int           `yaml:"task_limit" mapstructure:"task_limit"`
	TaskWindow    time.Duration `yaml:"task_window" mapstructure:"task_window"`
}

// ApplyDefaults sets 30 executions and 10 task submissions per 10 seconds.
func (c *RateLimitConfig) ApplyDefaults() {
	if c.ExecuteLimit == 0 {
		c.ExecuteLimit = 30
	}
	if c.ExecuteWindow == 0 {
		c.ExecuteWindow = 10 * time.Second
	}
	if c.TaskLimit == 0 {
		c.TaskLimit = 10
	}
	if c.TaskWindow == 0 {
		c.TaskWindow = 10 * time.Second
	}
}

// Validate rejects negative limits and windows.
func (c *RateLimitConfig) Validate() error {
	if c.ExecuteLimit < 0 || c.TaskLimit < 0 {
		return fmt.Errorf("rate_limit: limits must be positive")
	}
	if c.ExecuteWindow < 0 || c.TaskWindow < 0 {
		return fmt.Errorf("rate_limit: windows must be positive")
	}
	return nil
}

// Config configures the handlers.
type Config struct {
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	// ServiceSubject is the token subject of trusted peers. Task
	// submissions from it run as the caller named in the X-Caller-ID
	// header and may poll any task.
	ServiceSubject string `yaml:"service_subject" mapstructure:"service_subject"`
}
