package observability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kbukum/flowkit/logger"
)

// Config controls OTLP export. Export is off unless Enabled is set.
type Config struct {
	Enabled        bool          `yaml:"enabled" mapstructure:"enabled"`
	Endpoint       string        `yaml:"endpoint" mapstructure:"endpoint"`
	Insecure       bool          `yaml:"insecure" mapstructure:"insecure"`
	SampleRate     float64       `yaml:"sample_rate" mapstructure:"sample_rate"`
	MetricInterval time.Duration `yaml:"metric_interval" mapstructure:"metric_interval"`
	Environment    string        `yaml:"environment" mapstructure:"environment"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = "localhost:4318"
	}
	if c.SampleRate == 0 {
		c.SampleRate = 1.0
	}
	if c.MetricInterval == 0 {
		c.MetricInterval = 15 * time.Second
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return fmt.Errorf("observability.sample_rate must be within [0,1] (got: %v)", c.SampleRate)
	}
	return nil
}

// Setup installs trace context propagation and, when enabled, the
// global tracer and meter providers. The returned function flushes both.
func Setup(ctx context.Context, cfg Config, service, version string, log *logger.Logger) (func(context.Context) error, error) {
	installPropagator()
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	target := Target{
		Service:     service,
		Version:     version,
		Environment: cfg.Environment,
		Endpoint:    cfg.Endpoint,
		Insecure:    cfg.Insecure,
	}
	tp, err := InitTracer(ctx, target, cfg.SampleRate, log)
	if err != nil {
		return nil, err
	}
	mp, err := InitMeter(ctx, target, cfg.MetricInterval, log)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, err
	}
	return func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}, nil
}
