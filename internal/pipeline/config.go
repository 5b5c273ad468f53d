package pipeline

import (
	"rxplan/internal/forecasting"
	"rxplan/internal/optimization"
	"rxplan/internal/profiling"
	"rxplan/internal/signals"
)

// Config bundles the configuration of every stage.
type Config struct {
	Profiling    profiling.Config    `mapstructure:"profiling" json:"profiling"`
	Signals      signals.Config      `mapstructure:"signals" json:"signals"`
	Forecasting  forecasting.Config  `mapstructure:"forecasting" json:"forecasting"`
	Optimization optimization.Config `mapstructure:"optimization" json:"optimization"`
}

// DefaultConfig returns the documented defaults of every stage.
func DefaultConfig() Config {
	return Config{
		Profiling:    profiling.DefaultConfig(),
		Signals:      signals.DefaultConfig(),
		Forecasting:  forecasting.DefaultConfig(),
		Optimization: optimization.DefaultConfig(),
	}
}

// Validate checks every section; the first invalid field is reported.
func (c Config) Validate() error {
	for _, validate := range []func() error{
		c.Profiling.Validate,
		c.Signals.Validate,
		c.Forecasting.Validate,
		c.Optimization.Validate,
	} {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}
