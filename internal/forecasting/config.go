package forecasting

import "rxplan/internal/diag"

// Config holds every tunable of the forecasting stage.
type Config struct {
	// HorizonDays is the number of forecast days starting at the run start date.
	HorizonDays int `mapstructure:"horizon_days" json:"horizon_days"`
	// ConfidenceK damps confidence for few contributors: n/(n+k).
	ConfidenceK float64 `mapstructure:"confidence_k" json:"confidence_k"`
	// MinContributors below which a medication falls back to its trailing average.
	MinContributors int `mapstructure:"min_contributors" json:"min_contributors"`
	// TrailingWindowDays is the history window of the fallback and the spike baseline.
	TrailingWindowDays int `mapstructure:"trailing_window_days" json:"trailing_window_days"`
	// FallbackConfidenceCeiling caps confidence of fallback rows.
	FallbackConfidenceCeiling float64 `mapstructure:"fallback_confidence_ceiling" json:"fallback_confidence_ceiling"`
	// SpikeThreshold flags rows above this multiple of the trailing baseline.
	SpikeThreshold float64 `mapstructure:"spike_threshold" json:"spike_threshold"`
	// BoundsZScore and the relative uncertainties shape the per-row lower/upper bounds.
	BoundsZScore        float64 `mapstructure:"bounds_z_score" json:"bounds_z_score"`
	PatientUncertainty  float64 `mapstructure:"patient_uncertainty" json:"patient_uncertainty"`
	FallbackUncertainty float64 `mapstructure:"fallback_uncertainty" json:"fallback_uncertainty"`
	// DefaultCategory labels medications whose fills carry no category.
	DefaultCategory string `mapstructure:"default_category" json:"default_category"`
	// Workers bounds per-medication parallelism; 0 uses GOMAXPROCS.
	Workers int `mapstructure:"workers" json:"workers"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		HorizonDays:               30,
		ConfidenceK:               2,
		MinContributors:           3,
		TrailingWindowDays:        90,
		FallbackConfidenceCeiling: 0.5,
		SpikeThreshold:            1.5,
		BoundsZScore:              1.96,
		PatientUncertainty:        0.15,
		FallbackUncertainty:       0.30,
		DefaultCategory:           "other",
	}
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	switch {
	case c.HorizonDays <= 0:
		return diag.Invalid("forecasting.horizon_days", "must be positive, got %d", c.HorizonDays)
	case c.ConfidenceK <= 0:
		return diag.Invalid("forecasting.confidence_k", "must be positive, got %v", c.ConfidenceK)
	case c.MinContributors < 0:
		return diag.Invalid("forecasting.min_contributors", "must not be negative, got %d", c.MinContributors)
	case c.TrailingWindowDays <= 0:
		return diag.Invalid("forecasting.trailing_window_days", "must be positive, got %d", c.TrailingWindowDays)
	case c.FallbackConfidenceCeiling < 0 || c.FallbackConfidenceCeiling > 1:
		return diag.Invalid("forecasting.fallback_confidence_ceiling", "must be within [0,1], got %v", c.FallbackConfidenceCeiling)
	case c.SpikeThreshold <= 0:
		return diag.Invalid("forecasting.spike_threshold", "must be positive, got %v", c.SpikeThreshold)
	case c.BoundsZScore < 0 || c.PatientUncertainty < 0 || c.FallbackUncertainty < 0:
		return diag.Invalid("forecasting.bounds_z_score", "bound parameters must not be negative")
	case c.Workers < 0:
		return diag.Invalid("forecasting.workers", "must not be negative, got %d", c.Workers)
	}
	return nil
}
