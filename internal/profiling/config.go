package profiling

import "rxplan/internal/diag"

// Config holds every tunable of the profiling stage.
type Config struct {
	// Consistency score at or above which a patient is highly_regular.
	HighlyRegularThreshold float64 `mapstructure:"highly_regular_threshold" json:"highly_regular_threshold"`
	// Consistency score at or above which a patient is regular.
	RegularThreshold float64 `mapstructure:"regular_threshold" json:"regular_threshold"`
	// ZScore scales the standard deviation into the prediction interval half-width (1.96 = 95%).
	ZScore float64 `mapstructure:"z_score" json:"z_score"`
	// GraceDays past the expected fill before a patient counts as overdue.
	GraceDays int `mapstructure:"grace_days" json:"grace_days"`
	// OverdueWeight and ConsistencyWeight blend the two lapse-risk terms.
	// Equal weighting is a policy default, not a derived constant.
	OverdueWeight     float64 `mapstructure:"overdue_weight" json:"overdue_weight"`
	ConsistencyWeight float64 `mapstructure:"consistency_weight" json:"consistency_weight"`
	// SingleIntervalStdDevDays stands in for the undefined sample deviation of a two-fill history.
	SingleIntervalStdDevDays float64 `mapstructure:"single_interval_stddev_days" json:"single_interval_stddev_days"`
	// Histories with at least MediumHistoryFills (LongHistoryFills) fills raise the prediction
	// confidence by the matching boost, up to the matching cap.
	MediumHistoryFills int     `mapstructure:"medium_history_fills" json:"medium_history_fills"`
	MediumHistoryBoost float64 `mapstructure:"medium_history_boost" json:"medium_history_boost"`
	MediumHistoryCap   float64 `mapstructure:"medium_history_cap" json:"medium_history_cap"`
	LongHistoryFills   int     `mapstructure:"long_history_fills" json:"long_history_fills"`
	LongHistoryBoost   float64 `mapstructure:"long_history_boost" json:"long_history_boost"`
	LongHistoryCap     float64 `mapstructure:"long_history_cap" json:"long_history_cap"`
	// DueSoonDays is the look-ahead used for the due-soon count.
	DueSoonDays int `mapstructure:"due_soon_days" json:"due_soon_days"`
	// HighRiskThreshold is the lapse risk at or above which a profile counts as high risk.
	HighRiskThreshold float64 `mapstructure:"high_risk_threshold" json:"high_risk_threshold"`
	// Workers bounds per-group parallelism; 0 uses GOMAXPROCS.
	Workers int `mapstructure:"workers" json:"workers"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		HighlyRegularThreshold:   0.8,
		RegularThreshold:         0.5,
		ZScore:                   1.96,
		GraceDays:                5,
		OverdueWeight:            0.5,
		ConsistencyWeight:        0.5,
		SingleIntervalStdDevDays: 15,
		MediumHistoryFills:       6,
		MediumHistoryBoost:       0.05,
		MediumHistoryCap:         0.90,
		LongHistoryFills:         10,
		LongHistoryBoost:         0.10,
		LongHistoryCap:           0.95,
		DueSoonDays:              7,
		HighRiskThreshold:        0.5,
	}
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	switch {
	case c.RegularThreshold < 0 || c.RegularThreshold > 1:
		return diag.Invalid("profiling.regular_threshold", "must be within [0,1], got %v", c.RegularThreshold)
	case c.HighlyRegularThreshold < 0 || c.HighlyRegularThreshold > 1:
		return diag.Invalid("profiling.highly_regular_threshold", "must be within [0,1], got %v", c.HighlyRegularThreshold)
	case c.HighlyRegularThreshold < c.RegularThreshold:
		return diag.Invalid("profiling.highly_regular_threshold", "must not be below regular_threshold (%v < %v)", c.HighlyRegularThreshold, c.RegularThreshold)
	case c.ZScore < 0:
		return diag.Invalid("profiling.z_score", "must not be negative, got %v", c.ZScore)
	case c.GraceDays < 0:
		return diag.Invalid("profiling.grace_days", "must not be negative, got %d", c.GraceDays)
	case c.OverdueWeight < 0 || c.ConsistencyWeight < 0:
		return diag.Invalid("profiling.overdue_weight", "risk weights must not be negative")
	case c.OverdueWeight+c.ConsistencyWeight == 0:
		return diag.Invalid("profiling.overdue_weight", "risk weights must not both be zero")
	case c.SingleIntervalStdDevDays < 0:
		return diag.Invalid("profiling.single_interval_stddev_days", "must not be negative, got %v", c.SingleIntervalStdDevDays)
	case c.MediumHistoryFills < 0:
		return diag.Invalid("profiling.medium_history_fills", "must not be negative, got %d", c.MediumHistoryFills)
	case c.LongHistoryFills < c.MediumHistoryFills:
		return diag.Invalid("profiling.long_history_fills", "must not be below medium_history_fills (%d < %d)", c.LongHistoryFills, c.MediumHistoryFills)
	case c.MediumHistoryBoost < 0 || c.LongHistoryBoost < 0:
		return diag.Invalid("profiling.medium_history_boost", "confidence boosts must not be negative")
	case c.MediumHistoryCap < 0 || c.MediumHistoryCap > 1:
		return diag.Invalid("profiling.medium_history_cap", "must be within [0,1], got %v", c.MediumHistoryCap)
	case c.LongHistoryCap < 0 || c.LongHistoryCap > 1:
		return diag.Invalid("profiling.long_history_cap", "must be within [0,1], got %v", c.LongHistoryCap)
	case c.DueSoonDays < 0:
		return diag.Invalid("profiling.due_soon_days", "must not be negative, got %d", c.DueSoonDays)
	case c.HighRiskThreshold < 0 || c.HighRiskThreshold > 1:
		return diag.Invalid("profiling.high_risk_threshold", "must be within [0,1], got %v", c.HighRiskThreshold)
	case c.Workers < 0:
		return diag.Invalid("profiling.workers", "must not be negative, got %d", c.Workers)
	}
	return nil
}
