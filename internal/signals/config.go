package signals

import "rxplan/internal/diag"

// Config holds every anchor and threshold of the signal stage.
type Config struct {
	// Categories always present in the multiplier table, even without signals.
	Categories                 []string `mapstructure:"categories" json:"categories"`
	FluSensitiveCategories     []string `mapstructure:"flu_sensitive_categories" json:"flu_sensitive_categories"`
	WeatherSensitiveCategories []string `mapstructure:"weather_sensitive_categories" json:"weather_sensitive_categories"`
	EarlyRefillCategories      []string `mapstructure:"early_refill_categories" json:"early_refill_categories"`

	// FluLevelBase holds the base multiplier of flu levels 1 through 10.
	FluLevelBase    []float64          `mapstructure:"flu_level_base" json:"flu_level_base"`
	FluTrendFactors map[string]float64 `mapstructure:"flu_trend_factors" json:"flu_trend_factors"`
	// FluQuietLevel is the highest level treated as baseline; trends are ignored at or below it.
	FluQuietLevel int     `mapstructure:"flu_quiet_level" json:"flu_quiet_level"`
	FluCeiling    float64 `mapstructure:"flu_ceiling" json:"flu_ceiling"`
	// FluAlertLevel raises a flu activity alert at or above this level.
	FluAlertLevel int `mapstructure:"flu_alert_level" json:"flu_alert_level"`
	// FluHighAlertLevel raises the flu alert to high severity at or above this level.
	FluHighAlertLevel int `mapstructure:"flu_high_alert_level" json:"flu_high_alert_level"`

	ColdThresholdF     float64 `mapstructure:"cold_threshold_f" json:"cold_threshold_f"`
	FreezingThresholdF float64 `mapstructure:"freezing_threshold_f" json:"freezing_threshold_f"`
	ColdBoost          float64 `mapstructure:"cold_boost" json:"cold_boost"`
	FreezingBoost      float64 `mapstructure:"freezing_boost" json:"freezing_boost"`
	ColdSnapBoost      float64 `mapstructure:"cold_snap_boost" json:"cold_snap_boost"`
	HumidityThreshold  float64 `mapstructure:"humidity_threshold" json:"humidity_threshold"`
	HumidityBoost      float64 `mapstructure:"humidity_boost" json:"humidity_boost"`
	WeatherCeiling     float64 `mapstructure:"weather_ceiling" json:"weather_ceiling"`

	EventMultiplier         float64 `mapstructure:"event_multiplier" json:"event_multiplier"`
	IncreaseEventMultiplier float64 `mapstructure:"increase_event_multiplier" json:"increase_event_multiplier"`
	EventLookaheadDays      int     `mapstructure:"event_lookahead_days" json:"event_lookahead_days"`

	CombinedCeiling float64 `mapstructure:"combined_ceiling" json:"combined_ceiling"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		Categories: []string{
			"antiviral", "cardiovascular", "chronic", "cold_flu",
			"diabetes", "gastrointestinal", "respiratory",
		},
		FluSensitiveCategories:     []string{"antiviral", "cold_flu", "respiratory"},
		WeatherSensitiveCategories: []string{"cold_flu", "respiratory"},
		EarlyRefillCategories:      []string{"cardiovascular", "chronic", "diabetes"},

		FluLevelBase: []float64{1.0, 1.0, 1.0, 1.15, 1.30, 1.45, 1.65, 1.85, 2.05, 2.25},
		FluTrendFactors: map[string]float64{
			string(RapidIncrease): 1.2,
			string(Increasing):    1.1,
			string(Stable):        1.0,
			string(Decreasing):    0.95,
			string(RapidDecrease): 0.9,
		},
		FluQuietLevel:     3,
		FluCeiling:        2.25,
		FluAlertLevel:     6,
		FluHighAlertLevel: 8,

		ColdThresholdF:     45,
		FreezingThresholdF: 32,
		ColdBoost:          0.15,
		FreezingBoost:      0.30,
		ColdSnapBoost:      0.20,
		HumidityThreshold:  80,
		HumidityBoost:      0.05,
		WeatherCeiling:     1.5,

		EventMultiplier:         1.2,
		IncreaseEventMultiplier: 1.25,
		EventLookaheadDays:      7,

		CombinedCeiling: 3.0,
	}
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	if len(c.FluLevelBase) != 10 {
		return diag.Invalid("signals.flu_level_base", "must hold exactly 10 levels, got %d", len(c.FluLevelBase))
	}
	for i, v := range c.FluLevelBase {
		if v < 1 {
			return diag.Invalid("signals.flu_level_base", "level %d multiplier %v is below 1.0", i+1, v)
		}
	}
	for trend, f := range c.FluTrendFactors {
		if f <= 0 {
			return diag.Invalid("signals.flu_trend_factors", "factor for %q must be positive, got %v", trend, f)
		}
	}
	switch {
	case c.FluQuietLevel < 0 || c.FluQuietLevel > 10:
		return diag.Invalid("signals.flu_quiet_level", "must be within [0,10], got %d", c.FluQuietLevel)
	case c.FluHighAlertLevel < c.FluAlertLevel:
		return diag.Invalid("signals.flu_high_alert_level", "must not be below flu_alert_level (%d < %d)", c.FluHighAlertLevel, c.FluAlertLevel)
	case c.FluCeiling < 1:
		return diag.Invalid("signals.flu_ceiling", "must be at least 1.0, got %v", c.FluCeiling)
	case c.FreezingThresholdF > c.ColdThresholdF:
		return diag.Invalid("signals.freezing_threshold_f", "must not exceed cold_threshold_f (%v > %v)", c.FreezingThresholdF, c.ColdThresholdF)
	case c.ColdBoost < 0 || c.FreezingBoost < 0 || c.ColdSnapBoost < 0 || c.HumidityBoost < 0:
		return diag.Invalid("signals.cold_boost", "weather boosts must not be negative")
	case c.WeatherCeiling < 1:
		return diag.Invalid("signals.weather_ceiling", "must be at least 1.0, got %v", c.WeatherCeiling)
	case c.EventMultiplier < 1 || c.IncreaseEventMultiplier < 1:
		return diag.Invalid("signals.event_multiplier", "event multipliers must be at least 1.0")
	case c.EventLookaheadDays < 0:
		return diag.Invalid("signals.event_lookahead_days", "must not be negative, got %d", c.EventLookaheadDays)
	case c.CombinedCeiling < 1:
		return diag.Invalid("signals.combined_ceiling", "must be at least 1.0, got %v", c.CombinedCeiling)
	}
	return nil
}
