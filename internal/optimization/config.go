package optimization

import "rxplan/internal/diag"

// Config holds every tunable of the optimization stage.
type Config struct {
	SafetyStockDays float64 `mapstructure:"safety_stock_days" json:"safety_stock_days"`
	// TargetServiceLevel is reported with the summary; safety stock is day-based.
	TargetServiceLevel float64 `mapstructure:"target_service_level" json:"target_service_level"`
	// CarryingCostRate is the annual holding cost as a fraction of unit cost.
	CarryingCostRate float64 `mapstructure:"carrying_cost_rate" json:"carrying_cost_rate"`
	FixedOrderCost   float64 `mapstructure:"fixed_order_cost" json:"fixed_order_cost"`
	UseEOQ           bool    `mapstructure:"use_eoq" json:"use_eoq"`
	RoundToCaseSize  bool    `mapstructure:"round_to_case_size" json:"round_to_case_size"`

	CriticalDays     float64 `mapstructure:"critical_days" json:"critical_days"`
	HighDays         float64 `mapstructure:"high_days" json:"high_days"`
	MinOrderQuantity int     `mapstructure:"min_order_quantity" json:"min_order_quantity"`
	// MaxOrderValue caps the accepted order value of a run; 0 disables the budget.
	MaxOrderValue float64 `mapstructure:"max_order_value" json:"max_order_value"`
	// ShortageRiskBoost moves a shortage-flagged risk this fraction of the way towards 1.
	ShortageRiskBoost float64 `mapstructure:"shortage_risk_boost" json:"shortage_risk_boost"`
	// AtRiskThreshold is the stockout risk above which a medication counts as at risk.
	AtRiskThreshold float64 `mapstructure:"at_risk_threshold" json:"at_risk_threshold"`
	// FullStatus also lists medications that need no order.
	FullStatus bool `mapstructure:"full_status" json:"full_status"`

	// Lot aggregation defaults.
	ExpiringWithinDays  int `mapstructure:"expiring_within_days" json:"expiring_within_days"`
	DefaultCaseSize     int `mapstructure:"default_case_size" json:"default_case_size"`
	DefaultLeadTimeDays int `mapstructure:"default_lead_time_days" json:"default_lead_time_days"`

	// Workers bounds per-medication parallelism; 0 uses GOMAXPROCS.
	Workers int `mapstructure:"workers" json:"workers"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		SafetyStockDays:     7,
		TargetServiceLevel:  0.95,
		CarryingCostRate:    0.20,
		FixedOrderCost:      50,
		UseEOQ:              true,
		RoundToCaseSize:     true,
		CriticalDays:        3,
		HighDays:            7,
		MinOrderQuantity:    1,
		ShortageRiskBoost:   0.5,
		AtRiskThreshold:     0.5,
		ExpiringWithinDays:  30,
		DefaultCaseSize:     1,
		DefaultLeadTimeDays: 7,
	}
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	switch {
	case c.SafetyStockDays < 0:
		return diag.Invalid("optimization.safety_stock_days", "must not be negative, got %v", c.SafetyStockDays)
	case c.TargetServiceLevel <= 0 || c.TargetServiceLevel >= 1:
		return diag.Invalid("optimization.target_service_level", "must be within (0,1), got %v", c.TargetServiceLevel)
	case c.CarryingCostRate < 0:
		return diag.Invalid("optimization.carrying_cost_rate", "must not be negative, got %v", c.CarryingCostRate)
	case c.FixedOrderCost < 0:
		return diag.Invalid("optimization.fixed_order_cost", "must not be negative, got %v", c.FixedOrderCost)
	case c.CriticalDays < 0:
		return diag.Invalid("optimization.critical_days", "must not be negative, got %v", c.CriticalDays)
	case c.HighDays < c.CriticalDays:
		return diag.Invalid("optimization.high_days", "must not be below critical_days (%v < %v)", c.HighDays, c.CriticalDays)
	case c.MinOrderQuantity < 0:
		return diag.Invalid("optimization.min_order_quantity", "must not be negative, got %d", c.MinOrderQuantity)
	case c.MaxOrderValue < 0:
		return diag.Invalid("optimization.max_order_value", "must not be negative, got %v", c.MaxOrderValue)
	case c.ShortageRiskBoost < 0 || c.ShortageRiskBoost > 1:
		return diag.Invalid("optimization.shortage_risk_boost", "must be within [0,1], got %v", c.ShortageRiskBoost)
	case c.AtRiskThreshold < 0 || c.AtRiskThreshold > 1:
		return diag.Invalid("optimization.at_risk_threshold", "must be within [0,1], got %v", c.AtRiskThreshold)
	case c.ExpiringWithinDays < 0:
		return diag.Invalid("optimization.expiring_within_days", "must not be negative, got %d", c.ExpiringWithinDays)
	case c.DefaultCaseSize < 1:
		return diag.Invalid("optimization.default_case_size", "must be at least 1, got %d", c.DefaultCaseSize)
	case c.DefaultLeadTimeDays < 0:
		return diag.Invalid("optimization.default_lead_time_days", "must not be negative, got %d", c.DefaultLeadTimeDays)
	case c.Workers < 0:
		return diag.Invalid("optimization.workers", "must not be negative, got %d", c.Workers)
	}
	return nil
}
