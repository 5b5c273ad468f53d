package optimization

import (
	"math"
	"strconv"

	"rxplan/internal/diag"

	"github.com/shopspring/decimal"
)

// Priority ranks how urgently a medication must be ordered.
type Priority string

const (
	Critical Priority = "critical"
	High     Priority = "high"
	Medium   Priority = "medium"
	Low      Priority = "low"
)

// Priorities lists every priority from most to least urgent.
var Priorities = []Priority{Critical, High, Medium, Low}

// Rank is 0 for critical and grows towards low.
func (p Priority) Rank() int {
	for i, q := range Priorities {
		if p == q {
			return i
		}
	}
	return len(Priorities)
}

// ReasonCode is a machine-readable cause attached to a recommendation.
type ReasonCode string

const (
	ReasonStockoutRisk      ReasonCode = "stockout_risk"
	ReasonLowDaysOfSupply   ReasonCode = "low_days_of_supply"
	ReasonBelowReorderPoint ReasonCode = "below_reorder_point"
	ReasonExpiringSoon      ReasonCode = "expiring_soon"
	ReasonSupplyShortage    ReasonCode = "supply_shortage"
	ReasonBudgetDeferred    ReasonCode = "budget_deferred"
	ReasonNoDemand          ReasonCode = "no_forecast_demand"
	ReasonSufficientStock   ReasonCode = "sufficient_stock"
)

var reasonText = map[ReasonCode]string{
	ReasonStockoutRisk:      "stock runs out before the critical threshold",
	ReasonLowDaysOfSupply:   "days of supply below the high-priority threshold",
	ReasonBelowReorderPoint: "on hand at or below the reorder point",
	ReasonExpiringSoon:      "units expiring soon",
	ReasonSupplyShortage:    "active supply shortage",
	ReasonBudgetDeferred:    "deferred: order budget exhausted",
	ReasonNoDemand:          "no forecast demand",
	ReasonSufficientStock:   "stock covers forecast demand",
}

// Days is a day count that may be infinite. Infinity is encoded as JSON null.
type Days float64

// Infinite reports whether the value is +Inf.
func (d Days) Infinite() bool {
	return math.IsInf(float64(d), 1)
}

func (d Days) MarshalJSON() ([]byte, error) {
	if math.IsInf(float64(d), 0) || math.IsNaN(float64(d)) {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(float64(d), 'f', -1, 64)), nil
}

// InventoryPosition is the current stock of one medication.
type InventoryPosition struct {
	Medication        string          `json:"medication"`
	Category          string          `json:"category,omitempty"`
	QuantityOnHand    int             `json:"quantity_on_hand"`
	UnitCost          decimal.Decimal `json:"unit_cost"`
	CaseSize          int             `json:"case_size"`
	LeadTimeDays      int             `json:"lead_time_days"`
	UnitsExpiringSoon int             `json:"units_expiring_soon,omitempty"`
}

// OrderRecommendation is the purchase decision for one medication.
type OrderRecommendation struct {
	Medication       string          `json:"medication"`
	Category         string          `json:"category,omitempty"`
	CurrentStock     int             `json:"current_stock"`
	AvgDailyDemand   float64         `json:"avg_daily_demand"`
	SafetyStock      float64         `json:"safety_stock"`
	ReorderPoint     float64         `json:"reorder_point"`
	DaysOfSupply     Days            `json:"days_of_supply"`
	OrderQuantity    int             `json:"order_quantity"`
	RecommendedCases int             `json:"recommended_cases"`
	UnitCost         decimal.Decimal `json:"unit_cost"`
	OrderCost        decimal.Decimal `json:"order_cost"`
	Priority         Priority        `json:"priority"`
	StockoutRisk     float64         `json:"stockout_risk"`
	OverstockRisk    float64         `json:"overstock_risk"`
	UrgencyScore     float64         `json:"urgency_score"`
	ReasonCodes      []ReasonCode    `json:"reason_codes"`
	Reason           string          `json:"reason"`
	Deferred         bool            `json:"deferred,omitempty"`
}

// Summary holds run-level purchasing figures.
type Summary struct {
	TotalRecommended      int              `json:"total_recommended"`
	CriticalOrders        int              `json:"critical_orders"`
	HighPriorityOrders    int              `json:"high_priority_orders"`
	TotalOrderCost        decimal.Decimal  `json:"total_order_cost"`
	CurrentInventoryValue decimal.Decimal  `json:"current_inventory_value"`
	MonthlyCarryingCost   decimal.Decimal  `json:"monthly_carrying_cost"`
	MedicationsAtRisk     int              `json:"medications_at_risk"`
	MeanStockoutRisk      float64          `json:"mean_stockout_risk"`
	TotalForecastDemand   float64          `json:"total_forecast_demand"`
	Deferred              int              `json:"deferred"`
	TargetServiceLevel    float64          `json:"target_service_level"`
	ByPriority            map[Priority]int `json:"by_priority"`
}

// Result is the output of an optimization run.
type Result struct {
	Recommendations []OrderRecommendation `json:"recommendations"`
	Summary         Summary               `json:"summary"`
	Diagnostics     []diag.Diagnostic     `json:"diagnostics,omitempty"`
}

// Orders returns the recommendations with a positive, non-deferred quantity.
func (r Result) Orders() []OrderRecommendation {
	var out []OrderRecommendation
	for _, rec := range r.Recommendations {
		if rec.OrderQuantity > 0 && !rec.Deferred {
			out = append(out, rec)
		}
	}
	return out
}
