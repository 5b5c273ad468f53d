package optimization

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"rxplan/internal/diag"
	"rxplan/internal/forecasting"
	"rxplan/internal/parallel"
	"rxplan/internal/stats"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const stage = "optimization"

// Optimize turns the forecast table and current stock into ranked order recommendations.
// shortages names medications with an active supply shortage.
func Optimize(ctx context.Context, forecasts []forecasting.DailyForecast, inventory []InventoryPosition, shortages []string, cfg Config) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}

	demand := dailyDemand(forecasts)
	positions, diagnostics := positionsFor(demand, inventory, cfg)
	short := make(map[string]bool, len(shortages))
	for _, m := range shortages {
		short[m] = true
	}

	meds := make([]string, 0, len(positions))
	for m := range positions {
		meds = append(meds, m)
	}
	sort.Strings(meds)

	recs := make([]OrderRecommendation, len(meds))
	guards := make([]*diag.Diagnostic, len(meds))
	err := parallel.ForEach(ctx, len(meds), cfg.Workers, func(_ context.Context, i int) error {
		m := meds[i]
		recs[i], guards[i] = evaluate(positions[m], demand[m], short[m], cfg)
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	for _, g := range guards {
		if g != nil {
			diagnostics = append(diagnostics, *g)
		}
	}

	// Summary risk figures cover every evaluated medication, listed or not
	summary := Summary{
		TotalOrderCost:        decimal.Zero,
		CurrentInventoryValue: decimal.Zero,
		TargetServiceLevel:    cfg.TargetServiceLevel,
		ByPriority:            make(map[Priority]int, len(Priorities)),
	}
	risks := make([]float64, len(recs))
	for i, r := range recs {
		risks[i] = r.StockoutRisk
		if r.StockoutRisk > cfg.AtRiskThreshold {
			summary.MedicationsAtRisk++
		}
		summary.CurrentInventoryValue = summary.CurrentInventoryValue.Add(r.UnitCost.Mul(decimal.NewFromInt(int64(r.CurrentStock))))
	}
	summary.MeanStockoutRisk = stats.Mean(risks)
	for _, m := range meds {
		summary.TotalForecastDemand += demand[m].total
	}

	listed := make([]OrderRecommendation, 0, len(recs))
	for _, r := range recs {
		if r.OrderQuantity > 0 || cfg.FullStatus {
			listed = append(listed, r)
		}
	}
	SortRecommendations(listed)
	applyBudget(listed, cfg.MaxOrderValue)

	for _, r := range listed {
		summary.ByPriority[r.Priority]++
		if r.Deferred {
			summary.Deferred++
			continue
		}
		if r.OrderQuantity == 0 {
			continue
		}
		summary.TotalRecommended++
		summary.TotalOrderCost = summary.TotalOrderCost.Add(r.OrderCost)
		switch r.Priority {
		case Critical:
			summary.CriticalOrders++
		case High:
			summary.HighPriorityOrders++
		}
	}
	summary.MonthlyCarryingCost = summary.CurrentInventoryValue.
		Mul(decimal.NewFromFloat(cfg.CarryingCostRate)).
		Div(decimal.NewFromInt(12)).
		Round(2)

	log.Info().
		Int("medications", len(meds)).
		Int("orders", summary.TotalRecommended).
		Int("critical", summary.CriticalOrders).
		Int("deferred", summary.Deferred).
		Str("total_cost", summary.TotalOrderCost.StringFixed(2)).
		Msg("Inventory optimization complete")

	return Result{
		Recommendations: listed,
		Summary:         summary,
		Diagnostics:     diagnostics,
	}, nil
}

type medDemand struct {
	category string
	total    float64
	days     int
}

func (d medDemand) average() float64 {
	if d.days == 0 {
		return 0
	}
	return d.total / float64(d.days)
}

func dailyDemand(forecasts []forecasting.DailyForecast) map[string]medDemand {
	out := make(map[string]medDemand)
	for _, f := range forecasts {
		d := out[f.Medication]
		d.category = f.Category
		d.total += f.PredictedUnits
		d.days++
		out[f.Medication] = d
	}
	return out
}

// positionsFor pairs every forecast medication with a position, normalizing bad values.
// Forecast medications without stock on record get an empty position.
func positionsFor(demand map[string]medDemand, inventory []InventoryPosition, cfg Config) (map[string]InventoryPosition, []diag.Diagnostic) {
	var diagnostics []diag.Diagnostic
	warn := func(entity, format string, args ...any) {
		diagnostics = append(diagnostics, diag.Diagnostic{Stage: stage, Kind: diag.Validation, Entity: entity, Message: fmt.Sprintf(format, args...)})
	}

	positions := make(map[string]InventoryPosition, len(inventory))
	for i, p := range inventory {
		switch {
		case p.Medication == "":
			warn(fmt.Sprintf("position %d", i), "missing medication; position ignored")
			continue
		case p.QuantityOnHand < 0:
			warn(p.Medication, "negative quantity on hand %d; position ignored", p.QuantityOnHand)
			continue
		case p.UnitCost.IsNegative():
			warn(p.Medication, "negative unit cost %s; position ignored", p.UnitCost)
			continue
		}
		if _, dup := positions[p.Medication]; dup {
			warn(p.Medication, "duplicate position; first one kept")
			continue
		}
		if p.CaseSize < 1 {
			warn(p.Medication, "case size %d replaced by %d", p.CaseSize, cfg.DefaultCaseSize)
			p.CaseSize = cfg.DefaultCaseSize
		}
		if p.LeadTimeDays < 0 {
			warn(p.Medication, "negative lead time %d replaced by %d", p.LeadTimeDays, cfg.DefaultLeadTimeDays)
			p.LeadTimeDays = cfg.DefaultLeadTimeDays
		}
		positions[p.Medication] = p
	}

	meds := make([]string, 0, len(demand))
	for m := range demand {
		meds = append(meds, m)
	}
	sort.Strings(meds)
	for _, m := range meds {
		if _, ok := positions[m]; ok {
			continue
		}
		d := demand[m]
		warn(m, "no inventory position; assuming zero stock at unknown cost")
		positions[m] = InventoryPosition{
			Medication:   m,
			Category:     d.category,
			UnitCost:     decimal.Zero,
			CaseSize:     cfg.DefaultCaseSize,
			LeadTimeDays: cfg.DefaultLeadTimeDays,
		}
	}
	return positions, diagnostics
}

// evaluate computes the recommendation of one medication. It reads only its own inputs.
func evaluate(pos InventoryPosition, d medDemand, shortage bool, cfg Config) (OrderRecommendation, *diag.Diagnostic) {
	avg := d.average()
	qoh := float64(pos.QuantityOnHand)
	safety := avg * cfg.SafetyStockDays
	rop := avg*float64(pos.LeadTimeDays) + safety

	dos := Days(math.Inf(1))
	if avg > 0 {
		dos = Days(qoh / avg)
	}

	rec := OrderRecommendation{
		Medication:     pos.Medication,
		Category:       pos.Category,
		CurrentStock:   pos.QuantityOnHand,
		AvgDailyDemand: avg,
		SafetyStock:    safety,
		ReorderPoint:   rop,
		DaysOfSupply:   dos,
		UnitCost:       pos.UnitCost,
		OrderCost:      decimal.Zero,
		Priority:       Low,
	}
	if rec.Category == "" {
		rec.Category = d.category
	}

	rec.StockoutRisk = StockoutRisk(float64(dos), float64(pos.LeadTimeDays), cfg.SafetyStockDays)
	if shortage {
		rec.StockoutRisk = BoostForShortage(rec.StockoutRisk, cfg.ShortageRiskBoost)
	}
	if !dos.Infinite() && cfg.HighDays > 0 {
		rec.UrgencyScore = stats.Clamp01(1 - float64(dos)/cfg.HighDays)
	}

	var codes []ReasonCode
	belowROP := avg > 0 && qoh <= rop
	lowSupply := avg > 0 && float64(dos) < cfg.HighDays

	if !belowROP && !lowSupply {
		if avg == 0 {
			codes = append(codes, ReasonNoDemand)
		} else {
			codes = append(codes, ReasonSufficientStock)
		}
		if shortage {
			codes = append(codes, ReasonSupplyShortage)
		}
		rec.setReasons(codes)
		return rec, nil
	}

	var guard *diag.Diagnostic
	qty, guarded := orderQuantity(avg, rop-qoh, pos.UnitCost, cfg)
	if guarded {
		guard = &diag.Diagnostic{
			Stage:   stage,
			Kind:    diag.ComputationGuard,
			Entity:  pos.Medication,
			Message: "zero holding cost; EOQ replaced by the reorder shortfall",
		}
	}
	if cfg.RoundToCaseSize && pos.CaseSize > 1 {
		qty = RoundUpToCase(qty, pos.CaseSize)
	}
	rec.OrderQuantity = qty
	rec.RecommendedCases = int(math.Ceil(float64(qty) / float64(max(pos.CaseSize, 1))))
	rec.OrderCost = pos.UnitCost.Mul(decimal.NewFromInt(int64(qty))).
		Add(decimal.NewFromFloat(cfg.FixedOrderCost)).
		Round(2)

	target := avg*float64(d.days) + safety
	if target > 0 {
		rec.OverstockRisk = stats.Clamp01((qoh + float64(qty) - target) / target)
	}

	switch {
	case float64(dos) < cfg.CriticalDays:
		rec.Priority = Critical
		codes = append(codes, ReasonStockoutRisk)
	case float64(dos) < cfg.HighDays:
		rec.Priority = High
		codes = append(codes, ReasonLowDaysOfSupply)
	default:
		rec.Priority = Medium
	}
	if belowROP {
		codes = append(codes, ReasonBelowReorderPoint)
	}
	if pos.UnitsExpiringSoon > 0 {
		codes = append(codes, ReasonExpiringSoon)
	}
	if shortage {
		codes = append(codes, ReasonSupplyShortage)
	}
	rec.setReasons(codes)
	return rec, guard
}

// orderQuantity is max(EOQ, shortfall) in whole units and at least the configured minimum.
// guarded reports that EOQ was requested but holding cost was zero.
func orderQuantity(avg, shortfall float64, unitCost decimal.Decimal, cfg Config) (int, bool) {
	q := shortfall
	guarded := false
	if cfg.UseEOQ {
		eoq, ok := EOQ(avg*365, cfg.FixedOrderCost, unitCost.InexactFloat64(), cfg.CarryingCostRate)
		if ok {
			q = math.Max(eoq, shortfall)
		} else {
			guarded = true
		}
	}
	units := int(math.Ceil(q - 1e-9))
	return max(units, cfg.MinOrderQuantity, 0), guarded
}

// EOQ is the economic order quantity sqrt(2·D·S/H) with H = unitCost·carryingRate.
// ok is false when the holding cost is not positive.
func EOQ(annualDemand, fixedCost, unitCost, carryingRate float64) (float64, bool) {
	holding := unitCost * carryingRate
	if holding <= 0 {
		return 0, false
	}
	if annualDemand <= 0 || fixedCost <= 0 {
		return 0, true
	}
	return math.Sqrt(2 * annualDemand * fixedCost / holding), true
}

// RoundUpToCase rounds qty up to the next multiple of caseSize.
func RoundUpToCase(qty, caseSize int) int {
	if caseSize <= 1 || qty <= 0 {
		return qty
	}
	return (qty + caseSize - 1) / caseSize * caseSize
}

// StockoutRisk maps days of supply to a risk in [0,1] that never increases with more supply.
// It is 1 with no stock, 0.5 at exactly the lead time, and reaches 0 once supply covers
// the lead time plus safety stock days beyond it.
func StockoutRisk(daysOfSupply, leadTimeDays, safetyStockDays float64) float64 {
	if math.IsInf(daysOfSupply, 1) {
		return 0
	}
	lead := leadTimeDays
	if lead <= 0 {
		lead = 1
	}
	switch {
	case daysOfSupply <= 0:
		return 1
	case daysOfSupply < lead:
		return 0.5 + 0.5*(1-daysOfSupply/lead)
	default:
		return 0.5 * math.Max(0, 1-(daysOfSupply-lead)/(safetyStockDays+lead))
	}
}

// BoostForShortage raises risk towards 1 by the boost fraction.
func BoostForShortage(risk, boost float64) float64 {
	return stats.Clamp01(risk + (1-risk)*boost)
}

// SortRecommendations orders by priority rank, then stockout risk descending, then medication.
func SortRecommendations(recs []OrderRecommendation) {
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if a.Priority.Rank() != b.Priority.Rank() {
			return a.Priority.Rank() < b.Priority.Rank()
		}
		if a.StockoutRisk != b.StockoutRisk {
			return a.StockoutRisk > b.StockoutRisk
		}
		return a.Medication < b.Medication
	})
}

// applyBudget accepts orders in list order until maxValue is spent and defers the rest.
// Critical orders are always accepted and still count against the budget.
func applyBudget(recs []OrderRecommendation, maxValue float64) {
	if maxValue <= 0 {
		return
	}
	budget := decimal.NewFromFloat(maxValue)
	spent := decimal.Zero
	for i := range recs {
		r := &recs[i]
		if r.OrderQuantity == 0 {
			continue
		}
		if r.Priority != Critical && spent.Add(r.OrderCost).GreaterThan(budget) {
			r.Deferred = true
			r.ReasonCodes = append(r.ReasonCodes, ReasonBudgetDeferred)
			r.Reason = joinReasons(r.ReasonCodes)
			continue
		}
		spent = spent.Add(r.OrderCost)
	}
}

func (r *OrderRecommendation) setReasons(codes []ReasonCode) {
	r.ReasonCodes = codes
	r.Reason = joinReasons(codes)
}

func joinReasons(codes []ReasonCode) string {
	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = reasonText[c]
	}
	return strings.Join(parts, "; ")
}
