package optimization

import (
	"fmt"
	"sort"
	"time"

	"rxplan/internal/diag"
	"rxplan/internal/stats"

	"github.com/shopspring/decimal"
)

// Lot is one received batch of a medication.
type Lot struct {
	Medication     string          `json:"medication"`
	LotNumber      string          `json:"lot_number"`
	Quantity       int             `json:"quantity"`
	UnitCost       decimal.Decimal `json:"unit_cost"`
	ExpirationDate time.Time       `json:"expiration_date"`
}

// CatalogEntry holds purchasing master data of a medication.
type CatalogEntry struct {
	Medication   string          `json:"medication"`
	Category     string          `json:"category,omitempty"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	CaseSize     int             `json:"case_size"`
	LeadTimeDays int             `json:"lead_time_days"`
}

// AggregateLots folds lot-level stock into one InventoryPosition per medication.
// Expired lots are left out of the on-hand quantity. Catalog medications without lots
// get an empty position so they can still be ordered.
func AggregateLots(lots []Lot, catalog []CatalogEntry, asOf time.Time, cfg Config) ([]InventoryPosition, []diag.Diagnostic) {
	asOf = stats.SnapToDay(asOf)
	expiringBy := stats.AddDays(asOf, cfg.ExpiringWithinDays)

	entries := make(map[string]CatalogEntry, len(catalog))
	for _, c := range catalog {
		entries[c.Medication] = c
	}

	type acc struct {
		qty      int
		expiring int
		costs    decimal.Decimal
		costed   int
	}
	byMed := make(map[string]*acc)
	var diagnostics []diag.Diagnostic

	for i, l := range lots {
		entity := fmt.Sprintf("lot %d (%s)", i, l.LotNumber)
		if l.Medication == "" || l.Quantity < 0 {
			diagnostics = append(diagnostics, diag.Diagnostic{Stage: stage, Kind: diag.Validation, Entity: entity, Message: "lot without medication or with negative quantity ignored"})
			continue
		}
		a, ok := byMed[l.Medication]
		if !ok {
			a = &acc{costs: decimal.Zero}
			byMed[l.Medication] = a
		}
		if !l.ExpirationDate.IsZero() && stats.SnapToDay(l.ExpirationDate).Before(asOf) {
			diagnostics = append(diagnostics, diag.Diagnostic{Stage: stage, Kind: diag.Validation, Entity: entity, Message: fmt.Sprintf("expired on %s; excluded from stock", stats.Label(l.ExpirationDate))})
			continue
		}
		a.qty += l.Quantity
		if !l.ExpirationDate.IsZero() && !stats.SnapToDay(l.ExpirationDate).After(expiringBy) {
			a.expiring += l.Quantity
		}
		if l.UnitCost.IsPositive() {
			a.costs = a.costs.Add(l.UnitCost)
			a.costed++
		}
	}

	meds := make([]string, 0, len(byMed)+len(entries))
	for m := range byMed {
		meds = append(meds, m)
	}
	for m := range entries {
		if _, ok := byMed[m]; !ok {
			meds = append(meds, m)
		}
	}
	sort.Strings(meds)

	positions := make([]InventoryPosition, 0, len(meds))
	for _, m := range meds {
		entry, known := entries[m]
		pos := InventoryPosition{
			Medication:   m,
			Category:     entry.Category,
			UnitCost:     entry.UnitCost,
			CaseSize:     cfg.DefaultCaseSize,
			LeadTimeDays: cfg.DefaultLeadTimeDays,
		}
		if known && entry.CaseSize > 0 {
			pos.CaseSize = entry.CaseSize
		}
		if known && entry.LeadTimeDays > 0 {
			pos.LeadTimeDays = entry.LeadTimeDays
		}
		if a, ok := byMed[m]; ok {
			pos.QuantityOnHand = a.qty
			pos.UnitsExpiringSoon = a.expiring
			if a.costed > 0 {
				pos.UnitCost = a.costs.Div(decimal.NewFromInt(int64(a.costed))).Round(4)
			}
		}
		if !known {
			diagnostics = append(diagnostics, diag.Diagnostic{Stage: stage, Kind: diag.Validation, Entity: m, Message: "not in the medication catalog; default case size and lead time used"})
		}
		positions = append(positions, pos)
	}
	return positions, diagnostics
}
