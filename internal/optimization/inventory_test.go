package optimization

import (
	"testing"

	"rxplan/internal/diag"

	"github.com/shopspring/decimal"
)

func TestAggregateLots(t *testing.T) {
	asOf := start
	lots := []Lot{
		{Medication: "Metformin 500mg", LotNumber: "M-1", Quantity: 100, UnitCost: decimal.RequireFromString("0.10"), ExpirationDate: asOf.AddDate(0, 0, 10)},
		{Medication: "Metformin 500mg", LotNumber: "M-2", Quantity: 200, UnitCost: decimal.RequireFromString("0.20"), ExpirationDate: asOf.AddDate(0, 0, 200)},
		{Medication: "Metformin 500mg", LotNumber: "M-0", Quantity: 50, UnitCost: decimal.RequireFromString("0.10"), ExpirationDate: asOf.AddDate(0, 0, -1)},
		{Medication: "Mystery Tonic", LotNumber: "X-1", Quantity: 5, UnitCost: decimal.RequireFromString("3.00")},
	}
	catalog := []CatalogEntry{
		{Medication: "Metformin 500mg", Category: "diabetes", UnitCost: decimal.RequireFromString("0.12"), CaseSize: 100, LeadTimeDays: 5},
		{Medication: "Lisinopril 10mg", Category: "cardiovascular", UnitCost: decimal.RequireFromString("0.08"), CaseSize: 90, LeadTimeDays: 3},
	}

	positions, diagnostics := AggregateLots(lots, catalog, asOf, DefaultConfig())

	if len(positions) != 3 {
		t.Fatalf("expected 3 positions, got %d", len(positions))
	}
	byMed := make(map[string]InventoryPosition)
	for _, p := range positions {
		byMed[p.Medication] = p
	}

	met := byMed["Metformin 500mg"]
	if met.QuantityOnHand != 300 {
		t.Errorf("expected 300 units on hand (expired lot excluded), got %d", met.QuantityOnHand)
	}
	if met.UnitsExpiringSoon != 100 {
		t.Errorf("expected 100 units expiring soon, got %d", met.UnitsExpiringSoon)
	}
	if !met.UnitCost.Equal(decimal.RequireFromString("0.15")) {
		t.Errorf("expected mean unit cost 0.15, got %s", met.UnitCost)
	}
	if met.CaseSize != 100 || met.LeadTimeDays != 5 || met.Category != "diabetes" {
		t.Errorf("expected catalog master data, got %+v", met)
	}

	lis := byMed["Lisinopril 10mg"]
	if lis.QuantityOnHand != 0 || !lis.UnitCost.Equal(decimal.RequireFromString("0.08")) {
		t.Errorf("expected an empty catalog position, got %+v", lis)
	}

	myst := byMed["Mystery Tonic"]
	if myst.CaseSize != 1 || myst.LeadTimeDays != 7 {
		t.Errorf("expected default case size and lead time, got %+v", myst)
	}

	if got := diag.CountByKind(diagnostics)[diag.Validation]; got != 2 {
		t.Errorf("expected 2 diagnostics (expired lot, unknown medication), got %d", got)
	}
	if positions[0].Medication != "Lisinopril 10mg" {
		t.Errorf("expected positions sorted by medication, first is %s", positions[0].Medication)
	}
}
