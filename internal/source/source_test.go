package source

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"rxplan/internal/diag"
	"rxplan/internal/signals"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestLoadHistory(t *testing.T) {
	path := writeFile(t, "history.csv", `patient_id,medication,fill_date,quantity,days_supply,category
P0001,Metformin 500mg,2024-09-01,60,30,Diabetes
P0001,Metformin 500mg,,60,30,Diabetes
P0002,Lisinopril 10mg,2024-09-03,30,30,
`)

	records, skipped, err := NewLoader().LoadHistory(path)
	if err != nil {
		t.Fatalf("LoadHistory() error: %v", err)
	}
	if len(skipped) != 0 {
		t.Errorf("expected no excluded rows, got %v", skipped)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}

	first := records[0]
	if first.PatientID != "P0001" || first.Quantity != 60 || first.DaysSupply != 30 || first.Category != "diabetes" {
		t.Errorf("unexpected first record: %+v", first)
	}
	if want := time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC); !first.FillDate.Equal(want) {
		t.Errorf("expected fill date %v, got %v", want, first.FillDate)
	}
	if !records[1].FillDate.IsZero() {
		t.Errorf("a blank fill date must load as the zero time, got %v", records[1].FillDate)
	}
	if records[2].Category != "" {
		t.Errorf("expected empty category, got %q", records[2].Category)
	}
}

func TestLoadHistory_HeaderErrors(t *testing.T) {
	path := writeFile(t, "history.csv", "patient_id,medication,fill_date,quantity\nP1,A,2024-01-01,1\n")
	_, _, err := NewLoader().LoadHistory(path)
	if err == nil || !strings.Contains(err.Error(), `missing column "days_supply"`) {
		t.Errorf("expected a missing column error, got %v", err)
	}
}

func TestLoadHistory_BadNumbersAreExcluded(t *testing.T) {
	path := writeFile(t, "history.csv", `patient_id,medication,fill_date,quantity,days_supply
P1,A,2024-01-01,1,30
P1,A,2024-02-01,lots,30
P1,A,2024-03-01,1,30.5
P1,A,2024-04-01,2,30.0
`)

	records, skipped, err := NewLoader().LoadHistory(path)
	if err != nil {
		t.Fatalf("LoadHistory() error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 parsed records, got %d", len(records))
	}
	if records[1].DaysSupply != 30 {
		t.Errorf("expected whole-number float days supply to parse, got %d", records[1].DaysSupply)
	}

	tests := []struct {
		entity  string
		message string
	}{
		{"history.csv row 3", "invalid quantity"},
		{"history.csv row 4", "invalid days_supply"},
	}
	if len(skipped) != len(tests) {
		t.Fatalf("expected %d excluded rows, got %v", len(tests), skipped)
	}
	for i, tt := range tests {
		d := skipped[i]
		if d.Stage != "source" || d.Kind != diag.Validation || d.Entity != tt.entity {
			t.Errorf("unexpected diagnostic %+v, want entity %q", d, tt.entity)
		}
		if !strings.Contains(d.Message, tt.message) {
			t.Errorf("expected message containing %q, got %q", tt.message, d.Message)
		}
	}
}

func TestLoadHistory_MissingFile(t *testing.T) {
	if _, _, err := NewLoader().LoadHistory(filepath.Join(t.TempDir(), "nope.csv")); err == nil {
		t.Errorf("expected an error for a missing file")
	}
}

func TestLoadStock(t *testing.T) {
	path := writeFile(t, "stock.csv", `medication,lot_number,quantity,unit_cost,expiration_date
Metformin 500mg,L-100,200,$0.15,2025-06-30
Metformin 500mg,L-101,100,0.15,not-a-date
`)

	lots, err := NewLoader().LoadStock(path)
	if err != nil {
		t.Fatalf("LoadStock() error: %v", err)
	}
	if len(lots) != 2 {
		t.Fatalf("expected 2 lots, got %d", len(lots))
	}
	if lots[0].LotNumber != "L-100" || lots[0].Quantity != 200 || lots[0].UnitCost.String() != "0.15" {
		t.Errorf("unexpected first lot: %+v", lots[0])
	}
	if !lots[1].ExpirationDate.IsZero() {
		t.Errorf("expected zero expiration for an unparseable date, got %v", lots[1].ExpirationDate)
	}
}

func TestLoadCatalog(t *testing.T) {
	path := writeFile(t, "catalog.csv", `medication,category,unit_cost,case_size,lead_time_days
Oseltamivir 75mg,Antiviral,2.50,10,3
`)

	entries, err := NewLoader().LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog() error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Category != "antiviral" || e.CaseSize != 10 || e.LeadTimeDays != 3 || e.UnitCost.String() != "2.5" {
		t.Errorf("unexpected entry: %+v", e)
	}

	bad := writeFile(t, "catalog.csv", "medication,category,unit_cost,case_size,lead_time_days\nX,other,abc,1,1\n")
	if _, err := NewLoader().LoadCatalog(bad); err == nil || !strings.Contains(err.Error(), "row 2") {
		t.Errorf("expected a row 2 error for an invalid unit cost, got %v", err)
	}
}

func TestParseReadings(t *testing.T) {
	doc := `{
  "region": "Attica",
  "flu": {"level": 7, "trend": "increasing"},
  "weather": {"temperature_avg_f": 38, "humidity_percent": 85, "is_cold_snap": true},
  "events": [
    {"name": "Christmas Day", "date": "2024-12-25", "impact": "early_refills", "affected_categories": ["All"]},
    {"name": "Undated", "date": "", "impact": "increase"}
  ],
  "shortages": [
    {"medication": "Amoxicillin 500mg", "status": "Current", "estimated_resolution": "2025-01-15"},
    {"medication": "Albuterol", "status": "resolved"}
  ]
}`

	r, err := ParseReadings([]byte(doc))
	if err != nil {
		t.Fatalf("ParseReadings() error: %v", err)
	}
	if r.Flu == nil || r.Flu.Level != 7 || r.Flu.Trend != signals.Increasing {
		t.Errorf("unexpected flu reading: %+v", r.Flu)
	}
	if r.Weather == nil || !r.Weather.IsColdSnap {
		t.Errorf("unexpected weather reading: %+v", r.Weather)
	}
	if len(r.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(r.Events))
	}
	if want := time.Date(2024, 12, 25, 0, 0, 0, 0, time.UTC); !r.Events[0].Date.Equal(want) {
		t.Errorf("expected event date %v, got %v", want, r.Events[0].Date)
	}
	if r.Events[0].AffectedCategories[0] != signals.AllCategories {
		t.Errorf("expected categories to be normalized, got %v", r.Events[0].AffectedCategories)
	}
	if !r.Events[1].Date.IsZero() {
		t.Errorf("expected zero date for the undated event")
	}
	if !r.Shortages[0].Active() || r.Shortages[1].Active() {
		t.Errorf("unexpected shortage activity: %+v", r.Shortages)
	}
	if r.Shortages[0].EstimatedResolution == nil {
		t.Errorf("expected an estimated resolution date")
	}
}

func TestLoadReadings_MissingFileIsNeutral(t *testing.T) {
	r, err := NewLoader().LoadReadings(filepath.Join(t.TempDir(), "signals.json"))
	if err != nil {
		t.Fatalf("LoadReadings() error: %v", err)
	}
	if r.Flu != nil || r.Weather != nil || len(r.Events) != 0 || len(r.Shortages) != 0 {
		t.Errorf("expected empty readings, got %+v", r)
	}
}
