package engine

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"rxplan/internal/fills"
	"rxplan/internal/optimization"
	"rxplan/internal/signals"
	"rxplan/internal/stats"

	"github.com/shopspring/decimal"
)

// Scenarios understood by Generate.
const (
	ScenarioNormal    = "normal"
	ScenarioFluSeason = "flu_season"
	ScenarioShortage  = "shortage"
)

type GeneratorConfig struct {
	Scenario    string
	Patients    int
	HistoryDays int
	Seed        int64
	Now         time.Time
}

// Dataset is a complete set of pipeline inputs.
type Dataset struct {
	Fills    []fills.Record
	Lots     []optimization.Lot
	Catalog  []optimization.CatalogEntry
	Readings signals.Readings
}

type product struct {
	name       string
	category   string
	daysSupply int
	quantity   int
	unitCost   string
	caseSize   int
	leadTime   int
	chronic    bool
}

var formulary = []product{
	{"Metformin 500mg", "diabetes", 30, 60, "0.12", 100, 5, true},
	{"Lisinopril 10mg", "cardiovascular", 30, 30, "0.08", 90, 7, true},
	{"Atorvastatin 20mg", "cardiovascular", 90, 90, "0.21", 90, 7, true},
	{"Levothyroxine 50mcg", "chronic", 30, 30, "0.18", 90, 5, true},
	{"Albuterol HFA", "respiratory", 30, 1, "28.50", 12, 3, false},
	{"Oseltamivir 75mg", "antiviral", 5, 10, "2.45", 10, 3, false},
	{"Omeprazole 20mg", "gastrointestinal", 30, 30, "0.09", 100, 5, true},
}

// Generate builds a reproducible dataset; the same config always yields the same data.
func Generate(cfg GeneratorConfig) Dataset {
	if cfg.Now.IsZero() {
		cfg.Now = time.Now()
	}
	if cfg.Patients <= 0 {
		cfg.Patients = 200
	}
	if cfg.HistoryDays <= 0 {
		cfg.HistoryDays = 365
	}
	now := stats.SnapToDay(cfg.Now)
	rng := rand.New(rand.NewSource(cfg.Seed))

	var ds Dataset
	for i := 0; i < cfg.Patients; i++ {
		patient := fmt.Sprintf("P%04d", i+1)
		// 1. Each patient takes one to three products
		n := 1 + rng.Intn(3)
		for _, idx := range rng.Perm(len(formulary))[:n] {
			ds.Fills = append(ds.Fills, patientFills(rng, patient, formulary[idx], now, cfg)...)
		}
	}

	// 2. Stock, catalog and signals
	for _, p := range formulary {
		cost := decimal.RequireFromString(p.unitCost)
		ds.Catalog = append(ds.Catalog, optimization.CatalogEntry{
			Medication: p.name, Category: p.category, UnitCost: cost, CaseSize: p.caseSize, LeadTimeDays: p.leadTime,
		})
		lots := 1 + rng.Intn(2)
		for lot := 0; lot < lots; lot++ {
			ds.Lots = append(ds.Lots, optimization.Lot{
				Medication:     p.name,
				LotNumber:      fmt.Sprintf("L%s-%03d", p.name[:3], lot+1),
				Quantity:       p.caseSize * rng.Intn(6),
				UnitCost:       cost,
				ExpirationDate: stats.AddDays(now, 10+rng.Intn(400)),
			})
		}
	}
	ds.Readings = readings(rng, now, cfg.Scenario)
	return ds
}

func patientFills(rng *rand.Rand, patient string, p product, now time.Time, cfg GeneratorConfig) []fills.Record {
	// Adherence: most chronic patients are punctual, acute products are filled sporadically
	jitter := 2.0
	switch r := rng.Float64(); {
	case !p.chronic:
		jitter = float64(p.daysSupply) * 3
	case r < 0.15:
		jitter = 12
	case r < 0.35:
		jitter = 5
	}

	var out []fills.Record
	day := stats.AddDays(now, -cfg.HistoryDays+rng.Intn(max(cfg.HistoryDays/2, 1)))
	for !day.After(now) {
		out = append(out, fills.Record{
			PatientID:  patient,
			Medication: p.name,
			Category:   p.category,
			FillDate:   day,
			Quantity:   p.quantity,
			DaysSupply: p.daysSupply,
		})
		gap := float64(p.daysSupply) + rng.NormFloat64()*jitter
		if !p.chronic {
			gap = weibullSample(rng, 1.2, float64(p.daysSupply)*8)
		}
		day = stats.AddDays(day, max(1, int(math.Round(gap))))
	}
	return out
}

func weibullSample(rng *rand.Rand, k, lambda float64) float64 {
	u := rng.Float64()
	if u == 0 {
		u = 0.0001
	}
	// X = lambda * (-ln(1-u))^(1/k)
	return lambda * math.Pow(-math.Log(1.0-u), 1.0/k)
}

func readings(rng *rand.Rand, now time.Time, scenario string) signals.Readings {
	r := signals.Readings{
		Region:  "Synthetic County",
		Flu:     &signals.FluReading{Level: 1 + rng.Intn(3), Trend: signals.Stable},
		Weather: &signals.WeatherReading{TemperatureAvgF: 50 + float64(rng.Intn(20)), HumidityPercent: 55},
		Events: []signals.Event{
			{Name: "Long Weekend", Date: stats.AddDays(now, 4), Kind: "holiday", Impact: signals.ImpactEarlyRefills, AffectedCategories: []string{signals.AllCategories}},
		},
	}
	switch scenario {
	case ScenarioFluSeason:
		r.Flu = &signals.FluReading{Level: 7 + rng.Intn(3), Trend: signals.RapidIncrease}
		r.Weather = &signals.WeatherReading{TemperatureAvgF: 28, HumidityPercent: 85, Conditions: "snow", IsColdSnap: true}
	case ScenarioShortage:
		resolution := stats.AddDays(now, 45)
		r.Shortages = []signals.Shortage{
			{Medication: "Albuterol HFA", Status: "current", Reason: "manufacturing delay", EstimatedResolution: &resolution},
		}
	}
	return r
}

// Save writes the dataset as the CSV and JSON files the rxplan CLI reads.
func Save(outDir string, ds Dataset) error {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return err
	}

	history := [][]string{{"patient_id", "medication", "fill_date", "quantity", "days_supply", "category"}}
	for _, f := range ds.Fills {
		history = append(history, []string{
			f.PatientID, f.Medication, stats.Label(f.FillDate),
			strconv.Itoa(f.Quantity), strconv.Itoa(f.DaysSupply), f.Category,
		})
	}
	stock := [][]string{{"medication", "lot_number", "quantity", "unit_cost", "expiration_date"}}
	for _, l := range ds.Lots {
		stock = append(stock, []string{
			l.Medication, l.LotNumber, strconv.Itoa(l.Quantity), l.UnitCost.String(), stats.Label(l.ExpirationDate),
		})
	}
	catalog := [][]string{{"medication", "category", "unit_cost", "case_size", "lead_time_days"}}
	for _, c := range ds.Catalog {
		catalog = append(catalog, []string{
			c.Medication, c.Category, c.UnitCost.String(), strconv.Itoa(c.CaseSize), strconv.Itoa(c.LeadTimeDays),
		})
	}

	for name, rows := range map[string][][]string{
		"prescription_history.csv": history,
		"current_stock.csv":        stock,
		"medication_catalog.csv":   catalog,
	} {
		if err := writeCSV(filepath.Join(outDir, name), rows); err != nil {
			return err
		}
	}

	f, err := os.Create(filepath.Join(outDir, "signals.json"))
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(ds.Readings)
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
