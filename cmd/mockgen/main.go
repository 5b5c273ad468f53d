package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"rxplan/cmd/mockgen/engine"
)

func main() {
	scenario := flag.String("scenario", engine.ScenarioNormal, "Scenario to generate: normal, flu_season, shortage")
	outDir := flag.String("out", "./data", "Output directory for the generated files")
	patients := flag.Int("patients", 200, "Number of patients to generate")
	days := flag.Int("days", 365, "Days of prescription history")
	seed := flag.Int64("seed", 1, "Random seed; the same seed reproduces the same data")
	asOf := flag.String("as-of", "", "Analysis date YYYY-MM-DD the history ends on (default today)")
	flag.Parse()

	now := time.Now().UTC()
	if *asOf != "" {
		d, err := time.Parse("2006-01-02", *asOf)
		if err != nil {
			fmt.Printf("Invalid -as-of: %v\n", err)
			os.Exit(1)
		}
		now = d
	}

	cfg := engine.GeneratorConfig{
		Scenario:    *scenario,
		Patients:    *patients,
		HistoryDays: *days,
		Seed:        *seed,
		Now:         now,
	}

	fmt.Printf("Generating scenario '%s' (Patients: %d, Days: %d, Seed: %d) to %s...\n", cfg.Scenario, cfg.Patients, cfg.HistoryDays, cfg.Seed, *outDir)

	ds := engine.Generate(cfg)
	if err := engine.Save(*outDir, ds); err != nil {
		fmt.Printf("Failed to save mock data: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Done: %d fills, %d lots, %d catalog entries.\n", len(ds.Fills), len(ds.Lots), len(ds.Catalog))
}
