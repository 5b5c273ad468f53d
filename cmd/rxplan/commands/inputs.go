package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"rxplan/internal/diag"
	"rxplan/internal/fills"
	"rxplan/internal/optimization"
	"rxplan/internal/signals"
	"rxplan/internal/source"
	"rxplan/internal/stats"

	"github.com/rs/zerolog/log"
)

// inputFlags are the file locations shared by the analysis commands.
type inputFlags struct {
	asOf     string
	since    string
	history  string
	stock    string
	catalog  string
	readings string
	out      string
}

func (f *inputFlags) analysisDate() (time.Time, error) {
	if f.asOf == "" {
		return stats.SnapToDay(time.Now().UTC()), nil
	}
	d, err := time.Parse("2006-01-02", f.asOf)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --as-of %q (expected YYYY-MM-DD): %w", f.asOf, err)
	}
	return d, nil
}

// fills reads the history CSV when given, otherwise the imported JSONL history.
// Rows the CSV loader could not parse come back as diagnostics.
func (f *inputFlags) fills() ([]fills.Record, []diag.Diagnostic, error) {
	if f.history != "" {
		return source.NewLoader().LoadHistory(f.history)
	}
	store := fills.NewStore()
	if err := store.Load(cfg.HistoryDir, cfg.SourceID); err != nil {
		return nil, nil, err
	}
	if store.Count(cfg.SourceID) == 0 {
		return nil, nil, fmt.Errorf("no fill history: pass --history or run 'rxplan import' first")
	}
	if f.since == "" {
		return store.All(cfg.SourceID), nil, nil
	}
	since, err := time.Parse("2006-01-02", f.since)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid --since %q (expected YYYY-MM-DD): %w", f.since, err)
	}
	return store.InRange(cfg.SourceID, since, time.Time{}), nil, nil
}

func (f *inputFlags) inventory(asOf time.Time) ([]optimization.InventoryPosition, []diag.Diagnostic, error) {
	loader := source.NewLoader()
	var lots []optimization.Lot
	var catalog []optimization.CatalogEntry
	var err error

	if f.stock != "" {
		if lots, err = loader.LoadStock(f.stock); err != nil {
			return nil, nil, err
		}
	}
	if f.catalog != "" {
		if catalog, err = loader.LoadCatalog(f.catalog); err != nil {
			return nil, nil, err
		}
	}
	positions, diags := optimization.AggregateLots(lots, catalog, asOf, pipelineCfg.Optimization)
	return positions, diags, nil
}

// signalReadings reads the readings JSON; without one every multiplier is neutral.
func (f *inputFlags) signalReadings() (signals.Readings, error) {
	if f.readings == "" {
		return signals.Readings{}, nil
	}
	return source.NewLoader().LoadReadings(f.readings)
}

// write encodes v as indented JSON to --out, or stdout when unset.
func (f *inputFlags) write(v any) error {
	var w io.Writer = os.Stdout
	if f.out != "" {
		if err := os.MkdirAll(filepath.Dir(f.out), 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		file, err := os.Create(f.out)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer file.Close()
		w = file
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if f.out != "" {
		log.Info().Str("path", f.out).Msg("Output written")
	}
	return nil
}
