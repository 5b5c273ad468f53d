package mcp

import (
	"context"
	"fmt"
	"time"

	"rxplan/internal/diag"
	"rxplan/internal/fills"
	"rxplan/internal/optimization"
	"rxplan/internal/pipeline"
	"rxplan/internal/profiling"
	"rxplan/internal/signals"
	"rxplan/internal/stats"
)

func (s *Server) handleRunPipeline(args toolArgs) (interface{}, error) {
	asOf, err := analysisDate(args.AsOf)
	if err != nil {
		return nil, err
	}
	history, loadDiags, err := s.history(args.History)
	if err != nil {
		return nil, err
	}
	readings, err := s.readings(args.Readings)
	if err != nil {
		return nil, err
	}

	var lots []optimization.Lot
	if path := or(args.Stock, s.defaults.Stock); path != "" {
		if lots, err = s.loader.LoadStock(path); err != nil {
			return nil, err
		}
	}
	var catalog []optimization.CatalogEntry
	if path := or(args.Catalog, s.defaults.Catalog); path != "" {
		if catalog, err = s.loader.LoadCatalog(path); err != nil {
			return nil, err
		}
	}
	positions, stockDiags := optimization.AggregateLots(lots, catalog, asOf, s.cfg.Optimization)

	res, err := pipeline.Run(context.Background(), pipeline.Input{
		AsOf:      asOf,
		Fills:     history,
		Readings:  readings,
		Inventory: positions,
	}, s.cfg)
	if err != nil {
		return nil, err
	}
	if len(loadDiags)+len(stockDiags) > 0 {
		res.Diagnostics = append(res.Diagnostics, loadDiags...)
		res.Diagnostics = append(res.Diagnostics, stockDiags...)
		diag.Sort(res.Diagnostics)
	}
	return res, nil
}

func (s *Server) handleProfileRefills(args toolArgs) (interface{}, error) {
	res, err := s.profile(args)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"as_of":         res.AsOf,
		"summary":       res.Summary,
		"by_medication": profiling.SummarizeByMedication(res.Profiles, s.cfg.Profiling),
		"profiles":      res.Profiles,
		"diagnostics":   res.Diagnostics,
	}, nil
}

func (s *Server) handleDueRefills(args toolArgs) (interface{}, error) {
	days := args.Days
	if days <= 0 {
		days = s.cfg.Profiling.DueSoonDays
	}
	res, err := s.profile(args)
	if err != nil {
		return nil, err
	}
	due := profiling.DueWithin(res.Profiles, days)
	return map[string]interface{}{
		"as_of":    res.AsOf,
		"days":     days,
		"count":    len(due),
		"profiles": due,
	}, nil
}

func (s *Server) handleDeriveSignals(args toolArgs) (interface{}, error) {
	asOf, err := analysisDate(args.AsOf)
	if err != nil {
		return nil, err
	}
	readings, err := s.readings(args.Readings)
	if err != nil {
		return nil, err
	}
	return signals.Derive(readings, asOf, s.cfg.Signals)
}

func (s *Server) profile(args toolArgs) (profiling.Result, error) {
	asOf, err := analysisDate(args.AsOf)
	if err != nil {
		return profiling.Result{}, err
	}
	history, loadDiags, err := s.history(args.History)
	if err != nil {
		return profiling.Result{}, err
	}
	res, err := profiling.Profile(context.Background(), history, asOf, s.cfg.Profiling)
	if err != nil {
		return profiling.Result{}, err
	}
	if len(loadDiags) > 0 {
		res.Diagnostics = append(res.Diagnostics, loadDiags...)
		diag.Sort(res.Diagnostics)
	}
	return res, nil
}

func (s *Server) history(path string) ([]fills.Record, []diag.Diagnostic, error) {
	path = or(path, s.defaults.History)
	if path == "" {
		return nil, nil, fmt.Errorf("no prescription history: pass a history path")
	}
	return s.loader.LoadHistory(path)
}

func (s *Server) readings(path string) (signals.Readings, error) {
	path = or(path, s.defaults.Readings)
	if path == "" {
		return signals.Readings{}, nil
	}
	return s.loader.LoadReadings(path)
}

func analysisDate(raw string) (time.Time, error) {
	if raw == "" {
		return stats.SnapToDay(time.Now().UTC()), nil
	}
	d, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid as_of %q (expected YYYY-MM-DD)", raw)
	}
	return d, nil
}

func or(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}
