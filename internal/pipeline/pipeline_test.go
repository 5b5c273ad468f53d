package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"rxplan/internal/diag"
	"rxplan/internal/fills"
	"rxplan/internal/metrics"
	"rxplan/internal/optimization"
	"rxplan/internal/signals"

	"github.com/shopspring/decimal"
)

var asOf = time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)

func sampleInput() Input {
	meds := []struct {
		name, category string
		qty            int
	}{
		{"Metformin 500mg", "diabetes", 60},
		{"Oseltamivir 75mg", "antiviral", 10},
		{"Lisinopril 10mg", "cardiovascular", 30},
	}

	var records []fills.Record
	for _, m := range meds {
		for p := 0; p < 5; p++ {
			first := asOf.AddDate(0, 0, -120+p)
			for k := 0; k < 4; k++ {
				records = append(records, fills.Record{
					PatientID:  fmt.Sprintf("P%03d", p),
					Medication: m.name,
					Category:   m.category,
					FillDate:   first.AddDate(0, 0, k*30),
					Quantity:   m.qty,
					DaysSupply: 30,
				})
			}
		}
	}
	// one malformed row
	records = append(records, fills.Record{PatientID: "P999", Medication: "Metformin 500mg", Quantity: -1, FillDate: asOf})

	return Input{
		AsOf:  asOf,
		Fills: records,
		Readings: signals.Readings{
			Region:    "Attica",
			Flu:       &signals.FluReading{Level: 5, Trend: signals.RapidIncrease},
			Shortages: []signals.Shortage{{Medication: "Lisinopril 10mg", Status: "current"}},
		},
		Inventory: []optimization.InventoryPosition{
			{Medication: "Metformin 500mg", QuantityOnHand: 40, UnitCost: decimal.RequireFromString("0.12"), CaseSize: 100, LeadTimeDays: 5},
			{Medication: "Oseltamivir 75mg", QuantityOnHand: 5, UnitCost: decimal.RequireFromString("2.50"), CaseSize: 10, LeadTimeDays: 3},
			{Medication: "Lisinopril 10mg", QuantityOnHand: 900, UnitCost: decimal.RequireFromString("0.08"), CaseSize: 90, LeadTimeDays: 7},
		},
	}
}

func TestRun_EndToEnd(t *testing.T) {
	res, err := Run(context.Background(), sampleInput(), DefaultConfig())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if len(res.Profiling.Profiles) != 15 {
		t.Errorf("expected 15 profiles, got %d", len(res.Profiling.Profiles))
	}
	if got := len(res.Forecast.Forecasts); got != 3*30 {
		t.Errorf("expected 90 forecast rows, got %d", got)
	}
	for _, f := range res.Forecast.Forecasts {
		want := 1.0
		if f.Category == "antiviral" {
			want = 1.56
		}
		if f.Multiplier != want {
			t.Errorf("%s: expected multiplier %v, got %v", f.Medication, want, f.Multiplier)
		}
	}
	if len(res.Optimization.Orders()) == 0 {
		t.Errorf("expected at least one order recommendation")
	}
	if got := diag.CountByKind(res.Diagnostics)[diag.Validation]; got != 1 {
		t.Errorf("expected the malformed row to surface as 1 validation diagnostic, got %d", got)
	}
	if res.RunID == "" {
		t.Errorf("expected a run id")
	}
}

func TestRun_DeterministicOutput(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Profiling.Workers = 4
	cfg.Forecasting.Workers = 3

	var outputs [][]byte
	for i := 0; i < 3; i++ {
		res, err := Run(context.Background(), sampleInput(), cfg)
		if err != nil {
			t.Fatalf("Run() error: %v", err)
		}
		data, err := json.Marshal(res)
		if err != nil {
			t.Fatalf("json.Marshal() error: %v", err)
		}
		outputs = append(outputs, data)
	}
	for i := 1; i < len(outputs); i++ {
		if !bytes.Equal(outputs[0], outputs[i]) {
			t.Fatalf("run %d produced different output bytes", i)
		}
	}

	other := sampleInput()
	other.Inventory[0].QuantityOnHand++
	a, _ := RunID(sampleInput(), cfg)
	b, _ := RunID(other, cfg)
	if a == b {
		t.Errorf("expected different run ids for different inputs")
	}
}

func TestRun_ProfilingAndSignalsOverlap(t *testing.T) {
	signalsStarted := make(chan struct{})
	var once sync.Once
	var overlapErr error

	hook := func(stage string) {
		switch stage {
		case StageSignals:
			once.Do(func() { close(signalsStarted) })
		case StageProfiling:
			// Profiling may only proceed once signals is running alongside it
			select {
			case <-signalsStarted:
			case <-time.After(5 * time.Second):
				overlapErr = errors.New("signals did not start while profiling was running")
			}
		}
	}

	if _, err := Run(context.Background(), sampleInput(), DefaultConfig(), WithStageHook(hook)); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if overlapErr != nil {
		t.Error(overlapErr)
	}
}

func TestRun_StageOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string
	hook := func(stage string) {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, stage)
	}

	if _, err := Run(context.Background(), sampleInput(), DefaultConfig(), WithStageHook(hook)); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(order) != 4 || order[2] != StageForecasting || order[3] != StageOptimization {
		t.Errorf("expected forecasting and optimization after the join, got %v", order)
	}
}

func TestRun_InvalidConfigFailsBeforeProcessing(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Forecasting.HorizonDays = 0

	called := false
	_, err := Run(context.Background(), sampleInput(), cfg, WithStageHook(func(string) { called = true }))
	if !errors.Is(err, diag.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	var cerr *diag.ConfigError
	if !errors.As(err, &cerr) || cerr.Field != "forecasting.horizon_days" {
		t.Errorf("expected the horizon field to be reported, got %v", err)
	}
	if called {
		t.Errorf("no stage may start with an invalid configuration")
	}
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Run(ctx, sampleInput(), DefaultConfig()); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestRun_RecordsMetrics(t *testing.T) {
	rec := metrics.NewRecorder()
	if _, err := Run(context.Background(), sampleInput(), DefaultConfig(), WithMetrics(rec)); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	families, err := rec.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{"rxplan_stage_duration_seconds", "rxplan_runs_total", "rxplan_forecast_units", "rxplan_diagnostics_total"} {
		if !names[want] {
			t.Errorf("expected metric %s to be recorded", want)
		}
	}
}
