package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"rxplan/internal/diag"
	"rxplan/internal/fills"
	"rxplan/internal/forecasting"
	"rxplan/internal/metrics"
	"rxplan/internal/optimization"
	"rxplan/internal/profiling"
	"rxplan/internal/signals"
	"rxplan/internal/stats"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Stage names, as reported in diagnostics and metrics.
const (
	StageProfiling    = "profiling"
	StageSignals      = "signals"
	StageForecasting  = "forecasting"
	StageOptimization = "optimization"
)

var runNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("rxplan/run"))

// Input is everything one run reads. It is never modified.
type Input struct {
	AsOf      time.Time                        `json:"as_of"`
	Fills     []fills.Record                   `json:"fills"`
	Readings  signals.Readings                 `json:"readings"`
	Inventory []optimization.InventoryPosition `json:"inventory"`
}

// Result carries the output of every stage plus the merged diagnostics.
type Result struct {
	RunID        string              `json:"run_id"`
	AsOf         time.Time           `json:"as_of"`
	Profiling    profiling.Result    `json:"profiling"`
	Signals      signals.Result      `json:"signals"`
	Forecast     forecasting.Result  `json:"forecast"`
	Optimization optimization.Result `json:"optimization"`
	Diagnostics  []diag.Diagnostic   `json:"diagnostics"`
}

// Option customizes a run.
type Option func(*runner)

// WithMetrics records stage timings and outcome counts on rec.
func WithMetrics(rec *metrics.Recorder) Option {
	return func(r *runner) { r.metrics = rec }
}

// WithStageHook calls hook as each stage starts, from the goroutine running it.
func WithStageHook(hook func(stage string)) Option {
	return func(r *runner) { r.hook = hook }
}

type runner struct {
	metrics *metrics.Recorder
	hook    func(stage string)
}

func (r *runner) stage(name string, fn func() error) error {
	if r.hook != nil {
		r.hook(name)
	}
	began := time.Now()
	err := fn()
	r.metrics.ObserveStage(name, time.Since(began).Seconds())
	return err
}

// Run executes profiling and signal derivation concurrently, joins them, then forecasts
// and optimizes. An invalid configuration fails before any input is read.
func Run(ctx context.Context, in Input, cfg Config, opts ...Option) (res Result, err error) {
	r := &runner{}
	for _, opt := range opts {
		opt(r)
	}
	defer func() { r.metrics.RunFinished(err) }()

	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	if in.AsOf.IsZero() {
		return Result{}, diag.Invalid("as_of", "analysis date is required")
	}
	asOf := stats.SnapToDay(in.AsOf)

	runID, err := RunID(in, cfg)
	if err != nil {
		return Result{}, err
	}
	res = Result{RunID: runID, AsOf: asOf}

	log.Info().
		Str("run_id", runID).
		Str("as_of", stats.Label(asOf)).
		Int("fills", len(in.Fills)).
		Int("positions", len(in.Inventory)).
		Msg("Pipeline run started")

	// 1. Profiling and signals have no data dependency: run both, then join
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.stage(StageProfiling, func() error {
			p, err := profiling.Profile(gctx, in.Fills, asOf, cfg.Profiling)
			res.Profiling = p
			return err
		})
	})
	g.Go(func() error {
		return r.stage(StageSignals, func() error {
			s, err := signals.Derive(in.Readings, asOf, cfg.Signals)
			res.Signals = s
			return err
		})
	})
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	// 2. Forecast from the joined results
	err = r.stage(StageForecasting, func() error {
		f, err := forecasting.Forecast(ctx, res.Profiling.Profiles, res.Signals.Multipliers, asOf, cfg.Forecasting)
		res.Forecast = f
		return err
	})
	if err != nil {
		return Result{}, err
	}

	// 3. Optimize
	err = r.stage(StageOptimization, func() error {
		o, err := optimization.Optimize(ctx, res.Forecast.Forecasts, in.Inventory, res.Signals.Shortages, cfg.Optimization)
		res.Optimization = o
		return err
	})
	if err != nil {
		return Result{}, err
	}

	res.Diagnostics = mergeDiagnostics(res)
	r.record(res)

	log.Info().
		Str("run_id", runID).
		Int("profiles", len(res.Profiling.Profiles)).
		Int("forecast_rows", len(res.Forecast.Forecasts)).
		Int("orders", res.Optimization.Summary.TotalRecommended).
		Int("diagnostics", len(res.Diagnostics)).
		Msg("Pipeline run complete")

	return res, nil
}

// RunID derives a stable identifier from the canonical JSON of the input and config.
func RunID(in Input, cfg Config) (string, error) {
	payload, err := json.Marshal(struct {
		Input  Input  `json:"input"`
		Config Config `json:"config"`
	}{in, cfg})
	if err != nil {
		return "", fmt.Errorf("failed to encode run input: %w", err)
	}
	return uuid.NewSHA1(runNamespace, payload).String(), nil
}

func mergeDiagnostics(res Result) []diag.Diagnostic {
	var all []diag.Diagnostic
	all = append(all, res.Profiling.Diagnostics...)
	all = append(all, res.Signals.Diagnostics...)
	all = append(all, res.Forecast.Diagnostics...)
	all = append(all, res.Optimization.Diagnostics...)
	diag.Sort(all)
	if all == nil {
		all = []diag.Diagnostic{}
	}
	return all
}

func (r *runner) record(res Result) {
	if r.metrics == nil {
		return
	}
	r.metrics.CountDiagnostics(res.Diagnostics)
	byPriority := make(map[string]int, len(res.Optimization.Summary.ByPriority))
	for p, n := range res.Optimization.Summary.ByPriority {
		byPriority[string(p)] = n
	}
	r.metrics.SetOrders(byPriority)
	r.metrics.ForecastUnits.Set(res.Forecast.Summary.TotalPredictedUnits)
	r.metrics.OrderValue.Set(res.Optimization.Summary.TotalOrderCost.InexactFloat64())
}
