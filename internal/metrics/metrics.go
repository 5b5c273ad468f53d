package metrics

import (
	"fmt"

	"rxplan/internal/diag"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder holds the pipeline collectors on a private registry.
type Recorder struct {
	registry *prometheus.Registry

	StageDuration    *prometheus.HistogramVec
	Diagnostics      *prometheus.CounterVec
	OrdersByPriority *prometheus.GaugeVec
	ForecastUnits    prometheus.Gauge
	OrderValue       prometheus.Gauge
	Runs             *prometheus.CounterVec
}

// NewRecorder creates and registers every collector.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rxplan_stage_duration_seconds",
				Help:    "Pipeline stage duration in seconds",
				Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"stage"},
		),
		Diagnostics: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rxplan_diagnostics_total",
				Help: "Diagnostics raised per stage and kind",
			},
			[]string{"stage", "kind"},
		),
		OrdersByPriority: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "rxplan_order_recommendations",
				Help: "Order recommendations of the last run per priority",
			},
			[]string{"priority"},
		),
		ForecastUnits: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "rxplan_forecast_units",
				Help: "Total predicted units over the forecast horizon of the last run",
			},
		),
		OrderValue: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "rxplan_order_value",
				Help: "Total accepted order cost of the last run",
			},
		),
		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rxplan_runs_total",
				Help: "Pipeline runs by outcome",
			},
			[]string{"status"},
		),
	}

	r.registry.MustRegister(
		r.StageDuration,
		r.Diagnostics,
		r.OrdersByPriority,
		r.ForecastUnits,
		r.OrderValue,
		r.Runs,
	)
	return r
}

// Registry exposes the private registry for gathering.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveStage records how long a stage took.
func (r *Recorder) ObserveStage(stage string, seconds float64) {
	if r == nil {
		return
	}
	r.StageDuration.WithLabelValues(stage).Observe(seconds)
}

// CountDiagnostics adds every diagnostic to the per stage/kind counter.
func (r *Recorder) CountDiagnostics(ds []diag.Diagnostic) {
	if r == nil {
		return
	}
	for _, d := range ds {
		r.Diagnostics.WithLabelValues(d.Stage, string(d.Kind)).Inc()
	}
}

// SetOrders replaces the per-priority order gauge.
func (r *Recorder) SetOrders(byPriority map[string]int) {
	if r == nil {
		return
	}
	r.OrdersByPriority.Reset()
	for p, n := range byPriority {
		r.OrdersByPriority.WithLabelValues(p).Set(float64(n))
	}
}

// RunFinished counts a run by outcome.
func (r *Recorder) RunFinished(err error) {
	if r == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.Runs.WithLabelValues(status).Inc()
}

// WriteTextfile writes the current values in the node-exporter textfile format.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
