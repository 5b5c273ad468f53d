package forecasting

import (
	"time"

	"rxplan/internal/diag"
)

// Method names how a row's base demand was obtained.
type Method string

const (
	PatientBased       Method = "patient_based"
	HistoricalFallback Method = "historical_fallback"
)

// DailyForecast is the demand estimate of one medication on one horizon day.
type DailyForecast struct {
	Medication      string    `json:"medication"`
	Category        string    `json:"category"`
	Date            time.Time `json:"date"`
	PredictedUnits  float64   `json:"predicted_units"`
	LowerBound      float64   `json:"lower_bound"`
	UpperBound      float64   `json:"upper_bound"`
	BaseUnits       float64   `json:"base_units"`
	Multiplier      float64   `json:"multiplier"`
	ConfidenceScore float64   `json:"confidence_score"`
	IsSpike         bool      `json:"is_spike"`
	Contributors    int       `json:"contributors"`
	Method          Method    `json:"method"`
}

// CategoryForecast sums the medication rows of one category on one day.
type CategoryForecast struct {
	Category       string    `json:"category"`
	Date           time.Time `json:"date"`
	PredictedUnits float64   `json:"predicted_units"`
	BaseUnits      float64   `json:"base_units"`
	Medications    int       `json:"medications"`
	MeanConfidence float64   `json:"mean_confidence"`
}

// SpikeAlert surfaces a row whose demand exceeds the trailing baseline by the spike threshold.
type SpikeAlert struct {
	Medication     string    `json:"medication"`
	Date           time.Time `json:"date"`
	PredictedUnits float64   `json:"predicted_units"`
	BaselineUnits  float64   `json:"baseline_units"`
	Ratio          float64   `json:"ratio"`
}

// Summary holds run-level forecast figures.
type Summary struct {
	Start               time.Time `json:"start"`
	End                 time.Time `json:"end"`
	HorizonDays         int       `json:"horizon_days"`
	Medications         int       `json:"medications"`
	TotalPredictedUnits float64   `json:"total_predicted_units"`
	TotalBaseUnits      float64   `json:"total_base_units"`
	SpikeCount          int       `json:"spike_count"`
	MeanConfidence      float64   `json:"mean_confidence"`
	FallbackCount       int       `json:"fallback_count"`
}

// Result is the output of a forecasting run.
type Result struct {
	Forecasts   []DailyForecast    `json:"forecasts"`
	Categories  []CategoryForecast `json:"categories"`
	SpikeAlerts []SpikeAlert       `json:"spike_alerts"`
	Summary     Summary            `json:"summary"`
	Diagnostics []diag.Diagnostic  `json:"diagnostics,omitempty"`
}

// ForMedication returns the rows of one medication, in date order.
func (r Result) ForMedication(medication string) []DailyForecast {
	var out []DailyForecast
	for _, f := range r.Forecasts {
		if f.Medication == medication {
			out = append(out, f)
		}
	}
	return out
}
