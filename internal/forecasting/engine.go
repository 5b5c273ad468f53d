package forecasting

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"rxplan/internal/diag"
	"rxplan/internal/parallel"
	"rxplan/internal/profiling"
	"rxplan/internal/signals"
	"rxplan/internal/stats"

	"github.com/rs/zerolog/log"
)

const stage = "forecasting"

// Forecast projects daily demand per medication over cfg.HorizonDays days beginning at start.
// Every medication seen in profiles gets exactly one row per horizon day.
func Forecast(ctx context.Context, profiles []profiling.RefillProfile, multipliers signals.Multipliers, start time.Time, cfg Config) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	if start.IsZero() {
		return Result{}, diag.Invalid("start", "forecast start date is required")
	}

	horizon := stats.NewHorizon(start, cfg.HorizonDays)
	meds, groups := groupByMedication(profiles)

	// One slot per medication; rows are flattened in medication order afterwards
	outcomes := make([]medicationOutcome, len(meds))
	err := parallel.ForEach(ctx, len(meds), cfg.Workers, func(_ context.Context, i int) error {
		outcomes[i] = forecastMedication(meds[i], groups[meds[i]], multipliers, horizon, cfg)
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Forecasts:   make([]DailyForecast, 0, len(meds)*horizon.Days),
		SpikeAlerts: []SpikeAlert{},
	}
	for _, o := range outcomes {
		res.Forecasts = append(res.Forecasts, o.rows...)
		res.SpikeAlerts = append(res.SpikeAlerts, o.spikes...)
		res.Diagnostics = append(res.Diagnostics, o.diagnostics...)
	}
	res.Categories = AggregateByCategory(res.Forecasts)
	res.Summary = summarize(res.Forecasts, outcomes, horizon)

	log.Info().
		Str("start", stats.Label(horizon.Start)).
		Int("horizon_days", horizon.Days).
		Int("medications", res.Summary.Medications).
		Int("fallbacks", res.Summary.FallbackCount).
		Int("spikes", res.Summary.SpikeCount).
		Float64("total_units", res.Summary.TotalPredictedUnits).
		Msg("Demand forecast complete")

	return res, nil
}

func groupByMedication(profiles []profiling.RefillProfile) ([]string, map[string][]profiling.RefillProfile) {
	groups := make(map[string][]profiling.RefillProfile)
	for _, p := range profiles {
		groups[p.Medication] = append(groups[p.Medication], p)
	}
	meds := make([]string, 0, len(groups))
	for m, g := range groups {
		meds = append(meds, m)
		sort.SliceStable(g, func(i, j int) bool { return g[i].PatientID < g[j].PatientID })
	}
	sort.Strings(meds)
	return meds, groups
}

type medicationOutcome struct {
	rows        []DailyForecast
	spikes      []SpikeAlert
	diagnostics []diag.Diagnostic
	fallback    bool
}

// trailingHistory is the fill activity of one medication in the window before the horizon.
type trailingHistory struct {
	units    float64
	patients int
	baseline float64
}

func history(group []profiling.RefillProfile, window stats.Horizon) trailingHistory {
	var h trailingHistory
	for _, p := range group {
		filled := false
		for _, f := range p.Fills {
			if window.Contains(f.Date) {
				h.units += float64(f.Quantity)
				filled = true
			}
		}
		if filled {
			h.patients++
		}
	}
	h.baseline = h.units / float64(window.Days)
	return h
}

func forecastMedication(medication string, group []profiling.RefillProfile, multipliers signals.Multipliers, horizon stats.Horizon, cfg Config) medicationOutcome {
	var out medicationOutcome

	category := cfg.DefaultCategory
	for _, p := range group {
		if p.Category != "" {
			category = p.Category
			break
		}
	}
	multiplier := multipliers.Combined(category)
	hist := history(group, horizon.Trailing(cfg.TrailingWindowDays))

	var predicted []profiling.RefillProfile
	for _, p := range group {
		if p.HasPrediction() {
			predicted = append(predicted, p)
		}
	}

	base := make([]float64, horizon.Days)
	contributors := make([]int, horizon.Days)
	confidence := make([]float64, horizon.Days)
	method := PatientBased

	if len(predicted) < cfg.MinContributors {
		// Too few predictable patients: fall back to the trailing average
		method = HistoricalFallback
		out.fallback = true
		conf := cfg.FallbackConfidenceCeiling * damping(hist.patients, cfg.ConfidenceK)
		for i := range base {
			base[i] = hist.baseline
			contributors[i] = hist.patients
			confidence[i] = conf
		}
		out.diagnostics = append(out.diagnostics, diag.Diagnostic{
			Stage:  stage,
			Kind:   diag.InsufficientData,
			Entity: medication,
			Message: fmt.Sprintf("%d predicted profiles (< %d); using %d-day trailing average of %.2f units/day",
				len(predicted), cfg.MinContributors, cfg.TrailingWindowDays, hist.baseline),
		})
	} else {
		confSum := make([]float64, horizon.Days)
		var allConf []float64
		for _, p := range predicted {
			spread(p, horizon, base, contributors, confSum)
			allConf = append(allConf, p.PredictionConfidence)
		}
		medConf := stats.Mean(allConf) * damping(len(predicted), cfg.ConfidenceK)
		for i := range confidence {
			if contributors[i] == 0 {
				confidence[i] = medConf
				continue
			}
			confidence[i] = confSum[i] / float64(contributors[i]) * damping(contributors[i], cfg.ConfidenceK)
		}
	}

	if hist.baseline == 0 {
		out.diagnostics = append(out.diagnostics, diag.Diagnostic{
			Stage:   stage,
			Kind:    diag.ComputationGuard,
			Entity:  medication,
			Message: fmt.Sprintf("no fills in the %d-day trailing window; spike detection disabled", cfg.TrailingWindowDays),
		})
	}

	uncertainty := cfg.PatientUncertainty
	if method == HistoricalFallback {
		uncertainty = cfg.FallbackUncertainty
	}

	out.rows = make([]DailyForecast, horizon.Days)
	for i, day := range horizon.Dates() {
		adjusted := base[i] * multiplier
		sd := adjusted * uncertainty
		row := DailyForecast{
			Medication:      medication,
			Category:        category,
			Date:            day,
			PredictedUnits:  adjusted,
			LowerBound:      math.Max(0, adjusted-cfg.BoundsZScore*sd),
			UpperBound:      adjusted + cfg.BoundsZScore*sd,
			BaseUnits:       base[i],
			Multiplier:      multiplier,
			ConfidenceScore: stats.Clamp01(confidence[i]),
			Contributors:    contributors[i],
			Method:          method,
		}
		if hist.baseline > 0 && adjusted > cfg.SpikeThreshold*hist.baseline {
			row.IsSpike = true
			out.spikes = append(out.spikes, SpikeAlert{
				Medication:     medication,
				Date:           day,
				PredictedUnits: adjusted,
				BaselineUnits:  hist.baseline,
				Ratio:          stats.Round(adjusted/hist.baseline, 2),
			})
		}
		out.rows[i] = row
	}

	return out
}

// spread distributes the profile's last quantity over its prediction interval with a
// triangular weight peaked at the predicted date. Weights sum to 1 over the whole interval;
// days outside the horizon are dropped.
func spread(p profiling.RefillProfile, horizon stats.Horizon, base []float64, contributors []int, confSum []float64) {
	h := p.PredictionInterval.HalfWidthDays
	if h < 0 {
		h = 0
	}
	center := stats.DaysBetween(horizon.Start, *p.PredictedNextFill)
	norm := float64((h + 1) * (h + 1))

	lo := max(0, center-h)
	hi := min(horizon.Days-1, center+h)
	for idx := lo; idx <= hi; idx++ {
		off := idx - center
		if off < 0 {
			off = -off
		}
		w := float64(h+1-off) / norm
		base[idx] += float64(p.LastQuantity) * w
		contributors[idx]++
		confSum[idx] += p.PredictionConfidence
	}
}

// damping is the n/(n+k) contributor penalty.
func damping(n int, k float64) float64 {
	if n <= 0 {
		return 0
	}
	return float64(n) / (float64(n) + k)
}

// AggregateByCategory sums rows per category and day, ordered by category then date.
func AggregateByCategory(rows []DailyForecast) []CategoryForecast {
	type key struct {
		category string
		day      int64
	}
	acc := make(map[key]*CategoryForecast)
	var keys []key
	for _, r := range rows {
		k := key{r.Category, r.Date.Unix()}
		cf, ok := acc[k]
		if !ok {
			cf = &CategoryForecast{Category: r.Category, Date: r.Date}
			acc[k] = cf
			keys = append(keys, k)
		}
		cf.PredictedUnits += r.PredictedUnits
		cf.BaseUnits += r.BaseUnits
		cf.MeanConfidence += r.ConfidenceScore
		cf.Medications++
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].category != keys[j].category {
			return keys[i].category < keys[j].category
		}
		return keys[i].day < keys[j].day
	})

	out := make([]CategoryForecast, len(keys))
	for i, k := range keys {
		cf := *acc[k]
		cf.MeanConfidence /= float64(cf.Medications)
		out[i] = cf
	}
	return out
}

func summarize(rows []DailyForecast, outcomes []medicationOutcome, horizon stats.Horizon) Summary {
	s := Summary{
		Start:       horizon.Start,
		End:         horizon.End(),
		HorizonDays: horizon.Days,
		Medications: len(outcomes),
	}
	confidences := make([]float64, len(rows))
	for i, r := range rows {
		s.TotalPredictedUnits += r.PredictedUnits
		s.TotalBaseUnits += r.BaseUnits
		if r.IsSpike {
			s.SpikeCount++
		}
		confidences[i] = r.ConfidenceScore
	}
	for _, o := range outcomes {
		if o.fallback {
			s.FallbackCount++
		}
	}
	s.MeanConfidence = stats.Mean(confidences)
	return s
}
