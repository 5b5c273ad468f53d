package profiling

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"rxplan/internal/diag"
	"rxplan/internal/fills"
	"rxplan/internal/parallel"
	"rxplan/internal/stats"

	"github.com/rs/zerolog/log"
)

const stage = "profiling"

// Profile groups fill records by patient and medication and builds one RefillProfile per group.
// Malformed rows are excluded and reported as diagnostics; only an invalid config is an error.
func Profile(ctx context.Context, records []fills.Record, asOf time.Time, cfg Config) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	if asOf.IsZero() {
		return Result{}, diag.Invalid("as_of", "analysis date is required")
	}
	asOf = stats.SnapToDay(asOf)

	// 1. Validate and group
	keys, groups, diagnostics := groupRecords(records, asOf)

	// 2. Build one profile per group, each writing only its own slot
	profiles := make([]RefillProfile, len(keys))
	guards := make([][]diag.Diagnostic, len(keys))
	err := parallel.ForEach(ctx, len(keys), cfg.Workers, func(_ context.Context, i int) error {
		profiles[i], guards[i] = buildProfile(keys[i], groups[keys[i]], asOf, cfg)
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	for _, g := range guards {
		diagnostics = append(diagnostics, g...)
	}

	// 3. Summarize
	summary := Summarize(profiles, cfg)
	summary.ExcludedRecords = len(records) - countGrouped(groups)

	log.Info().
		Int("records", len(records)).
		Int("profiles", summary.TotalProfiles).
		Int("excluded", summary.ExcludedRecords).
		Int("due_soon", summary.DueSoon).
		Int("high_risk", summary.HighRisk).
		Msg("Patient profiling complete")

	return Result{
		AsOf:        asOf,
		Profiles:    profiles,
		Summary:     summary,
		Diagnostics: diagnostics,
	}, nil
}

func groupRecords(records []fills.Record, asOf time.Time) ([]fills.GroupKey, map[fills.GroupKey][]fills.Record, []diag.Diagnostic) {
	groups := make(map[fills.GroupKey][]fills.Record)
	var diagnostics []diag.Diagnostic

	for i, r := range records {
		if err := r.Validate(asOf); err != nil {
			diagnostics = append(diagnostics, diag.Diagnostic{
				Stage:   stage,
				Kind:    diag.Validation,
				Entity:  fmt.Sprintf("row %d (%s)", i, r.Key()),
				Message: err.Error(),
			})
			continue
		}
		k := r.Key()
		groups[k] = append(groups[k], r)
	}

	keys := make([]fills.GroupKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].PatientID != keys[j].PatientID {
			return keys[i].PatientID < keys[j].PatientID
		}
		return keys[i].Medication < keys[j].Medication
	})

	return keys, groups, diagnostics
}

func countGrouped(groups map[fills.GroupKey][]fills.Record) int {
	n := 0
	for _, g := range groups {
		n += len(g)
	}
	return n
}

// buildProfile computes the profile of one group. history is only read.
func buildProfile(key fills.GroupKey, history []fills.Record, asOf time.Time, cfg Config) (RefillProfile, []diag.Diagnostic) {
	ordered := make([]fills.Record, len(history))
	copy(ordered, history)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].FillDate.Before(ordered[j].FillDate)
	})

	p := RefillProfile{
		PatientID:  key.PatientID,
		Medication: key.Medication,
		Fills:      make([]Fill, len(ordered)),
	}
	for i, r := range ordered {
		p.Fills[i] = Fill{Date: stats.SnapToDay(r.FillDate), Quantity: r.Quantity, DaysSupply: r.DaysSupply}
		if r.Category != "" {
			p.Category = r.Category
		}
	}

	last := p.Fills[len(p.Fills)-1]
	p.LastFillDate = last.Date
	p.LastQuantity = last.Quantity

	// A single fill carries no interval information
	if len(p.Fills) == 1 {
		p.BehaviorClass = NewPatient
		if last.DaysSupply > 0 {
			expected := stats.AddDays(last.Date, last.DaysSupply)
			p.RiskOfLapse = LapseRisk(expected, float64(last.DaysSupply), 0, asOf, cfg)
		}
		return p, nil
	}

	var guards []diag.Diagnostic

	p.IntervalsDays = make([]float64, len(p.Fills)-1)
	for i := 1; i < len(p.Fills); i++ {
		p.IntervalsDays[i-1] = float64(stats.DaysBetween(p.Fills[i-1].Date, p.Fills[i].Date))
	}

	p.MeanInterval = stats.Mean(p.IntervalsDays)
	if sd, ok := stats.SampleStdDev(p.IntervalsDays); ok {
		p.StdDevInterval = sd
	} else {
		p.StdDevInterval = cfg.SingleIntervalStdDevDays
		guards = append(guards, diag.Diagnostic{
			Stage:   stage,
			Kind:    diag.ComputationGuard,
			Entity:  key.String(),
			Message: fmt.Sprintf("single refill interval; assumed stddev of %.0f days", cfg.SingleIntervalStdDevDays),
		})
	}

	if p.MeanInterval <= 0 {
		guards = append(guards, diag.Diagnostic{
			Stage:   stage,
			Kind:    diag.ComputationGuard,
			Entity:  key.String(),
			Message: "all fills on the same day; mean interval is zero, consistency set to 0",
		})
	}

	p.ConsistencyScore = ConsistencyScore(p.MeanInterval, p.StdDevInterval)
	p.BehaviorClass = Classify(p.ConsistencyScore, cfg)
	p.PredictionConfidence = PredictionConfidence(p.ConsistencyScore, len(p.Fills), cfg)

	// Prediction: last fill + mean interval, ± z·sd in whole days
	predicted := stats.AddDays(p.LastFillDate, int(math.Round(p.MeanInterval)))
	half := int(math.Round(cfg.ZScore * p.StdDevInterval))
	p.PredictedNextFill = &predicted
	p.PredictionInterval = &PredictionInterval{
		Lower:         stats.AddDays(predicted, -half),
		Upper:         stats.AddDays(predicted, half),
		HalfWidthDays: half,
	}
	due := stats.DaysBetween(asOf, predicted)
	p.DaysUntilDue = &due

	p.RiskOfLapse = LapseRisk(predicted, p.MeanInterval, p.ConsistencyScore, asOf, cfg)

	return p, guards
}

// ConsistencyScore is the normalized inverse of interval variability, clamped to [0,1].
// A zero mean yields 0; a zero deviation yields 1.
func ConsistencyScore(mean, stddev float64) float64 {
	if mean <= 0 {
		return 0
	}
	if stddev == 0 {
		return 1
	}
	return stats.Clamp01(1 - stddev/mean)
}

// Classify maps a consistency score of a multi-fill history to its behavior class.
func Classify(consistency float64, cfg Config) BehaviorClass {
	switch {
	case consistency >= cfg.HighlyRegularThreshold:
		return HighlyRegular
	case consistency >= cfg.RegularThreshold:
		return Regular
	default:
		return Irregular
	}
}

// LapseRisk is 0 until asOf passes expected by more than the grace window, then a weighted
// blend of days overdue relative to the usual interval and irregularity, clamped to [0,1].
func LapseRisk(expected time.Time, meanInterval, consistency float64, asOf time.Time, cfg Config) float64 {
	overdue := stats.DaysBetween(expected, asOf)
	if overdue <= cfg.GraceDays {
		return 0
	}

	ratio := 1.0
	if meanInterval > 0 {
		ratio = float64(overdue) / meanInterval
	}

	total := cfg.OverdueWeight + cfg.ConsistencyWeight
	risk := (cfg.OverdueWeight*ratio + cfg.ConsistencyWeight*(1-consistency)) / total
	return stats.Clamp01(risk)
}

// PredictionConfidence starts from consistency and rewards longer histories.
// The boost is capped but never lowers the score.
func PredictionConfidence(consistency float64, fillCount int, cfg Config) float64 {
	confidence := consistency
	switch {
	case fillCount >= cfg.LongHistoryFills:
		confidence = math.Max(confidence, math.Min(cfg.LongHistoryCap, confidence+cfg.LongHistoryBoost))
	case fillCount >= cfg.MediumHistoryFills:
		confidence = math.Max(confidence, math.Min(cfg.MediumHistoryCap, confidence+cfg.MediumHistoryBoost))
	}
	return stats.Clamp01(confidence)
}
