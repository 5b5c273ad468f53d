package profiling

import (
	"sort"

	"rxplan/internal/stats"
)

// Summarize counts due-soon and high-risk profiles and builds the behavior histogram.
func Summarize(profiles []RefillProfile, cfg Config) Summary {
	s := Summary{
		TotalProfiles:     len(profiles),
		DueSoonDays:       cfg.DueSoonDays,
		BehaviorHistogram: make(map[BehaviorClass]int, len(Classes)),
	}
	for _, c := range Classes {
		s.BehaviorHistogram[c] = 0
	}

	patients := make(map[string]struct{})
	for _, p := range profiles {
		patients[p.PatientID] = struct{}{}
		s.BehaviorHistogram[p.BehaviorClass]++
		if isDueWithin(p, cfg.DueSoonDays) {
			s.DueSoon++
		}
		if p.RiskOfLapse >= cfg.HighRiskThreshold {
			s.HighRisk++
		}
	}
	s.UniquePatients = len(patients)
	return s
}

func isDueWithin(p RefillProfile, days int) bool {
	return p.DaysUntilDue != nil && *p.DaysUntilDue >= 0 && *p.DaysUntilDue <= days
}

// DueWithin returns the profiles expected to refill within the next days, soonest first.
func DueWithin(profiles []RefillProfile, days int) []RefillProfile {
	var due []RefillProfile
	for _, p := range profiles {
		if isDueWithin(p, days) {
			due = append(due, p)
		}
	}
	sort.SliceStable(due, func(i, j int) bool {
		return due[i].PredictedNextFill.Before(*due[j].PredictedNextFill)
	})
	return due
}

// MedicationSummary aggregates profiles of one medication.
type MedicationSummary struct {
	Medication           string  `json:"medication"`
	Category             string  `json:"category,omitempty"`
	TotalPatients        int     `json:"total_patients"`
	PatientsDue          int     `json:"patients_due"`
	ExpectedQuantityDue  int     `json:"expected_quantity_due"`
	HighRiskPatients     int     `json:"high_risk_patients"`
	MeanRefillInterval   float64 `json:"mean_refill_interval_days"`
	MedianRefillInterval float64 `json:"median_refill_interval_days"`
}

// SummarizeByMedication groups profiles per medication, using cfg.DueSoonDays as the window.
func SummarizeByMedication(profiles []RefillProfile, cfg Config) []MedicationSummary {
	byMed := make(map[string][]RefillProfile)
	for _, p := range profiles {
		byMed[p.Medication] = append(byMed[p.Medication], p)
	}

	meds := make([]string, 0, len(byMed))
	for m := range byMed {
		meds = append(meds, m)
	}
	sort.Strings(meds)

	out := make([]MedicationSummary, 0, len(meds))
	for _, m := range meds {
		group := byMed[m]
		ms := MedicationSummary{Medication: m, TotalPatients: len(group)}

		var intervals []float64
		for _, p := range group {
			if p.Category != "" {
				ms.Category = p.Category
			}
			if isDueWithin(p, cfg.DueSoonDays) {
				ms.PatientsDue++
				ms.ExpectedQuantityDue += p.LastQuantity
			}
			if p.RiskOfLapse >= cfg.HighRiskThreshold {
				ms.HighRiskPatients++
			}
			if len(p.IntervalsDays) > 0 {
				intervals = append(intervals, p.MeanInterval)
			}
		}
		ms.MeanRefillInterval = stats.Round(stats.Mean(intervals), 1)
		ms.MedianRefillInterval = stats.Median(intervals)
		out = append(out, ms)
	}
	return out
}
