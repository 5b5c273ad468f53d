package profiling

import (
	"time"

	"rxplan/internal/diag"
)

// BehaviorClass partitions refill profiles by how predictable the patient is.
type BehaviorClass string

const (
	HighlyRegular BehaviorClass = "highly_regular"
	Regular       BehaviorClass = "regular"
	Irregular     BehaviorClass = "irregular"
	NewPatient    BehaviorClass = "new_patient"
)

// Classes lists every behavior class in display order.
var Classes = []BehaviorClass{HighlyRegular, Regular, Irregular, NewPatient}

// Fill is one valid dispensing event inside a profile.
type Fill struct {
	Date       time.Time `json:"date"`
	Quantity   int       `json:"quantity"`
	DaysSupply int       `json:"days_supply"`
}

// PredictionInterval bounds the predicted next fill date at the configured confidence.
type PredictionInterval struct {
	Lower         time.Time `json:"lower"`
	Upper         time.Time `json:"upper"`
	HalfWidthDays int       `json:"half_width_days"`
}

// RefillProfile summarizes one patient's behavior for one medication.
type RefillProfile struct {
	PatientID  string `json:"patient_id"`
	Medication string `json:"medication"`
	Category   string `json:"category,omitempty"`

	Fills         []Fill    `json:"fills"`
	IntervalsDays []float64 `json:"intervals_days,omitempty"`

	MeanInterval     float64       `json:"mean_interval_days"`
	StdDevInterval   float64       `json:"stddev_interval_days"`
	ConsistencyScore float64       `json:"consistency_score"`
	BehaviorClass    BehaviorClass `json:"behavior_class"`

	LastFillDate time.Time `json:"last_fill_date"`
	LastQuantity int       `json:"last_quantity"`

	PredictedNextFill    *time.Time          `json:"predicted_next_fill_date,omitempty"`
	PredictionInterval   *PredictionInterval `json:"prediction_interval,omitempty"`
	PredictionConfidence float64             `json:"prediction_confidence"`
	DaysUntilDue         *int                `json:"days_until_due,omitempty"`

	RiskOfLapse float64 `json:"risk_of_lapse"`
}

// HasPrediction reports whether the profile carries a next-fill prediction.
func (p RefillProfile) HasPrediction() bool {
	return p.PredictedNextFill != nil && p.PredictionInterval != nil
}

// Summary holds run-level counts over all profiles.
type Summary struct {
	TotalProfiles     int                   `json:"total_profiles"`
	UniquePatients    int                   `json:"unique_patients"`
	DueSoonDays       int                   `json:"due_soon_days"`
	DueSoon           int                   `json:"due_soon"`
	HighRisk          int                   `json:"high_risk"`
	BehaviorHistogram map[BehaviorClass]int `json:"behavior_histogram"`
	ExcludedRecords   int                   `json:"excluded_records"`
}

// Result is the output of a profiling run.
type Result struct {
	AsOf        time.Time         `json:"as_of"`
	Profiles    []RefillProfile   `json:"profiles"`
	Summary     Summary           `json:"summary"`
	Diagnostics []diag.Diagnostic `json:"diagnostics,omitempty"`
}
