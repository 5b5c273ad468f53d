package fills

import (
	"fmt"
	"time"
)

// Record is a single dispensed prescription fill. It is the primary input row of the pipeline
// and is never mutated once handed over.
type Record struct {
	// PatientID identifies the patient (e.g., P0001).
	PatientID string `json:"patient_id"`
	// Medication is the dispensed product name (e.g., Metformin 500mg).
	Medication string `json:"medication"`
	// Category is the therapeutic category used to apply external-signal multipliers.
	Category string `json:"category,omitempty"`
	// FillDate is the dispensing date. A zero value marks a malformed row.
	FillDate time.Time `json:"fill_date"`
	// Quantity is the number of units dispensed.
	Quantity int `json:"quantity"`
	// DaysSupply is the number of days the fill is expected to last.
	DaysSupply int `json:"days_supply"`
}

// GroupKey identifies the patient-medication pair a record belongs to.
type GroupKey struct {
	PatientID  string `json:"patient_id"`
	Medication string `json:"medication"`
}

func (k GroupKey) String() string {
	return k.PatientID + "/" + k.Medication
}

// Key returns the patient-medication pair of the record.
func (r Record) Key() GroupKey {
	return GroupKey{PatientID: r.PatientID, Medication: r.Medication}
}

// Validate reports the first reason the record cannot be used, or nil.
func (r Record) Validate(asOf time.Time) error {
	switch {
	case r.PatientID == "":
		return fmt.Errorf("missing patient_id")
	case r.Medication == "":
		return fmt.Errorf("missing medication")
	case r.FillDate.IsZero():
		return fmt.Errorf("missing fill_date")
	case r.Quantity < 0:
		return fmt.Errorf("negative quantity %d", r.Quantity)
	case r.DaysSupply < 0:
		return fmt.Errorf("negative days_supply %d", r.DaysSupply)
	case !asOf.IsZero() && r.FillDate.After(asOf):
		return fmt.Errorf("fill_date %s is after analysis date %s", r.FillDate.Format("2006-01-02"), asOf.Format("2006-01-02"))
	}
	return nil
}

// identity computes a unique string identifier for a record to aid deduplication.
func (r Record) identity() string {
	return fmt.Sprintf("%s|%s|%d|%d|%d",
		r.PatientID,
		r.Medication,
		r.FillDate.Unix(),
		r.Quantity,
		r.DaysSupply,
	)
}
