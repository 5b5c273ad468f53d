package fills

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestStore_Persistence(t *testing.T) {
	tmpDir := t.TempDir()

	store1 := NewStore()
	sourceID := "main-street"

	records := []Record{
		{PatientID: "P0001", Medication: "Metformin 500mg", Category: "diabetes", FillDate: day(2024, 2, 1), Quantity: 60, DaysSupply: 30},
		{PatientID: "P0001", Medication: "Metformin 500mg", Category: "diabetes", FillDate: day(2024, 1, 2), Quantity: 60, DaysSupply: 30},
		{PatientID: "P0002", Medication: "Lisinopril 10mg", Category: "cardiovascular", FillDate: day(2024, 1, 15), Quantity: 30, DaysSupply: 30},
	}

	if added := store1.Append(sourceID, records); added != 3 {
		t.Fatalf("Expected 3 records added, got %d", added)
	}
	if err := store1.Save(tmpDir, sourceID); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	path := filepath.Join(tmpDir, sourceID+".jsonl")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("History file does not exist: %s", path)
	}

	store2 := NewStore()
	if err := store2.Load(tmpDir, sourceID); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	loaded := store2.All(sourceID)
	if len(loaded) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(loaded))
	}
	if !loaded[0].FillDate.Equal(day(2024, 1, 2)) {
		t.Errorf("Expected chronological order, first fill %v", loaded[0].FillDate)
	}
	if got := store2.LatestFillDate(sourceID); !got.Equal(day(2024, 2, 1)) {
		t.Errorf("Expected latest fill 2024-02-01, got %v", got)
	}

	// Re-appending the same rows must not duplicate them
	if added := store2.Append(sourceID, records); added != 0 {
		t.Errorf("Expected 0 records added on re-append, got %d", added)
	}
	if store2.Count(sourceID) != 3 {
		t.Errorf("Expected 3 records after re-append, got %d", store2.Count(sourceID))
	}
}

func TestStore_LoadMissingIsNotAnError(t *testing.T) {
	s := NewStore()
	if err := s.Load(t.TempDir(), "nothing-here"); err != nil {
		t.Fatalf("expected nil error for missing file, got %v", err)
	}
	if s.Count("nothing-here") != 0 {
		t.Errorf("expected empty store")
	}
}

func TestStore_Queries(t *testing.T) {
	s := NewStore()
	s.Append("src", []Record{
		{PatientID: "A", Medication: "X", FillDate: day(2024, 1, 1), Quantity: 1},
		{PatientID: "B", Medication: "X", FillDate: day(2024, 1, 10), Quantity: 1},
		{PatientID: "A", Medication: "Y", FillDate: day(2024, 1, 20), Quantity: 1},
	})

	if got := len(s.InRange("src", day(2024, 1, 5), day(2024, 1, 20))); got != 2 {
		t.Errorf("InRange() returned %d records, want 2", got)
	}
	if got := len(s.InRange("src", day(2024, 1, 5), time.Time{})); got != 2 {
		t.Errorf("open-ended InRange() returned %d records, want 2", got)
	}
	if got := len(s.ForPatient("src", "A")); got != 2 {
		t.Errorf("ForPatient() returned %d records, want 2", got)
	}
}

func TestRecord_Validate(t *testing.T) {
	asOf := day(2024, 6, 1)
	valid := Record{PatientID: "P1", Medication: "M", FillDate: day(2024, 5, 1), Quantity: 30, DaysSupply: 30}

	tests := []struct {
		name    string
		mutate  func(r *Record)
		wantErr bool
	}{
		{"Valid", func(r *Record) {}, false},
		{"MissingPatient", func(r *Record) { r.PatientID = "" }, true},
		{"MissingMedication", func(r *Record) { r.Medication = "" }, true},
		{"MissingDate", func(r *Record) { r.FillDate = time.Time{} }, true},
		{"NegativeQuantity", func(r *Record) { r.Quantity = -5 }, true},
		{"NegativeSupply", func(r *Record) { r.DaysSupply = -1 }, true},
		{"FutureFill", func(r *Record) { r.FillDate = day(2024, 7, 1) }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid
			tt.mutate(&r)
			if err := r.Validate(asOf); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
