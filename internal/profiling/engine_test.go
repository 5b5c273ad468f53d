package profiling

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"rxplan/internal/diag"
	"rxplan/internal/fills"
)

var base = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func dayN(n int) time.Time {
	return base.AddDate(0, 0, n)
}

func fill(patient, med string, dayOffset, qty int) fills.Record {
	return fills.Record{
		PatientID:  patient,
		Medication: med,
		Category:   "diabetes",
		FillDate:   dayN(dayOffset),
		Quantity:   qty,
		DaysSupply: 30,
	}
}

func findProfile(t *testing.T, res Result, patient, med string) RefillProfile {
	t.Helper()
	for _, p := range res.Profiles {
		if p.PatientID == patient && p.Medication == med {
			return p
		}
	}
	t.Fatalf("profile %s/%s not found", patient, med)
	return RefillProfile{}
}

func TestProfile_PerfectlyRegularPatient(t *testing.T) {
	records := []fills.Record{
		fill("P1", "Metformin", 60, 60),
		fill("P1", "Metformin", 0, 60),
		fill("P1", "Metformin", 30, 60),
	}

	res, err := Profile(context.Background(), records, dayN(61), DefaultConfig())
	if err != nil {
		t.Fatalf("Profile() error: %v", err)
	}

	p := findProfile(t, res, "P1", "Metformin")
	if !reflect.DeepEqual(p.IntervalsDays, []float64{30, 30}) {
		t.Errorf("expected intervals [30 30], got %v", p.IntervalsDays)
	}
	if p.StdDevInterval != 0 {
		t.Errorf("expected zero stddev, got %v", p.StdDevInterval)
	}
	if p.ConsistencyScore != 1.0 {
		t.Errorf("expected consistency 1.0, got %v", p.ConsistencyScore)
	}
	if p.BehaviorClass != HighlyRegular {
		t.Errorf("expected highly_regular, got %s", p.BehaviorClass)
	}
	if !p.HasPrediction() {
		t.Fatalf("expected a prediction")
	}
	if !p.PredictedNextFill.Equal(dayN(90)) {
		t.Errorf("expected next fill on day 90, got %v", p.PredictedNextFill)
	}
	if !p.PredictionInterval.Lower.Equal(dayN(90)) || !p.PredictionInterval.Upper.Equal(dayN(90)) {
		t.Errorf("expected zero-width interval, got %+v", p.PredictionInterval)
	}
	if *p.DaysUntilDue != 29 {
		t.Errorf("expected 29 days until due, got %d", *p.DaysUntilDue)
	}
	if p.RiskOfLapse != 0 {
		t.Errorf("expected zero lapse risk before due date, got %v", p.RiskOfLapse)
	}
}

func TestProfile_SingleFillIsNewPatient(t *testing.T) {
	res, err := Profile(context.Background(), []fills.Record{fill("P2", "Lisinopril", 10, 30)}, dayN(20), DefaultConfig())
	if err != nil {
		t.Fatalf("Profile() error: %v", err)
	}

	p := findProfile(t, res, "P2", "Lisinopril")
	if p.BehaviorClass != NewPatient {
		t.Errorf("expected new_patient, got %s", p.BehaviorClass)
	}
	if p.HasPrediction() || p.PredictionInterval != nil {
		t.Errorf("expected no prediction for a single fill")
	}
	if len(p.IntervalsDays) != 0 || p.MeanInterval != 0 || p.StdDevInterval != 0 {
		t.Errorf("expected no interval statistics, got %+v", p)
	}
}

func TestProfile_MalformedRowsAreExcluded(t *testing.T) {
	records := []fills.Record{
		fill("P1", "Metformin", 0, 60),
		fill("P1", "Metformin", 30, 60),
		// missing date
		{PatientID: "P1", Medication: "Metformin", Quantity: 60},
		// negative quantity
		{PatientID: "P1", Medication: "Metformin", FillDate: dayN(45), Quantity: -10},
	}

	res, err := Profile(context.Background(), records, dayN(50), DefaultConfig())
	if err != nil {
		t.Fatalf("malformed rows must not abort the run: %v", err)
	}

	if res.Summary.ExcludedRecords != 2 {
		t.Errorf("expected 2 excluded records, got %d", res.Summary.ExcludedRecords)
	}
	if got := diag.CountByKind(res.Diagnostics)[diag.Validation]; got != 2 {
		t.Errorf("expected 2 validation diagnostics, got %d", got)
	}
	p := findProfile(t, res, "P1", "Metformin")
	if len(p.Fills) != 2 {
		t.Errorf("expected 2 valid fills in the group, got %d", len(p.Fills))
	}
}

func TestProfile_ClassesAndBounds(t *testing.T) {
	records := []fills.Record{
		// regular: intervals 30, 20, 40 -> mean 30, sd 10
		fill("R", "M", 0, 30), fill("R", "M", 30, 30), fill("R", "M", 50, 30), fill("R", "M", 90, 30),
		// irregular: intervals 10, 40, 5
		fill("I", "M", 0, 30), fill("I", "M", 10, 30), fill("I", "M", 50, 30), fill("I", "M", 55, 30),
		// two fills: single interval uses the configured fallback deviation
		fill("T", "M", 0, 30), fill("T", "M", 30, 30),
		// same-day duplicates: zero mean interval
		fill("Z", "M", 5, 30), fill("Z", "M", 5, 30),
		// new patient
		fill("N", "M", 80, 30),
	}

	res, err := Profile(context.Background(), records, dayN(200), DefaultConfig())
	if err != nil {
		t.Fatalf("Profile() error: %v", err)
	}

	want := map[string]BehaviorClass{
		"R": Regular,
		"I": Irregular,
		"T": Regular,
		"Z": Irregular,
		"N": NewPatient,
	}
	for patient, class := range want {
		if got := findProfile(t, res, patient, "M").BehaviorClass; got != class {
			t.Errorf("patient %s: expected %s, got %s", patient, class, got)
		}
	}

	r := findProfile(t, res, "R", "M")
	if math.Abs(r.ConsistencyScore-2.0/3.0) > 1e-9 {
		t.Errorf("expected consistency 0.667, got %v", r.ConsistencyScore)
	}
	if r.PredictionInterval.HalfWidthDays != 20 { // round(1.96 * 10)
		t.Errorf("expected half width 20, got %d", r.PredictionInterval.HalfWidthDays)
	}

	histogramTotal := 0
	for _, p := range res.Profiles {
		if p.ConsistencyScore < 0 || p.ConsistencyScore > 1 {
			t.Errorf("%s: consistency out of range: %v", p.PatientID, p.ConsistencyScore)
		}
		if p.RiskOfLapse < 0 || p.RiskOfLapse > 1 {
			t.Errorf("%s: lapse risk out of range: %v", p.PatientID, p.RiskOfLapse)
		}
	}
	for _, n := range res.Summary.BehaviorHistogram {
		histogramTotal += n
	}
	if histogramTotal != len(res.Profiles) {
		t.Errorf("histogram covers %d profiles, want %d", histogramTotal, len(res.Profiles))
	}

	// T and Z have a single interval each, Z also has a zero mean
	if got := diag.CountByKind(res.Diagnostics)[diag.ComputationGuard]; got != 3 {
		t.Errorf("expected 3 computation guards, got %d", got)
	}
}

func TestClassify_Partition(t *testing.T) {
	cfg := DefaultConfig()
	for i := 0; i <= 1000; i++ {
		score := float64(i) / 1000
		class := Classify(score, cfg)
		matches := 0
		if score >= cfg.HighlyRegularThreshold && class == HighlyRegular {
			matches++
		}
		if score >= cfg.RegularThreshold && score < cfg.HighlyRegularThreshold && class == Regular {
			matches++
		}
		if score < cfg.RegularThreshold && class == Irregular {
			matches++
		}
		if matches != 1 {
			t.Fatalf("score %v classified as %s, expected exactly one matching band", score, class)
		}
	}
}

func TestLapseRisk(t *testing.T) {
	cfg := DefaultConfig()
	expected := dayN(90)

	tests := []struct {
		name        string
		asOf        time.Time
		consistency float64
		want        float64
	}{
		{"NotYetDue", dayN(80), 1, 0},
		{"WithinGrace", dayN(95), 1, 0},
		{"OverdueRegular", dayN(110), 1, 0.5 * 20.0 / 30.0},
		{"OverdueIrregular", dayN(110), 0.4, 0.5*20.0/30.0 + 0.5*0.6},
		{"LongOverdueClamped", dayN(400), 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LapseRisk(expected, 30, tt.consistency, tt.asOf, cfg)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("LapseRisk() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPredictionConfidence(t *testing.T) {
	def := DefaultConfig()

	tuned := DefaultConfig()
	tuned.MediumHistoryFills = 3
	tuned.MediumHistoryBoost = 0.2
	tuned.MediumHistoryCap = 0.99
	tuned.LongHistoryFills = 20

	tests := []struct {
		name        string
		cfg         Config
		consistency float64
		fills       int
		want        float64
	}{
		{"ShortHistory", def, 0.7, 5, 0.7},
		{"MediumHistory", def, 0.7, 6, 0.75},
		{"MediumCapped", def, 0.88, 8, 0.90},
		{"LongHistory", def, 0.7, 10, 0.80},
		{"AboveCapUnchanged", def, 0.97, 12, 0.97},
		{"TunedMedium", tuned, 0.7, 3, 0.9},
		{"TunedLongThreshold", tuned, 0.7, 12, 0.9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PredictionConfidence(tt.consistency, tt.fills, tt.cfg)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("PredictionConfidence() = %v, want %v", got, tt.want)
			}
		})
	}

	bad := DefaultConfig()
	bad.LongHistoryFills = 4
	if err := bad.Validate(); !errors.Is(err, diag.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig when long_history_fills < medium_history_fills, got %v", err)
	}
}

func TestProfile_NewPatientLapse(t *testing.T) {
	// Single 30-day fill on day 0, checked on day 60: 30 days past expected
	res, err := Profile(context.Background(), []fills.Record{fill("N", "M", 0, 30)}, dayN(60), DefaultConfig())
	if err != nil {
		t.Fatalf("Profile() error: %v", err)
	}
	p := findProfile(t, res, "N", "M")
	if p.RiskOfLapse != 1 {
		t.Errorf("expected lapse risk 1 (overdue by a full supply, unknown regularity), got %v", p.RiskOfLapse)
	}
}

func TestProfile_Deterministic(t *testing.T) {
	var records []fills.Record
	for p := 0; p < 40; p++ {
		for k := 0; k < 5; k++ {
			records = append(records, fill(string(rune('A'+p%26))+string(rune('a'+p/26)), "M", k*(25+p%10), 30))
		}
	}
	cfg := DefaultConfig()
	cfg.Workers = 8

	a, err := Profile(context.Background(), records, dayN(300), cfg)
	if err != nil {
		t.Fatalf("Profile() error: %v", err)
	}
	b, _ := Profile(context.Background(), records, dayN(300), cfg)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("expected identical results across runs")
	}
}

func TestProfile_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RegularThreshold = 0.9
	cfg.HighlyRegularThreshold = 0.8

	_, err := Profile(context.Background(), nil, dayN(0), cfg)
	if !errors.Is(err, diag.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestDueWithinAndMedicationSummary(t *testing.T) {
	records := []fills.Record{
		fill("A", "Metformin", 0, 60), fill("A", "Metformin", 30, 60), fill("A", "Metformin", 60, 60), // due day 90
		fill("B", "Metformin", 5, 60), fill("B", "Metformin", 35, 60), fill("B", "Metformin", 65, 60), // due day 95
		fill("C", "Metformin", 40, 60),
	}
	cfg := DefaultConfig()
	res, err := Profile(context.Background(), records, dayN(86), cfg)
	if err != nil {
		t.Fatalf("Profile() error: %v", err)
	}

	due := DueWithin(res.Profiles, 7)
	if len(due) != 1 || due[0].PatientID != "A" {
		t.Fatalf("expected only A due within 7 days, got %d profiles", len(due))
	}
	if res.Summary.DueSoon != 1 {
		t.Errorf("expected summary due-soon 1, got %d", res.Summary.DueSoon)
	}

	sums := SummarizeByMedication(res.Profiles, cfg)
	if len(sums) != 1 {
		t.Fatalf("expected one medication summary, got %d", len(sums))
	}
	s := sums[0]
	if s.TotalPatients != 3 || s.PatientsDue != 1 || s.ExpectedQuantityDue != 60 {
		t.Errorf("unexpected medication summary: %+v", s)
	}
	if s.MeanRefillInterval != 30 {
		t.Errorf("expected mean refill interval 30, got %v", s.MeanRefillInterval)
	}
}
