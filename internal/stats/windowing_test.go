package stats

import (
	"testing"
	"time"
)

func TestHorizon_Bounds(t *testing.T) {
	start := time.Date(2024, 3, 10, 15, 30, 0, 0, time.UTC)
	h := NewHorizon(start, 30)

	if !h.Start.Equal(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("expected start snapped to midnight, got %v", h.Start)
	}
	if got := Label(h.End()); got != "2024-04-08" {
		t.Errorf("expected end 2024-04-08, got %s", got)
	}
	if len(h.Dates()) != 30 {
		t.Errorf("expected 30 dates, got %d", len(h.Dates()))
	}
}

func TestHorizon_Index(t *testing.T) {
	h := NewHorizon(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 7)

	tests := []struct {
		name string
		t    time.Time
		want int
	}{
		{"First", time.Date(2024, 1, 1, 23, 0, 0, 0, time.UTC), 0},
		{"Last", time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC), 6},
		{"Before", time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC), -1},
		{"After", time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC), -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := h.Index(tt.t); got != tt.want {
				t.Errorf("Index() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestHorizon_Trailing(t *testing.T) {
	h := NewHorizon(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), 30)
	tr := h.Trailing(90)

	if got := Label(tr.Start); got != "2024-01-02" {
		t.Errorf("expected trailing start 2024-01-02, got %s", got)
	}
	if got := Label(tr.End()); got != "2024-03-31" {
		t.Errorf("expected trailing end 2024-03-31, got %s", got)
	}
}

func TestDaysBetween_AcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	a := time.Date(2024, 3, 9, 12, 0, 0, 0, loc)
	b := time.Date(2024, 3, 11, 12, 0, 0, 0, loc)
	if got := DaysBetween(a, b); got != 2 {
		t.Errorf("DaysBetween() = %d, want 2", got)
	}
}
