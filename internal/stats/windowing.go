package stats

import (
	"math"
	"time"
)

// Horizon is a run of consecutive calendar days starting at Start.
type Horizon struct {
	Start time.Time `json:"start"`
	Days  int       `json:"days"`
}

// NewHorizon creates a horizon of n days beginning on the day containing start.
func NewHorizon(start time.Time, days int) Horizon {
	if days < 0 {
		days = 0
	}
	return Horizon{Start: SnapToDay(start), Days: days}
}

// SnapToDay normalizes a timestamp to 00:00:00 UTC of its calendar day.
func SnapToDay(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// AddDays shifts a day-snapped date by n calendar days.
func AddDays(t time.Time, n int) time.Time {
	return SnapToDay(t).AddDate(0, 0, n)
}

// DaysBetween returns the number of calendar days from a to b (negative if b is before a).
func DaysBetween(a, b time.Time) int {
	return int(math.Round(SnapToDay(b).Sub(SnapToDay(a)).Hours() / 24))
}

// End returns the last day inside the horizon.
func (h Horizon) End() time.Time {
	if h.Days == 0 {
		return h.Start
	}
	return h.Start.AddDate(0, 0, h.Days-1)
}

// Dates returns every day in the horizon, in order.
func (h Horizon) Dates() []time.Time {
	dates := make([]time.Time, h.Days)
	for i := range dates {
		dates[i] = h.Start.AddDate(0, 0, i)
	}
	return dates
}

// Index returns the position of the day containing t. Returns -1 if out of bounds.
func (h Horizon) Index(t time.Time) int {
	idx := DaysBetween(h.Start, t)
	if idx < 0 || idx >= h.Days {
		return -1
	}
	return idx
}

// Contains reports whether t falls on a day inside the horizon.
func (h Horizon) Contains(t time.Time) bool {
	return h.Index(t) >= 0
}

// Trailing returns the window of n days immediately before the horizon starts.
func (h Horizon) Trailing(days int) Horizon {
	return Horizon{Start: h.Start.AddDate(0, 0, -days), Days: days}
}

// Label returns a human-readable label for a day (e.g., "2024-01-31").
func Label(t time.Time) string {
	return t.Format("2006-01-02")
}
