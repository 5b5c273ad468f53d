package signals

import (
	"sort"
	"time"

	"rxplan/internal/diag"
)

// Trend is the week-over-week direction of flu activity.
type Trend string

const (
	RapidIncrease Trend = "rapid_increase"
	Increasing    Trend = "increasing"
	Stable        Trend = "stable"
	Decreasing    Trend = "decreasing"
	RapidDecrease Trend = "rapid_decrease"
)

// Event impacts.
const (
	ImpactEarlyRefills = "early_refills"
	ImpactIncrease     = "increase"
	ImpactDecrease     = "decrease"
)

// AllCategories in an event's affected categories means every known category.
const AllCategories = "all"

// FluReading is the regional influenza-like-illness level on a 1-10 scale.
type FluReading struct {
	Level int   `json:"level"`
	Trend Trend `json:"trend"`
}

// WeatherReading is the local weather near the analysis date.
type WeatherReading struct {
	TemperatureAvgF float64 `json:"temperature_avg_f"`
	HumidityPercent float64 `json:"humidity_percent"`
	Conditions      string  `json:"conditions,omitempty"`
	IsColdSnap      bool    `json:"is_cold_snap"`
}

// Event is a dated occurrence that shifts demand (holidays, seasonal or health events).
type Event struct {
	Name               string    `json:"name"`
	Date               time.Time `json:"date"`
	Kind               string    `json:"kind,omitempty"`
	Impact             string    `json:"impact"`
	AffectedCategories []string  `json:"affected_categories,omitempty"`
}

// Shortage is a reported supply problem for one medication.
type Shortage struct {
	Medication          string     `json:"medication"`
	Status              string     `json:"status"`
	Reason              string     `json:"reason,omitempty"`
	EstimatedResolution *time.Time `json:"estimated_resolution,omitempty"`
	Alternatives        []string   `json:"alternatives,omitempty"`
}

// Active reports whether the shortage still constrains supply.
func (s Shortage) Active() bool {
	return s.Status != "resolved"
}

// Readings bundles the raw external signals for one run. Missing readings are nil or empty.
type Readings struct {
	Region    string          `json:"region,omitempty"`
	Flu       *FluReading     `json:"flu,omitempty"`
	Weather   *WeatherReading `json:"weather,omitempty"`
	Events    []Event         `json:"events,omitempty"`
	Shortages []Shortage      `json:"shortages,omitempty"`
}

// CategoryMultiplier is the demand adjustment for one medication category.
type CategoryMultiplier struct {
	Category string   `json:"category"`
	Flu      float64  `json:"flu"`
	Weather  float64  `json:"weather"`
	Event    float64  `json:"event"`
	Combined float64  `json:"combined"`
	Reasons  []string `json:"reasons,omitempty"`
}

// Multipliers maps category to its multiplier.
type Multipliers map[string]CategoryMultiplier

// Combined returns the combined multiplier of a category, 1.0 when unknown.
func (m Multipliers) Combined(category string) float64 {
	if cm, ok := m[category]; ok {
		return cm.Combined
	}
	return 1.0
}

// Sorted returns the multipliers ordered by category.
func (m Multipliers) Sorted() []CategoryMultiplier {
	out := make([]CategoryMultiplier, 0, len(m))
	for _, cm := range m {
		out = append(out, cm)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}

// AlertKind names the signal behind an alert.
type AlertKind string

const (
	AlertShortage      AlertKind = "shortage"
	AlertFluActivity   AlertKind = "flu_activity"
	AlertColdWeather   AlertKind = "cold_weather"
	AlertUpcomingEvent AlertKind = "upcoming_event"
)

// Alert is a human-readable notice derived from the readings.
type Alert struct {
	Kind     AlertKind `json:"kind"`
	Severity string    `json:"severity"`
	Subject  string    `json:"subject"`
	Message  string    `json:"message"`
}

// Result is the output of a signal derivation.
type Result struct {
	AsOf        time.Time         `json:"as_of"`
	Multipliers Multipliers       `json:"multipliers"`
	Alerts      []Alert           `json:"alerts"`
	Shortages   []string          `json:"shortage_medications,omitempty"`
	Diagnostics []diag.Diagnostic `json:"diagnostics,omitempty"`
}
