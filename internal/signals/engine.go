package signals

import (
	"fmt"
	"sort"
	"time"

	"rxplan/internal/diag"
	"rxplan/internal/stats"

	"github.com/rs/zerolog/log"
)

const stage = "signals"

// Derive turns raw readings into per-category demand multipliers and alerts.
// It is a pure function of its arguments; asOf is the only notion of "now".
func Derive(readings Readings, asOf time.Time, cfg Config) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	if asOf.IsZero() {
		return Result{}, diag.Invalid("as_of", "analysis date is required")
	}
	asOf = stats.SnapToDay(asOf)

	d := &deriver{cfg: cfg, asOf: asOf}

	flu, fluLevel := d.fluFactor(readings.Flu)
	weather := d.weatherFactor(readings.Weather)
	upcoming := d.upcomingEvents(readings.Events)

	fluSet := toSet(cfg.FluSensitiveCategories)
	weatherSet := toSet(cfg.WeatherSensitiveCategories)

	multipliers := make(Multipliers)
	for _, category := range d.categories(upcoming) {
		cm := CategoryMultiplier{Category: category, Flu: 1.0, Weather: 1.0, Event: 1.0}

		if _, ok := fluSet[category]; ok && flu > 1.0 {
			cm.Flu = flu
			cm.Reasons = append(cm.Reasons, fmt.Sprintf("flu activity level %d", fluLevel))
		}
		if _, ok := weatherSet[category]; ok && weather > 1.0 {
			cm.Weather = weather
			cm.Reasons = append(cm.Reasons, fmt.Sprintf("cold weather (%.0fF)", readings.Weather.TemperatureAvgF))
		}
		if factor, name := d.eventFactor(category, upcoming); factor > 1.0 {
			cm.Event = factor
			cm.Reasons = append(cm.Reasons, "upcoming "+name)
		}

		cm.Combined = stats.Round(stats.Clamp(cm.Flu*cm.Weather*cm.Event, 1.0, cfg.CombinedCeiling), 2)
		multipliers[category] = cm
	}

	alerts, shortages := d.alerts(readings, fluLevel, weather, upcoming)

	log.Info().
		Str("as_of", asOf.Format("2006-01-02")).
		Float64("flu", flu).
		Float64("weather", weather).
		Int("events", len(upcoming)).
		Int("shortages", len(shortages)).
		Int("categories", len(multipliers)).
		Msg("External signals derived")

	return Result{
		AsOf:        asOf,
		Multipliers: multipliers,
		Alerts:      alerts,
		Shortages:   shortages,
		Diagnostics: d.diagnostics,
	}, nil
}

type deriver struct {
	cfg         Config
	asOf        time.Time
	diagnostics []diag.Diagnostic
}

func (d *deriver) warn(entity, format string, args ...any) {
	d.diagnostics = append(d.diagnostics, diag.Diagnostic{
		Stage:   stage,
		Kind:    diag.Validation,
		Entity:  entity,
		Message: fmt.Sprintf(format, args...),
	})
}

// fluFactor returns the flu multiplier and the (clamped) level it was derived from.
func (d *deriver) fluFactor(r *FluReading) (float64, int) {
	if r == nil {
		return 1.0, 0
	}

	level := r.Level
	if level < 1 || level > 10 {
		clamped := int(stats.Clamp(float64(level), 1, 10))
		d.warn("flu.level", "flu level %d outside 1-10, clamped to %d", level, clamped)
		level = clamped
	}

	trend := r.Trend
	factor, ok := d.cfg.FluTrendFactors[string(trend)]
	if !ok {
		if trend != "" {
			d.warn("flu.trend", "unknown flu trend %q, treated as stable", trend)
		}
		factor = 1.0
	}

	if level <= d.cfg.FluQuietLevel {
		return 1.0, level
	}
	m := d.cfg.FluLevelBase[level-1] * factor
	return stats.Round(stats.Clamp(m, 1.0, d.cfg.FluCeiling), 2), level
}

func (d *deriver) weatherFactor(r *WeatherReading) float64 {
	if r == nil {
		return 1.0
	}

	humidity := r.HumidityPercent
	if humidity < 0 || humidity > 100 {
		clamped := stats.Clamp(humidity, 0, 100)
		d.warn("weather.humidity_percent", "humidity %.1f%% outside 0-100, clamped to %.0f%%", humidity, clamped)
		humidity = clamped
	}

	if r.TemperatureAvgF >= d.cfg.ColdThresholdF {
		return 1.0
	}

	m := 1.0
	if r.TemperatureAvgF <= d.cfg.FreezingThresholdF {
		m += d.cfg.FreezingBoost
	} else {
		m += d.cfg.ColdBoost
	}
	if r.IsColdSnap {
		m += d.cfg.ColdSnapBoost
	}
	if humidity > d.cfg.HumidityThreshold {
		m += d.cfg.HumidityBoost
	}
	return stats.Round(stats.Clamp(m, 1.0, d.cfg.WeatherCeiling), 2)
}

// upcomingEvents keeps the events dated within [asOf, asOf+lookahead], ordered by date then name.
func (d *deriver) upcomingEvents(events []Event) []Event {
	end := stats.AddDays(d.asOf, d.cfg.EventLookaheadDays)
	var out []Event
	for i, e := range events {
		if e.Date.IsZero() {
			d.warn(fmt.Sprintf("event %d (%s)", i, e.Name), "event without a date ignored")
			continue
		}
		day := stats.SnapToDay(e.Date)
		if day.Before(d.asOf) || day.After(end) {
			continue
		}
		e.Date = day
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// targets lists the categories an event applies to.
func (d *deriver) targets(e Event) []string {
	all := len(e.AffectedCategories) == 0 || contains(e.AffectedCategories, AllCategories)
	switch e.Impact {
	case ImpactEarlyRefills:
		if all {
			return d.cfg.EarlyRefillCategories
		}
		return e.AffectedCategories
	case ImpactIncrease:
		if all {
			return d.cfg.Categories
		}
		return e.AffectedCategories
	}
	return nil
}

// eventFactor is the largest applicable event multiplier for the category, never a product.
func (d *deriver) eventFactor(category string, upcoming []Event) (float64, string) {
	best, name := 1.0, ""
	for _, e := range upcoming {
		if !contains(d.targets(e), category) {
			continue
		}
		f := 1.0
		switch e.Impact {
		case ImpactEarlyRefills:
			f = d.cfg.EventMultiplier
		case ImpactIncrease:
			f = d.cfg.IncreaseEventMultiplier
		}
		if f > best {
			best, name = f, e.Name
		}
	}
	return best, name
}

// categories is the sorted union of configured categories and those named by upcoming events.
func (d *deriver) categories(upcoming []Event) []string {
	set := toSet(d.cfg.Categories)
	for _, list := range [][]string{d.cfg.FluSensitiveCategories, d.cfg.WeatherSensitiveCategories, d.cfg.EarlyRefillCategories} {
		for _, c := range list {
			set[c] = struct{}{}
		}
	}
	for _, e := range upcoming {
		for _, c := range e.AffectedCategories {
			if c != AllCategories {
				set[c] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func (d *deriver) alerts(readings Readings, fluLevel int, weather float64, upcoming []Event) ([]Alert, []string) {
	alerts := []Alert{}

	active := make([]Shortage, 0, len(readings.Shortages))
	for _, s := range readings.Shortages {
		if s.Active() {
			active = append(active, s)
		}
	}
	sort.SliceStable(active, func(i, j int) bool { return active[i].Medication < active[j].Medication })

	var shortages []string
	seen := make(map[string]bool)
	for _, s := range active {
		msg := fmt.Sprintf("%s shortage (%s)", s.Medication, s.Status)
		if s.Reason != "" {
			msg += ": " + s.Reason
		}
		if len(s.Alternatives) > 0 {
			msg += fmt.Sprintf("; alternatives: %v", s.Alternatives)
		}
		alerts = append(alerts, Alert{Kind: AlertShortage, Severity: "high", Subject: s.Medication, Message: msg})
		if !seen[s.Medication] {
			seen[s.Medication] = true
			shortages = append(shortages, s.Medication)
		}
	}

	if readings.Flu != nil && fluLevel >= d.cfg.FluAlertLevel {
		severity := "medium"
		if fluLevel >= d.cfg.FluHighAlertLevel {
			severity = "high"
		}
		alerts = append(alerts, Alert{
			Kind:     AlertFluActivity,
			Severity: severity,
			Subject:  readings.Region,
			Message:  fmt.Sprintf("flu activity at level %d/10 (%s)", fluLevel, readings.Flu.Trend),
		})
	}

	if weather > 1.0 {
		alerts = append(alerts, Alert{
			Kind:     AlertColdWeather,
			Severity: "medium",
			Subject:  readings.Region,
			Message:  fmt.Sprintf("cold weather %.0fF raises weather-sensitive demand by x%.2f", readings.Weather.TemperatureAvgF, weather),
		})
	}

	for _, e := range upcoming {
		if d.targets(e) == nil {
			continue
		}
		alerts = append(alerts, Alert{
			Kind:     AlertUpcomingEvent,
			Severity: "low",
			Subject:  e.Name,
			Message:  fmt.Sprintf("%s on %s (%s)", e.Name, e.Date.Format("2006-01-02"), e.Impact),
		})
	}

	return alerts, shortages
}

func toSet(list []string) map[string]struct{} {
	set := make(map[string]struct{}, len(list))
	for _, s := range list {
		set[s] = struct{}{}
	}
	return set
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
