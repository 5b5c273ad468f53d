package source

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"rxplan/internal/signals"

	"github.com/rs/zerolog/log"
)

// readingsFile mirrors signals.Readings with dates kept as text so plain YYYY-MM-DD
// values can be used in hand-written files.
type readingsFile struct {
	Region  string                  `json:"region"`
	Flu     *signals.FluReading     `json:"flu"`
	Weather *signals.WeatherReading `json:"weather"`
	Events  []struct {
		Name               string   `json:"name"`
		Date               string   `json:"date"`
		Kind               string   `json:"kind"`
		Impact             string   `json:"impact"`
		AffectedCategories []string `json:"affected_categories"`
	} `json:"events"`
	Shortages []struct {
		Medication          string   `json:"medication"`
		Status              string   `json:"status"`
		Reason              string   `json:"reason"`
		EstimatedResolution string   `json:"estimated_resolution"`
		Alternatives        []string `json:"alternatives"`
	} `json:"shortages"`
}

// LoadReadings reads external signal readings from a JSON file. A missing file yields empty
// readings, which derive to neutral multipliers.
func (l *Loader) LoadReadings(filename string) (signals.Readings, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn().Str("file", filename).Msg("No signal readings found, using neutral signals")
			return signals.Readings{}, nil
		}
		return signals.Readings{}, fmt.Errorf("failed to read signal readings %s: %w", filename, err)
	}
	return ParseReadings(data)
}

// ParseReadings decodes a readings document. Blank or unparseable dates become the zero time.
func ParseReadings(data []byte) (signals.Readings, error) {
	var raw readingsFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return signals.Readings{}, fmt.Errorf("failed to decode signal readings: %w", err)
	}

	out := signals.Readings{
		Region:  raw.Region,
		Flu:     raw.Flu,
		Weather: raw.Weather,
	}
	for _, e := range raw.Events {
		cats := make([]string, 0, len(e.AffectedCategories))
		for _, c := range e.AffectedCategories {
			cats = append(cats, strings.ToLower(strings.TrimSpace(c)))
		}
		out.Events = append(out.Events, signals.Event{
			Name:               e.Name,
			Date:               parseDate(e.Date),
			Kind:               e.Kind,
			Impact:             e.Impact,
			AffectedCategories: cats,
		})
	}
	for _, s := range raw.Shortages {
		shortage := signals.Shortage{
			Medication:   s.Medication,
			Status:       strings.ToLower(s.Status),
			Reason:       s.Reason,
			Alternatives: s.Alternatives,
		}
		if d := parseDate(s.EstimatedResolution); !d.IsZero() {
			shortage.EstimatedResolution = &d
		}
		out.Shortages = append(out.Shortages, shortage)
	}
	return out, nil
}
