package visuals

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"rxplan/internal/forecasting"
	"rxplan/internal/optimization"
	"rxplan/internal/signals"
)

// maxPoints is where Mermaid xycharts start overlapping their axis labels.
const maxPoints = 60

// GenerateDemandChart creates a Mermaid xychart-beta of one medication's daily forecast
// with its lower and upper bounds.
func GenerateDemandChart(rows []forecasting.DailyForecast) string {
	if len(rows) == 0 {
		return ""
	}

	step := 1
	if len(rows) > maxPoints {
		step = int(math.Ceil(float64(len(rows)) / maxPoints))
	}

	var labels, predicted, lower, upper []string
	maxY := 0.0
	for i, r := range rows {
		if i%step != 0 && i != len(rows)-1 {
			continue
		}
		labels = append(labels, fmt.Sprintf("\"%s\"", r.Date.Format("Jan02")))
		predicted = append(predicted, fmt.Sprintf("%.1f", r.PredictedUnits))
		lower = append(lower, fmt.Sprintf("%.1f", r.LowerBound))
		upper = append(upper, fmt.Sprintf("%.1f", r.UpperBound))
		maxY = math.Max(maxY, r.UpperBound)
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("xychart-beta\n")
	sb.WriteString(fmt.Sprintf("    title \"Forecast Demand: %s\"\n", rows[0].Medication))
	sb.WriteString(fmt.Sprintf("    x-axis [%s]\n", strings.Join(labels, ", ")))
	sb.WriteString(fmt.Sprintf("    y-axis \"Units\" 0 --> %d\n", max(1, int(math.Ceil(maxY*1.1)))))
	sb.WriteString(fmt.Sprintf("    line [%s]\n", strings.Join(predicted, ", ")))
	sb.WriteString(fmt.Sprintf("    line [%s]\n", strings.Join(lower, ", ")))
	sb.WriteString(fmt.Sprintf("    line [%s]\n", strings.Join(upper, ", ")))
	sb.WriteString("```")
	return sb.String()
}

// GenerateCategoryChart creates a Mermaid bar chart of predicted units per category over the horizon.
func GenerateCategoryChart(rows []forecasting.CategoryForecast) string {
	if len(rows) == 0 {
		return ""
	}

	totals := make(map[string]float64)
	for _, r := range rows {
		totals[r.Category] += r.PredictedUnits
	}
	cats := make([]string, 0, len(totals))
	for c := range totals {
		cats = append(cats, c)
	}
	sort.Strings(cats)

	var labels, values []string
	maxVal := 0.0
	for _, c := range cats {
		labels = append(labels, fmt.Sprintf("\"%s\"", c))
		values = append(values, fmt.Sprintf("%.0f", totals[c]))
		maxVal = math.Max(maxVal, totals[c])
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("xychart-beta\n")
	sb.WriteString("    title \"Forecast Demand by Category\"\n")
	sb.WriteString(fmt.Sprintf("    x-axis [%s]\n", strings.Join(labels, ", ")))
	sb.WriteString(fmt.Sprintf("    y-axis \"Units\" 0 --> %d\n", max(1, int(math.Ceil(maxVal*1.2)))))
	sb.WriteString(fmt.Sprintf("    bar [%s]\n", strings.Join(values, ", ")))
	sb.WriteString("```")
	return sb.String()
}

// GenerateMultiplierChart creates a Mermaid bar chart of the combined demand multiplier per category.
// It returns "" when every multiplier is neutral.
func GenerateMultiplierChart(multipliers signals.Multipliers) string {
	rows := multipliers.Sorted()
	var labels, values []string
	maxVal, adjusted := 1.0, false
	for _, cm := range rows {
		labels = append(labels, fmt.Sprintf("\"%s\"", cm.Category))
		values = append(values, fmt.Sprintf("%.2f", cm.Combined))
		maxVal = math.Max(maxVal, cm.Combined)
		if cm.Combined != 1.0 {
			adjusted = true
		}
	}
	if !adjusted {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("xychart-beta\n")
	sb.WriteString("    title \"Demand Multiplier by Category\"\n")
	sb.WriteString(fmt.Sprintf("    x-axis [%s]\n", strings.Join(labels, ", ")))
	sb.WriteString(fmt.Sprintf("    y-axis \"Multiplier\" 0 --> %.1f\n", math.Ceil(maxVal*12)/10))
	sb.WriteString(fmt.Sprintf("    bar [%s]\n", strings.Join(values, ", ")))
	sb.WriteString("```")
	return sb.String()
}

// GeneratePriorityChart creates a Mermaid pie chart of order recommendations per priority.
func GeneratePriorityChart(summary optimization.Summary) string {
	total := 0
	for _, n := range summary.ByPriority {
		total += n
	}
	if total == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("pie title Order Recommendations by Priority\n")
	for _, p := range optimization.Priorities {
		if n := summary.ByPriority[p]; n > 0 {
			sb.WriteString(fmt.Sprintf("    \"%s\" : %d\n", p, n))
		}
	}
	sb.WriteString("```")
	return sb.String()
}

// GenerateDaysOfSupplyChart creates a Mermaid bar chart of days of supply for the top 20
// recommendations. Medications without demand are left out.
func GenerateDaysOfSupplyChart(recs []optimization.OrderRecommendation) string {
	var labels, values []string
	maxVal := 0.0
	for _, r := range recs {
		if len(labels) == 20 {
			break
		}
		dos := float64(r.DaysOfSupply)
		if r.DaysOfSupply.Infinite() {
			continue
		}
		labels = append(labels, fmt.Sprintf("\"%s\"", r.Medication))
		values = append(values, fmt.Sprintf("%.1f", dos))
		maxVal = math.Max(maxVal, dos)
	}
	if len(labels) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("xychart-beta\n")
	sb.WriteString("    title \"Days of Supply (Top 20 Recommendations)\"\n")
	sb.WriteString(fmt.Sprintf("    x-axis [%s]\n", strings.Join(labels, ", ")))
	sb.WriteString(fmt.Sprintf("    y-axis \"Days\" 0 --> %d\n", max(1, int(math.Ceil(maxVal*1.1)))))
	sb.WriteString(fmt.Sprintf("    bar [%s]\n", strings.Join(values, ", ")))
	sb.WriteString("```")
	return sb.String()
}

// Report renders every chart of a run as a Markdown document.
func Report(multipliers signals.Multipliers, forecast forecasting.Result, orders optimization.Result) string {
	var sections []string
	if c := GenerateMultiplierChart(multipliers); c != "" {
		sections = append(sections, "## Demand multipliers\n\n"+c)
	}
	if c := GenerateCategoryChart(forecast.Categories); c != "" {
		sections = append(sections, "## Demand by category\n\n"+c)
	}
	if c := GeneratePriorityChart(orders.Summary); c != "" {
		sections = append(sections, "## Order priorities\n\n"+c)
	}
	if c := GenerateDaysOfSupplyChart(orders.Recommendations); c != "" {
		sections = append(sections, "## Days of supply\n\n"+c)
	}
	for _, rec := range orders.Orders() {
		if rec.Priority != optimization.Critical {
			continue
		}
		if c := GenerateDemandChart(forecast.ForMedication(rec.Medication)); c != "" {
			sections = append(sections, "## "+rec.Medication+"\n\n"+c)
		}
	}
	return strings.Join(sections, "\n\n") + "\n"
}
