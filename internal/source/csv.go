package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"rxplan/internal/diag"
	"rxplan/internal/fills"
	"rxplan/internal/optimization"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const (
	dateLayout = "2006-01-02"
	stage      = "source"
)

// Required columns of the supported files. Extra columns (such as category in the
// prescription history) are read when present.
var (
	historyColumns = []string{"patient_id", "medication", "fill_date", "quantity", "days_supply"}
	stockColumns   = []string{"medication", "lot_number", "quantity", "unit_cost", "expiration_date"}
	catalogColumns = []string{"medication", "category", "unit_cost", "case_size", "lead_time_days"}
)

// Loader reads pipeline inputs from CSV and JSON files.
type Loader struct{}

// NewLoader creates a new Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// LoadHistory reads a prescription history CSV. A blank or unparseable fill date yields a
// record with a zero FillDate, which the profiling stage reports as a validation diagnostic.
// A row with an unparseable quantity or days supply is excluded and reported here.
// Only an unreadable file or a bad header is an error.
func (l *Loader) LoadHistory(filename string) ([]fills.Record, []diag.Diagnostic, error) {
	rows, err := readTable(filename, "prescription history", historyColumns)
	if err != nil {
		return nil, nil, err
	}

	records := make([]fills.Record, 0, len(rows.data))
	var diagnostics []diag.Diagnostic
	for i, row := range rows.data {
		quantity, qErr := rows.integer(row, "quantity")
		daysSupply, dErr := rows.integer(row, "days_supply")
		if err := errors.Join(qErr, dErr); err != nil {
			diagnostics = append(diagnostics, diag.Diagnostic{
				Stage:   stage,
				Kind:    diag.Validation,
				Entity:  fmt.Sprintf("%s row %d", filepath.Base(filename), i+2),
				Message: strings.ReplaceAll(err.Error(), "\n", "; "),
			})
			continue
		}
		records = append(records, fills.Record{
			PatientID:  rows.get(row, "patient_id"),
			Medication: rows.get(row, "medication"),
			Category:   strings.ToLower(rows.get(row, "category")),
			FillDate:   parseDate(rows.get(row, "fill_date")),
			Quantity:   quantity,
			DaysSupply: daysSupply,
		})
	}

	log.Debug().Str("file", filename).Int("records", len(records)).Int("excluded", len(diagnostics)).Msg("Loaded prescription history")
	return records, diagnostics, nil
}

// LoadStock reads lot-level current stock.
func (l *Loader) LoadStock(filename string) ([]optimization.Lot, error) {
	rows, err := readTable(filename, "current stock", stockColumns)
	if err != nil {
		return nil, err
	}

	lots := make([]optimization.Lot, 0, len(rows.data))
	for i, row := range rows.data {
		quantity, err := rows.integer(row, "quantity")
		if err != nil {
			return nil, fmt.Errorf("current stock row %d: %w", i+2, err)
		}
		cost, err := rows.money(row, "unit_cost")
		if err != nil {
			return nil, fmt.Errorf("current stock row %d: %w", i+2, err)
		}
		lots = append(lots, optimization.Lot{
			Medication:     rows.get(row, "medication"),
			LotNumber:      rows.get(row, "lot_number"),
			Quantity:       quantity,
			UnitCost:       cost,
			ExpirationDate: parseDate(rows.get(row, "expiration_date")),
		})
	}

	log.Debug().Str("file", filename).Int("lots", len(lots)).Msg("Loaded current stock")
	return lots, nil
}

// LoadCatalog reads the medication catalog.
func (l *Loader) LoadCatalog(filename string) ([]optimization.CatalogEntry, error) {
	rows, err := readTable(filename, "medication catalog", catalogColumns)
	if err != nil {
		return nil, err
	}

	entries := make([]optimization.CatalogEntry, 0, len(rows.data))
	for i, row := range rows.data {
		cost, err := rows.money(row, "unit_cost")
		if err != nil {
			return nil, fmt.Errorf("medication catalog row %d: %w", i+2, err)
		}
		caseSize, err := rows.integer(row, "case_size")
		if err != nil {
			return nil, fmt.Errorf("medication catalog row %d: %w", i+2, err)
		}
		leadTime, err := rows.integer(row, "lead_time_days")
		if err != nil {
			return nil, fmt.Errorf("medication catalog row %d: %w", i+2, err)
		}
		entries = append(entries, optimization.CatalogEntry{
			Medication:   rows.get(row, "medication"),
			Category:     strings.ToLower(rows.get(row, "category")),
			UnitCost:     cost,
			CaseSize:     caseSize,
			LeadTimeDays: leadTime,
		})
	}

	log.Debug().Str("file", filename).Int("entries", len(entries)).Msg("Loaded medication catalog")
	return entries, nil
}

// table is a parsed CSV file with its header resolved to column positions.
type table struct {
	index map[string]int
	data  [][]string
}

func readTable(filename, what string, required []string) (*table, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s file %s: %w", what, filename, err)
	}
	defer file.Close()
	return parseTable(file, what, required)
}

func parseTable(r io.Reader, what string, required []string) (*table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s CSV: %w", what, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s CSV has no header", what)
	}

	t := &table{index: make(map[string]int)}
	for i, name := range records[0] {
		t.index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, col := range required {
		if _, ok := t.index[col]; !ok {
			return nil, fmt.Errorf("%s CSV header is missing column %q. Expected: %v", what, col, required)
		}
	}

	for i, row := range records[1:] {
		if len(row) < len(required) {
			return nil, fmt.Errorf("%s CSV row %d: expected at least %d columns, got %d", what, i+2, len(required), len(row))
		}
	}
	t.data = records[1:]
	return t, nil
}

func (t *table) get(row []string, col string) string {
	i, ok := t.index[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func (t *table) integer(row []string, col string) (int, error) {
	raw := t.get(row, col)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		// Whole-number floats such as "30.0" are accepted
		f, ferr := strconv.ParseFloat(raw, 64)
		if ferr != nil || f != float64(int(f)) {
			return 0, fmt.Errorf("invalid %s: %q", col, raw)
		}
		n = int(f)
	}
	return n, nil
}

func (t *table) money(row []string, col string) (decimal.Decimal, error) {
	raw := strings.TrimPrefix(t.get(row, col), "$")
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s: %q", col, raw)
	}
	return d, nil
}

// parseDate accepts YYYY-MM-DD or RFC 3339. Anything else yields the zero time.
func parseDate(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	if d, err := time.Parse(dateLayout, raw); err == nil {
		return d
	}
	if d, err := time.Parse(time.RFC3339, raw); err == nil {
		return d.UTC()
	}
	return time.Time{}
}
