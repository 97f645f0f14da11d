package census

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/workforcesim/workforcesim/pkg/engine"
)

// Column names of a census file. Every column but deferral_rate is required.
const (
	ColumnEmployeeID   = "employee_id"
	ColumnBirthDate    = "birth_date"
	ColumnHireDate     = "hire_date"
	ColumnLevelID      = "level_id"
	ColumnCompensation = "compensation"
	ColumnDeferralRate = "deferral_rate"
)

var requiredColumns = []string{ColumnEmployeeID, ColumnBirthDate, ColumnHireDate, ColumnLevelID, ColumnCompensation}

// CSVSource loads the baseline workforce from a census file.
type CSVSource struct {
	path   string
	logger zerolog.Logger
}

var _ engine.CensusSource = (*CSVSource)(nil)

// NewCSVSource creates a source reading path.
func NewCSVSource(path string, logger zerolog.Logger) *CSVSource {
	return &CSVSource{
		path:   path,
		logger: logger.With().Str("component", "census").Logger(),
	}
}

// Load reads the census as the year-end snapshot of year.
func (s *CSVSource) Load(_ context.Context, year int) (*engine.Snapshot, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, engine.NewConfigurationError(fmt.Sprintf("failed to open census %s: %v", s.path, err))
	}
	defer f.Close()

	records, err := ReadCSV(f, year)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("path", s.path).Int("employees", len(records)).Int("year", year).Msg("census loaded")
	return Snapshot(year, records), nil
}

// ReadCSV parses a census with a header row. Employees must be hired by the
// end of year and appear once.
func ReadCSV(r io.Reader, year int) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, engine.NewConfigurationError("census is empty")
		}
		return nil, engine.NewConfigurationError(fmt.Sprintf("failed to read census header: %v", err))
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			return nil, engine.NewConfigurationError(fmt.Sprintf("census is missing column %q", name))
		}
	}

	yearEnd := engine.YearEnd(year)
	seen := make(map[string]int)
	var records []Record
	for line := 2; ; line++ {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, engine.NewConfigurationError(fmt.Sprintf("census line %d: %v", line, err))
		}

		rec, err := parseRecord(fields, cols)
		if err != nil {
			return nil, engine.NewConfigurationError(fmt.Sprintf("census line %d: %v", line, err))
		}
		if prev, dup := seen[rec.EmployeeID]; dup {
			return nil, engine.NewConfigurationError(fmt.Sprintf("census line %d: employee %s already listed on line %d", line, rec.EmployeeID, prev))
		}
		if rec.HireDate.After(yearEnd) {
			return nil, engine.NewConfigurationError(fmt.Sprintf("census line %d: employee %s hired after %s", line, rec.EmployeeID, yearEnd.Format(time.DateOnly)))
		}
		seen[rec.EmployeeID] = line
		records = append(records, rec)
	}
	return records, nil
}

func parseRecord(fields []string, cols map[string]int) (Record, error) {
	get := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(fields) {
			return ""
		}
		return strings.TrimSpace(fields[i])
	}

	rec := Record{EmployeeID: get(ColumnEmployeeID)}
	if rec.EmployeeID == "" {
		return rec, errors.New("employee_id is empty")
	}

	var err error
	if rec.BirthDate, err = parseDate(get(ColumnBirthDate)); err != nil {
		return rec, fmt.Errorf("birth_date: %w", err)
	}
	if rec.HireDate, err = parseDate(get(ColumnHireDate)); err != nil {
		return rec, fmt.Errorf("hire_date: %w", err)
	}
	if !rec.BirthDate.Before(rec.HireDate) {
		return rec, fmt.Errorf("hire_date %s is not after birth_date", get(ColumnHireDate))
	}

	if rec.LevelID, err = strconv.Atoi(get(ColumnLevelID)); err != nil || rec.LevelID <= 0 {
		return rec, fmt.Errorf("invalid level_id %q", get(ColumnLevelID))
	}

	comp, err := decimal.NewFromString(get(ColumnCompensation))
	if err != nil || !comp.IsPositive() {
		return rec, fmt.Errorf("invalid compensation %q", get(ColumnCompensation))
	}
	rec.Compensation = comp.Round(2).InexactFloat64()

	if raw := get(ColumnDeferralRate); raw != "" {
		rate, err := decimal.NewFromString(raw)
		if err != nil || rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
			return rec, fmt.Errorf("invalid deferral_rate %q", raw)
		}
		rec.DeferralRate = rate.InexactFloat64()
	}
	return rec, nil
}

func parseDate(s string) (time.Time, error) {
	return time.ParseInLocation(time.DateOnly, s, time.UTC)
}
