package stores

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/workforcesim/workforcesim/pkg/engine"
)

const (
	dateLayout      = "2006-01-02"
	timestampLayout = time.RFC3339Nano

	// DefaultBatchSize is the number of rows per multi-row INSERT.
	DefaultBatchSize = 50

	// sqliteMaxVariables bounds placeholders per statement.
	sqliteMaxVariables = 32766
)

// Config holds SQLite store configuration.
type Config struct {
	// Path is the database file, or ":memory:".
	Path string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// BatchSize is the number of rows written per INSERT statement.
	BatchSize int
}

var _ engine.Store = (*SQLiteStore)(nil)

func formatDate(t time.Time) string {
	return t.Format(dateLayout)
}

func parseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

func nullDate(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatDate(*t), Valid: true}
}

func parseNullDate(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseDate(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

func encodeJSON(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// chunk splits n rows into batches of at most size rows, keeping each
// statement under the placeholder limit for cols columns.
func chunk(n, size, cols int) [][2]int {
	if size < 1 {
		size = DefaultBatchSize
	}
	if limit := sqliteMaxVariables / cols; size > limit {
		size = limit
	}
	var out [][2]int
	for lo := 0; lo < n; lo += size {
		out = append(out, [2]int{lo, min(lo+size, n)})
	}
	return out
}
