// Package export serializes normalized result sets into CSV, JSON, or
// XLSX bytes. Duplicate column names are disambiguated identically
// across the three encoders, and a boundary guard rejects oversized
// requests before any encoding work.
package export

import (
	"fmt"
	"strconv"
	"time"

	"github.com/querydeck/querydeck/internal/dialect"
)

// MaxRows caps how many rows an export request may declare. The check
// runs against the declared count metadata, independent of the
// encoders.
const MaxRows = 100_000

// RowLimitError rejects an export whose declared row count exceeds
// MaxRows. The message tells the caller to narrow the query.
type RowLimitError struct {
	RowCount int
	Max      int
}

func (e *RowLimitError) Error() string {
	return fmt.Sprintf("export limited to %d rows, query returned %d rows: narrow the query with a LIMIT clause", e.Max, e.RowCount)
}

// CheckRowCount is the boundary guard on a request's declared row
// count. Exactly MaxRows passes.
func CheckRowCount(rowCount int) error {
	if rowCount > MaxRows {
		return &RowLimitError{RowCount: rowCount, Max: MaxRows}
	}
	return nil
}

// Format names one supported output format.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
	FormatExcel Format = "excel"
)

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatCSV, FormatJSON, FormatExcel:
		return Format(s), nil
	}
	return "", fmt.Errorf("invalid export format: %q", s)
}

func (f Format) Extension() string {
	if f == FormatExcel {
		return "xlsx"
	}
	return string(f)
}

func (f Format) MIMEType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatJSON:
		return "application/json; charset=utf-8"
	case FormatExcel:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "application/octet-stream"
}

// Exporter produces one output format from a result set. Rows are maps
// keyed by original column names; columns carries the positional order
// and may contain duplicates.
type Exporter interface {
	Export(columns []string, rows []map[string]any) ([]byte, error)
}

func ForFormat(f Format) (Exporter, error) {
	switch f {
	case FormatCSV:
		return CSV{}, nil
	case FormatJSON:
		return JSON{}, nil
	case FormatExcel:
		return Excel{}, nil
	}
	return nil, fmt.Errorf("invalid export format: %q", f)
}

// Disambiguate resolves duplicate column names: the first occurrence
// keeps the bare name, each later occurrence gets _1, _2, ... in
// encounter order.
func Disambiguate(columns []string) []string {
	seen := make(map[string]int, len(columns))
	out := make([]string, 0, len(columns))
	for _, col := range columns {
		if n, ok := seen[col]; ok {
			seen[col] = n + 1
			out = append(out, fmt.Sprintf("%s_%d", col, n+1))
		} else {
			seen[col] = 0
			out = append(out, col)
		}
	}
	return out
}

// cellValue returns the value at position i. Lookup is by the
// position's disambiguated name; for the first occurrence of a name
// that equals the original name, so only repeated columns fall through
// to their suffixed key (absent keys render as null).
func cellValue(row map[string]any, unique []string, i int) any {
	return row[unique[i]]
}

// stringify renders a canonical value for text output. nil becomes the
// empty string.
func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case dialect.Date:
		return val.String()
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", val)
	}
}
