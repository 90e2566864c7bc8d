package export

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/querydeck/querydeck/internal/dialect"
)

// JSON encodes a result set as a pretty-printed array of objects keyed
// by disambiguated column names. Numbers stay numbers, null stays null,
// temporals become ISO-8601 strings, anything else falls back to its
// string form.
type JSON struct{}

func (JSON) Export(columns []string, rows []map[string]any) ([]byte, error) {
	unique := Disambiguate(columns)

	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		obj := make(map[string]any, len(unique))
		for i, name := range unique {
			obj[name] = jsonValue(cellValue(row, unique, i))
		}
		out = append(out, obj)
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode JSON: %w", err)
	}
	return data, nil
}

func jsonValue(v any) any {
	switch v.(type) {
	case nil, bool, int64, float64, string, dialect.Date, time.Time:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}
