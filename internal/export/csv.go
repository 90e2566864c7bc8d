package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// utf8BOM makes spreadsheet applications detect the encoding.
const utf8BOM = "\ufeff"

// CSV encodes a result set as UTF-8 CSV with a leading byte-order mark.
// Fields are quoted only when they need it; nulls become empty strings;
// an empty row set still emits the header row.
type CSV struct{}

func (CSV) Export(columns []string, rows []map[string]any) ([]byte, error) {
	unique := Disambiguate(columns)

	var buf bytes.Buffer
	buf.WriteString(utf8BOM)
	w := csv.NewWriter(&buf)

	if err := w.Write(unique); err != nil {
		return nil, fmt.Errorf("write CSV header: %w", err)
	}
	for _, row := range rows {
		record := make([]string, len(columns))
		for i := range columns {
			record[i] = stringify(cellValue(row, unique, i))
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write CSV row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush CSV: %w", err)
	}
	return buf.Bytes(), nil
}
