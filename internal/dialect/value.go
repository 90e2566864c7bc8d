package dialect

import (
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// The canonical cell value set is: nil, bool, int64, float64, string,
// Date, time.Time. Every consumer of query results type-switches over
// exactly these; anything a driver hands back outside the set is folded
// into it here.

// Date wraps a date-only temporal value so exporters can format it
// without a time component.
type Date struct {
	time.Time
}

func (d Date) String() string {
	return d.Format("2006-01-02")
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(d.String())), nil
}

// decimalTypes are the database type names whose values arrive from the
// drivers as arbitrary-precision byte strings.
var decimalTypes = map[string]bool{
	"NUMERIC": true,
	"DECIMAL": true,
}

// normalizeValue maps a raw driver value onto the canonical value set.
// Binary data that decodes as UTF-8 becomes text; anything else becomes
// a hex string.
func normalizeValue(dbType string, v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case bool, int64, float64, string:
		return val
	case float32:
		return float64(val)
	case uint64:
		// BIGINT UNSIGNED beyond int64 range survives as text rather
		// than losing precision in a float.
		if val > math.MaxInt64 {
			return strconv.FormatUint(val, 10)
		}
		return int64(val)
	case time.Time:
		if strings.EqualFold(dbType, "DATE") {
			return Date{val}
		}
		return val
	case []byte:
		if decimalTypes[strings.ToUpper(dbType)] {
			if f, err := strconv.ParseFloat(string(val), 64); err == nil {
				return f
			}
		}
		if utf8.Valid(val) {
			return string(val)
		}
		return hex.EncodeToString(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
