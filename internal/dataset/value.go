package dataset

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Format renders a cell as text. NULL renders as the empty string.
func Format(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

// Normalize converts driver-specific cell types into plain Go values.
// []byte becomes string; everything else is returned unchanged.
func Normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// ToFloat64 converts a numeric cell, or a string holding a number, to float64.
// Supports all integer and float kinds.
func ToFloat64(v any) (float64, bool) {
	switch i := v.(type) {
	case int64:
		return float64(i), true
	case int:
		return float64(i), true
	case int32:
		return float64(i), true
	case int16:
		return float64(i), true
	case int8:
		return float64(i), true
	case uint:
		return float64(i), true
	case uint64:
		return float64(i), true
	case uint32:
		return float64(i), true
	case uint16:
		return float64(i), true
	case uint8:
		return float64(i), true
	case float64:
		return i, true
	case float32:
		return float64(i), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(i), 64)
		return f, err == nil
	case []byte:
		return ToFloat64(string(i))
	default:
		return 0, false
	}
}
