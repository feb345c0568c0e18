package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"lakeio/internal/table"
)

// FormatValue converts a cell value to its canonical string form.
//
// Backends use it for values whose Go type the driver cannot bind directly
// (the merged schema types those columns as strings).
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case int64:
		return fmt.Sprintf("%d", t)
	case int:
		return fmt.Sprintf("%d", t)
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case uuid.UUID:
		return t.String()
	case fmt.Stringer:
		return t.String()
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// StringColumns marks the schema columns whose merged kind is string.
func StringColumns(s table.Schema) []bool {
	out := make([]bool, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Kind == table.KindString
	}
	return out
}

// needsFormat reports whether no driver binds v's Go type natively.
func needsFormat(v any) bool {
	switch v.(type) {
	case nil, string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, time.Time, []byte:
		return false
	default:
		return true
	}
}

// BindRow returns row with every value the drivers cannot bind natively
// (uuid.UUID, arbitrary structs) replaced by FormatValue, and values of
// columns typed as string formatted when their Go type differs.
//
// stringCols[i] marks columns whose merged kind is string.
func BindRow(row []any, stringCols []bool) []any {
	out := make([]any, len(row))
	for i, v := range row {
		switch {
		case v == nil:
			out[i] = nil
		case i < len(stringCols) && stringCols[i]:
			if s, ok := v.(string); ok {
				out[i] = s
			} else {
				out[i] = FormatValue(v)
			}
		case needsFormat(v):
			out[i] = FormatValue(v)
		default:
			out[i] = v
		}
	}
	return out
}
