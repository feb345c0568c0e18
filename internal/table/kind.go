package table

import (
	"time"

	"github.com/google/uuid"
)

// Kind is the logical type of a cell value. Sinks map kinds to native SQL types
// when they create a destination.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindBool
	KindInt
	KindFloat
	KindTime
	KindBytes
	KindUUID
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindTime:
		return "time"
	case KindBytes:
		return "bytes"
	case KindUUID:
		return "uuid"
	default:
		return "unknown"
	}
}

// KindOf classifies a dynamic cell value. Unknown types are treated as strings
// (sinks bind them via fmt.Sprint).
func KindOf(v any) Kind {
	switch v.(type) {
	case nil:
		return KindNull
	case string:
		return KindString
	case bool:
		return KindBool
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return KindInt
	case float32, float64:
		return KindFloat
	case time.Time:
		return KindTime
	case []byte:
		return KindBytes
	case uuid.UUID:
		return KindUUID
	default:
		return KindString
	}
}

// widen combines the kind seen so far for a column with the kind of a new
// value.
//
// Rules:
//   - null never changes anything
//   - int + float widens to float
//   - any other disagreement widens to string
func widen(cur, next Kind) Kind {
	switch {
	case next == KindNull:
		return cur
	case cur == KindNull:
		return next
	case cur == next:
		return cur
	case (cur == KindInt && next == KindFloat) || (cur == KindFloat && next == KindInt):
		return KindFloat
	default:
		return KindString
	}
}
