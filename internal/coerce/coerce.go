// Package coerce normalises loosely typed decoded values into the integer ids
// groups persist. Generic JSON, YAML and TOML decoders disagree on numeric
// representations, so every store funnels through here.
package coerce

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Int converts v into an int when it holds an integral value that fits.
// Strings are accepted when they parse as base-10 integers.
func Int(v any) (int, bool) {
	switch n := v.(type) {
	case nil:
		return 0, false
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return fromInt64(n)
	case uint:
		return fromUint64(uint64(n))
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return fromUint64(uint64(n))
	case uint64:
		return fromUint64(n)
	case float32:
		return fromFloat(float64(n))
	case float64:
		return fromFloat(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return fromInt64(i)
		}
		if f, err := n.Float64(); err == nil {
			return fromFloat(f)
		}
		return 0, false
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, false
		}
		return fromInt64(i)
	case *int:
		if n == nil {
			return 0, false
		}
		return *n, true
	default:
		return 0, false
	}
}

// Ints converts a decoded sequence. It fails when v is not a sequence at all;
// individual entries that are not integral come back as nil.
func Ints(v any) ([]*int, error) {
	switch seq := v.(type) {
	case nil:
		return nil, nil
	case []any:
		out := make([]*int, len(seq))
		for i, item := range seq {
			if n, ok := Int(item); ok {
				out[i] = &n
			}
		}
		return out, nil
	case []int:
		out := make([]*int, len(seq))
		for i := range seq {
			n := seq[i]
			out[i] = &n
		}
		return out, nil
	case []int64:
		out := make([]*int, len(seq))
		for i, item := range seq {
			if n, ok := fromInt64(item); ok {
				out[i] = &n
			}
		}
		return out, nil
	case []*int:
		return append([]*int(nil), seq...), nil
	default:
		return nil, fmt.Errorf("coerce: %T is not a sequence", v)
	}
}

func fromInt64(n int64) (int, bool) {
	if n > math.MaxInt || n < math.MinInt {
		return 0, false
	}
	return int(n), true
}

func fromUint64(n uint64) (int, bool) {
	if n > math.MaxInt {
		return 0, false
	}
	return int(n), true
}

func fromFloat(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f >= 1<<63 || f < -(1<<63) {
		return 0, false
	}
	return fromInt64(int64(f))
}
