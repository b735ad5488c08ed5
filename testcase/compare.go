package testcase

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// CompareValues orders two decoded JSON scalars the way a loose less-than
// does: numbers numerically, strings lexically, a number against a numeric
// string numerically. Anything else, including a missing value, compares
// equal.
func CompareValues(a, b any) int {
	if a == nil || b == nil {
		return 0
	}

	as, aStr := a.(string)
	bs, bStr := b.(string)
	if aStr && bStr {
		return strings.Compare(as, bs)
	}

	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok || !bok {
		return 0
	}
	switch {
	case af < bf:
		return -1
	case af > bf:
		return 1
	default:
		return 0
	}
}

func toFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	case float64:
		return val, true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil || val == "" {
			return 0, false
		}
		return f, true
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

func toInt(v any) (int, bool) {
	f, ok := toFloat(v)
	if !ok || math.IsNaN(f) {
		return 0, false
	}
	return int(f), true
}

// ToInt converts a decoded JSON number to an int.
func ToInt(v any) (int, bool) {
	if _, isStr := v.(string); isStr {
		return 0, false
	}
	return toInt(v)
}
