package bytea

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// toUint8 converts one element of an array-like payload the way a typed byte
// array does: non-numbers become NaN and then 0, fractions truncate toward
// zero, and the result wraps modulo 256.
func toUint8(v any) byte {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		return byte(n)
	case int8:
		return byte(n)
	case int16:
		return byte(n)
	case int32:
		return byte(n)
	case int64:
		return byte(n)
	case uint:
		return byte(n)
	case uint8:
		return n
	case uint16:
		return byte(n)
	case uint32:
		return byte(n)
	case uint64:
		return byte(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case string:
		trimmed := strings.TrimSpace(n)
		if trimmed == "" {
			return 0
		}
		parsed, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0
		}
		f = parsed
	case bool:
		if n {
			return 1
		}
		return 0
	default:
		return 0
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	m := math.Mod(math.Trunc(f), 256)
	if m < 0 {
		m += 256
	}
	return byte(m)
}

func floatsToBytes(values []float64) []byte {
	out := make([]byte, len(values))
	for i, v := range values {
		out[i] = toUint8(v)
	}
	return out
}

func intsToBytes(values []int) []byte {
	out := make([]byte, len(values))
	for i, v := range values {
		out[i] = byte(v)
	}
	return out
}

func anysToBytes(values []any) []byte {
	out := make([]byte, len(values))
	for i, v := range values {
		out[i] = toUint8(v)
	}
	return out
}

// bytesFromJSON rebuilds a byte array that went through a JSON round trip,
// either as a plain array or as an object keyed by index.
func bytesFromJSON(text []byte) ([]byte, Format, error) {
	var parsed any
	if err := json.Unmarshal(text, &parsed); err != nil {
		return nil, FormatUnknown, err
	}

	switch v := parsed.(type) {
	case []any:
		return anysToBytes(v), FormatJSONArray, nil
	case map[string]any:
		return bytesFromIndexedObject(v), FormatJSONObject, nil
	default:
		return nil, FormatUnknown, errors.Errorf("unsupported JSON value %T", parsed)
	}
}

// bytesFromIndexedObject orders values by numeric key. A key that is not a
// number cannot address an index, so it contributes a zero byte after the
// numbered entries.
func bytesFromIndexedObject(obj map[string]any) []byte {
	type entry struct {
		index float64
		key   string
	}

	entries := make([]entry, 0, len(obj))
	var unnumbered []string
	for key := range obj {
		index, err := strconv.ParseFloat(strings.TrimSpace(key), 64)
		if err != nil || math.IsNaN(index) {
			unnumbered = append(unnumbered, key)
			continue
		}
		entries = append(entries, entry{index: index, key: key})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].index < entries[j].index
	})

	out := make([]byte, len(entries), len(obj))
	for i, e := range entries {
		out[i] = toUint8(obj[e.key])
	}
	return append(out, make([]byte, len(unnumbered))...)
}
