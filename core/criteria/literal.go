package criteria

import (
	"encoding/json"
	"errors"
	"io"
	"strings"
)

// DecodeLiteral parses raw as a JSON literal. Numbers become int64 when
// integral and float64 otherwise; arrays become []any and objects
// map[string]any, with the same number handling inside. It reports false for
// null, for blank input and for anything that is not exactly one JSON value.
func DecodeLiteral(raw string) (any, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, false
	}
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, false
	}
	if v == nil {
		return nil, false
	}
	return normalizeNumbers(v), true
}

func normalizeNumbers(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case []any:
		for i := range val {
			val[i] = normalizeNumbers(val[i])
		}
		return val
	case map[string]any:
		for k := range val {
			val[k] = normalizeNumbers(val[k])
		}
		return val
	}
	return v
}

// decodeValue returns the decoded literal or raw itself.
func decodeValue(raw string) any {
	if v, ok := DecodeLiteral(raw); ok {
		return v
	}
	return raw
}
