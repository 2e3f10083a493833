package criteria

import "strings"

// Terms is a parsed search string.
type Terms struct {
	// Values maps field names to a scalar or a []any value list.
	Values map[string]any
	// Default is the first bare token, applied to fields without a value.
	Default    string
	HasDefault bool
}

// Lookup returns the explicit value for field.
func (t Terms) Lookup(field string) (any, bool) {
	v, ok := t.Values[field]
	return v, ok
}

// ParseTerms parses a search string of ';'-separated tokens:
//
//	name:john        a value for one field
//	role:admin:owner a value list for one field
//	john             the default value for every other field
//
// Field values are decoded as JSON literals where possible, a JSON array
// yielding a value list. The default is kept verbatim. A string with neither
// ';' nor ':' is entirely the default. When a field repeats, the last token
// wins.
func ParseTerms(raw string) Terms {
	t := Terms{Values: make(map[string]any)}
	if !strings.ContainsAny(raw, ";:") {
		if strings.TrimSpace(raw) != "" {
			t.Default, t.HasDefault = raw, true
		}
		return t
	}

	for _, token := range strings.Split(raw, ";") {
		parts := strings.Split(token, ":")
		if len(parts) == 1 {
			if !t.HasDefault && strings.TrimSpace(token) != "" {
				t.Default, t.HasDefault = token, true
			}
			continue
		}

		field := strings.TrimSpace(parts[0])
		if field == "" {
			continue
		}
		if len(parts) == 2 {
			t.Values[field] = decodeValue(parts[1])
			continue
		}
		values := make([]any, 0, len(parts)-1)
		for _, p := range parts[1:] {
			values = append(values, decodeValue(p))
		}
		t.Values[field] = values
	}
	return t
}
