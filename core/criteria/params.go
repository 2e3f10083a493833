package criteria

import (
	"net/url"
	"strings"
)

// Params is one request's raw criteria parameters.
type Params struct {
	Search       string `json:"search,omitempty"`
	SearchFields string `json:"searchFields,omitempty"`
	Filter       string `json:"filter,omitempty"`
	OrderBy      string `json:"orderBy,omitempty"`
	SortedBy     string `json:"sortedBy,omitempty"`
	With         string `json:"with,omitempty"`
	WithCount    string `json:"withCount,omitempty"`
	SearchJoin   string `json:"searchJoin,omitempty"`
}

// ParamsFromValues reads criteria parameters from a query string using the
// names configured in cfg.
func ParamsFromValues(values url.Values, cfg Config) Params {
	names := cfg.withDefaults().ParamNames
	return Params{
		Search:       values.Get(names.Search),
		SearchFields: values.Get(names.SearchFields),
		Filter:       values.Get(names.Filter),
		OrderBy:      values.Get(names.OrderBy),
		SortedBy:     values.Get(names.SortedBy),
		With:         values.Get(names.With),
		WithCount:    values.Get(names.WithCount),
		SearchJoin:   values.Get(names.SearchJoin),
	}
}

// ParseList splits a ';'-separated list, trimming entries and skipping
// blank ones.
func ParseList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
