// Package criteria compiles request parameters into query builder calls.
//
// A request carries a handful of flat string parameters:
//
//	search=name:john;inactive
//	searchFields=name:like;status
//	searchJoin=or
//	orderBy=roles|name;id
//	sortedBy=desc;asc
//	filter=id;name
//	with=roles
//	withCount=posts
//
// The Compiler resolves which of a repository's searchable fields take part,
// parses the search terms, assembles a predicate tree and the ordering,
// projection and eager-load directives, and applies all of it to a
// query.Builder in a fixed order. It never executes a query.
package criteria

import (
	"slices"
	"strings"
)

// ParamNames holds the request parameter names the compiler reads.
type ParamNames struct {
	Search       string `json:"search" yaml:"search" mapstructure:"search"`
	SearchFields string `json:"searchFields" yaml:"searchFields" mapstructure:"searchFields"`
	Filter       string `json:"filter" yaml:"filter" mapstructure:"filter"`
	OrderBy      string `json:"orderBy" yaml:"orderBy" mapstructure:"orderBy"`
	SortedBy     string `json:"sortedBy" yaml:"sortedBy" mapstructure:"sortedBy"`
	With         string `json:"with" yaml:"with" mapstructure:"with"`
	WithCount    string `json:"withCount" yaml:"withCount" mapstructure:"withCount"`
	SearchJoin   string `json:"searchJoin" yaml:"searchJoin" mapstructure:"searchJoin"`
}

// Config configures a Compiler.
type Config struct {
	ParamNames ParamNames `json:"params" yaml:"params" mapstructure:"params"`
	// AcceptedConditions whitelists the operators a searchFields override may
	// set. ilike, in and between are always understood by the assembler when
	// a repository declares them.
	AcceptedConditions []string `json:"acceptedConditions" yaml:"acceptedConditions" mapstructure:"acceptedConditions"`
}

// DefaultConfig returns the standard parameter names and accepts the "="
// and "like" override operators.
func DefaultConfig() Config {
	return Config{
		ParamNames: ParamNames{
			Search:       "search",
			SearchFields: "searchFields",
			Filter:       "filter",
			OrderBy:      "orderBy",
			SortedBy:     "sortedBy",
			With:         "with",
			WithCount:    "withCount",
			SearchJoin:   "searchJoin",
		},
		AcceptedConditions: []string{"=", "like"},
	}
}

// withDefaults fills every unset parameter name from DefaultConfig. A nil
// AcceptedConditions list is replaced too; an explicitly empty one is kept
// and rejects every override operator.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	fill := func(v *string, d string) {
		if strings.TrimSpace(*v) == "" {
			*v = d
		}
	}
	fill(&c.ParamNames.Search, def.ParamNames.Search)
	fill(&c.ParamNames.SearchFields, def.ParamNames.SearchFields)
	fill(&c.ParamNames.Filter, def.ParamNames.Filter)
	fill(&c.ParamNames.OrderBy, def.ParamNames.OrderBy)
	fill(&c.ParamNames.SortedBy, def.ParamNames.SortedBy)
	fill(&c.ParamNames.With, def.ParamNames.With)
	fill(&c.ParamNames.WithCount, def.ParamNames.WithCount)
	fill(&c.ParamNames.SearchJoin, def.ParamNames.SearchJoin)
	if c.AcceptedConditions == nil {
		c.AcceptedConditions = def.AcceptedConditions
	}
	return c
}

// Accepts reports whether op may be set through a searchFields override.
func (c Config) Accepts(op string) bool {
	return acceptsOperator(c.AcceptedConditions, op)
}

func acceptsOperator(accepted []string, op string) bool {
	op = normalizeCondition(op)
	return slices.ContainsFunc(accepted, func(a string) bool {
		return normalizeCondition(a) == op
	})
}

func normalizeCondition(op string) string {
	return strings.ToLower(strings.TrimSpace(op))
}
