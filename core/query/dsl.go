// Package query defines the Domain-Specific Language (DSL) that compiled
// request criteria are recorded into. A QueryDSL is a plain data structure:
// a predicate tree, ordering, joins, projection and eager-load hints that a
// dialect-specific generator turns into a statement.
package query

import (
	"strings"

	"github.com/asaidimu/go-criteria/core/schema"
)

// Logical operators for combining filter conditions.
const (
	LogicalOperatorAnd = schema.LogicalAnd
	LogicalOperatorOr  = schema.LogicalOr
)

// ComparisonOperator is the operator of a single filter condition. Besides the
// standard operators below, any name registered as a filter function on a
// DataProcessor may be used.
type ComparisonOperator string

// Supported comparison operators.
const (
	ComparisonOperatorEq      ComparisonOperator = "="
	ComparisonOperatorNeq     ComparisonOperator = "!="
	ComparisonOperatorLt      ComparisonOperator = "<"
	ComparisonOperatorLte     ComparisonOperator = "<="
	ComparisonOperatorGt      ComparisonOperator = ">"
	ComparisonOperatorGte     ComparisonOperator = ">="
	ComparisonOperatorLike    ComparisonOperator = "like"
	ComparisonOperatorNotLike ComparisonOperator = "not like"
	ComparisonOperatorILike   ComparisonOperator = "ilike"
	ComparisonOperatorIn      ComparisonOperator = "in"
	ComparisonOperatorNin     ComparisonOperator = "not in"
	ComparisonOperatorBetween ComparisonOperator = "between"
)

// NormalizeOperator lowercases an operator and folds its aliases ("<>",
// "==") onto the canonical form.
func NormalizeOperator(op string) ComparisonOperator {
	switch o := strings.ToLower(strings.TrimSpace(op)); o {
	case "", "==":
		return ComparisonOperatorEq
	case "<>":
		return ComparisonOperatorNeq
	default:
		return ComparisonOperator(strings.Join(strings.Fields(o), " "))
	}
}

// FilterValue represents the value used in a filter condition. List operators
// (in, not in, between) carry a []any.
type FilterValue any

// FilterCondition defines a single condition for filtering the results of a query.
type FilterCondition struct {
	Field    string             // The field to apply the filter on.
	Operator ComparisonOperator // The comparison operator to use.
	Value    FilterValue        // The value to compare against.
}

// FilterGroup combines multiple filter conditions using a logical operator.
type FilterGroup struct {
	Operator   schema.LogicalOperator // AND or OR.
	Conditions []QueryFilter          // The list of conditions or nested groups.
}

// RelationFilter scopes a filter to the rows of a relation. It matches a row
// when at least one related row satisfies Filter.
type RelationFilter struct {
	Relation string       // Dotted relation path, e.g. "roles" or "posts.comments".
	Filter   *QueryFilter `json:",omitempty"`
}

// QueryFilter is a union type: exactly one of its members is set.
type QueryFilter struct {
	Condition *FilterCondition `json:",omitempty"` // A single filter condition.
	Group     *FilterGroup     `json:",omitempty"` // A group of filter conditions.
	Relation  *RelationFilter  `json:",omitempty"` // A relation existence scope.
}

// Walk visits every condition in the filter tree. The relation path of the
// enclosing scope is passed along, empty at the top level.
func (f *QueryFilter) Walk(fn func(relation string, c *FilterCondition)) {
	f.walk("", fn)
}

func (f *QueryFilter) walk(relation string, fn func(string, *FilterCondition)) {
	if f == nil {
		return
	}
	switch {
	case f.Condition != nil:
		fn(relation, f.Condition)
	case f.Group != nil:
		for i := range f.Group.Conditions {
			f.Group.Conditions[i].walk(relation, fn)
		}
	case f.Relation != nil:
		path := f.Relation.Relation
		if relation != "" {
			path = relation + "." + path
		}
		f.Relation.Filter.walk(path, fn)
	}
}

// SortDirection specifies the direction for sorting.
type SortDirection string

// Supported sort directions.
const (
	SortDirectionAsc  SortDirection = "asc"
	SortDirectionDesc SortDirection = "desc"
)

// SortConfiguration defines the sorting order for a specific field.
type SortConfiguration struct {
	Field     string        // The field to sort by, optionally table-qualified.
	Direction SortDirection // The direction of the sort (ascending or descending).
}

// PaginationOptions defines how the query results should be paginated.
type PaginationOptions struct {
	Limit  int  // The maximum number of records to return.
	Offset *int `json:",omitempty"` // The number of records to skip.
}

// ProjectionField defines a column returned by the query. Names may be
// table-qualified and may use the "table.*" wildcard.
type ProjectionField struct {
	Name string
}

// ProjectionConfiguration defines which fields should be returned in the query result.
type ProjectionConfiguration struct {
	Include []ProjectionField `json:",omitempty"` // A list of fields to include.
	Exclude []ProjectionField `json:",omitempty"` // A list of fields to drop after reading.
}

// JoinType specifies the type of join to be performed.
type JoinType string

// Supported join types.
const (
	JoinTypeInner JoinType = "inner"
	JoinTypeLeft  JoinType = "left"
)

// JoinCondition equates a column of the base query with a column of the
// joined table. Both sides are table-qualified.
type JoinCondition struct {
	Left  string
	Right string
}

// JoinConfiguration defines a join operation with another table.
type JoinConfiguration struct {
	Type        JoinType      // The type of join.
	TargetTable string        // The table to join with.
	On          JoinCondition // The condition for the join.
}

// QueryDSL is the top-level structure that represents a complete read query.
type QueryDSL struct {
	Table      string                   `json:",omitempty"`
	Filters    *QueryFilter             `json:",omitempty"`
	Sort       []SortConfiguration      `json:",omitempty"`
	Pagination *PaginationOptions       `json:",omitempty"`
	Projection *ProjectionConfiguration `json:",omitempty"`
	Joins      []JoinConfiguration      `json:",omitempty"`
	With       []string                 `json:",omitempty"` // Relations to eager load.
	WithCount  []string                 `json:",omitempty"` // Relations to count per row.
}

// QueryResult represents the result of a database query.
type QueryResult struct {
	Data  []schema.Document `json:"data"`
	Count int               `json:"count"`
}

// standardComparisonOperators is a set of all the standard, built-in comparison operators.
var standardComparisonOperators = map[ComparisonOperator]struct{}{
	ComparisonOperatorEq:      {},
	ComparisonOperatorNeq:     {},
	ComparisonOperatorLt:      {},
	ComparisonOperatorLte:     {},
	ComparisonOperatorGt:      {},
	ComparisonOperatorGte:     {},
	ComparisonOperatorLike:    {},
	ComparisonOperatorNotLike: {},
	ComparisonOperatorILike:   {},
	ComparisonOperatorIn:      {},
	ComparisonOperatorNin:     {},
	ComparisonOperatorBetween: {},
}

// IsStandard checks if a comparison operator is one of the standard, built-in operators.
func (c ComparisonOperator) IsStandard() bool {
	_, ok := standardComparisonOperators[c]
	return ok
}

// GetStandardComparisonOperators returns a map of all standard comparison operators.
func GetStandardComparisonOperators() map[ComparisonOperator]struct{} {
	return standardComparisonOperators
}
