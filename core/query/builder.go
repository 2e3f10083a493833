package query

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/asaidimu/go-criteria/core/schema"
)

// clause is a recorded filter together with the connector that joins it to
// the clauses before it.
type clause struct {
	connector schema.LogicalOperator
	filter    QueryFilter
}

// QueryBuilder records Builder calls into a QueryDSL. Filters are folded left
// to right, so `a OR b AND c` becomes `(a OR b) AND c`, the way SQL engines
// see a flat chain of where calls once each connector wraps what came before.
type QueryBuilder struct {
	query   QueryDSL
	clauses []clause
}

var _ Builder = (*QueryBuilder)(nil)

// NewQueryBuilder creates a new, empty query builder for table.
func NewQueryBuilder(table string) *QueryBuilder {
	return &QueryBuilder{
		query: QueryDSL{Table: table},
	}
}

// Table returns the base table.
func (qb *QueryBuilder) Table() string {
	return qb.query.Table
}

// Build returns the constructed QueryDSL object.
func (qb *QueryBuilder) Build() QueryDSL {
	dsl := qb.query
	dsl.Filters = foldClauses(qb.clauses)
	return dsl
}

// Clone creates a copy of the current query builder. Recorded slices are
// copied so the clone can be extended independently.
func (qb *QueryBuilder) Clone() *QueryBuilder {
	clone := &QueryBuilder{query: qb.query}
	clone.clauses = append([]clause(nil), qb.clauses...)
	clone.query.Sort = append([]SortConfiguration(nil), qb.query.Sort...)
	clone.query.Joins = append([]JoinConfiguration(nil), qb.query.Joins...)
	clone.query.With = append([]string(nil), qb.query.With...)
	clone.query.WithCount = append([]string(nil), qb.query.WithCount...)
	if qb.query.Projection != nil {
		p := *qb.query.Projection
		p.Include = append([]ProjectionField(nil), p.Include...)
		p.Exclude = append([]ProjectionField(nil), p.Exclude...)
		clone.query.Projection = &p
	}
	if qb.query.Pagination != nil {
		p := *qb.query.Pagination
		clone.query.Pagination = &p
	}
	return clone
}

// Reset clears all configurations except the table.
func (qb *QueryBuilder) Reset() *QueryBuilder {
	qb.query = QueryDSL{Table: qb.query.Table}
	qb.clauses = nil
	return qb
}

func (qb *QueryBuilder) add(connector schema.LogicalOperator, filter QueryFilter) Builder {
	qb.clauses = append(qb.clauses, clause{connector: connector, filter: filter})
	return qb
}

// Where adds an AND condition.
func (qb *QueryBuilder) Where(field string, operator string, value any) Builder {
	return qb.add(LogicalOperatorAnd, CreateSimpleFilter(field, NormalizeOperator(operator), value))
}

// OrWhere adds an OR condition.
func (qb *QueryBuilder) OrWhere(field string, operator string, value any) Builder {
	return qb.add(LogicalOperatorOr, CreateSimpleFilter(field, NormalizeOperator(operator), value))
}

// WhereIn adds an AND membership condition.
func (qb *QueryBuilder) WhereIn(field string, values []any) Builder {
	return qb.add(LogicalOperatorAnd, CreateSimpleFilter(field, ComparisonOperatorIn, values))
}

// OrWhereIn adds an OR membership condition.
func (qb *QueryBuilder) OrWhereIn(field string, values []any) Builder {
	return qb.add(LogicalOperatorOr, CreateSimpleFilter(field, ComparisonOperatorIn, values))
}

// WhereBetween adds an AND inclusive range condition.
func (qb *QueryBuilder) WhereBetween(field string, from, to any) Builder {
	return qb.add(LogicalOperatorAnd, CreateSimpleFilter(field, ComparisonOperatorBetween, []any{from, to}))
}

// OrWhereBetween adds an OR inclusive range condition.
func (qb *QueryBuilder) OrWhereBetween(field string, from, to any) Builder {
	return qb.add(LogicalOperatorOr, CreateSimpleFilter(field, ComparisonOperatorBetween, []any{from, to}))
}

// WhereGroup adds an AND-joined group. Groups left empty by fn are dropped.
func (qb *QueryBuilder) WhereGroup(fn func(Builder)) Builder {
	return qb.group(LogicalOperatorAnd, fn)
}

// OrWhereGroup adds an OR-joined group.
func (qb *QueryBuilder) OrWhereGroup(fn func(Builder)) Builder {
	return qb.group(LogicalOperatorOr, fn)
}

func (qb *QueryBuilder) group(connector schema.LogicalOperator, fn func(Builder)) Builder {
	child := NewQueryBuilder(qb.query.Table)
	fn(child)
	filter := foldClauses(child.clauses)
	if filter == nil {
		return qb
	}
	return qb.add(connector, *filter)
}

// WhereHas adds an AND-joined relation scope.
func (qb *QueryBuilder) WhereHas(relation string, fn func(Builder)) Builder {
	return qb.has(LogicalOperatorAnd, relation, fn)
}

// OrWhereHas adds an OR-joined relation scope.
func (qb *QueryBuilder) OrWhereHas(relation string, fn func(Builder)) Builder {
	return qb.has(LogicalOperatorOr, relation, fn)
}

func (qb *QueryBuilder) has(connector schema.LogicalOperator, relation string, fn func(Builder)) Builder {
	child := NewQueryBuilder(relation)
	if fn != nil {
		fn(child)
	}
	return qb.add(connector, QueryFilter{Relation: &RelationFilter{
		Relation: relation,
		Filter:   foldClauses(child.clauses),
	}})
}

// OrderBy appends a sort on column.
func (qb *QueryBuilder) OrderBy(column string, direction SortDirection) Builder {
	qb.query.Sort = append(qb.query.Sort, SortConfiguration{Field: column, Direction: direction})
	return qb
}

// OrderByAsc adds an ascending sort.
func (qb *QueryBuilder) OrderByAsc(column string) Builder {
	return qb.OrderBy(column, SortDirectionAsc)
}

// OrderByDesc adds a descending sort.
func (qb *QueryBuilder) OrderByDesc(column string) Builder {
	return qb.OrderBy(column, SortDirectionDesc)
}

// LeftJoin joins table on first = second.
func (qb *QueryBuilder) LeftJoin(table, first, second string) Builder {
	qb.query.Joins = append(qb.query.Joins, JoinConfiguration{
		Type:        JoinTypeLeft,
		TargetTable: table,
		On:          JoinCondition{Left: first, Right: second},
	})
	return qb
}

// Select replaces the included columns.
func (qb *QueryBuilder) Select(columns ...string) Builder {
	if qb.query.Projection == nil {
		qb.query.Projection = CreateProjectionConfig()
	}
	qb.query.Projection.Include = nil
	qb.query.Projection.AddIncludeFields(columns...)
	return qb
}

// AddSelect appends columns to the projection, skipping ones already present.
func (qb *QueryBuilder) AddSelect(columns ...string) Builder {
	if qb.query.Projection == nil {
		qb.query.Projection = CreateProjectionConfig()
	}
	for _, col := range columns {
		if !qb.query.Projection.Includes(col) {
			qb.query.Projection.AddIncludeFields(col)
		}
	}
	return qb
}

// Exclude drops columns from the returned rows.
func (qb *QueryBuilder) Exclude(columns ...string) *QueryBuilder {
	if qb.query.Projection == nil {
		qb.query.Projection = CreateProjectionConfig()
	}
	qb.query.Projection.AddExcludeFields(columns...)
	return qb
}

// With records relations to eager load.
func (qb *QueryBuilder) With(relations ...string) Builder {
	qb.query.With = append(qb.query.With, relations...)
	return qb
}

// WithCount records relations to count per row.
func (qb *QueryBuilder) WithCount(relations ...string) Builder {
	qb.query.WithCount = append(qb.query.WithCount, relations...)
	return qb
}

// Limit sets the maximum number of rows.
func (qb *QueryBuilder) Limit(limit int) *QueryBuilder {
	if qb.query.Pagination == nil {
		qb.query.Pagination = &PaginationOptions{}
	}
	qb.query.Pagination.Limit = limit
	return qb
}

// Offset sets the number of rows to skip.
func (qb *QueryBuilder) Offset(offset int) *QueryBuilder {
	if qb.query.Pagination == nil {
		qb.query.Pagination = &PaginationOptions{}
	}
	qb.query.Pagination.Offset = &offset
	return qb
}

// foldClauses turns a flat clause list into a filter tree. Consecutive
// clauses sharing a connector extend the same group; a change of connector
// wraps everything recorded so far.
func foldClauses(clauses []clause) *QueryFilter {
	if len(clauses) == 0 {
		return nil
	}
	result := clauses[0].filter
	var current *FilterGroup
	for _, c := range clauses[1:] {
		if current != nil && current.Operator == c.connector {
			current.Conditions = append(current.Conditions, c.filter)
			continue
		}
		current = &FilterGroup{
			Operator:   c.connector,
			Conditions: []QueryFilter{result, c.filter},
		}
		result = QueryFilter{Group: current}
	}
	return &result
}

// QueryValidationError represents an error found during query validation.
type QueryValidationError struct {
	Field   string
	Message string
}

func (e QueryValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// QueryValidationResult contains the results of a query validation.
type QueryValidationResult struct {
	IsValid bool
	Errors  []QueryValidationError
}

// Validate checks the built query for structural errors such as empty
// groups, malformed list operators or unknown sort directions.
func (qb *QueryBuilder) Validate() QueryValidationResult {
	var errors []QueryValidationError
	dsl := qb.Build()

	if dsl.Table == "" {
		errors = append(errors, QueryValidationError{Field: "table", Message: "table cannot be empty"})
	}
	if dsl.Filters != nil {
		errors = append(errors, validateFilter(*dsl.Filters, "filters")...)
	}

	for i, sort := range dsl.Sort {
		if sort.Field == "" {
			errors = append(errors, QueryValidationError{
				Field:   fmt.Sprintf("sort[%d].field", i),
				Message: "sort field cannot be empty",
			})
		}
		if sort.Direction != SortDirectionAsc && sort.Direction != SortDirectionDesc {
			errors = append(errors, QueryValidationError{
				Field:   fmt.Sprintf("sort[%d].direction", i),
				Message: fmt.Sprintf("invalid sort direction %q", sort.Direction),
			})
		}
	}

	if dsl.Pagination != nil {
		if dsl.Pagination.Limit <= 0 {
			errors = append(errors, QueryValidationError{
				Field:   "pagination.limit",
				Message: "limit must be greater than 0",
			})
		}
		if dsl.Pagination.Offset != nil && *dsl.Pagination.Offset < 0 {
			errors = append(errors, QueryValidationError{
				Field:   "pagination.offset",
				Message: "offset cannot be negative",
			})
		}
	}

	for i, join := range dsl.Joins {
		if join.TargetTable == "" {
			errors = append(errors, QueryValidationError{
				Field:   fmt.Sprintf("joins[%d].target_table", i),
				Message: "target table cannot be empty",
			})
		}
		if join.On.Left == "" || join.On.Right == "" {
			errors = append(errors, QueryValidationError{
				Field:   fmt.Sprintf("joins[%d].on", i),
				Message: "join condition needs both columns",
			})
		}
	}

	return QueryValidationResult{
		IsValid: len(errors) == 0,
		Errors:  errors,
	}
}

func validateFilter(f QueryFilter, path string) []QueryValidationError {
	var errors []QueryValidationError
	switch {
	case f.Condition != nil:
		c := f.Condition
		if c.Field == "" {
			errors = append(errors, QueryValidationError{Field: path + ".field", Message: "field cannot be empty"})
		}
		switch c.Operator {
		case ComparisonOperatorIn, ComparisonOperatorNin:
			if _, ok := c.Value.([]any); !ok {
				errors = append(errors, QueryValidationError{Field: path + ".value", Message: "in requires a list of values"})
			}
		case ComparisonOperatorBetween:
			if values, ok := c.Value.([]any); !ok || len(values) != 2 {
				errors = append(errors, QueryValidationError{Field: path + ".value", Message: "between requires exactly two values"})
			}
		case "":
			errors = append(errors, QueryValidationError{Field: path + ".operator", Message: "operator cannot be empty"})
		}
	case f.Group != nil:
		if f.Group.Operator != LogicalOperatorAnd && f.Group.Operator != LogicalOperatorOr {
			errors = append(errors, QueryValidationError{Field: path + ".operator", Message: fmt.Sprintf("unsupported logical operator %q", f.Group.Operator)})
		}
		if len(f.Group.Conditions) == 0 {
			errors = append(errors, QueryValidationError{Field: path, Message: "group cannot be empty"})
		}
		for i, child := range f.Group.Conditions {
			errors = append(errors, validateFilter(child, fmt.Sprintf("%s.conditions[%d]", path, i))...)
		}
	case f.Relation != nil:
		if f.Relation.Relation == "" {
			errors = append(errors, QueryValidationError{Field: path + ".relation", Message: "relation cannot be empty"})
		}
		if f.Relation.Filter != nil {
			errors = append(errors, validateFilter(*f.Relation.Filter, path+".filter")...)
		}
	default:
		errors = append(errors, QueryValidationError{Field: path, Message: "filter is empty"})
	}
	return errors
}

// String returns a human-readable representation of the built query.
func (qb *QueryBuilder) String() string {
	var parts []string
	dsl := qb.Build()

	if dsl.Table != "" {
		parts = append(parts, fmt.Sprintf("FROM: %s", dsl.Table))
	}

	if dsl.Filters != nil {
		parts = append(parts, fmt.Sprintf("WHERE: %s", FormatFilter(*dsl.Filters)))
	}

	if len(dsl.Joins) > 0 {
		joins := make([]string, len(dsl.Joins))
		for i, join := range dsl.Joins {
			joins[i] = fmt.Sprintf("%s %s ON %s = %s", strings.ToUpper(string(join.Type)), join.TargetTable, join.On.Left, join.On.Right)
		}
		parts = append(parts, fmt.Sprintf("JOINS: %s", strings.Join(joins, ", ")))
	}

	if len(dsl.Sort) > 0 {
		sortFields := make([]string, len(dsl.Sort))
		for i, sort := range dsl.Sort {
			sortFields[i] = fmt.Sprintf("%s %s", sort.Field, sort.Direction)
		}
		parts = append(parts, fmt.Sprintf("ORDER BY: %s", strings.Join(sortFields, ", ")))
	}

	if dsl.Pagination != nil {
		parts = append(parts, fmt.Sprintf("LIMIT: %d", dsl.Pagination.Limit))
		if dsl.Pagination.Offset != nil {
			parts = append(parts, fmt.Sprintf("OFFSET: %d", *dsl.Pagination.Offset))
		}
	}

	if dsl.Projection != nil {
		if len(dsl.Projection.Include) > 0 {
			parts = append(parts, fmt.Sprintf("SELECT: %s", strings.Join(fieldNames(dsl.Projection.Include), ", ")))
		}
		if len(dsl.Projection.Exclude) > 0 {
			parts = append(parts, fmt.Sprintf("EXCLUDE: %s", strings.Join(fieldNames(dsl.Projection.Exclude), ", ")))
		}
	}

	if len(dsl.With) > 0 {
		parts = append(parts, fmt.Sprintf("WITH: %s", strings.Join(dsl.With, ", ")))
	}
	if len(dsl.WithCount) > 0 {
		parts = append(parts, fmt.Sprintf("WITH COUNT: %s", strings.Join(dsl.WithCount, ", ")))
	}

	if len(parts) == 0 {
		return "EMPTY QUERY"
	}

	return strings.Join(parts, " | ")
}

// FormatFilter renders a filter tree as a compact infix expression, e.g.
// `(users.name like "%ann%" OR users.email = "a@b.c")`.
func FormatFilter(f QueryFilter) string {
	switch {
	case f.Condition != nil:
		value, err := json.Marshal(f.Condition.Value)
		if err != nil {
			value = []byte(fmt.Sprint(f.Condition.Value))
		}
		return fmt.Sprintf("%s %s %s", f.Condition.Field, f.Condition.Operator, value)
	case f.Group != nil:
		parts := make([]string, len(f.Group.Conditions))
		for i, child := range f.Group.Conditions {
			parts[i] = FormatFilter(child)
		}
		return "(" + strings.Join(parts, " "+strings.ToUpper(string(f.Group.Operator))+" ") + ")"
	case f.Relation != nil:
		if f.Relation.Filter == nil {
			return fmt.Sprintf("HAS %s", f.Relation.Relation)
		}
		return fmt.Sprintf("HAS %s %s", f.Relation.Relation, FormatFilter(*f.Relation.Filter))
	}
	return ""
}

func fieldNames(fields []ProjectionField) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}

// CreateSimpleFilter is a helper function to create a simple filter condition.
func CreateSimpleFilter(field string, operator ComparisonOperator, value FilterValue) QueryFilter {
	return QueryFilter{
		Condition: &FilterCondition{
			Field:    field,
			Operator: operator,
			Value:    value,
		},
	}
}

// CreateFilterGroup is a helper function to create a filter group.
func CreateFilterGroup(operator schema.LogicalOperator, conditions ...QueryFilter) QueryFilter {
	return QueryFilter{
		Group: &FilterGroup{
			Operator:   operator,
			Conditions: conditions,
		},
	}
}

// CreateProjectionConfig is a helper function to create a projection configuration.
func CreateProjectionConfig() *ProjectionConfiguration {
	return &ProjectionConfiguration{}
}

// AddIncludeFields adds fields to be included in a projection configuration.
func (pc *ProjectionConfiguration) AddIncludeFields(fields ...string) *ProjectionConfiguration {
	for _, field := range fields {
		pc.Include = append(pc.Include, ProjectionField{Name: field})
	}
	return pc
}

// AddExcludeFields adds fields to be excluded in a projection configuration.
func (pc *ProjectionConfiguration) AddExcludeFields(fields ...string) *ProjectionConfiguration {
	for _, field := range fields {
		pc.Exclude = append(pc.Exclude, ProjectionField{Name: field})
	}
	return pc
}

// Includes reports whether field is already in the include list.
func (pc *ProjectionConfiguration) Includes(field string) bool {
	for _, f := range pc.Include {
		if f.Name == field {
			return true
		}
	}
	return false
}
