package query

// Builder is the query-builder surface request criteria are applied to. The
// shape follows the familiar Eloquent-style fluent builder; every method
// returns the builder so calls can be chained.
type Builder interface {
	// Table returns the base table the builder targets.
	Table() string

	Where(field string, operator string, value any) Builder
	OrWhere(field string, operator string, value any) Builder
	WhereIn(field string, values []any) Builder
	OrWhereIn(field string, values []any) Builder
	WhereBetween(field string, from, to any) Builder
	OrWhereBetween(field string, from, to any) Builder

	// WhereGroup adds a parenthesized group built by fn.
	WhereGroup(fn func(Builder)) Builder
	OrWhereGroup(fn func(Builder)) Builder

	// WhereHas restricts results to rows with at least one related row
	// matching the conditions built by fn.
	WhereHas(relation string, fn func(Builder)) Builder
	OrWhereHas(relation string, fn func(Builder)) Builder

	OrderBy(column string, direction SortDirection) Builder
	LeftJoin(table, first, second string) Builder
	// Select replaces the projection.
	Select(columns ...string) Builder
	// AddSelect appends to the projection.
	AddSelect(columns ...string) Builder
	With(relations ...string) Builder
	WithCount(relations ...string) Builder
}

// QueryGenerator defines the interface for generating database-specific query strings
// from a generic QueryDSL object. Each implementation translates the abstract
// query representation into a concrete SQL dialect.
type QueryGenerator interface {
	// GenerateSelectSQL creates a SQL SELECT query string and its corresponding parameters
	// from a QueryDSL object.
	GenerateSelectSQL(dsl *QueryDSL) (string, []any, error)

	// GenerateInsertSQL creates a SQL INSERT query string and its parameters from a slice
	// of records.
	GenerateInsertSQL(table string, records []map[string]any) (string, []any, error)
}
