package sqlite

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/asaidimu/go-criteria/core/query"
	"github.com/asaidimu/go-criteria/core/schema"
	"github.com/huandu/go-sqlbuilder"
	"go.uber.org/zap"
)

// SqliteQuery is a registry-aware query generator for SQLite. Relation
// scopes in a filter are resolved through the registry and rendered as
// correlated EXISTS subqueries.
type SqliteQuery struct {
	registry *schema.Registry
	logger   *zap.Logger
}

var _ query.QueryGenerator = (*SqliteQuery)(nil)

// NewSqliteQuery creates a new query generator for the models in registry.
func NewSqliteQuery(registry *schema.Registry, logger *zap.Logger) (*SqliteQuery, error) {
	if registry == nil {
		return nil, fmt.Errorf("registry cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SqliteQuery{registry: registry, logger: logger}, nil
}

// quoteName quotes a single identifier for SQLite.
func quoteName(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// quoteIdentifier quotes an identifier that is embedded in a builder format
// string, where '$' introduces a placeholder.
func quoteIdentifier(s string) string {
	return sqlbuilder.Escape(quoteName(s))
}

// quoteColumn quotes a possibly table-qualified column. A "*" segment is
// left bare.
func quoteColumn(name string) string {
	parts := strings.Split(name, ".")
	for i, part := range parts {
		if part != "*" {
			parts[i] = quoteIdentifier(part)
		}
	}
	return strings.Join(parts, ".")
}

// scope is the table a group of conditions is evaluated against.
type scope struct {
	alias string
	model *schema.ModelDefinition
}

// column qualifies an unqualified field with the scope alias.
func (s scope) column(field string) string {
	if strings.Contains(field, ".") {
		return quoteColumn(field)
	}
	return quoteIdentifier(s.alias) + "." + quoteIdentifier(field)
}

// renderer carries the state of a single statement: the builder that owns
// the placeholders and a counter for subquery aliases.
type renderer struct {
	q       *SqliteQuery
	sb      *sqlbuilder.SelectBuilder
	aliases int
}

func (r *renderer) alias(name string) string {
	r.aliases++
	return fmt.Sprintf("%s_%d", name, r.aliases)
}

// GenerateSelectSQL creates a complete SQL SELECT query string and its
// corresponding parameters from a QueryDSL.
func (s *SqliteQuery) GenerateSelectSQL(dsl *query.QueryDSL) (string, []any, error) {
	if dsl == nil {
		return "", nil, fmt.Errorf("query DSL cannot be nil")
	}
	if dsl.Table == "" {
		return "", nil, fmt.Errorf("query DSL must name a table")
	}
	model, ok := s.registry.Model(dsl.Table)
	if !ok {
		return "", nil, fmt.Errorf("unknown table '%s'", dsl.Table)
	}

	r := &renderer{q: s, sb: sqlbuilder.SQLite.NewSelectBuilder()}
	base := scope{alias: dsl.Table, model: model}

	columns := s.projection(base, dsl)
	counts, err := r.counts(base, dsl.WithCount)
	if err != nil {
		return "", nil, err
	}
	columns = append(columns, counts...)
	r.sb.Select(columns...).From(quoteIdentifier(dsl.Table))

	for _, join := range dsl.Joins {
		option := sqlbuilder.LeftJoin
		if join.Type == query.JoinTypeInner {
			option = sqlbuilder.InnerJoin
		}
		if join.TargetTable == "" || join.On.Left == "" || join.On.Right == "" {
			return "", nil, fmt.Errorf("join on table '%s' is incomplete", join.TargetTable)
		}
		r.sb.JoinWithOption(option, quoteIdentifier(join.TargetTable),
			quoteColumn(join.On.Left)+" = "+quoteColumn(join.On.Right))
	}

	if dsl.Filters != nil {
		where, err := r.filter(base, dsl.Filters)
		if err != nil {
			return "", nil, err
		}
		if where != "" {
			r.sb.Where(where)
		}
	}

	countAliases := make(map[string]bool, len(dsl.WithCount))
	for _, rel := range dsl.WithCount {
		countAliases[rel+"_count"] = true
	}
	for _, order := range dsl.Sort {
		if order.Field == "" {
			return "", nil, fmt.Errorf("sort field cannot be empty")
		}
		col := base.column(order.Field)
		if countAliases[order.Field] {
			col = quoteIdentifier(order.Field)
		}
		dir := "ASC"
		if order.Direction == query.SortDirectionDesc {
			dir = "DESC"
		}
		r.sb.OrderBy(col + " " + dir)
	}

	if p := dsl.Pagination; p != nil {
		if p.Limit > 0 {
			r.sb.Limit(p.Limit)
			if p.Offset != nil && *p.Offset > 0 {
				r.sb.Offset(*p.Offset)
			}
		} else if p.Offset != nil && *p.Offset > 0 {
			return "", nil, fmt.Errorf("offset requires a limit")
		}
	}

	sql, args := r.sb.Build()
	s.logger.Debug("Generated SELECT", zap.String("table", dsl.Table), zap.String("sql", sql))
	return sql, args, nil
}

// projection renders the selected columns. No explicit projection selects
// every column of the base table so joined columns never shadow them.
func (s *SqliteQuery) projection(base scope, dsl *query.QueryDSL) []string {
	if dsl.Projection == nil || len(dsl.Projection.Include) == 0 {
		return []string{quoteIdentifier(base.alias) + ".*"}
	}
	columns := make([]string, 0, len(dsl.Projection.Include))
	for _, f := range dsl.Projection.Include {
		columns = append(columns, base.column(f.Name))
	}
	return columns
}

// counts renders a correlated COUNT(*) column per relation.
func (r *renderer) counts(base scope, relations []string) ([]string, error) {
	var columns []string
	for _, name := range relations {
		rel, ok := base.model.Relation(name)
		if !ok {
			return nil, &schema.UnknownRelationError{Table: base.model.Name, Relation: name}
		}
		alias := r.alias(rel.Name)
		columns = append(columns, fmt.Sprintf("(SELECT COUNT(*) FROM %s AS %s WHERE %s = %s) AS %s",
			quoteIdentifier(rel.Table), quoteIdentifier(alias),
			quoteIdentifier(alias)+"."+quoteIdentifier(rel.ForeignKey),
			base.column(rel.LocalKey),
			quoteIdentifier(name+"_count")))
	}
	return columns, nil
}

// filter renders a filter tree. Empty groups render as the empty string.
func (r *renderer) filter(s scope, f *query.QueryFilter) (string, error) {
	switch {
	case f.Condition != nil:
		return r.condition(s, f.Condition)
	case f.Group != nil:
		return r.group(s, f.Group)
	case f.Relation != nil:
		return r.exists(s, f.Relation)
	default:
		return "", nil
	}
}

func (r *renderer) group(s scope, g *query.FilterGroup) (string, error) {
	var joiner string
	switch g.Operator {
	case schema.LogicalAnd:
		joiner = " AND "
	case schema.LogicalOr:
		joiner = " OR "
	default:
		return "", fmt.Errorf("unsupported logical operator '%s'", g.Operator)
	}

	parts := make([]string, 0, len(g.Conditions))
	for i := range g.Conditions {
		part, err := r.filter(s, &g.Conditions[i])
		if err != nil {
			return "", err
		}
		if part != "" {
			parts = append(parts, part)
		}
	}
	switch len(parts) {
	case 0:
		return "", nil
	case 1:
		return parts[0], nil
	}
	return "(" + strings.Join(parts, joiner) + ")", nil
}

// exists renders a relation scope as nested correlated EXISTS subqueries,
// one per hop of the relation path.
func (r *renderer) exists(s scope, rf *query.RelationFilter) (string, error) {
	chain, ok := r.q.registry.ResolveRelation(s.model.Name, rf.Relation)
	if !ok {
		return "", fmt.Errorf("unknown relation '%s' on table '%s'", rf.Relation, s.model.Name)
	}
	return r.hop(s, chain, rf.Filter)
}

func (r *renderer) hop(parent scope, chain []schema.RelationDefinition, f *query.QueryFilter) (string, error) {
	rel := chain[0]
	model, ok := r.q.registry.Model(rel.Table)
	if !ok {
		return "", fmt.Errorf("relation '%s' targets unknown table '%s'", rel.Name, rel.Table)
	}
	child := scope{alias: r.alias(rel.Name), model: model}

	conds := []string{child.column(rel.ForeignKey) + " = " + parent.column(rel.LocalKey)}
	var inner string
	var err error
	if len(chain) > 1 {
		inner, err = r.hop(child, chain[1:], f)
	} else if f != nil {
		inner, err = r.filter(child, f)
	}
	if err != nil {
		return "", err
	}
	if inner != "" {
		conds = append(conds, inner)
	}
	return fmt.Sprintf("EXISTS (SELECT 1 FROM %s AS %s WHERE %s)",
		quoteIdentifier(rel.Table), quoteIdentifier(child.alias), strings.Join(conds, " AND ")), nil
}

// condition renders a single comparison. Every value is a bound parameter.
func (r *renderer) condition(s scope, c *query.FilterCondition) (string, error) {
	if c.Field == "" {
		return "", fmt.Errorf("condition field cannot be empty")
	}
	col := s.column(c.Field)
	leaf := c.Field[strings.LastIndex(c.Field, ".")+1:]

	switch c.Operator {
	case query.ComparisonOperatorIn, query.ComparisonOperatorNin:
		values, ok := c.Value.([]any)
		if !ok {
			return "", fmt.Errorf("operator '%s' on field '%s' requires a list", c.Operator, c.Field)
		}
		if len(values) == 0 {
			if c.Operator == query.ComparisonOperatorIn {
				return "1 = 0", nil
			}
			return "1 = 1", nil
		}
		placeholders := make([]string, len(values))
		for i, v := range values {
			pv, err := prepareValue(s.model, leaf, v)
			if err != nil {
				return "", err
			}
			placeholders[i] = r.sb.Var(pv)
		}
		keyword := "IN"
		if c.Operator == query.ComparisonOperatorNin {
			keyword = "NOT IN"
		}
		return fmt.Sprintf("%s %s (%s)", col, keyword, strings.Join(placeholders, ", ")), nil

	case query.ComparisonOperatorBetween:
		values, ok := c.Value.([]any)
		if !ok || len(values) != 2 {
			return "", fmt.Errorf("operator 'between' on field '%s' requires two values", c.Field)
		}
		from, err := prepareValue(s.model, leaf, values[0])
		if err != nil {
			return "", err
		}
		to, err := prepareValue(s.model, leaf, values[1])
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s BETWEEN %s AND %s", col, r.sb.Var(from), r.sb.Var(to)), nil
	}

	if c.Value == nil {
		switch c.Operator {
		case query.ComparisonOperatorEq:
			return col + " IS NULL", nil
		case query.ComparisonOperatorNeq:
			return col + " IS NOT NULL", nil
		}
	}

	value, err := prepareValue(s.model, leaf, c.Value)
	if err != nil {
		return "", err
	}

	switch c.Operator {
	case query.ComparisonOperatorEq:
		return col + " = " + r.sb.Var(value), nil
	case query.ComparisonOperatorNeq:
		return col + " != " + r.sb.Var(value), nil
	case query.ComparisonOperatorLt:
		return col + " < " + r.sb.Var(value), nil
	case query.ComparisonOperatorLte:
		return col + " <= " + r.sb.Var(value), nil
	case query.ComparisonOperatorGt:
		return col + " > " + r.sb.Var(value), nil
	case query.ComparisonOperatorGte:
		return col + " >= " + r.sb.Var(value), nil
	case query.ComparisonOperatorLike:
		return col + " LIKE " + r.sb.Var(value), nil
	case query.ComparisonOperatorNotLike:
		return col + " NOT LIKE " + r.sb.Var(value), nil
	case query.ComparisonOperatorILike:
		return fmt.Sprintf("LOWER(%s) LIKE LOWER(%s)", col, r.sb.Var(value)), nil
	default:
		return "", fmt.Errorf("unsupported operator '%s' on field '%s'", c.Operator, c.Field)
	}
}

// prepareValue converts a Go value to the representation SQLite stores:
// booleans as 0/1 and structured values as JSON text.
func prepareValue(model *schema.ModelDefinition, field string, value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case string:
		if f := model.FindField(field); f != nil && f.Type == schema.FieldTypeBoolean {
			switch strings.ToLower(v) {
			case "true":
				return 1, nil
			case "false":
				return 0, nil
			}
		}
		return v, nil
	case map[string]any, []any, schema.Document:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize field '%s' to JSON: %w", field, err)
		}
		return string(b), nil
	default:
		return v, nil
	}
}

// GenerateInsertSQL creates a multi-row INSERT with a RETURNING clause so the
// stored rows come back in one round trip. Requires SQLite 3.35.0+.
func (s *SqliteQuery) GenerateInsertSQL(table string, records []map[string]any) (string, []any, error) {
	if len(records) == 0 {
		return "", nil, fmt.Errorf("no records provided for insert")
	}
	model, ok := s.registry.Model(table)
	if !ok {
		return "", nil, fmt.Errorf("unknown table '%s'", table)
	}

	fieldSet := make(map[string]bool)
	for _, record := range records {
		for name := range record {
			if len(model.Fields) > 0 && model.FindField(name) == nil {
				return "", nil, fmt.Errorf("field '%s' not found in model '%s'", name, table)
			}
			fieldSet[name] = true
		}
	}
	fields := make([]string, 0, len(fieldSet))
	for name := range fieldSet {
		fields = append(fields, name)
	}
	sort.Strings(fields)

	cols := make([]string, len(fields))
	for i, name := range fields {
		cols[i] = quoteName(name)
	}

	ib := sqlbuilder.SQLite.NewInsertBuilder()
	ib.InsertInto(quoteName(table)).Cols(cols...)
	for _, record := range records {
		values := make([]any, len(fields))
		for i, name := range fields {
			v, err := prepareValue(model, name, record[name])
			if err != nil {
				return "", nil, err
			}
			values[i] = v
		}
		ib.Values(values...)
	}

	sql, args := ib.Build()
	return sql + " RETURNING *", args, nil
}
