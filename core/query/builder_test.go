package query

import (
	"testing"

	"github.com/asaidimu/go-criteria/core/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewQueryBuilder(t *testing.T) {
	qb := NewQueryBuilder("users")
	assert.NotNil(t, qb)
	assert.Equal(t, "users", qb.Table())
	assert.Equal(t, QueryDSL{Table: "users"}, qb.Build())
}

func TestQueryBuilder_Clone(t *testing.T) {
	qb := NewQueryBuilder("users")
	qb.Where("name", "=", "ann").OrderBy("name", SortDirectionAsc)
	qb.Limit(10)
	clone := qb.Clone()

	assert.Equal(t, qb.Build(), clone.Build())

	clone.Where("email", "=", "x").OrderBy("email", SortDirectionDesc)
	clone.Limit(20)
	assert.Equal(t, 10, qb.Build().Pagination.Limit)
	assert.Len(t, qb.Build().Sort, 1)
	assert.NotNil(t, qb.Build().Filters.Condition)
	assert.NotNil(t, clone.Build().Filters.Group)
}

func TestQueryBuilder_Reset(t *testing.T) {
	qb := NewQueryBuilder("users")
	qb.Where("name", "=", "ann").With("roles")
	qb.Reset()
	assert.Equal(t, QueryDSL{Table: "users"}, qb.Build())
}

func TestQueryBuilder_Where(t *testing.T) {
	t.Run("single condition", func(t *testing.T) {
		qb := NewQueryBuilder("users")
		qb.Where("name", "LIKE", "%ann%")
		dsl := qb.Build()
		require.NotNil(t, dsl.Filters)
		assert.Equal(t, &FilterCondition{Field: "name", Operator: ComparisonOperatorLike, Value: "%ann%"}, dsl.Filters.Condition)
	})

	t.Run("first and rest or fold into one group", func(t *testing.T) {
		qb := NewQueryBuilder("users")
		qb.Where("a", "=", 1).OrWhere("b", "=", 2).OrWhere("c", "=", 3)
		f := qb.Build().Filters
		require.NotNil(t, f.Group)
		assert.Equal(t, LogicalOperatorOr, f.Group.Operator)
		assert.Len(t, f.Group.Conditions, 3)
	})

	t.Run("connector change wraps the prefix", func(t *testing.T) {
		qb := NewQueryBuilder("users")
		qb.Where("a", "=", 1).OrWhere("b", "=", 2).Where("c", "=", 3)
		f := qb.Build().Filters
		require.NotNil(t, f.Group)
		assert.Equal(t, LogicalOperatorAnd, f.Group.Operator)
		require.Len(t, f.Group.Conditions, 2)
		inner := f.Group.Conditions[0].Group
		require.NotNil(t, inner)
		assert.Equal(t, LogicalOperatorOr, inner.Operator)
		assert.Equal(t, "c", f.Group.Conditions[1].Condition.Field)
	})

	t.Run("all and", func(t *testing.T) {
		qb := NewQueryBuilder("users")
		qb.Where("a", "=", 1).Where("b", "=", 2).Where("c", "=", 3)
		f := qb.Build().Filters
		assert.Equal(t, LogicalOperatorAnd, f.Group.Operator)
		assert.Len(t, f.Group.Conditions, 3)
	})

	t.Run("in and between", func(t *testing.T) {
		qb := NewQueryBuilder("users")
		qb.WhereIn("id", []any{1, 2}).OrWhereBetween("age", 18, 30).OrWhereIn("role", []any{"x"}).WhereBetween("score", 1, 2)
		f := qb.Build().Filters
		require.NotNil(t, f.Group)
		assert.Equal(t, LogicalOperatorAnd, f.Group.Operator)
		or := f.Group.Conditions[0].Group
		require.NotNil(t, or)
		assert.Equal(t, ComparisonOperatorIn, or.Conditions[0].Condition.Operator)
		assert.Equal(t, []any{18, 30}, or.Conditions[1].Condition.Value)
		assert.Equal(t, ComparisonOperatorBetween, f.Group.Conditions[1].Condition.Operator)
	})
}

func TestQueryBuilder_WhereGroup(t *testing.T) {
	qb := NewQueryBuilder("users")
	qb.Where("active", "=", true).WhereGroup(func(b Builder) {
		b.Where("name", "like", "%a%").OrWhere("email", "like", "%a%")
	})
	f := qb.Build().Filters
	require.NotNil(t, f.Group)
	assert.Equal(t, LogicalOperatorAnd, f.Group.Operator)
	require.Len(t, f.Group.Conditions, 2)
	nested := f.Group.Conditions[1].Group
	require.NotNil(t, nested)
	assert.Equal(t, LogicalOperatorOr, nested.Operator)
	assert.Len(t, nested.Conditions, 2)

	t.Run("empty group is dropped", func(t *testing.T) {
		qb := NewQueryBuilder("users")
		qb.WhereGroup(func(Builder) {}).OrWhereGroup(func(Builder) {})
		assert.Nil(t, qb.Build().Filters)
	})
}

func TestQueryBuilder_WhereHas(t *testing.T) {
	qb := NewQueryBuilder("users")
	qb.Where("name", "=", "ann").OrWhereHas("roles", func(b Builder) {
		assert.Equal(t, "roles", b.Table())
		b.Where("name", "like", "%admin%")
	})
	f := qb.Build().Filters
	require.NotNil(t, f.Group)
	assert.Equal(t, LogicalOperatorOr, f.Group.Operator)
	rel := f.Group.Conditions[1].Relation
	require.NotNil(t, rel)
	assert.Equal(t, "roles", rel.Relation)
	assert.Equal(t, "name", rel.Filter.Condition.Field)

	qb = NewQueryBuilder("users")
	qb.WhereHas("roles", nil)
	assert.Nil(t, qb.Build().Filters.Relation.Filter)
}

func TestQueryBuilder_OrderAndJoin(t *testing.T) {
	qb := NewQueryBuilder("users")
	qb.LeftJoin("roles", "users.role_id", "roles.id").OrderBy("roles.name", SortDirectionDesc)
	qb.OrderByAsc("id")
	qb.OrderByDesc("email")
	dsl := qb.Build()
	assert.Equal(t, []JoinConfiguration{{Type: JoinTypeLeft, TargetTable: "roles", On: JoinCondition{Left: "users.role_id", Right: "roles.id"}}}, dsl.Joins)
	assert.Equal(t, []SortConfiguration{
		{Field: "roles.name", Direction: SortDirectionDesc},
		{Field: "id", Direction: SortDirectionAsc},
		{Field: "email", Direction: SortDirectionDesc},
	}, dsl.Sort)
}

func TestQueryBuilder_Select(t *testing.T) {
	qb := NewQueryBuilder("users")
	qb.AddSelect("users.*").AddSelect("users.*")
	assert.Equal(t, []ProjectionField{{Name: "users.*"}}, qb.Build().Projection.Include)

	qb.Select("id", "name")
	assert.Equal(t, []ProjectionField{{Name: "id"}, {Name: "name"}}, qb.Build().Projection.Include)

	qb.AddSelect("email")
	assert.Len(t, qb.Build().Projection.Include, 3)

	qb.Exclude("password")
	assert.Equal(t, []ProjectionField{{Name: "password"}}, qb.Build().Projection.Exclude)
}

func TestQueryBuilder_WithAndCount(t *testing.T) {
	qb := NewQueryBuilder("users")
	qb.With("roles", "posts").WithCount("posts")
	dsl := qb.Build()
	assert.Equal(t, []string{"roles", "posts"}, dsl.With)
	assert.Equal(t, []string{"posts"}, dsl.WithCount)
}

func TestQueryBuilder_Validate(t *testing.T) {
	t.Run("valid query", func(t *testing.T) {
		qb := NewQueryBuilder("users")
		qb.Where("name", "=", "ann").WhereIn("id", []any{1}).OrderBy("name", SortDirectionAsc)
		qb.Limit(5).Offset(0)
		result := qb.Validate()
		assert.True(t, result.IsValid)
		assert.Empty(t, result.Errors)
	})

	t.Run("invalid parts", func(t *testing.T) {
		qb := NewQueryBuilder("")
		qb.Where("", "=", 1).
			WhereHas("", nil).
			OrderBy("name", SortDirection("up")).
			LeftJoin("", "a", "")
		qb.Limit(0).Offset(-1)
		qb.query.Sort = append(qb.query.Sort, SortConfiguration{Direction: SortDirectionAsc})
		qb.clauses = append(qb.clauses, clause{connector: LogicalOperatorAnd, filter: CreateSimpleFilter("x", ComparisonOperatorBetween, []any{1})})

		result := qb.Validate()
		assert.False(t, result.IsValid)
		fields := make([]string, len(result.Errors))
		for i, e := range result.Errors {
			fields[i] = e.Field
		}
		assert.Contains(t, fields, "table")
		assert.Contains(t, fields, "filters.conditions[0].field")
		assert.Contains(t, fields, "filters.conditions[1].relation")
		assert.Contains(t, fields, "filters.conditions[2].value")
		assert.Contains(t, fields, "sort[0].direction")
		assert.Contains(t, fields, "sort[1].field")
		assert.Contains(t, fields, "pagination.limit")
		assert.Contains(t, fields, "pagination.offset")
		assert.Contains(t, fields, "joins[0].target_table")
		assert.Contains(t, fields, "joins[0].on")
		assert.Equal(t, "table: table cannot be empty", result.Errors[0].Error())
	})

	t.Run("in requires list", func(t *testing.T) {
		qb := NewQueryBuilder("users")
		qb.Where("id", "in", "1,2")
		result := qb.Validate()
		assert.False(t, result.IsValid)
		assert.Equal(t, "filters.value", result.Errors[0].Field)
	})
}

func TestQueryBuilder_String(t *testing.T) {
	assert.Equal(t, "EMPTY QUERY", NewQueryBuilder("").String())

	qb := NewQueryBuilder("users")
	qb.Where("name", "like", "%a%").OrWhere("age", ">", 3).
		LeftJoin("roles", "users.role_id", "roles.id").
		OrderBy("roles.name", SortDirectionAsc).
		Select("users.*").
		With("roles").
		WithCount("posts")
	qb.Limit(10).Offset(20)

	assert.Equal(t,
		`FROM: users | WHERE: (name like "%a%" OR age > 3) | JOINS: LEFT roles ON users.role_id = roles.id | ORDER BY: roles.name asc | LIMIT: 10 | OFFSET: 20 | SELECT: users.* | WITH: roles | WITH COUNT: posts`,
		qb.String())
}

func TestFormatFilter_Relation(t *testing.T) {
	f := QueryFilter{Relation: &RelationFilter{Relation: "roles"}}
	assert.Equal(t, "HAS roles", FormatFilter(f))

	f.Relation.Filter = &QueryFilter{Condition: &FilterCondition{Field: "name", Operator: ComparisonOperatorIn, Value: []any{"a", "b"}}}
	assert.Equal(t, `HAS roles name in ["a","b"]`, FormatFilter(f))
}

func TestCreateSimpleFilter(t *testing.T) {
	filter := CreateSimpleFilter("field", ComparisonOperatorEq, "value")
	assert.NotNil(t, filter.Condition)
	assert.Equal(t, "field", filter.Condition.Field)
	assert.Equal(t, ComparisonOperatorEq, filter.Condition.Operator)
	assert.Equal(t, "value", filter.Condition.Value)
	assert.Nil(t, filter.Group)
}

func TestCreateFilterGroup(t *testing.T) {
	cond1 := CreateSimpleFilter("f1", ComparisonOperatorEq, "v1")
	cond2 := CreateSimpleFilter("f2", ComparisonOperatorGt, 10)
	group := CreateFilterGroup(schema.LogicalAnd, cond1, cond2)
	assert.NotNil(t, group.Group)
	assert.Equal(t, schema.LogicalAnd, group.Group.Operator)
	assert.Len(t, group.Group.Conditions, 2)
	assert.Nil(t, group.Condition)
}
