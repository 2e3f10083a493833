package criteria

import (
	"errors"
	"sync"
	"testing"

	"github.com/asaidimu/go-criteria/core/query"
	"github.com/asaidimu/go-criteria/core/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var users = StaticSearchable{
	Name: "users",
	Fields: schema.SearchableFields{
		{Name: "name", Operator: "like"},
		{Name: "status", Operator: "="},
	},
}

func TestCompiler_EndToEnd(t *testing.T) {
	c := New(DefaultConfig())
	dsl, err := c.Compile(users, Params{Search: "name:john;inactive"})
	require.NoError(t, err)
	require.NotNil(t, dsl.Filters)
	assert.Equal(t, `(users.name like "%john%" OR users.status = "inactive")`, query.FormatFilter(*dsl.Filters))
}

func TestCompiler_ApplyOrder(t *testing.T) {
	r := newRecorder("users")
	err := New(DefaultConfig()).Apply(r, users, Params{
		Search:       "john",
		SearchFields: "name",
		OrderBy:      "roles|name",
		SortedBy:     "desc",
		Filter:       "id;name",
		With:         "roles;posts",
		WithCount:    "posts",
		SearchJoin:   "and",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"whereGroup{where users.name like %john%}",
		"leftJoin roles users.role_id = roles.id",
		"orderBy roles.name desc",
		"addSelect users.*",
		"select id,name",
		"with roles,posts",
		"withCount posts",
	}, r.calls)
}

func TestCompiler_NoSearch(t *testing.T) {
	r := newRecorder("users")
	require.NoError(t, New(DefaultConfig()).Apply(r, users, Params{SearchFields: "nothing", OrderBy: "id"}))
	assert.Equal(t, []string{"orderBy id asc"}, r.calls)

	empty := StaticSearchable{Name: "tags"}
	r = newRecorder("tags")
	require.NoError(t, New(DefaultConfig()).Apply(r, empty, Params{Search: "x"}))
	assert.Empty(t, r.calls)
}

func TestCompiler_ErrorsLeaveBuilderUntouched(t *testing.T) {
	c := New(DefaultConfig())

	r := newRecorder("users")
	err := c.Apply(r, users, Params{Search: "x", SearchFields: "password"})
	assert.True(t, errors.Is(err, ErrNoAcceptedFields))
	assert.Empty(t, r.calls)

	r = newRecorder("users")
	err = c.Apply(r, users, Params{Search: "x", OrderBy: "name", SortedBy: "up"})
	assert.True(t, errors.Is(err, ErrInvalidSortDirection))
	assert.Empty(t, r.calls)

	dsl, err := c.Compile(users, Params{OrderBy: "name", SortedBy: "up"})
	assert.Error(t, err)
	assert.Nil(t, dsl)
}

func TestCompiler_Relations(t *testing.T) {
	registry, err := schema.NewRegistry(
		&schema.ModelDefinition{Name: "users", Relations: map[string]*schema.RelationDefinition{
			"roles": {Table: "roles", LocalKey: "id", ForeignKey: "user_id"},
		}},
		&schema.ModelDefinition{Name: "roles"},
	)
	require.NoError(t, err)
	repo := StaticSearchable{Name: "users", Fields: schema.SearchableFields{
		{Name: "name", Operator: "like"},
		{Name: "roles.name", Operator: "like"},
	}}

	c := New(DefaultConfig(), WithRelations(registry), WithLogger(zap.NewNop()))
	dsl, err := c.Compile(repo, Params{Search: "admin"})
	require.NoError(t, err)
	assert.Equal(t, `(users.name like "%admin%" OR HAS roles name like "%admin%")`, query.FormatFilter(*dsl.Filters))

	plain := New(DefaultConfig())
	dsl, err = plain.Compile(repo, Params{Search: "admin"})
	require.NoError(t, err)
	assert.Equal(t, `(users.name like "%admin%" OR roles.name like "%admin%")`, query.FormatFilter(*dsl.Filters))
}

func TestCompiler_CustomConfig(t *testing.T) {
	cfg := Config{AcceptedConditions: []string{"=", "like", "in"}}
	c := New(cfg)
	assert.Equal(t, "search", c.Config().ParamNames.Search)

	repo := StaticSearchable{Name: "users", Fields: schema.SearchableFields{{Name: "id"}}}
	dsl, err := c.Compile(repo, Params{Search: "id:1,2", SearchFields: "id:in"})
	require.NoError(t, err)
	assert.Equal(t, `users.id in [1,2]`, query.FormatFilter(*dsl.Filters))

	dsl, err = New(DefaultConfig()).Compile(repo, Params{Search: "id:1,2", SearchFields: "id:in"})
	require.NoError(t, err)
	assert.Equal(t, `users.id = "1,2"`, query.FormatFilter(*dsl.Filters))
}

func TestCompiler_Concurrent(t *testing.T) {
	c := New(DefaultConfig())
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dsl, err := c.Compile(users, Params{Search: "name:john;inactive", OrderBy: "name"})
			assert.NoError(t, err)
			assert.Len(t, dsl.Sort, 1)
		}()
	}
	wg.Wait()
}
