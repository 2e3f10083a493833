package criteria

import (
	"errors"
	"testing"

	"github.com/asaidimu/go-criteria/core/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveFields(t *testing.T) {
	searchable := schema.SearchableFields{
		{Name: "name", Operator: "like"},
		{Name: "email"},
		{Name: "status", Operator: "="},
		{Name: "roles.name", Operator: "like"},
	}
	accepted := DefaultConfig().AcceptedConditions

	tests := []struct {
		name     string
		override []string
		want     schema.SearchableFields
	}{
		{
			name: "no override",
			want: searchable,
		},
		{
			name:     "subset keeps declaration order",
			override: []string{"status", "name"},
			want:     schema.SearchableFields{{Name: "name", Operator: "like"}, {Name: "status", Operator: "="}},
		},
		{
			name:     "accepted operator override",
			override: []string{"email:like"},
			want:     schema.SearchableFields{{Name: "email", Operator: "like"}},
		},
		{
			name:     "operator override is case insensitive",
			override: []string{"name:= "},
			want:     schema.SearchableFields{{Name: "name", Operator: "="}},
		},
		{
			name:     "rejected operator keeps default",
			override: []string{"status:between"},
			want:     schema.SearchableFields{{Name: "status", Operator: "="}},
		},
		{
			name:     "relation field",
			override: []string{"roles.name"},
			want:     schema.SearchableFields{{Name: "roles.name", Operator: "like"}},
		},
		{
			name:     "undeclared fields are ignored",
			override: []string{"name", "password:like"},
			want:     schema.SearchableFields{{Name: "name", Operator: "like"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveFields(searchable, tt.override, accepted)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("does not modify the declared fields", func(t *testing.T) {
		_, err := ResolveFields(searchable, []string{"email:like"}, accepted)
		require.NoError(t, err)
		assert.Equal(t, "", searchable[1].Operator)
	})
}

func TestResolveFields_NoAcceptedFields(t *testing.T) {
	searchable := schema.SearchableFields{{Name: "name", Operator: "like"}}

	_, err := ResolveFields(searchable, []string{"password", "token:like"}, []string{"=", "like"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoAcceptedFields))
	assert.True(t, IsInvalidCriteria(err))

	var nae *NoAcceptedFieldsError
	require.True(t, errors.As(err, &nae))
	assert.Equal(t, []string{"password", "token"}, nae.Fields)
	assert.Equal(t, "fields not accepted for search: password,token", err.Error())
}

func TestConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.True(t, cfg.Accepts("LIKE"))
	assert.True(t, cfg.Accepts("="))
	assert.False(t, cfg.Accepts("in"))

	partial := Config{ParamNames: ParamNames{Search: "q"}}.withDefaults()
	assert.Equal(t, "q", partial.ParamNames.Search)
	assert.Equal(t, "orderBy", partial.ParamNames.OrderBy)
	assert.Equal(t, []string{"=", "like"}, partial.AcceptedConditions)

	strict := Config{AcceptedConditions: []string{}}.withDefaults()
	assert.Empty(t, strict.AcceptedConditions)
	assert.False(t, strict.Accepts("="))
}
