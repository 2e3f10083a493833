package criteria

import (
	"errors"
	"testing"

	"github.com/asaidimu/go-criteria/core/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOrder(t *testing.T) {
	tests := []struct {
		name     string
		orderBy  string
		sortedBy string
		want     []OrderClause
	}{
		{
			name:    "plain column defaults to asc",
			orderBy: "name",
			want:    []OrderClause{{Column: "name", Direction: query.SortDirectionAsc}},
		},
		{
			name:     "singular join key",
			orderBy:  "roles|name",
			sortedBy: "desc",
			want: []OrderClause{{
				Column:    "roles.name",
				Direction: query.SortDirectionDesc,
				Join:      &Join{Table: "roles", LocalColumn: "users.role_id", ForeignColumn: "roles.id"},
			}},
		},
		{
			name:     "blank token keeps its direction slot",
			orderBy:  "a;;b",
			sortedBy: "asc;desc;asc",
			want: []OrderClause{
				{Column: "a", Direction: query.SortDirectionAsc},
				{Column: "b", Direction: query.SortDirectionAsc},
			},
		},
		{
			name:    "irregular plural",
			orderBy: "people|name",
			want: []OrderClause{{
				Column:    "people.name",
				Direction: query.SortDirectionAsc,
				Join:      &Join{Table: "people", LocalColumn: "users.person_id", ForeignColumn: "people.id"},
			}},
		},
		{
			name:    "local key override",
			orderBy: "roles:owner_id|name",
			want: []OrderClause{{
				Column:    "roles.name",
				Direction: query.SortDirectionAsc,
				Join:      &Join{Table: "roles", LocalColumn: "users.owner_id", ForeignColumn: "roles.id"},
			}},
		},
		{
			name:    "local and remote keys",
			orderBy: "roles:custom_id,id|name",
			want: []OrderClause{{
				Column:    "roles.name",
				Direction: query.SortDirectionAsc,
				Join:      &Join{Table: "roles", LocalColumn: "users.custom_id", ForeignColumn: "roles.id"},
			}},
		},
		{
			name:    "qualified column is kept",
			orderBy: "roles|roles.title",
			want: []OrderClause{{
				Column:    "roles.title",
				Direction: query.SortDirectionAsc,
				Join:      &Join{Table: "roles", LocalColumn: "users.role_id", ForeignColumn: "roles.id"},
			}},
		},
		{
			name:     "last direction repeats",
			orderBy:  "a;b;c",
			sortedBy: "asc;DESC",
			want: []OrderClause{
				{Column: "a", Direction: query.SortDirectionAsc},
				{Column: "b", Direction: query.SortDirectionDesc},
				{Column: "c", Direction: query.SortDirectionDesc},
			},
		},
		{
			name:     "blank direction is asc",
			orderBy:  "a;b",
			sortedBy: "desc;",
			want: []OrderClause{
				{Column: "a", Direction: query.SortDirectionDesc},
				{Column: "b", Direction: query.SortDirectionAsc},
			},
		},
		{
			name:    "blank tokens and empty columns are skipped",
			orderBy: "a; ;roles|",
			want:    []OrderClause{{Column: "a", Direction: query.SortDirectionAsc}},
		},
		{
			name: "no order",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseOrder("users", tt.orderBy, tt.sortedBy)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseOrder_InvalidDirection(t *testing.T) {
	_, err := ParseOrder("users", "name;email", "asc;sideways")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidSortDirection))
	assert.True(t, IsInvalidCriteria(err))

	var ide *InvalidSortDirectionError
	require.True(t, errors.As(err, &ide))
	assert.Equal(t, "email", ide.Column)
	assert.Equal(t, "sideways", ide.Direction)
}

func TestApplyOrder(t *testing.T) {
	clauses, err := ParseOrder("users", "roles|name;id", "desc;asc")
	require.NoError(t, err)

	r := newRecorder("users")
	ApplyOrder(r, "users", clauses)
	assert.Equal(t, []string{
		"leftJoin roles users.role_id = roles.id",
		"orderBy roles.name desc",
		"addSelect users.*",
		"orderBy id asc",
	}, r.calls)
}
