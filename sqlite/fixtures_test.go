package sqlite

import (
	"context"
	"database/sql"
	"testing"

	"github.com/asaidimu/go-criteria/core/schema"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

func testRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	registry, err := schema.NewRegistry(
		&schema.ModelDefinition{
			Name: "users",
			Fields: map[string]*schema.FieldDefinition{
				"id":      {Type: schema.FieldTypeInteger},
				"name":    {Type: schema.FieldTypeString, Required: true},
				"status":  {Type: schema.FieldTypeString},
				"age":     {Type: schema.FieldTypeInteger},
				"score":   {Type: schema.FieldTypeNumber},
				"active":  {Type: schema.FieldTypeBoolean},
				"meta":    {Type: schema.FieldTypeObject},
				"role_id": {Type: schema.FieldTypeInteger},
			},
			Searchable: schema.SearchableFields{
				{Name: "name", Operator: "like"},
				{Name: "status"},
				{Name: "roles.name", Operator: "like"},
			},
			Relations: map[string]*schema.RelationDefinition{
				"roles": {Type: schema.RelationBelongsTo, Table: "roles", LocalKey: "role_id", ForeignKey: "id"},
				"posts": {Type: schema.RelationHasMany, Table: "posts", LocalKey: "id", ForeignKey: "user_id"},
			},
		},
		&schema.ModelDefinition{
			Name: "roles",
			Fields: map[string]*schema.FieldDefinition{
				"id":   {Type: schema.FieldTypeInteger},
				"name": {Type: schema.FieldTypeString},
			},
		},
		&schema.ModelDefinition{
			Name: "posts",
			Fields: map[string]*schema.FieldDefinition{
				"id":      {Type: schema.FieldTypeInteger},
				"user_id": {Type: schema.FieldTypeInteger},
				"title":   {Type: schema.FieldTypeString},
			},
			Relations: map[string]*schema.RelationDefinition{
				"comments": {Table: "comments", LocalKey: "id", ForeignKey: "post_id"},
			},
		},
		&schema.ModelDefinition{
			Name: "comments",
			Fields: map[string]*schema.FieldDefinition{
				"id":      {Type: schema.FieldTypeInteger},
				"post_id": {Type: schema.FieldTypeInteger},
				"body":    {Type: schema.FieldTypeString},
			},
		},
	)
	require.NoError(t, err)
	return registry
}

// newTestInteractor opens an in-memory database with the test models'
// tables. A single connection keeps every statement on the same database.
func newTestInteractor(t *testing.T) (*SQLiteInteractor, *schema.Registry) {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	registry := testRegistry(t)
	interactor, err := NewSQLiteInteractor(db, registry, nil, nil, nil)
	require.NoError(t, err)
	for _, model := range registry.Models() {
		require.NoError(t, interactor.CreateCollection(context.Background(), model))
	}
	return interactor, registry
}
