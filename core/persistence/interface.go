package persistence

import (
	"context"

	"github.com/asaidimu/go-criteria/core/query"
	"github.com/asaidimu/go-criteria/core/schema"
)

// InteractorOptions provides configuration for the interactor.
type InteractorOptions struct {
	// IfNotExists adds IF NOT EXISTS clause to CREATE TABLE and CREATE INDEX
	// statements, preventing an error if the object already exists.
	IfNotExists bool
}

// DatabaseInteractor defines the interface for interacting with the database.
// It can operate in either a non-transactional (default) or transactional mode.
// Commit and Rollback are only meaningful on an instance returned by
// StartTransaction.
type DatabaseInteractor interface {
	SelectDocuments(ctx context.Context, model *schema.ModelDefinition, dsl *query.QueryDSL) ([]schema.Document, error)
	InsertDocuments(ctx context.Context, model *schema.ModelDefinition, records []map[string]any) ([]schema.Document, error)

	// CreateCollection creates the table backing a model.
	CreateCollection(ctx context.Context, model *schema.ModelDefinition) error

	StartTransaction(ctx context.Context) (DatabaseInteractor, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
