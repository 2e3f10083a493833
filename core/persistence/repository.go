package persistence

import (
	"context"
	"fmt"

	"github.com/asaidimu/go-criteria/core/criteria"
	"github.com/asaidimu/go-criteria/core/query"
	"github.com/asaidimu/go-criteria/core/schema"
	"go.uber.org/zap"
)

// Repository exposes one model to request criteria. It declares the model's
// searchable fields and runs compiled queries through the Executor.
type Repository struct {
	model     *schema.ModelDefinition
	compiler  *criteria.Compiler
	executor  *Executor
	validator *schema.Validator
	hub       *eventHub
	logger    *zap.Logger
}

var _ criteria.Searchable = (*Repository)(nil)

// Table returns the model's table.
func (r *Repository) Table() string {
	return r.model.Name
}

// SearchableFields returns the fields request criteria may filter on.
func (r *Repository) SearchableFields() schema.SearchableFields {
	return r.model.Searchable.Clone()
}

// Model returns the repository's model definition.
func (r *Repository) Model() *schema.ModelDefinition {
	return r.model
}

// Compile turns request parameters into a query without running it.
func (r *Repository) Compile(p criteria.Params) (*query.QueryDSL, error) {
	return r.compiler.Compile(r, p)
}

// Find compiles p against this repository and runs the resulting query.
func (r *Repository) Find(ctx context.Context, p criteria.Params) (*query.QueryResult, error) {
	var dsl *query.QueryDSL
	return withEventEmission(r.hub, "query", r.model.Name,
		QueryStart, QuerySuccess, QueryFailed,
		p, func() any {
			if dsl == nil {
				return nil
			}
			return dsl
		},
		func() (*query.QueryResult, error) {
			var err error
			dsl, err = r.compiler.Compile(r, p)
			if err != nil {
				return nil, err
			}
			r.logger.Debug("Compiled request criteria",
				zap.String("table", r.model.Name),
				zap.Stringer("query", dslStringer{dsl}))
			return r.executor.Query(ctx, dsl)
		})
}

// Query runs an already built query against this repository's table.
func (r *Repository) Query(ctx context.Context, dsl *query.QueryDSL) (*query.QueryResult, error) {
	if dsl == nil {
		return nil, fmt.Errorf("query DSL cannot be nil")
	}
	q := *dsl
	q.Table = r.model.Name
	return withEventEmission(r.hub, "query", r.model.Name,
		QueryStart, QuerySuccess, QueryFailed,
		nil, func() any { return &q },
		func() (*query.QueryResult, error) {
			return r.executor.Query(ctx, &q)
		})
}

// Create validates and stores documents. Nothing is stored when any document
// fails validation.
func (r *Repository) Create(ctx context.Context, docs ...schema.Document) (*query.QueryResult, error) {
	return withEventEmission(r.hub, "create", r.model.Name,
		DocumentCreateStart, DocumentCreateSuccess, DocumentCreateFailed,
		docs, func() any { return nil },
		func() (*query.QueryResult, error) {
			records := make([]map[string]any, 0, len(docs))
			for i, doc := range docs {
				if ok, issues := r.validator.Validate(doc, false); !ok {
					return nil, &ValidationError{Index: i, Issues: issues}
				}
				records = append(records, map[string]any(doc))
			}
			if len(records) == 0 {
				return &query.QueryResult{Data: []schema.Document{}}, nil
			}
			return r.executor.Insert(ctx, r.model.Name, records)
		})
}

// RegisterSubscription registers a callback for a persistence event and
// returns its id.
func (r *Repository) RegisterSubscription(options RegisterSubscriptionOptions) string {
	return r.hub.register(options)
}

// UnregisterSubscription removes a subscription by its id.
func (r *Repository) UnregisterSubscription(id string) {
	r.hub.unregister(id)
}

// ValidationError reports the document that failed validation on create.
type ValidationError struct {
	Index  int
	Issues []schema.Issue
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return fmt.Sprintf("document %d is invalid", e.Index)
	}
	return fmt.Sprintf("document %d is invalid: %s", e.Index, e.Issues[0].Message)
}

type dslStringer struct{ dsl *query.QueryDSL }

func (d dslStringer) String() string {
	if d.dsl == nil || d.dsl.Filters == nil {
		return ""
	}
	return query.FormatFilter(*d.dsl.Filters)
}
