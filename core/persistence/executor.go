package persistence

import (
	"context"
	"fmt"
	"strings"

	"github.com/asaidimu/go-criteria/core/query"
	"github.com/asaidimu/go-criteria/core/schema"
	"go.uber.org/zap"
)

// Executor runs a QueryDSL by coordinating the DatabaseInteractor and the
// DataProcessor. Filters made only of standard operators run in SQL; a filter
// that uses a registered Go filter function is evaluated in memory over the
// unfiltered table.
type Executor struct {
	interactor DatabaseInteractor
	registry   *schema.Registry
	processor  *query.DataProcessor
	logger     *zap.Logger
}

// NewExecutor creates an executor for the models in registry.
func NewExecutor(interactor DatabaseInteractor, registry *schema.Registry, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		interactor: interactor,
		registry:   registry,
		processor:  query.NewDataProcessor(logger),
		logger:     logger,
	}
}

// withInteractor returns an executor that shares the registered filter
// functions but runs against interactor.
func (e *Executor) withInteractor(interactor DatabaseInteractor) *Executor {
	clone := *e
	clone.interactor = interactor
	return &clone
}

// RegisterFilterFunction registers a Go function for custom filtering.
func (e *Executor) RegisterFilterFunction(operator query.ComparisonOperator, fn query.PredicateFunction) {
	e.processor.RegisterFilterFunction(operator, fn)
}

// RegisterFilterFunctions registers multiple filter functions from a map.
func (e *Executor) RegisterFilterFunctions(functionMap map[query.ComparisonOperator]query.PredicateFunction) {
	e.processor.RegisterFilterFunctions(functionMap)
}

// Query runs dsl and eager-loads the relations it names.
func (e *Executor) Query(ctx context.Context, dsl *query.QueryDSL) (*query.QueryResult, error) {
	model, ok := e.registry.Model(dsl.Table)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, dsl.Table)
	}

	var rows []schema.Document
	var err error
	if e.processor.RequiresGoEvaluation(dsl.Filters) {
		rows, err = e.queryInMemory(ctx, model, dsl)
	} else {
		rows, err = e.querySQL(ctx, model, dsl)
	}
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []schema.Document{}
	}
	return &query.QueryResult{Data: rows, Count: len(rows)}, nil
}

func (e *Executor) querySQL(ctx context.Context, model *schema.ModelDefinition, dsl *query.QueryDSL) ([]schema.Document, error) {
	rows, err := e.interactor.SelectDocuments(ctx, model, dsl)
	if err != nil {
		return nil, err
	}
	if err := e.loadRelations(ctx, model, rows, dsl.With); err != nil {
		return nil, err
	}

	final := *dsl
	final.Filters = nil
	return e.processor.ProcessRows(ctx, rows, &final)
}

// queryInMemory reads the table without filters or pagination, loads every
// relation the filter scopes over, filters in Go and paginates the result.
func (e *Executor) queryInMemory(ctx context.Context, model *schema.ModelDefinition, dsl *query.QueryDSL) ([]schema.Document, error) {
	sqlDsl := *dsl
	sqlDsl.Filters = nil
	sqlDsl.Pagination = nil
	sqlDsl.Projection = nil

	rows, err := e.interactor.SelectDocuments(ctx, model, &sqlDsl)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("Fetched rows from DB before Go processing", zap.Int("count", len(rows)))

	requested := make(map[string]bool, len(dsl.With))
	for _, name := range dsl.With {
		requested[rootSegment(name)] = true
	}
	load := append([]string(nil), dsl.With...)
	var scoped []string
	seen := make(map[string]bool)
	dsl.Filters.Walk(func(relation string, _ *query.FilterCondition) {
		if relation != "" && !seen[relation] {
			seen[relation] = true
			load = append(load, relation)
			if !requested[rootSegment(relation)] {
				scoped = append(scoped, rootSegment(relation))
			}
		}
	})
	if err := e.loadRelations(ctx, model, rows, load); err != nil {
		return nil, err
	}

	filtered, err := e.processor.ProcessRows(ctx, rows, dsl)
	if err != nil {
		return nil, err
	}
	for _, row := range filtered {
		for _, name := range scoped {
			delete(row, name)
		}
	}
	return paginate(project(filtered, dsl), dsl.Pagination), nil
}

// project keeps the included columns of rows read without a projection.
// Eager-loaded relations and counts are always kept.
func project(rows []schema.Document, dsl *query.QueryDSL) []schema.Document {
	if dsl.Projection == nil || len(dsl.Projection.Include) == 0 {
		return rows
	}
	keep := make(map[string]bool)
	for _, f := range dsl.Projection.Include {
		name := f.Name[strings.LastIndex(f.Name, ".")+1:]
		if name == "*" {
			return rows
		}
		keep[name] = true
	}
	for _, name := range dsl.With {
		keep[rootSegment(name)] = true
	}
	for _, name := range dsl.WithCount {
		keep[name+"_count"] = true
	}
	for _, row := range rows {
		for key := range row {
			if !keep[key] {
				delete(row, key)
			}
		}
	}
	return rows
}

// Insert stores records and returns the rows as the database stored them.
func (e *Executor) Insert(ctx context.Context, table string, records []map[string]any) (*query.QueryResult, error) {
	model, ok := e.registry.Model(table)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, table)
	}
	rows, err := e.interactor.InsertDocuments(ctx, model, records)
	if err != nil {
		return nil, err
	}
	return &query.QueryResult{Data: rows, Count: len(rows)}, nil
}

func paginate(rows []schema.Document, p *query.PaginationOptions) []schema.Document {
	if p == nil {
		return rows
	}
	if p.Offset != nil && *p.Offset > 0 {
		if *p.Offset >= len(rows) {
			return []schema.Document{}
		}
		rows = rows[*p.Offset:]
	}
	if p.Limit > 0 && p.Limit < len(rows) {
		rows = rows[:p.Limit]
	}
	return rows
}

func rootSegment(path string) string {
	if i := strings.Index(path, "."); i >= 0 {
		return path[:i]
	}
	return path
}
