package persistence

import (
	"context"
	"fmt"
	"strings"

	"github.com/asaidimu/go-criteria/core/query"
	"github.com/asaidimu/go-criteria/core/schema"
	"go.uber.org/zap"
)

// loadRelations eager-loads the named relations into rows. Dotted names load
// nested relations on the related rows. Each relation costs one query with an
// IN over the keys collected from the parent rows.
func (e *Executor) loadRelations(ctx context.Context, model *schema.ModelDefinition, rows []schema.Document, names []string) error {
	if len(rows) == 0 || len(names) == 0 {
		return nil
	}

	nested := make(map[string][]string)
	var order []string
	for _, name := range names {
		head, rest, _ := strings.Cut(name, ".")
		if head == "" {
			continue
		}
		if _, ok := nested[head]; !ok {
			order = append(order, head)
			nested[head] = nil
		}
		if rest != "" {
			nested[head] = append(nested[head], rest)
		}
	}

	for _, name := range order {
		related, err := e.loadRelation(ctx, model, rows, name)
		if err != nil {
			return err
		}
		if len(nested[name]) == 0 {
			continue
		}
		child, _ := e.registry.Model(relationTable(model, name))
		if err := e.loadRelations(ctx, child, related, nested[name]); err != nil {
			return err
		}
	}
	return nil
}

// loadRelation loads a single relation and returns every related row it
// attached.
func (e *Executor) loadRelation(ctx context.Context, model *schema.ModelDefinition, rows []schema.Document, name string) ([]schema.Document, error) {
	rel, ok := model.Relation(name)
	if !ok || rel == nil {
		return nil, &schema.UnknownRelationError{Table: model.Name, Relation: name}
	}
	target, ok := e.registry.Model(rel.Table)
	if !ok {
		return nil, fmt.Errorf("relation '%s' targets unknown table '%s'", name, rel.Table)
	}

	var keys []any
	seen := make(map[string]bool)
	for _, row := range rows {
		v, ok := row[rel.LocalKey]
		if !ok || v == nil {
			continue
		}
		k := fmt.Sprint(v)
		if !seen[k] {
			seen[k] = true
			keys = append(keys, v)
		}
	}

	var related []schema.Document
	if len(keys) > 0 {
		filter := query.CreateSimpleFilter(rel.ForeignKey, query.ComparisonOperatorIn, keys)
		dsl := &query.QueryDSL{Table: rel.Table, Filters: &filter}
		var err error
		related, err = e.interactor.SelectDocuments(ctx, target, dsl)
		if err != nil {
			return nil, fmt.Errorf("failed to load relation '%s': %w", name, err)
		}
	} else {
		e.logger.Debug("No keys to load relation", zap.String("relation", name), zap.String("key", rel.LocalKey))
	}

	grouped := make(map[string][]schema.Document)
	for _, doc := range related {
		if v, ok := doc[rel.ForeignKey]; ok && v != nil {
			k := fmt.Sprint(v)
			grouped[k] = append(grouped[k], doc)
		}
	}

	for _, row := range rows {
		var matches []schema.Document
		if v, ok := row[rel.LocalKey]; ok && v != nil {
			matches = grouped[fmt.Sprint(v)]
		}
		if rel.Single() {
			if len(matches) > 0 {
				row[name] = matches[0]
			} else {
				row[name] = nil
			}
			continue
		}
		if matches == nil {
			matches = []schema.Document{}
		}
		row[name] = matches
	}
	return related, nil
}

func relationTable(model *schema.ModelDefinition, name string) string {
	if rel, ok := model.Relation(name); ok && rel != nil {
		return rel.Table
	}
	return ""
}
