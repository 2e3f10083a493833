package schema

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// RelationResolver reports whether a dotted relation path is a real relation
// chain starting at table. Compilers use it to decide between an EXISTS scope
// and a flat dotted column.
type RelationResolver interface {
	ResolveRelation(table, path string) ([]RelationDefinition, bool)
}

// ErrUnknownRelation matches an *UnknownRelationError.
var ErrUnknownRelation = errors.New("unknown relation")

// UnknownRelationError reports a relation name the model does not declare.
type UnknownRelationError struct {
	Table    string
	Relation string
}

func (e *UnknownRelationError) Error() string {
	return fmt.Sprintf("unknown relation '%s' on table '%s'", e.Relation, e.Table)
}

func (e *UnknownRelationError) Is(target error) bool {
	return target == ErrUnknownRelation
}

// Registry holds model definitions by table name.
type Registry struct {
	mu     sync.RWMutex
	models map[string]*ModelDefinition
}

// NewRegistry creates a registry holding the given models.
func NewRegistry(models ...*ModelDefinition) (*Registry, error) {
	r := &Registry{models: make(map[string]*ModelDefinition)}
	for _, m := range models {
		if err := r.Register(m); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a model. Registering the same table twice is an error.
func (r *Registry) Register(model *ModelDefinition) error {
	if model == nil || strings.TrimSpace(model.Name) == "" {
		return fmt.Errorf("model name is required")
	}
	model.normalize()

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.models[model.Name]; exists {
		return fmt.Errorf("model %s already registered", model.Name)
	}
	r.models[model.Name] = model
	return nil
}

// Model returns the definition registered for table.
func (r *Registry) Model(table string) (*ModelDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[table]
	return m, ok
}

// Models returns every registered model sorted by name.
func (r *Registry) Models() []*ModelDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*ModelDefinition, 0, len(r.models))
	for _, m := range r.models {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ResolveRelation follows a dotted relation path ("roles" or
// "posts.comments") from table, hop by hop. It returns the chain of relations
// when every segment names a relation of the model reached so far.
func (r *Registry) ResolveRelation(table, path string) ([]RelationDefinition, bool) {
	if path == "" {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	current := table
	segments := strings.Split(path, ".")
	chain := make([]RelationDefinition, 0, len(segments))
	for _, segment := range segments {
		model, ok := r.models[current]
		if !ok {
			return nil, false
		}
		rel, ok := model.Relations[segment]
		if !ok || rel == nil {
			return nil, false
		}
		chain = append(chain, *rel)
		current = rel.Table
	}
	return chain, true
}
