// Package schema describes the models a repository exposes to request
// criteria: their table, typed fields, the fields eligible for search and the
// relations that relation-qualified search fields and eager loads walk.
package schema

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// LogicalOperator for combining conditions.
type LogicalOperator string

const (
	LogicalAnd LogicalOperator = "and" // All conditions must be true
	LogicalOr  LogicalOperator = "or"  // At least one condition must be true
)

// FieldType represents the basic column types a model can declare.
type FieldType string

const (
	FieldTypeString   FieldType = "string"   // Text data
	FieldTypeNumber   FieldType = "number"   // Floating point data
	FieldTypeInteger  FieldType = "integer"  // Integral data
	FieldTypeBoolean  FieldType = "boolean"  // True/false values, stored as 0/1
	FieldTypeDateTime FieldType = "datetime" // Timestamps, stored as text
	FieldTypeObject   FieldType = "object"   // Structured data, stored as JSON text
)

// DefaultOperator is the comparison operator used when a searchable field
// does not declare one.
const DefaultOperator = "="

// DefaultPrimaryKey is the key column used when a model does not declare one.
const DefaultPrimaryKey = "id"

// Document represents a single row returned by a repository. Eager-loaded
// relations are stored under the relation name, either as a Document or as a
// []Document.
type Document map[string]any

// FieldDefinition defines a column of a model.
type FieldDefinition struct {
	Name string    `json:"name" yaml:"name"`
	Type FieldType `json:"type" yaml:"type"`
	// Required adds a NOT NULL constraint when the table is created.
	Required bool `json:"required,omitempty" yaml:"required,omitempty"`
	// Description provides a brief explanation of the field.
	Description *string `json:"description,omitempty" yaml:"description,omitempty"`
}

// SearchableField is a field a repository allows request criteria to filter
// on, together with its default comparison operator. Names may be
// relation-qualified ("roles.name").
type SearchableField struct {
	Name     string `json:"name" yaml:"name"`
	Operator string `json:"operator,omitempty" yaml:"operator,omitempty"`
}

// ParseSearchableField reads the compact "field" or "field:operator" form.
func ParseSearchableField(token string) SearchableField {
	name, operator, _ := strings.Cut(strings.TrimSpace(token), ":")
	return SearchableField{Name: strings.TrimSpace(name), Operator: strings.TrimSpace(operator)}
}

// Condition returns the normalized operator, falling back to DefaultOperator.
func (f SearchableField) Condition() string {
	op := strings.ToLower(strings.TrimSpace(f.Operator))
	if op == "" {
		return DefaultOperator
	}
	return op
}

// UnmarshalJSON accepts both the compact string form and the object form.
func (f *SearchableField) UnmarshalJSON(data []byte) error {
	var token string
	if err := json.Unmarshal(data, &token); err == nil {
		*f = ParseSearchableField(token)
		return nil
	}
	type plain SearchableField
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("invalid searchable field: %w", err)
	}
	*f = SearchableField(p)
	return nil
}

// UnmarshalYAML accepts both the compact string form and the object form.
func (f *SearchableField) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*f = ParseSearchableField(node.Value)
		return nil
	}
	type plain SearchableField
	var p plain
	if err := node.Decode(&p); err != nil {
		return fmt.Errorf("invalid searchable field: %w", err)
	}
	*f = SearchableField(p)
	return nil
}

// SearchableFields is the ordered set of fields a repository exposes for
// search. Order matters: the first field producing a predicate is always
// AND-joined.
type SearchableFields []SearchableField

// Get returns the operator declared for name.
func (s SearchableFields) Get(name string) (string, bool) {
	for _, f := range s {
		if f.Name == name {
			return f.Condition(), true
		}
	}
	return "", false
}

// Names returns the field names in declaration order.
func (s SearchableFields) Names() []string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.Name
	}
	return names
}

// Clone returns a copy that can be modified without affecting s.
func (s SearchableFields) Clone() SearchableFields {
	if s == nil {
		return nil
	}
	out := make(SearchableFields, len(s))
	copy(out, s)
	return out
}

// UnmarshalYAML additionally accepts an ordered mapping of field name to
// operator, which is the most readable form in model files:
//
//	searchable:
//	  name: like
//	  email: "="
func (s *SearchableFields) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.MappingNode {
		out := make(SearchableFields, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			out = append(out, SearchableField{
				Name:     node.Content[i].Value,
				Operator: node.Content[i+1].Value,
			})
		}
		*s = out
		return nil
	}
	var list []SearchableField
	if err := node.Decode(&list); err != nil {
		return err
	}
	*s = list
	return nil
}

// RelationType describes the cardinality of a relation.
type RelationType string

const (
	RelationBelongsTo RelationType = "belongsTo" // parent.LocalKey references related.ForeignKey
	RelationHasOne    RelationType = "hasOne"    // related.ForeignKey references parent.LocalKey, single row
	RelationHasMany   RelationType = "hasMany"   // related.ForeignKey references parent.LocalKey
)

// RelationDefinition links a model to another model. A related row belongs
// to a parent row when related.ForeignKey = parent.LocalKey.
type RelationDefinition struct {
	Name       string       `json:"name" yaml:"name"`
	Type       RelationType `json:"type,omitempty" yaml:"type,omitempty"`
	Table      string       `json:"table" yaml:"table"`
	LocalKey   string       `json:"localKey" yaml:"localKey"`
	ForeignKey string       `json:"foreignKey" yaml:"foreignKey"`
}

// Single reports whether the relation loads at most one row.
func (r RelationDefinition) Single() bool {
	return r.Type == RelationBelongsTo || r.Type == RelationHasOne
}

// ModelDefinition defines a repository model.
type ModelDefinition struct {
	// Name is the table name.
	Name        string                         `json:"name" yaml:"name"`
	PrimaryKey  string                         `json:"primaryKey,omitempty" yaml:"primaryKey,omitempty"`
	Description *string                        `json:"description,omitempty" yaml:"description,omitempty"`
	Fields      map[string]*FieldDefinition    `json:"fields" yaml:"fields"`
	Searchable  SearchableFields               `json:"searchable,omitempty" yaml:"searchable,omitempty"`
	Relations   map[string]*RelationDefinition `json:"relations,omitempty" yaml:"relations,omitempty"`
}

// Key returns the primary key column.
func (m *ModelDefinition) Key() string {
	if m.PrimaryKey == "" {
		return DefaultPrimaryKey
	}
	return m.PrimaryKey
}

// FindField returns the field definition for a column, or nil.
func (m *ModelDefinition) FindField(name string) *FieldDefinition {
	if f, ok := m.Fields[name]; ok {
		return f
	}
	return nil
}

// FieldNames returns the declared columns sorted by name.
func (m *ModelDefinition) FieldNames() []string {
	names := make([]string, 0, len(m.Fields))
	for name := range m.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Relation returns the relation declared under name.
func (m *ModelDefinition) Relation(name string) (*RelationDefinition, bool) {
	rel, ok := m.Relations[name]
	return rel, ok
}

// normalize fills names left implicit by map keys.
func (m *ModelDefinition) normalize() {
	for name, f := range m.Fields {
		if f != nil && f.Name == "" {
			f.Name = name
		}
	}
	for name, r := range m.Relations {
		if r == nil {
			continue
		}
		if r.Name == "" {
			r.Name = name
		}
		if r.Type == "" {
			r.Type = RelationHasMany
		}
	}
}

// Issue represents a validation issue found in a model definition.
type Issue struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Path     string `json:"path,omitempty"`
	Severity string `json:"severity,omitempty"` // "error" or "warning"
}
