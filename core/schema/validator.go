package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// ValidateModel checks a model definition for problems that would break
// compilation or query generation later on. Relations are checked against the
// registry when one is given.
func ValidateModel(def *ModelDefinition, registry *Registry) []Issue {
	v := &modelValidator{registry: registry}
	v.validate(def)
	return v.issues
}

type modelValidator struct {
	registry *Registry
	issues   []Issue
}

func (v *modelValidator) validate(def *ModelDefinition) {
	if def == nil {
		v.addIssue("MISSING_MODEL", "Model definition is nil", "")
		return
	}
	if strings.TrimSpace(def.Name) == "" {
		v.addIssue("MISSING_TABLE", "Model has no table name", "name")
	}
	if len(def.Fields) == 0 {
		v.addIssue("NO_FIELDS", fmt.Sprintf("Model '%s' declares no fields", def.Name), "fields")
	}
	if def.Key() != "" && len(def.Fields) > 0 && def.FindField(def.Key()) == nil {
		v.addIssue("UNKNOWN_PRIMARY_KEY", fmt.Sprintf("Primary key '%s' is not a declared field", def.Key()), "primaryKey")
	}

	for name, field := range def.Fields {
		path := buildPath("fields", name)
		if field == nil {
			v.addIssue("INVALID_FIELD", fmt.Sprintf("Field '%s' has no definition", name), path)
			continue
		}
		if !isKnownType(field.Type) {
			v.addIssue("UNKNOWN_FIELD_TYPE", fmt.Sprintf("Field '%s' has unknown type '%s'", name, field.Type), path)
		}
	}

	seen := make(map[string]bool, len(def.Searchable))
	for i, sf := range def.Searchable {
		path := buildPath("searchable", strconv.Itoa(i))
		if sf.Name == "" {
			v.addIssue("EMPTY_SEARCHABLE_FIELD", "Searchable field has no name", path)
			continue
		}
		if seen[sf.Name] {
			v.addIssue("DUPLICATE_SEARCHABLE_FIELD", fmt.Sprintf("Searchable field '%s' is declared twice", sf.Name), path)
		}
		seen[sf.Name] = true
		v.validateSearchable(def, sf, path)
	}

	for name, rel := range def.Relations {
		path := buildPath("relations", name)
		if rel == nil {
			v.addIssue("INVALID_RELATION", fmt.Sprintf("Relation '%s' has no definition", name), path)
			continue
		}
		if rel.Table == "" {
			v.addIssue("MISSING_RELATION_TABLE", fmt.Sprintf("Relation '%s' has no table", name), path)
		}
		if rel.LocalKey == "" || rel.ForeignKey == "" {
			v.addIssue("MISSING_RELATION_KEY", fmt.Sprintf("Relation '%s' needs both localKey and foreignKey", name), path)
		}
		if v.registry != nil && rel.Table != "" {
			if _, ok := v.registry.Model(rel.Table); !ok {
				v.addIssue("UNKNOWN_RELATION_TABLE", fmt.Sprintf("Relation '%s' targets unknown model '%s'", name, rel.Table), path)
			}
		}
		switch rel.Type {
		case "", RelationBelongsTo, RelationHasOne, RelationHasMany:
		default:
			v.addIssue("UNKNOWN_RELATION_TYPE", fmt.Sprintf("Relation '%s' has unknown type '%s'", name, rel.Type), path)
		}
	}
}

// validateSearchable accepts plain declared fields and relation-qualified
// fields whose leaf column exists on the related model. Unresolvable dotted
// names are flagged as warnings since they still compile to a flat column.
func (v *modelValidator) validateSearchable(def *ModelDefinition, sf SearchableField, path string) {
	idx := strings.LastIndex(sf.Name, ".")
	if idx < 0 {
		if len(def.Fields) > 0 && def.FindField(sf.Name) == nil {
			v.addIssue("UNKNOWN_SEARCHABLE_FIELD", fmt.Sprintf("Searchable field '%s' is not a declared field", sf.Name), path)
		}
		return
	}
	if v.registry == nil {
		return
	}
	relPath, leaf := sf.Name[:idx], sf.Name[idx+1:]
	chain, ok := v.registry.ResolveRelation(def.Name, relPath)
	if !ok {
		v.addWarning("UNRESOLVED_RELATION_FIELD", fmt.Sprintf("Searchable field '%s' does not follow a known relation", sf.Name), path)
		return
	}
	target, ok := v.registry.Model(chain[len(chain)-1].Table)
	if ok && len(target.Fields) > 0 && target.FindField(leaf) == nil {
		v.addIssue("UNKNOWN_SEARCHABLE_FIELD", fmt.Sprintf("Field '%s' is not declared on '%s'", leaf, target.Name), path)
	}
}

func (v *modelValidator) addIssue(code, message, path string) {
	v.issues = append(v.issues, Issue{Code: code, Message: message, Path: path, Severity: "error"})
}

func (v *modelValidator) addWarning(code, message, path string) {
	v.issues = append(v.issues, Issue{Code: code, Message: message, Path: path, Severity: "warning"})
}

// HasErrors reports whether any issue has error severity.
func HasErrors(issues []Issue) bool {
	for _, issue := range issues {
		if issue.Severity != "warning" {
			return true
		}
	}
	return false
}

// Validator checks documents against a model before they are written.
type Validator struct {
	model  *ModelDefinition
	issues []Issue
}

// NewValidator creates a new Validator for a model.
func NewValidator(model *ModelDefinition) *Validator {
	return &Validator{model: model}
}

// Validate checks a document against the model. In loose mode missing
// required fields are not reported. String values are coerced in place to
// the declared type when possible.
func (v *Validator) Validate(data Document, loose bool) (bool, []Issue) {
	v.issues = make([]Issue, 0)

	for name, field := range v.model.Fields {
		value, exists := data[name]
		if !exists || value == nil {
			if field.Required && !loose && name != v.model.Key() {
				v.addIssue("REQUIRED_FIELD_MISSING", fmt.Sprintf("Required field '%s' is missing", name), name)
			}
			continue
		}
		coerced, ok := coerceValue(value, field.Type)
		if !ok {
			v.addIssue("TYPE_MISMATCH", fmt.Sprintf("Field '%s' expected type '%s', got %T", name, field.Type, value), name)
			continue
		}
		data[name] = coerced
	}

	for key := range data {
		if _, ok := v.model.Fields[key]; !ok {
			v.addIssue("UNEXPECTED_FIELD", fmt.Sprintf("Unexpected field '%s' not defined in model", key), key)
		}
	}
	return len(v.issues) == 0, v.issues
}

func (v *Validator) addIssue(code, message, path string) {
	v.issues = append(v.issues, Issue{Code: code, Message: message, Path: path, Severity: "error"})
}

// coerceValue converts value to the expected type, accepting the string
// forms a request or a seed file would carry.
func coerceValue(value any, expected FieldType) (any, bool) {
	str, isString := value.(string)
	switch expected {
	case FieldTypeString, FieldTypeDateTime:
		return value, isString
	case FieldTypeBoolean:
		if b, ok := value.(bool); ok {
			return b, true
		}
		if isString {
			switch strings.ToLower(str) {
			case "true", "1":
				return true, true
			case "false", "0":
				return false, true
			}
		}
		return value, false
	case FieldTypeInteger:
		switch n := value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return n, true
		case float64:
			return int64(n), n == float64(int64(n))
		case string:
			i, err := strconv.ParseInt(n, 10, 64)
			return i, err == nil
		}
		return value, false
	case FieldTypeNumber:
		switch n := value.(type) {
		case float32, float64, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return n, true
		case string:
			f, err := strconv.ParseFloat(n, 64)
			return f, err == nil
		}
		return value, false
	case FieldTypeObject:
		return value, true
	}
	return value, false
}

func isKnownType(t FieldType) bool {
	switch t {
	case FieldTypeString, FieldTypeNumber, FieldTypeInteger, FieldTypeBoolean, FieldTypeDateTime, FieldTypeObject:
		return true
	}
	return false
}

func buildPath(basePath, fieldName string) string {
	if basePath == "" {
		return fieldName
	}
	return basePath + "." + fieldName
}
