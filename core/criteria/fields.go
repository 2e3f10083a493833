package criteria

import (
	"slices"
	"strings"

	"github.com/asaidimu/go-criteria/core/schema"
)

// ResolveFields narrows the searchable fields to the ones named in override,
// applying "field:operator" overrides whose operator is accepted. A token
// with a rejected operator still selects the field under its declared
// operator. Declaration order is preserved and undeclared fields are never
// added.
//
// An empty override returns searchable unchanged. A non-empty override that
// selects nothing fails with a *NoAcceptedFieldsError.
func ResolveFields(searchable schema.SearchableFields, override []string, accepted []string) (schema.SearchableFields, error) {
	if len(override) == 0 {
		return searchable, nil
	}

	working := searchable.Clone()
	requested := make([]string, 0, len(override))
	for _, token := range override {
		name, op, hasOp := strings.Cut(token, ":")
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if hasOp && acceptsOperator(accepted, op) {
			for i := range working {
				if working[i].Name == name {
					working[i].Operator = normalizeCondition(op)
				}
			}
		}
		requested = append(requested, name)
	}

	resolved := make(schema.SearchableFields, 0, len(requested))
	for _, f := range working {
		if slices.Contains(requested, f.Name) {
			resolved = append(resolved, f)
		}
	}
	if len(resolved) == 0 {
		return nil, &NoAcceptedFieldsError{Fields: requested}
	}
	return resolved, nil
}
