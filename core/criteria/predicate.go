package criteria

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/asaidimu/go-criteria/core/query"
	"github.com/asaidimu/go-criteria/core/schema"
	"go.uber.org/zap"
)

// PredicateKind selects the builder call a Predicate turns into.
type PredicateKind int

const (
	// KindCompare is a single field/operator/value condition.
	KindCompare PredicateKind = iota
	// KindIn is a membership test over Values.
	KindIn
	// KindBetween is an inclusive range over the two Values.
	KindBetween
	// KindMulti is one condition per element of Values, grouped.
	KindMulti
)

func (k PredicateKind) String() string {
	switch k {
	case KindIn:
		return "in"
	case KindBetween:
		return "between"
	case KindMulti:
		return "multi"
	default:
		return "compare"
	}
}

// Predicate is the condition one searchable field contributes.
type Predicate struct {
	// Field is the column the condition applies to: table-qualified for base
	// columns, the leaf column inside a relation scope, or the flat dotted
	// name when the relation path does not resolve.
	Field string
	// Relation is the relation path of an existence scope, empty otherwise.
	Relation string
	Operator string
	Kind     PredicateKind
	Value    any
	Values   []any
	// Connector joins the predicate to the ones before it.
	Connector schema.LogicalOperator
	// ValueConnector joins the conditions of a KindMulti predicate.
	ValueConnector schema.LogicalOperator
}

// Assembly is the input of AssemblePredicates.
type Assembly struct {
	// Table qualifies base-table columns.
	Table    string
	Fields   schema.SearchableFields
	Terms    Terms
	JoinMode string
	// Relations decides whether a dotted field is a relation scope. Without
	// one every dotted field is a flat column.
	Relations schema.RelationResolver
	Logger    *zap.Logger
}

// AssemblePredicates builds one predicate per resolved field that has a
// usable value, in field order.
//
// With join mode "and" every predicate is AND-joined. Otherwise the first
// predicate is AND-joined and the rest OR-joined. Value lists under
// comparison operators expand into one condition per element, OR-joined when
// the join mode is "or" and AND-joined otherwise.
func AssemblePredicates(a Assembly) []Predicate {
	logger := a.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	mode := strings.ToLower(strings.TrimSpace(a.JoinMode))
	forceAnd := mode == "and"
	valueConnector := schema.LogicalAnd
	if mode == "or" {
		valueConnector = schema.LogicalOr
	}

	predicates := make([]Predicate, 0, len(a.Fields))
	first := true
	for _, field := range a.Fields {
		op := field.Condition()
		raw, ok := a.Terms.Lookup(field.Name)
		if !ok {
			if !a.Terms.HasDefault || op == "in" || op == "between" {
				continue
			}
			raw = a.Terms.Default
		}

		relation, leaf := splitRelation(field.Name)
		p, ok := shapeValue(op, raw, leaf)
		if !ok {
			logger.Debug("Dropped search field with unusable value",
				zap.String("field", field.Name),
				zap.String("operator", op),
				zap.Any("value", raw))
			continue
		}

		switch {
		case relation == "":
			p.Field = qualify(a.Table, field.Name)
		case resolves(a.Relations, a.Table, relation):
			p.Relation = relation
			p.Field = leaf
		default:
			logger.Debug("Relation path does not resolve, using flat column",
				zap.String("table", a.Table),
				zap.String("field", field.Name))
			p.Field = field.Name
		}

		p.Connector = schema.LogicalOr
		if first || forceAnd {
			p.Connector = schema.LogicalAnd
		}
		p.ValueConnector = valueConnector
		first = false
		predicates = append(predicates, p)
	}
	return predicates
}

// shapeValue applies the operator-specific value rules. It reports false
// when the field should contribute no predicate.
func shapeValue(op string, raw any, leaf string) (Predicate, bool) {
	p := Predicate{Operator: op}
	list, isList := raw.([]any)

	switch op {
	case "like", "ilike":
		if isList {
			if len(list) == 0 {
				return p, false
			}
			p.Kind = KindMulti
			p.Values = make([]any, len(list))
			for i, v := range list {
				p.Values[i] = wrapWildcards(v)
			}
			return p, true
		}
		p.Kind, p.Value = KindCompare, wrapWildcards(raw)
		return p, true

	case "in":
		parts := splitComma(raw)
		if len(parts) == 0 || strings.TrimSpace(parts[0]) == "" || parts[0] == leaf {
			return p, false
		}
		p.Kind = KindIn
		p.Values = make([]any, len(parts))
		for i, part := range parts {
			p.Values[i] = decodeValue(part)
		}
		return p, true

	case "between":
		if isList && len(list) == 2 {
			p.Kind, p.Values = KindBetween, []any{list[0], list[1]}
			return p, true
		}
		parts := splitComma(raw)
		if len(parts) != 2 {
			return p, false
		}
		p.Kind, p.Values = KindBetween, []any{decodeValue(parts[0]), decodeValue(parts[1])}
		return p, true
	}

	if isList {
		if len(list) == 0 {
			return p, false
		}
		p.Kind, p.Values = KindMulti, list
		return p, true
	}
	p.Kind, p.Value = KindCompare, raw
	return p, true
}

// ApplyPredicates emits predicates into a single nested group on b.
func ApplyPredicates(b query.Builder, predicates []Predicate) {
	if len(predicates) == 0 {
		return
	}
	b.WhereGroup(func(q query.Builder) {
		for _, p := range predicates {
			applyPredicate(q, p)
		}
	})
}

func applyPredicate(q query.Builder, p Predicate) {
	if p.Relation == "" {
		applyCondition(q, p, p.Connector)
		return
	}
	scope := func(s query.Builder) {
		applyCondition(s, p, schema.LogicalAnd)
	}
	if p.Connector == schema.LogicalOr {
		q.OrWhereHas(p.Relation, scope)
		return
	}
	q.WhereHas(p.Relation, scope)
}

func applyCondition(q query.Builder, p Predicate, connector schema.LogicalOperator) {
	or := connector == schema.LogicalOr
	switch p.Kind {
	case KindIn:
		if or {
			q.OrWhereIn(p.Field, p.Values)
		} else {
			q.WhereIn(p.Field, p.Values)
		}
	case KindBetween:
		if or {
			q.OrWhereBetween(p.Field, p.Values[0], p.Values[1])
		} else {
			q.WhereBetween(p.Field, p.Values[0], p.Values[1])
		}
	case KindMulti:
		group := func(g query.Builder) {
			for _, v := range p.Values {
				if p.ValueConnector == schema.LogicalOr {
					g.OrWhere(p.Field, p.Operator, v)
				} else {
					g.Where(p.Field, p.Operator, v)
				}
			}
		}
		if or {
			q.OrWhereGroup(group)
		} else {
			q.WhereGroup(group)
		}
	default:
		if or {
			q.OrWhere(p.Field, p.Operator, p.Value)
		} else {
			q.Where(p.Field, p.Operator, p.Value)
		}
	}
}

// splitRelation splits "a.b.col" into the relation path "a.b" and the leaf
// column "col".
func splitRelation(field string) (string, string) {
	idx := strings.LastIndex(field, ".")
	if idx <= 0 {
		return "", field
	}
	return field[:idx], field[idx+1:]
}

func resolves(r schema.RelationResolver, table, relation string) bool {
	if r == nil {
		return false
	}
	_, ok := r.ResolveRelation(table, relation)
	return ok
}

func qualify(table, column string) string {
	if table == "" || strings.Contains(column, ".") {
		return column
	}
	return table + "." + column
}

func wrapWildcards(v any) string {
	return "%" + stringify(v) + "%"
}

// splitComma splits a value on ','. List elements are split individually and
// the parts concatenated.
func splitComma(v any) []string {
	if list, ok := v.([]any); ok {
		var parts []string
		for _, item := range list {
			parts = append(parts, strings.Split(stringify(item), ",")...)
		}
		return parts
	}
	return strings.Split(stringify(v), ",")
}

func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case map[string]any, []any:
		if b, err := json.Marshal(val); err == nil {
			return string(b)
		}
	}
	return fmt.Sprint(v)
}
