package query

import (
	"context"
	"fmt"
	"maps"
	"regexp"
	"strings"
	"sync"

	"github.com/asaidimu/go-criteria/core/schema"
	"go.uber.org/zap"
)

// PredicateFunction is a pure Go function that performs custom filtering logic on a row.
// It takes a row, the condition field and the condition value, and reports
// whether the row passes.
type PredicateFunction func(doc schema.Document, field string, args FilterValue) (bool, error)

// DataProcessor evaluates filters against documents in memory. It covers the
// standard operators with SQL-like semantics and any operator registered as a
// Go filter function.
type DataProcessor struct {
	goFilterFunctions map[ComparisonOperator]PredicateFunction
	mu                sync.RWMutex
	logger            *zap.Logger
}

// NewDataProcessor creates a new DataProcessor instance.
func NewDataProcessor(logger *zap.Logger) *DataProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DataProcessor{
		goFilterFunctions: make(map[ComparisonOperator]PredicateFunction),
		logger:            logger,
	}
}

// RegisterFilterFunction registers a Go function for custom filtering.
func (p *DataProcessor) RegisterFilterFunction(operator ComparisonOperator, fn PredicateFunction) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.goFilterFunctions[operator] = fn
	p.logger.Info("Registered filter function", zap.String("operator", string(operator)))
}

// RegisterFilterFunctions registers multiple filter functions from a map.
func (p *DataProcessor) RegisterFilterFunctions(functionMap map[ComparisonOperator]PredicateFunction) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for operator, fn := range functionMap {
		p.goFilterFunctions[operator] = fn
		p.logger.Info("Registered filter function", zap.String("operator", string(operator)))
	}
}

// HasFilterFunction reports whether operator is handled by a registered Go function.
func (p *DataProcessor) HasFilterFunction(operator ComparisonOperator) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.goFilterFunctions[operator]
	return ok
}

// RequiresGoEvaluation reports whether any condition in the filter uses an
// operator that cannot be rendered as SQL.
func (p *DataProcessor) RequiresGoEvaluation(filter *QueryFilter) bool {
	found := false
	filter.Walk(func(_ string, c *FilterCondition) {
		if !c.Operator.IsStandard() {
			found = true
		}
	})
	return found
}

// ProcessRows filters rows in memory and applies the exclude projection.
// PRODUCTION WARNING: the filtering happens in-memory, so a query whose only
// selective conditions are Go filters reads the whole table.
func (p *DataProcessor) ProcessRows(ctx context.Context, rows []schema.Document, dsl *QueryDSL) ([]schema.Document, error) {
	filtered := rows
	if dsl.Filters != nil {
		filtered = make([]schema.Document, 0, len(rows))
		for _, row := range rows {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			passes, err := p.Match(ctx, dsl.Filters, row)
			if err != nil {
				return nil, fmt.Errorf("Go filter failed: %w", err)
			}
			if passes {
				filtered = append(filtered, row)
			}
		}
	}
	p.logger.Debug("Rows remaining after Go filters", zap.Int("count", len(filtered)))

	return p.applyFinalProjection(filtered, dsl.Projection), nil
}

// applyFinalProjection drops excluded fields. Includes are left to the
// database, which already returned only the selected columns.
func (p *DataProcessor) applyFinalProjection(rows []schema.Document, projection *ProjectionConfiguration) []schema.Document {
	if projection == nil || len(projection.Exclude) == 0 {
		return rows
	}

	finalRows := make([]schema.Document, 0, len(rows))
	for _, originalRow := range rows {
		newRow := make(schema.Document, len(originalRow))
		maps.Copy(newRow, originalRow)
		for _, f := range projection.Exclude {
			delete(newRow, f.Name)
			delete(newRow, lastSegment(f.Name))
		}
		finalRows = append(finalRows, newRow)
	}
	return finalRows
}

// Match evaluates a document against a filter tree. A relation scope matches
// when the document holds at least one related document, under the relation
// name, that satisfies the scoped filter.
func (p *DataProcessor) Match(ctx context.Context, filters *QueryFilter, data schema.Document) (bool, error) {
	if filters == nil {
		return true, nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.evaluate(data, filters)
}

func (p *DataProcessor) evaluate(row schema.Document, filter *QueryFilter) (bool, error) {
	switch {
	case filter.Condition != nil:
		if !filter.Condition.Operator.IsStandard() {
			fn, ok := p.goFilterFunctions[filter.Condition.Operator]
			if !ok {
				return false, fmt.Errorf("unregistered Go filter function for operator: %s", filter.Condition.Operator)
			}
			return fn(row, filter.Condition.Field, filter.Condition.Value)
		}
		return p.evaluateStandardCondition(row, filter.Condition)

	case filter.Group != nil:
		switch filter.Group.Operator {
		case schema.LogicalAnd:
			for i := range filter.Group.Conditions {
				passes, err := p.evaluate(row, &filter.Group.Conditions[i])
				if err != nil || !passes {
					return false, err
				}
			}
			return true, nil
		case schema.LogicalOr:
			for i := range filter.Group.Conditions {
				passes, err := p.evaluate(row, &filter.Group.Conditions[i])
				if err != nil {
					return false, err
				}
				if passes {
					return true, nil
				}
			}
			return false, nil
		default:
			return false, fmt.Errorf("unsupported logical operator for Go evaluation: %s", filter.Group.Operator)
		}

	case filter.Relation != nil:
		for _, related := range relatedDocuments(row, filter.Relation.Relation) {
			if filter.Relation.Filter == nil {
				return true, nil
			}
			passes, err := p.evaluate(related, filter.Relation.Filter)
			if err != nil {
				return false, err
			}
			if passes {
				return true, nil
			}
		}
		return false, nil
	}
	return false, fmt.Errorf("empty or invalid filter structure for Go evaluation")
}

// evaluateStandardCondition follows SQL semantics: a missing or NULL field
// never matches.
func (p *DataProcessor) evaluateStandardCondition(row schema.Document, condition *FilterCondition) (bool, error) {
	fieldValue, ok := lookupField(row, condition.Field)
	if !ok || fieldValue == nil {
		return false, nil
	}

	switch condition.Operator {
	case ComparisonOperatorEq:
		return valuesEqual(fieldValue, condition.Value), nil
	case ComparisonOperatorNeq:
		return !valuesEqual(fieldValue, condition.Value), nil
	case ComparisonOperatorLt, ComparisonOperatorLte, ComparisonOperatorGt, ComparisonOperatorGte:
		cmp, ok := compareValues(fieldValue, condition.Value)
		if !ok {
			return false, fmt.Errorf("unsupported type for %s comparison between %T and %T", condition.Operator, fieldValue, condition.Value)
		}
		switch condition.Operator {
		case ComparisonOperatorLt:
			return cmp < 0, nil
		case ComparisonOperatorLte:
			return cmp <= 0, nil
		case ComparisonOperatorGt:
			return cmp > 0, nil
		default:
			return cmp >= 0, nil
		}
	case ComparisonOperatorLike, ComparisonOperatorILike, ComparisonOperatorNotLike:
		re, err := likePattern(fmt.Sprint(condition.Value))
		if err != nil {
			return false, err
		}
		matched := re.MatchString(fmt.Sprint(fieldValue))
		if condition.Operator == ComparisonOperatorNotLike {
			return !matched, nil
		}
		return matched, nil
	case ComparisonOperatorIn, ComparisonOperatorNin:
		values, ok := condition.Value.([]any)
		if !ok {
			return false, fmt.Errorf("%s requires a list of values, got %T", condition.Operator, condition.Value)
		}
		found := false
		for _, v := range values {
			if valuesEqual(fieldValue, v) {
				found = true
				break
			}
		}
		if condition.Operator == ComparisonOperatorNin {
			return !found, nil
		}
		return found, nil
	case ComparisonOperatorBetween:
		values, ok := condition.Value.([]any)
		if !ok || len(values) != 2 {
			return false, fmt.Errorf("between requires exactly two values")
		}
		lower, okL := compareValues(fieldValue, values[0])
		upper, okU := compareValues(fieldValue, values[1])
		if !okL || !okU {
			return false, fmt.Errorf("unsupported type for between comparison on %T", fieldValue)
		}
		return lower >= 0 && upper <= 0, nil
	default:
		return false, fmt.Errorf("unsupported standard comparison operator for Go evaluation: %s", condition.Operator)
	}
}

// lookupField resolves a possibly dotted field: the exact key first, then a
// nested path through maps, then the bare column of a table-qualified name.
func lookupField(row schema.Document, field string) (any, bool) {
	if v, ok := row[field]; ok {
		return v, true
	}
	if !strings.Contains(field, ".") {
		return nil, false
	}
	var current any = map[string]any(row)
	found := true
	for _, segment := range strings.Split(field, ".") {
		m, ok := asMap(current)
		if !ok {
			found = false
			break
		}
		if current, ok = m[segment]; !ok {
			found = false
			break
		}
	}
	if found {
		return current, true
	}
	v, ok := row[lastSegment(field)]
	return v, ok
}

// relatedDocuments follows a dotted relation path through nested documents,
// flattening to-many relations along the way.
func relatedDocuments(row schema.Document, path string) []schema.Document {
	current := []schema.Document{row}
	for _, segment := range strings.Split(path, ".") {
		var next []schema.Document
		for _, doc := range current {
			next = append(next, asDocuments(doc[segment])...)
		}
		current = next
	}
	return current
}

func asDocuments(v any) []schema.Document {
	switch val := v.(type) {
	case nil:
		return nil
	case schema.Document:
		return []schema.Document{val}
	case map[string]any:
		return []schema.Document{val}
	case []schema.Document:
		return val
	case []map[string]any:
		out := make([]schema.Document, len(val))
		for i, m := range val {
			out[i] = m
		}
		return out
	case []any:
		var out []schema.Document
		for _, item := range val {
			out = append(out, asDocuments(item)...)
		}
		return out
	}
	return nil
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case schema.Document:
		return m, true
	case map[string]any:
		return m, true
	}
	return nil, false
}

func lastSegment(field string) string {
	if idx := strings.LastIndex(field, "."); idx >= 0 {
		return field[idx+1:]
	}
	return field
}

// valuesEqual compares numerically when both sides are numbers (booleans
// count as 0/1, the way SQLite stores them) and textually otherwise.
func valuesEqual(a, b any) bool {
	if cmp, ok := compareNumbers(a, b); ok {
		return cmp == 0
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func compareValues(a, b any) (int, bool) {
	if cmp, ok := compareNumbers(a, b); ok {
		return cmp, true
	}
	sa, okA := a.(string)
	sb, okB := b.(string)
	if !okA || !okB {
		return 0, false
	}
	return strings.Compare(sa, sb), true
}

func compareNumbers(a, b any) (int, bool) {
	fa, okA := numeric(a)
	fb, okB := numeric(b)
	if !okA || !okB {
		return 0, false
	}
	switch {
	case fa < fb:
		return -1, true
	case fa > fb:
		return 1, true
	}
	return 0, true
}

func numeric(v any) (float64, bool) {
	if b, ok := v.(bool); ok {
		if b {
			return 1, true
		}
		return 0, true
	}
	return ToFloat64(v)
}

// likePattern compiles a SQL LIKE pattern. Matching is case-insensitive,
// which is what SQLite does for ASCII text.
func likePattern(pattern string) (*regexp.Regexp, error) {
	var sb strings.Builder
	sb.WriteString("(?is)^")
	for _, r := range pattern {
		switch r {
		case '%':
			sb.WriteString(".*")
		case '_':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")
	return regexp.Compile(sb.String())
}
