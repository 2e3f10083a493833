package sqlite

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/asaidimu/go-criteria/core/persistence"
	"github.com/asaidimu/go-criteria/core/schema"
	"go.uber.org/zap"
)

// DefaultInteractorOptions returns the options used when none are given.
func DefaultInteractorOptions() *persistence.InteractorOptions {
	return &persistence.InteractorOptions{
		IfNotExists: true,
	}
}

// CreateCollection creates the table for a model and an index on every
// belongsTo key column.
func (i *SQLiteInteractor) CreateCollection(ctx context.Context, model *schema.ModelDefinition) error {
	stmts, err := i.CreateTableSQL(model)
	if err != nil {
		return fmt.Errorf("failed to generate table SQL: %w", err)
	}
	for _, stmt := range stmts {
		i.logger.Debug("Executing DDL", zap.String("sql", stmt))
		if _, err := i.runner().ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute SQL statement '%s': %w", stmt, err)
		}
	}
	return nil
}

// CreateTableSQL generates the DDL statements for a model's table. Columns are
// emitted in name order and the primary key is declared inline.
func (i *SQLiteInteractor) CreateTableSQL(model *schema.ModelDefinition) ([]string, error) {
	if model == nil || model.Name == "" {
		return nil, fmt.Errorf("model must define a table name")
	}
	if len(model.Fields) == 0 {
		return nil, fmt.Errorf("model '%s' defines no fields", model.Name)
	}

	var sb strings.Builder
	sb.WriteString("CREATE TABLE ")
	if i.options.IfNotExists {
		sb.WriteString("IF NOT EXISTS ")
	}
	sb.WriteString(quoteName(model.Name) + " (\n")

	columns := make([]string, 0, len(model.Fields))
	for _, name := range model.FieldNames() {
		def, err := buildColumnDefinition(name, model.Fields[name], name == model.Key())
		if err != nil {
			return nil, fmt.Errorf("error on field '%s': %w", name, err)
		}
		columns = append(columns, "    "+def)
	}
	sb.WriteString(strings.Join(columns, ",\n"))
	sb.WriteString("\n);")

	stmts := []string{sb.String()}
	exists := ""
	if i.options.IfNotExists {
		exists = "IF NOT EXISTS "
	}
	for _, rel := range relationIndexes(model) {
		stmts = append(stmts, fmt.Sprintf("CREATE INDEX %s%s ON %s (%s);",
			exists, quoteName("idx_"+model.Name+"_"+rel), quoteName(model.Name), quoteName(rel)))
	}
	return stmts, nil
}

// relationIndexes lists the model's columns that belongsTo relations join on
// and that are not the primary key.
func relationIndexes(model *schema.ModelDefinition) []string {
	seen := make(map[string]bool)
	var cols []string
	for _, name := range sortedRelations(model) {
		rel := model.Relations[name]
		if rel == nil || rel.Type != schema.RelationBelongsTo {
			continue
		}
		col := rel.LocalKey
		if col == "" || col == model.Key() || seen[col] || model.FindField(col) == nil {
			continue
		}
		seen[col] = true
		cols = append(cols, col)
	}
	return cols
}

func sortedRelations(model *schema.ModelDefinition) []string {
	names := make([]string, 0, len(model.Relations))
	for name := range model.Relations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// buildColumnDefinition constructs the DDL for a single column.
func buildColumnDefinition(name string, field *schema.FieldDefinition, primary bool) (string, error) {
	if field == nil {
		return "", fmt.Errorf("field definition is nil")
	}
	colType, err := GetColumnType(field.Type)
	if err != nil {
		return "", err
	}
	parts := []string{quoteName(name), colType}
	if primary {
		parts = append(parts, "PRIMARY KEY")
	} else if field.Required {
		parts = append(parts, "NOT NULL")
	}
	return strings.Join(parts, " "), nil
}

// GetColumnType maps a schema.FieldType to its SQLite storage class.
func GetColumnType(fieldType schema.FieldType) (string, error) {
	switch fieldType {
	case schema.FieldTypeString, schema.FieldTypeDateTime, schema.FieldTypeObject:
		return "TEXT", nil
	case schema.FieldTypeNumber:
		return "REAL", nil
	case schema.FieldTypeInteger, schema.FieldTypeBoolean:
		return "INTEGER", nil
	default:
		return "", fmt.Errorf("unsupported field type '%s'", fieldType)
	}
}
