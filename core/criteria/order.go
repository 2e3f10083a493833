package criteria

import (
	"strings"

	"github.com/asaidimu/go-criteria/core/query"
	"github.com/jinzhu/inflection"
)

// Join is the left join an ordering token asks for.
type Join struct {
	Table string
	// LocalColumn is the base-table side, table-qualified.
	LocalColumn string
	// ForeignColumn is the joined-table side, table-qualified.
	ForeignColumn string
}

// OrderClause is one parsed orderBy token.
type OrderClause struct {
	Column    string
	Direction query.SortDirection
	Join      *Join
}

// ParseOrder parses orderBy tokens and pairs them with sortedBy directions.
//
//	column                  order by column
//	roles|name              left join roles on <table>.role_id = roles.id
//	roles:owner_id|name     left join roles on <table>.owner_id = roles.id
//	roles:custom_id,id|name left join roles on <table>.custom_id = roles.id
//
// Directions are ';'-separated and positional; when there are fewer
// directions than tokens the last one repeats. Blank tokens are skipped but
// keep their slot, so directions pair with the raw ';' positions. A blank
// direction means asc and anything else but asc or desc fails with
// *InvalidSortDirectionError.
func ParseOrder(table, orderBy, sortedBy string) ([]OrderClause, error) {
	if strings.TrimSpace(orderBy) == "" {
		return nil, nil
	}
	tokens := strings.Split(orderBy, ";")
	directions := strings.Split(sortedBy, ";")

	clauses := make([]OrderClause, 0, len(tokens))
	for i, token := range tokens {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		raw := directions[min(i, len(directions)-1)]
		clause, ok := parseOrderToken(table, token)
		if !ok {
			continue
		}
		dir, err := parseDirection(clause.Column, raw)
		if err != nil {
			return nil, err
		}
		clause.Direction = dir
		clauses = append(clauses, clause)
	}
	return clauses, nil
}

func parseOrderToken(table, token string) (OrderClause, bool) {
	tablePart, column, isJoin := strings.Cut(token, "|")
	if !isJoin {
		return OrderClause{Column: token}, true
	}
	tablePart, column = strings.TrimSpace(tablePart), strings.TrimSpace(column)
	if column == "" {
		return OrderClause{}, false
	}

	joinTable, key, hasKey := strings.Cut(tablePart, ":")
	joinTable = strings.TrimSpace(joinTable)
	if joinTable == "" {
		return OrderClause{Column: column}, true
	}

	join := &Join{Table: joinTable, ForeignColumn: joinTable + ".id"}
	switch local, remote, hasRemote := strings.Cut(key, ","); {
	case hasKey && hasRemote:
		join.LocalColumn = qualify(table, strings.TrimSpace(local))
		join.ForeignColumn = joinTable + "." + strings.TrimSpace(remote)
	case hasKey:
		join.LocalColumn = qualify(table, strings.TrimSpace(key))
	default:
		join.LocalColumn = qualify(table, inflection.Singular(joinTable)+"_id")
	}

	if !strings.Contains(column, ".") {
		column = joinTable + "." + column
	}
	return OrderClause{Column: column, Join: join}, true
}

func parseDirection(column, raw string) (query.SortDirection, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "asc":
		return query.SortDirectionAsc, nil
	case "desc":
		return query.SortDirectionDesc, nil
	}
	return "", &InvalidSortDirectionError{Column: column, Direction: raw}
}

// ApplyOrder emits the order clauses. A joined clause also re-projects the
// base table's columns so the joined columns do not shadow them.
func ApplyOrder(b query.Builder, table string, clauses []OrderClause) {
	for _, c := range clauses {
		if c.Join != nil {
			b.LeftJoin(c.Join.Table, c.Join.LocalColumn, c.Join.ForeignColumn)
			b.OrderBy(c.Column, c.Direction)
			if table != "" {
				b.AddSelect(table + ".*")
			}
			continue
		}
		b.OrderBy(c.Column, c.Direction)
	}
}
