package criteria

import (
	"fmt"
	"strings"

	"github.com/asaidimu/go-criteria/core/query"
)

// recorder is a query.Builder that logs every call, nesting group and scope
// calls with braces.
type recorder struct {
	table string
	calls []string
}

var _ query.Builder = (*recorder)(nil)

func newRecorder(table string) *recorder { return &recorder{table: table} }

func (r *recorder) log(format string, args ...any) query.Builder {
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
	return r
}

func (r *recorder) nested(name string, fn func(query.Builder)) query.Builder {
	child := newRecorder(r.table)
	if fn != nil {
		fn(child)
	}
	return r.log("%s{%s}", name, strings.Join(child.calls, "; "))
}

func (r *recorder) Table() string { return r.table }
func (r *recorder) Where(f, op string, v any) query.Builder {
	return r.log("where %s %s %v", f, op, v)
}
func (r *recorder) OrWhere(f, op string, v any) query.Builder {
	return r.log("orWhere %s %s %v", f, op, v)
}
func (r *recorder) WhereIn(f string, v []any) query.Builder   { return r.log("whereIn %s %v", f, v) }
func (r *recorder) OrWhereIn(f string, v []any) query.Builder { return r.log("orWhereIn %s %v", f, v) }
func (r *recorder) WhereBetween(f string, a, b any) query.Builder {
	return r.log("whereBetween %s %v %v", f, a, b)
}
func (r *recorder) OrWhereBetween(f string, a, b any) query.Builder {
	return r.log("orWhereBetween %s %v %v", f, a, b)
}
func (r *recorder) WhereGroup(fn func(query.Builder)) query.Builder {
	return r.nested("whereGroup", fn)
}
func (r *recorder) OrWhereGroup(fn func(query.Builder)) query.Builder {
	return r.nested("orWhereGroup", fn)
}
func (r *recorder) WhereHas(rel string, fn func(query.Builder)) query.Builder {
	return r.nested("whereHas "+rel, fn)
}
func (r *recorder) OrWhereHas(rel string, fn func(query.Builder)) query.Builder {
	return r.nested("orWhereHas "+rel, fn)
}
func (r *recorder) OrderBy(c string, d query.SortDirection) query.Builder {
	return r.log("orderBy %s %s", c, d)
}
func (r *recorder) LeftJoin(t, a, b string) query.Builder {
	return r.log("leftJoin %s %s = %s", t, a, b)
}
func (r *recorder) Select(c ...string) query.Builder    { return r.log("select %s", strings.Join(c, ",")) }
func (r *recorder) AddSelect(c ...string) query.Builder { return r.log("addSelect %s", strings.Join(c, ",")) }
func (r *recorder) With(rel ...string) query.Builder    { return r.log("with %s", strings.Join(rel, ",")) }
func (r *recorder) WithCount(rel ...string) query.Builder {
	return r.log("withCount %s", strings.Join(rel, ","))
}
