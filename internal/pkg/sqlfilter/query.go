package sqlfilter

import (
	"strconv"
	"strings"
)

// Query assembles a statement from a constant head, an optional filter and
// a constant tail.
type Query struct {
	head   string
	where  Clause
	suffix string
}

// NewQuery starts a statement. head is trusted SQL without a WHERE clause.
func NewQuery(head string) *Query {
	return &Query{head: head}
}

// Where ANDs c into the filter. Empty clauses are ignored.
func (q *Query) Where(c Clause) *Query {
	q.where = And(q.where, c)
	return q
}

// Suffix sets trusted SQL appended after the filter (ORDER BY, RETURNING...).
func (q *Query) Suffix(s string) *Query {
	q.suffix = s
	return q
}

// Build renders the statement with $n placeholders and returns its args.
func (q *Query) Build() (string, []any) {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(q.head))
	if !q.where.IsEmpty() {
		b.WriteString(" WHERE ")
		b.WriteString(q.where.text)
	}
	if s := strings.TrimSpace(q.suffix); s != "" {
		b.WriteString(" ")
		b.WriteString(s)
	}
	return Rebind(b.String()), q.where.args
}

// Rebind rewrites each "?" marker to $1, $2, ... in order.
func Rebind(sql string) string {
	if !strings.Contains(sql, "?") {
		return sql
	}
	var b strings.Builder
	b.Grow(len(sql) + 8)
	n := 0
	for i := 0; i < len(sql); i++ {
		if sql[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(sql[i])
	}
	return b.String()
}
