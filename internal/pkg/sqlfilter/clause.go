// Package sqlfilter builds row-filtering predicates for PostgreSQL queries.
//
// Identifiers (Column and the fixed subquery text passed to InSubquery) are
// trusted, code-controlled strings and are written into the SQL text. Every
// other value travels as a bound argument: clauses carry "?" markers that
// Query.Build rewrites to lib/pq's $n placeholders.
package sqlfilter

import (
	"strings"

	"github.com/lib/pq"
)

// Column is a trusted column identifier, optionally qualified ("c.id").
type Column string

// Clause is a boolean SQL fragment and the values bound to its markers.
// The zero Clause is empty and means "no restriction".
type Clause struct {
	text string
	args []any
}

// False matches no rows.
var False = Clause{text: "FALSE"}

// IsEmpty reports whether c imposes no restriction.
func (c Clause) IsEmpty() bool { return c.text == "" }

// String returns the fragment with "?" value markers.
func (c Clause) String() string { return c.text }

// Args returns the values bound to the fragment's markers, in order.
func (c Clause) Args() []any { return c.args }

// Principal is anything that can say whether it bypasses row filtering.
type Principal interface {
	IsAdmin() bool
}

// FilterUnlessAdmin drops c for admins and returns it unchanged otherwise.
func FilterUnlessAdmin(p Principal, c Clause) Clause {
	if p.IsAdmin() {
		return Clause{}
	}
	return c
}

// Eq asserts col = value.
func Eq(col Column, value any) Clause {
	return Clause{text: string(col) + " = ?", args: []any{value}}
}

// GreaterOrEqual asserts col >= value.
func GreaterOrEqual(col Column, value any) Clause {
	return Clause{text: string(col) + " >= ?", args: []any{value}}
}

// Membership asserts that col is one of ids. The whole set is bound as a
// single array parameter. An empty set yields False rather than an
// engine-dependent "IN ()".
func Membership(col Column, ids []int64) Clause {
	if len(ids) == 0 {
		return False
	}
	set := make(pq.Int64Array, len(ids))
	copy(set, ids)
	return Clause{text: string(col) + " = ANY(?)", args: []any{set}}
}

// MemberSet pairs a column with the ids it may take.
type MemberSet struct {
	Column Column
	IDs    []int64
}

// AnyOf matches rows reachable through any of the given memberships.
func AnyOf(sets ...MemberSet) Clause {
	clauses := make([]Clause, 0, len(sets))
	for _, s := range sets {
		clauses = append(clauses, Membership(s.Column, s.IDs))
	}
	return Or(clauses...)
}

// InSubquery asserts col IN (subquery WHERE inner). subquery must be a
// constant SELECT of one column without its own WHERE. An empty inner clause
// yields False so a missing restriction never widens the match.
func InSubquery(col Column, subquery string, inner Clause) Clause {
	if inner.IsEmpty() {
		return False
	}
	return Clause{
		text: string(col) + " IN (" + subquery + " WHERE " + inner.text + ")",
		args: inner.args,
	}
}

// Or joins the non-empty clauses with OR, parenthesised so the result can be
// ANDed safely. With nothing to join it returns False.
func Or(clauses ...Clause) Clause {
	return join(" OR ", clauses, False)
}

// And joins the non-empty clauses with AND. With nothing to join it returns
// the empty clause, never a dangling operator.
func And(clauses ...Clause) Clause {
	return join(" AND ", clauses, Clause{})
}

func join(op string, clauses []Clause, none Clause) Clause {
	parts := make([]string, 0, len(clauses))
	var args []any
	for _, c := range clauses {
		if c.IsEmpty() {
			continue
		}
		parts = append(parts, c.text)
		args = append(args, c.args...)
	}
	switch len(parts) {
	case 0:
		return none
	case 1:
		return Clause{text: parts[0], args: args}
	}
	return Clause{text: "(" + strings.Join(parts, op) + ")", args: args}
}
