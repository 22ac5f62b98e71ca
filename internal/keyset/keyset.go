// Package keyset builds ORDER BY clauses and strict after-cursor
// predicates for seek-based pagination. Orderings are lists of
// (column, direction) pairs; the predicate restricts results to rows
// strictly after a resume position in that ordering, choosing the
// comparator per column so mixed-direction orderings page correctly.
package keyset

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"experiment-graphql/internal/runsort"
	"experiment-graphql/internal/sqlutil"
)

// OrderColumn is one element of an ordering.
type OrderColumn struct {
	Column    string
	Direction runsort.Direction
}

// Join describes an extra join an ordering needs to expose its column.
// None of the currently supported orderings require one; this is the
// hook point for annotation-based sorts.
type Join struct {
	Table string
	On    string
}

// Ordering is a resolved ordering: the ORDER BY columns plus any joins
// required to make those columns available on the base query.
type Ordering struct {
	Columns []OrderColumn
	Joins   []Join
}

// Directions returns the per-column directions in order.
func (o Ordering) Directions() []runsort.Direction {
	dirs := make([]runsort.Direction, len(o.Columns))
	for i, col := range o.Columns {
		dirs[i] = col.Direction
	}
	return dirs
}

// OrderByClauses renders the ordering as quoted ORDER BY clause strings.
func (o Ordering) OrderByClauses() []string {
	clauses := make([]string, len(o.Columns))
	for i, col := range o.Columns {
		clauses[i] = fmt.Sprintf("%s %s", sqlutil.QuoteIdentifier(col.Column), sqlDirection(col.Direction))
	}
	return clauses
}

// SeekPredicate builds the strict "after this position" condition over
// the ordering columns compared against the values read from the cursor
// row. When every column shares one direction this collapses to a single
// row-value comparison, e.g. (a, b) > (?, ?). Mixed directions expand
// lexicographically with a per-column comparator:
//
//	a > ? OR (a = ? AND b < ?)
//
// The value slice must align with the ordering columns.
func SeekPredicate(columns []OrderColumn, values []interface{}) (sq.Sqlizer, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("seek predicate requires at least one ordering column")
	}
	if len(values) != len(columns) {
		return nil, fmt.Errorf("seek predicate value count mismatch: %d columns, %d values", len(columns), len(values))
	}

	if uniform, dir := uniformDirection(columns); uniform {
		return rowValuePredicate(columns, values, dir), nil
	}
	return lexicographicPredicate(columns, values), nil
}

func uniformDirection(columns []OrderColumn) (bool, runsort.Direction) {
	dir := columns[0].Direction
	for _, col := range columns[1:] {
		if col.Direction != dir {
			return false, dir
		}
	}
	return true, dir
}

// rowValuePredicate emits (c1, c2) > (?, ?) for ASC, < for DESC.
func rowValuePredicate(columns []OrderColumn, values []interface{}, dir runsort.Direction) sq.Sqlizer {
	quoted := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = sqlutil.QuoteIdentifier(col.Column)
		placeholders[i] = "?"
	}
	lhs := "(" + strings.Join(quoted, ", ") + ")"
	rhs := "(" + strings.Join(placeholders, ", ") + ")"
	return sq.Expr(lhs+" "+comparator(dir)+" "+rhs, values...)
}

// lexicographicPredicate emits the general per-column expansion:
// one disjunct per prefix length, equality on the prefix and the
// column's own strict comparator on the last position.
func lexicographicPredicate(columns []OrderColumn, values []interface{}) sq.Sqlizer {
	disjuncts := make([]sq.Sqlizer, len(columns))
	for i, col := range columns {
		conjuncts := make([]sq.Sqlizer, 0, i+1)
		for j := 0; j < i; j++ {
			conjuncts = append(conjuncts, sq.Expr(
				sqlutil.QuoteIdentifier(columns[j].Column)+" = ?", values[j],
			))
		}
		conjuncts = append(conjuncts, sq.Expr(
			sqlutil.QuoteIdentifier(col.Column)+" "+comparator(col.Direction)+" ?", values[i],
		))
		if len(conjuncts) == 1 {
			disjuncts[i] = conjuncts[0]
		} else {
			disjuncts[i] = sq.And(conjuncts)
		}
	}
	return sq.Or(disjuncts)
}

// Apply attaches the ordering's joins, the seek predicate (when present),
// and the ORDER BY clauses to a base query. Callers add their own scoping
// filters (e.g. the parent id) before calling Apply so the seek predicate
// can never widen the row set past the parent.
func Apply(builder sq.SelectBuilder, ordering Ordering, seek sq.Sqlizer) sq.SelectBuilder {
	for _, join := range ordering.Joins {
		builder = builder.Join(fmt.Sprintf("%s ON %s", sqlutil.QuoteIdentifier(join.Table), join.On))
	}
	if seek != nil {
		builder = builder.Where(seek)
	}
	return builder.OrderBy(ordering.OrderByClauses()...)
}

func comparator(dir runsort.Direction) string {
	if dir == runsort.DirectionDesc {
		return "<"
	}
	return ">"
}

func sqlDirection(dir runsort.Direction) string {
	if dir == runsort.DirectionDesc {
		return "DESC"
	}
	return "ASC"
}
