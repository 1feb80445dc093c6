package sqlexec

import (
	"errors"
	"strings"
)

var errEmptyPairs = errors.New("statement needs at least one column")

// Pair binds a column to a value. Value must be a type database/sql accepts
// as an argument.
type Pair struct {
	Column string
	Value  any
}

// Statement is a query with its bound arguments.
type Statement struct {
	Query string
	Args  []any
}

// Select returns "SELECT * FROM <table>" restricted by where, whose pairs are
// ANDed by equality. A nil where selects every row.
func (d Dialect) Select(table string, where []Pair) (Statement, error) {
	qt, err := d.Quote(table)
	if err != nil {
		return Statement{}, err
	}
	var b strings.Builder
	b.WriteString("SELECT * FROM ")
	b.WriteString(qt)
	var args []any
	if len(where) > 0 {
		if args, err = d.writeWhere(&b, where); err != nil {
			return Statement{}, err
		}
	}
	return Statement{Query: d.Rebind(b.String()), Args: args}, nil
}

// Insert returns "INSERT INTO <table> (<cols>) VALUES (?, ...)".
func (d Dialect) Insert(table string, values []Pair) (Statement, error) {
	if len(values) == 0 {
		return Statement{}, errEmptyPairs
	}
	qt, err := d.Quote(table)
	if err != nil {
		return Statement{}, err
	}
	cols := make([]string, len(values))
	marks := make([]string, len(values))
	args := make([]any, len(values))
	for i, p := range values {
		if cols[i], err = d.Quote(p.Column); err != nil {
			return Statement{}, err
		}
		marks[i] = "?"
		args[i] = p.Value
	}
	q := "INSERT INTO " + qt + " (" + strings.Join(cols, ", ") + ") VALUES (" + strings.Join(marks, ", ") + ")"
	return Statement{Query: d.Rebind(q), Args: args}, nil
}

// Update returns "UPDATE <table> SET c = ?, ... WHERE k = ? AND ...".
func (d Dialect) Update(table string, set, where []Pair) (Statement, error) {
	if len(set) == 0 || len(where) == 0 {
		return Statement{}, errEmptyPairs
	}
	qt, err := d.Quote(table)
	if err != nil {
		return Statement{}, err
	}
	var b strings.Builder
	b.WriteString("UPDATE ")
	b.WriteString(qt)
	b.WriteString(" SET ")
	args := make([]any, 0, len(set)+len(where))
	for i, p := range set {
		qc, err := d.Quote(p.Column)
		if err != nil {
			return Statement{}, err
		}
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(qc)
		b.WriteString(" = ?")
		args = append(args, p.Value)
	}
	wargs, err := d.writeWhere(&b, where)
	if err != nil {
		return Statement{}, err
	}
	return Statement{Query: d.Rebind(b.String()), Args: append(args, wargs...)}, nil
}

// Delete returns "DELETE FROM <table> WHERE k = ? AND ...".
func (d Dialect) Delete(table string, where []Pair) (Statement, error) {
	if len(where) == 0 {
		return Statement{}, errEmptyPairs
	}
	qt, err := d.Quote(table)
	if err != nil {
		return Statement{}, err
	}
	var b strings.Builder
	b.WriteString("DELETE FROM ")
	b.WriteString(qt)
	args, err := d.writeWhere(&b, where)
	if err != nil {
		return Statement{}, err
	}
	return Statement{Query: d.Rebind(b.String()), Args: args}, nil
}

// Columns returns the catalog query for table.
func (d Dialect) Columns(table string) Statement {
	return Statement{Query: d.columnsQuery(), Args: []any{table}}
}

// writeWhere appends the conditions joined by AND. A nil value is written as
// "k IS NULL" and takes no argument.
func (d Dialect) writeWhere(b *strings.Builder, where []Pair) ([]any, error) {
	args := make([]any, 0, len(where))
	b.WriteString(" WHERE ")
	for i, p := range where {
		qc, err := d.Quote(p.Column)
		if err != nil {
			return nil, err
		}
		if i > 0 {
			b.WriteString(" AND ")
		}
		b.WriteString(qc)
		if p.Value == nil {
			b.WriteString(" IS NULL")
			continue
		}
		b.WriteString(" = ?")
		args = append(args, p.Value)
	}
	return args, nil
}
