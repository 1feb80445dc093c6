package cache

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/maruel/rowcache/sqlexec"
)

// Executor runs statements against the backing database. *sqlexec.Executor
// implements it.
type Executor interface {
	Dialect() sqlexec.Dialect
	Columns(ctx context.Context, table string) ([]string, error)
	Query(ctx context.Context, st sqlexec.Statement) (*sqlexec.ResultSet, error)
	Exec(ctx context.Context, st sqlexec.Statement) (int64, error)
	Close() error
}

// Table is the cached content of one database table.
//
// All methods are safe for concurrent use. Reads share a lock; mutations hold
// it exclusively across the database round trip.
type Table struct {
	name      string
	exec      Executor // nil for filtered tables.
	logger    *slog.Logger
	reconcile bool

	mu      sync.RWMutex
	columns []string
	entries []Entry
	nextID  int
}

// loadTable reads name from the database.
func loadTable(ctx context.Context, exec Executor, name string, opts *Options) (*Table, error) {
	t := &Table{
		name:      name,
		exec:      exec,
		logger:    opts.logger(),
		reconcile: !opts.DisableReconcile,
	}
	if err := t.load(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

// load replaces the cached content. The caller must hold the write lock or
// own t exclusively. On error t is unchanged.
func (t *Table) load(ctx context.Context) error {
	cols, err := t.exec.Columns(ctx, t.name)
	if err != nil {
		return fmt.Errorf("failed to read columns of %s: %w", t.name, err)
	}
	if len(cols) == 0 {
		return fmt.Errorf("%w: %s", ErrTableNotFound, t.name)
	}
	st, err := t.exec.Dialect().Select(t.name, nil)
	if err != nil {
		return err
	}
	rs, err := t.exec.Query(ctx, st)
	if err != nil {
		return fmt.Errorf("failed to read rows of %s: %w", t.name, err)
	}
	entries := make([]Entry, 0, len(cols)*len(rs.Rows))
	for id, row := range rs.Rows {
		entries = appendRow(entries, id, cols, rowValues(rs.Columns, row))
	}
	t.columns = cols
	t.entries = entries
	t.nextID = len(rs.Rows)
	t.logger.Debug("loaded table", "table", t.name, "columns", len(cols), "rows", len(rs.Rows))
	return nil
}

// rowValues pairs cursor columns with one physical row.
func rowValues(cursor []string, row []any) Values {
	out := make(Values, len(cursor))
	for i, c := range cursor {
		if i < len(row) {
			out[c] = FromDriver(row[i])
		}
	}
	return out
}

// appendRow adds one entry per column, in column order. Columns missing from
// v are Null.
func appendRow(entries []Entry, id int, columns []string, v Values) []Entry {
	for _, c := range columns {
		x, _ := v.lookup(c)
		entries = append(entries, Entry{RowID: id, Column: c, Value: x})
	}
	return entries
}

// derive returns a detached table holding entries.
func (t *Table) derive(entries []Entry) *Table {
	return &Table{
		name:    t.name,
		logger:  t.logger,
		columns: t.columns,
		entries: entries,
		nextID:  t.nextID,
	}
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Columns returns the column names in ordinal order.
func (t *Table) Columns() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.columns)
}

// column returns the canonical spelling of name.
func (t *Table) column(name string) (string, bool) {
	for _, c := range t.columns {
		if strings.EqualFold(c, name) {
			return c, true
		}
	}
	return "", false
}

// Entries returns a copy of all entries, grouped by row.
func (t *Table) Entries() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.entries)
}

// EntriesByID returns the entries of one row in column order, or nil.
func (t *Table) EntriesByID(id int) []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []Entry
	for _, e := range t.entries {
		if e.RowID == id {
			out = append(out, e)
		}
	}
	return out
}

// RowIDs returns the row ids, ascending.
func (t *Table) RowIDs() []int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids, _ := groupRows(t.entries)
	return ids
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.RowIDs())
}

// IsEmpty reports whether the table has no rows.
func (t *Table) IsEmpty() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries) == 0
}

// First returns the row with the lowest id.
func (t *Table) First() (*Result, bool) {
	for r := range t.Rows() {
		return r, true
	}
	return nil, false
}

// All returns every row ordered by row id.
func (t *Table) All() []*Result {
	return slices.Collect(t.Rows())
}

// Rows iterates over a snapshot of the rows ordered by row id.
func (t *Table) Rows() iter.Seq[*Result] {
	t.mu.RLock()
	ids, rows := groupRows(t.entries)
	t.mu.RUnlock()
	return func(yield func(*Result) bool) {
		for _, id := range ids {
			if !yield(newResult(t.name, id, rows[id], t.logger)) {
				return
			}
		}
	}
}

// Filter returns a new read-only table holding every row that satisfies all
// filters. Rows are always complete. Without filters all rows are kept.
func (t *Table) Filter(filters ...Filter) *Table {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.derive(collect(t.entries, selectRows(t.entries, filters)))
}

// FilterValues is Filter with one ByValue filter per pair of v.
func (t *Table) FilterValues(v Values) *Table {
	return t.Filter(valueFilters(v)...)
}

// HasMatch reports whether any cached cell matches any criterion.
//
// This is an existence probe, not a row match: with criteria {a: 1, b: 2} it
// is true when some row has a = 1 even if no row has both. Use FilterValues
// to match whole rows.
func (t *Table) HasMatch(criteria Values) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, e := range t.entries {
		for c, v := range criteria {
			if strings.EqualFold(e.Column, c) && e.Value.Equal(v) {
				return true
			}
		}
	}
	return false
}

// IfMatch runs fn when HasMatch(criteria) is true and reports whether it ran.
func (t *Table) IfMatch(criteria Values, fn func()) bool {
	if !t.HasMatch(criteria) {
		return false
	}
	fn()
	return true
}

// IfMatchElse runs present when HasMatch(criteria) is true and absent
// otherwise.
func (t *Table) IfMatchElse(criteria Values, present, absent func()) {
	if t.HasMatch(criteria) {
		present()
	} else {
		absent()
	}
}
