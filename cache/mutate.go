package cache

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/maruel/rowcache/sqlexec"
)

// pairs resolves the columns of v against the table and returns them sorted
// by canonical column name, with v re-keyed by canonical name.
func (t *Table) pairs(v Values) ([]sqlexec.Pair, Values, error) {
	out := make([]sqlexec.Pair, 0, len(v))
	norm := make(Values, len(v))
	for name, x := range v {
		c, ok := t.column(name)
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s.%s", ErrUnknownColumn, t.name, name)
		}
		if _, dup := norm[c]; dup {
			return nil, nil, fmt.Errorf("%w: %s.%s", ErrDuplicateColumn, t.name, c)
		}
		out = append(out, sqlexec.Pair{Column: c, Value: x.Arg()})
		norm[c] = x
	}
	slices.SortFunc(out, func(a, b sqlexec.Pair) int { return strings.Compare(a.Column, b.Column) })
	return out, norm, nil
}

// Create inserts a row and caches it under a new row id.
//
// Columns omitted from values are cached as Null unless reconciliation is
// enabled, in which case the inserted row is read back so that defaults
// assigned by the database (auto increment, timestamps) are cached too.
func (t *Table) Create(ctx context.Context, values Values) (int, error) {
	if len(values) == 0 {
		return -1, ErrNoValues
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.exec == nil {
		return -1, ErrReadOnly
	}
	set, norm, err := t.pairs(values)
	if err != nil {
		return -1, err
	}
	st, err := t.exec.Dialect().Insert(t.name, set)
	if err != nil {
		return -1, err
	}
	if _, err := t.exec.Exec(ctx, st); err != nil {
		return -1, fmt.Errorf("failed to insert into %s: %w", t.name, err)
	}
	row := norm
	if t.reconcile {
		got, err := t.readBack(ctx, set)
		if err != nil {
			t.logger.Warn("failed to read back inserted row", "table", t.name, "err", err)
		} else if got != nil {
			row = got
		}
	}
	id := t.nextID
	t.nextID++
	t.entries = appendRow(t.entries, id, t.columns, row)
	t.logger.Debug("created row", "table", t.name, "row", id)
	return id, nil
}

// readBack selects the rows equal to the non-null pairs of an insert and
// returns the last one that is not already cached, or nil if there is none.
func (t *Table) readBack(ctx context.Context, set []sqlexec.Pair) (Values, error) {
	where := make([]sqlexec.Pair, 0, len(set))
	for _, p := range set {
		if p.Value != nil {
			where = append(where, p)
		}
	}
	if len(where) == 0 {
		return nil, nil
	}
	st, err := t.exec.Dialect().Select(t.name, where)
	if err != nil {
		return nil, err
	}
	rs, err := t.exec.Query(ctx, st)
	if err != nil {
		return nil, err
	}
	_, cached := groupRows(t.entries)
	for i := len(rs.Rows) - 1; i >= 0; i-- {
		if v := rowValues(rs.Columns, rs.Rows[i]); !containsRow(cached, v) {
			return v, nil
		}
	}
	return nil, nil
}

// containsRow reports whether one of rows holds exactly the values of v for
// every column it has.
func containsRow(rows map[int][]Entry, v Values) bool {
	for _, row := range rows {
		same := true
		for _, e := range row {
			x, ok := v.lookup(e.Column)
			if !ok || !x.Equal(e.Value) {
				same = false
				break
			}
		}
		if same {
			return true
		}
	}
	return false
}

// Update sets values on every row matching all conditions and returns the
// number of rows the database reports as affected.
func (t *Table) Update(ctx context.Context, conditions, values Values) (int64, error) {
	if len(conditions) == 0 {
		return 0, ErrNoConditions
	}
	if len(values) == 0 {
		return 0, ErrNoValues
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.exec == nil {
		return 0, ErrReadOnly
	}
	where, cond, err := t.pairs(conditions)
	if err != nil {
		return 0, err
	}
	set, assign, err := t.pairs(values)
	if err != nil {
		return 0, err
	}
	st, err := t.exec.Dialect().Update(t.name, set, where)
	if err != nil {
		return 0, err
	}
	n, err := t.exec.Exec(ctx, st)
	if err != nil {
		return 0, fmt.Errorf("failed to update %s: %w", t.name, err)
	}
	matched := selectRows(t.entries, valueFilters(cond))
	for i, e := range t.entries {
		if !matched[e.RowID] {
			continue
		}
		if v, ok := assign[e.Column]; ok {
			t.entries[i].Value = v
		}
	}
	t.logger.Debug("updated rows", "table", t.name, "cached", len(matched), "affected", n)
	return n, nil
}

// Delete removes every row matching all conditions and returns the number of
// rows the database reports as affected.
func (t *Table) Delete(ctx context.Context, conditions Values) (int64, error) {
	if len(conditions) == 0 {
		return 0, ErrNoConditions
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.exec == nil {
		return 0, ErrReadOnly
	}
	where, cond, err := t.pairs(conditions)
	if err != nil {
		return 0, err
	}
	st, err := t.exec.Dialect().Delete(t.name, where)
	if err != nil {
		return 0, err
	}
	n, err := t.exec.Exec(ctx, st)
	if err != nil {
		return 0, fmt.Errorf("failed to delete from %s: %w", t.name, err)
	}
	matched := selectRows(t.entries, valueFilters(cond))
	t.entries = slices.DeleteFunc(t.entries, func(e Entry) bool { return matched[e.RowID] })
	t.logger.Debug("deleted rows", "table", t.name, "cached", len(matched), "affected", n)
	return n, nil
}

// Refresh reloads the table from the database. On error the cached content
// is kept.
func (t *Table) Refresh(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.exec == nil {
		return ErrReadOnly
	}
	return t.load(ctx)
}
