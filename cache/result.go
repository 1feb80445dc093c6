package cache

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Result is a read-only view over one cached row.
//
// Getters look columns up case-insensitively. A missing column or a value
// that cannot be converted yields the zero value and a warning on the logger;
// a Null value yields the zero value silently.
type Result struct {
	table   string
	id      int
	entries []Entry
	logger  *slog.Logger
}

func newResult(table string, id int, entries []Entry, logger *slog.Logger) *Result {
	return &Result{table: table, id: id, entries: entries, logger: logger}
}

// RowID returns the cache row id.
func (r *Result) RowID() int { return r.id }

// Columns returns the column names in table order.
func (r *Result) Columns() []string {
	out := make([]string, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Column
	}
	return out
}

// Entries returns a copy of the row's entries.
func (r *Result) Entries() []Entry {
	return slices.Clone(r.entries)
}

// Map returns the row as a column to value map.
func (r *Result) Map() Values {
	out := make(Values, len(r.entries))
	for _, e := range r.entries {
		out[e.Column] = e.Value
	}
	return out
}

// Has reports whether the row has column.
func (r *Result) Has(column string) bool {
	_, ok := r.find(column)
	return ok
}

// Value returns the raw value of column, or Null if the row has no such
// column.
func (r *Result) Value(column string) Value {
	v, _ := r.lookup(column, "value")
	return v
}

// String returns column as text.
func (r *Result) String(column string) string {
	v, ok := r.lookup(column, "string")
	if !ok {
		return ""
	}
	s, err := v.AsString()
	r.check(column, "string", err)
	return s
}

// Bool returns column as a boolean.
func (r *Result) Bool(column string) bool {
	v, ok := r.lookup(column, "bool")
	if !ok {
		return false
	}
	b, err := v.AsBool()
	r.check(column, "bool", err)
	return b
}

// Int64 returns column as an int64.
func (r *Result) Int64(column string) int64 {
	n, _ := r.readInt(column, "int64")
	return n
}

// readInt reads column for a getter of type want and reports whether it
// succeeded.
func (r *Result) readInt(column, want string) (int64, bool) {
	v, ok := r.lookup(column, want)
	if !ok {
		return 0, false
	}
	n, err := v.AsInt()
	if r.check(column, want, err) {
		return 0, false
	}
	return n, true
}

// Int returns column as an int.
func (r *Result) Int(column string) int { return narrow[int](r, column, "int") }

// Int32 returns column as an int32.
func (r *Result) Int32(column string) int32 { return narrow[int32](r, column, "int32") }

// Int16 returns column as an int16.
func (r *Result) Int16(column string) int16 { return narrow[int16](r, column, "int16") }

// Int8 returns column as an int8.
func (r *Result) Int8(column string) int8 { return narrow[int8](r, column, "int8") }

// Float64 returns column as a float64.
func (r *Result) Float64(column string) float64 {
	f, _ := r.readFloat(column, "float64")
	return f
}

// Float32 returns column as a float32.
func (r *Result) Float32(column string) float32 {
	f, ok := r.readFloat(column, "float32")
	if !ok {
		return 0
	}
	if math.Abs(f) > math.MaxFloat32 && !math.IsInf(f, 0) {
		r.check(column, "float32", fmt.Errorf("%w: %g overflows float32", ErrCoerce, f))
		return 0
	}
	return float32(f)
}

func (r *Result) readFloat(column, want string) (float64, bool) {
	v, ok := r.lookup(column, want)
	if !ok {
		return 0, false
	}
	f, err := v.AsFloat()
	if r.check(column, want, err) {
		return 0, false
	}
	return f, true
}

// Time returns column as a point in time.
func (r *Result) Time(column string) time.Time {
	v, ok := r.lookup(column, "time")
	if !ok {
		return time.Time{}
	}
	t, err := v.AsTime()
	if r.check(column, "time", err) {
		return time.Time{}
	}
	return t
}

// Date returns column truncated to its calendar day in UTC.
func (r *Result) Date(column string) time.Time {
	t := r.Time(column)
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// UUID returns column as a UUID.
func (r *Result) UUID(column string) uuid.UUID {
	v, ok := r.lookup(column, "uuid")
	if !ok {
		return uuid.Nil
	}
	u, err := v.AsUUID()
	if r.check(column, "uuid", err) {
		return uuid.Nil
	}
	return u
}

func narrow[T int | int32 | int16 | int8](r *Result, column, want string) T {
	n, ok := r.readInt(column, want)
	if !ok {
		return 0
	}
	if int64(T(n)) != n {
		r.check(column, want, fmt.Errorf("%w: %d overflows %s", ErrCoerce, n, want))
		return 0
	}
	return T(n)
}

func (r *Result) find(column string) (Value, bool) {
	for _, e := range r.entries {
		if strings.EqualFold(e.Column, column) {
			return e.Value, true
		}
	}
	return Value{}, false
}

func (r *Result) lookup(column, want string) (Value, bool) {
	v, ok := r.find(column)
	if !ok {
		r.logger.Warn("missing column", "table", r.table, "row", r.id, "column", column, "type", want)
	}
	return v, ok
}

// check logs err, if any, and reports whether the caller must fall back to
// the zero value.
func (r *Result) check(column, want string, err error) bool {
	if err == nil {
		return false
	}
	if !errors.Is(err, ErrNull) {
		r.logger.Warn("cannot read column", "table", r.table, "row", r.id, "column", column, "type", want, "err", err)
	}
	return true
}
