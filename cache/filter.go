package cache

import (
	"strconv"
	"strings"
)

type filterKind uint8

const (
	filterNone filterKind = iota
	filterID
	filterColumn
	filterValue
)

// Filter selects rows of a Table. It is immutable; build one with ByID,
// ByColumn or ByValue. The zero Filter matches nothing.
type Filter struct {
	kind   filterKind
	id     int
	column string
	value  Value
}

// ByID selects the row with the given row id.
func ByID(id int) Filter {
	return Filter{kind: filterID, id: id}
}

// ByColumn selects rows holding a non-null value in column.
func ByColumn(column string) Filter {
	return Filter{kind: filterColumn, column: column}
}

// ByValue selects rows where column equals v, compared with Value.Equal.
func ByValue(column string, v Value) Filter {
	return Filter{kind: filterValue, column: column, value: v}
}

// matches reports whether a single entry satisfies f.
func (f Filter) matches(e Entry) bool {
	switch f.kind {
	case filterID:
		return e.RowID == f.id
	case filterColumn:
		return strings.EqualFold(e.Column, f.column) && !e.Value.IsNull()
	case filterValue:
		return strings.EqualFold(e.Column, f.column) && e.Value.Equal(f.value)
	default:
		return false
	}
}

func (f Filter) String() string {
	switch f.kind {
	case filterID:
		return "id=" + strconv.Itoa(f.id)
	case filterColumn:
		return f.column + " IS NOT NULL"
	case filterValue:
		return f.column + "=" + f.value.String()
	default:
		return "none"
	}
}

// valueFilters turns every pair of v into a ByValue filter.
func valueFilters(v Values) []Filter {
	out := make([]Filter, 0, len(v))
	for _, c := range v.Columns() {
		out = append(out, ByValue(c, v[c]))
	}
	return out
}

// selectRows returns the ids of rows satisfying every filter.
//
// Phase one records, per row, which filters at least one of its entries
// satisfies. A row is eligible only once all its verdicts are true. Callers
// then collect every entry of the eligible rows, never only the matching
// cells.
func selectRows(entries []Entry, filters []Filter) map[int]bool {
	hits := make(map[int][]bool)
	for _, e := range entries {
		h, ok := hits[e.RowID]
		if !ok {
			h = make([]bool, len(filters))
			hits[e.RowID] = h
		}
		for i, f := range filters {
			if !h[i] && f.matches(e) {
				h[i] = true
			}
		}
	}
	eligible := make(map[int]bool, len(hits))
	for id, h := range hits {
		ok := true
		for _, b := range h {
			ok = ok && b
		}
		if ok {
			eligible[id] = true
		}
	}
	return eligible
}

// collect is the second phase of filtering: every entry whose row is
// eligible, in original order.
func collect(entries []Entry, eligible map[int]bool) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if eligible[e.RowID] {
			out = append(out, e)
		}
	}
	return out
}
