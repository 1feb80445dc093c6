package cache

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Entry is one cell of a cached table.
type Entry struct {
	RowID  int    `json:"row_id"`
	Column string `json:"column"`
	Value  Value  `json:"value"`
}

func (e Entry) String() string {
	return fmt.Sprintf("%d.%s=%s", e.RowID, e.Column, e.Value)
}

// Values maps column names to values. It is used for new rows, update
// assignments, conditions and match criteria.
type Values map[string]Value

// Columns returns the keys of v sorted.
func (v Values) Columns() []string {
	return slices.Sorted(maps.Keys(v))
}

// lookup finds column case-insensitively.
func (v Values) lookup(column string) (Value, bool) {
	if x, ok := v[column]; ok {
		return x, true
	}
	for k, x := range v {
		if strings.EqualFold(k, column) {
			return x, true
		}
	}
	return Value{}, false
}

// groupRows groups entries by row id. ids is sorted ascending and each group
// keeps the entries' relative order.
func groupRows(entries []Entry) (ids []int, rows map[int][]Entry) {
	rows = make(map[int][]Entry)
	for _, e := range entries {
		if _, ok := rows[e.RowID]; !ok {
			ids = append(ids, e.RowID)
		}
		rows[e.RowID] = append(rows[e.RowID], e)
	}
	slices.Sort(ids)
	return ids, rows
}
