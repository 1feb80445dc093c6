package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"

	"github.com/maruel/rowcache/cache"
)

// run executes a one-shot command and writes its result to w as JSON lines.
func run(ctx context.Context, w io.Writer, store *cache.Store, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%s: missing table name", args[0])
	}
	cmd, name, rest := args[0], args[1], args[2:]
	t, err := store.Table(ctx, name)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	switch cmd {
	case "columns":
		if len(rest) != 0 {
			return fmt.Errorf("columns: unexpected arguments %v", rest)
		}
		return enc.Encode(t.Columns())
	case "dump":
		where, err := parseAssignments(rest)
		if err != nil {
			return err
		}
		if len(where) != 0 {
			t = t.FilterValues(where)
		}
		for r := range t.Rows() {
			if err := enc.Encode(row{ID: r.RowID(), Values: r.Map()}); err != nil {
				return err
			}
		}
		return nil
	case "insert":
		values, err := parseAssignments(rest)
		if err != nil {
			return err
		}
		id, err := t.Create(ctx, values)
		if err != nil {
			return err
		}
		out := row{ID: id}
		if r, ok := t.Filter(cache.ByID(id)).First(); ok {
			out.Values = r.Map()
		}
		return enc.Encode(out)
	case "update":
		cond, set, ok := cutWord(rest, "set")
		if !ok {
			return errors.New("update: expected k=v ... set c=v ...")
		}
		where, err := parseAssignments(cond)
		if err != nil {
			return err
		}
		values, err := parseAssignments(set)
		if err != nil {
			return err
		}
		n, err := t.Update(ctx, where, values)
		if err != nil {
			return err
		}
		return enc.Encode(affected{Affected: n})
	case "delete":
		where, err := parseAssignments(rest)
		if err != nil {
			return err
		}
		n, err := t.Delete(ctx, where)
		if err != nil {
			return err
		}
		return enc.Encode(affected{Affected: n})
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

type row struct {
	ID     int          `json:"id"`
	Values cache.Values `json:"values"`
}

type affected struct {
	Affected int64 `json:"affected"`
}

// parseAssignments parses col=value arguments. A value is decoded as a JSON
// scalar when it is one, so 1 is an integer, null is Null and "1" is a
// string; anything else is taken verbatim as a string.
func parseAssignments(args []string) (cache.Values, error) {
	out := make(cache.Values, len(args))
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("expected col=value, got %q", a)
		}
		if _, dup := out[k]; dup {
			return nil, fmt.Errorf("column %q given twice", k)
		}
		out[k] = parseValue(v)
	}
	return out, nil
}

func parseValue(s string) cache.Value {
	var v cache.Value
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return cache.String(s)
	}
	return v
}

// cutWord splits args around the first occurrence of word.
func cutWord(args []string, word string) (before, after []string, found bool) {
	for i, a := range args {
		if a == word {
			return args[:i], args[i+1:], true
		}
	}
	return args, nil, false
}
