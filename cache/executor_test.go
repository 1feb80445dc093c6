package cache

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/maruel/rowcache/sqlexec"
)

// fakeExecutor serves one table from memory and records every statement.
type fakeExecutor struct {
	dialect sqlexec.Dialect
	table   string
	columns []string
	rows    [][]any

	mu       sync.Mutex
	stmts    []sqlexec.Statement
	queryFn  func(st sqlexec.Statement) (*sqlexec.ResultSet, error)
	execErr  error
	affected int64
	closed   bool
}

func (f *fakeExecutor) Dialect() sqlexec.Dialect { return f.dialect }

func (f *fakeExecutor) Columns(_ context.Context, table string) ([]string, error) {
	if table != f.table {
		return nil, nil
	}
	return f.columns, nil
}

func (f *fakeExecutor) Query(_ context.Context, st sqlexec.Statement) (*sqlexec.ResultSet, error) {
	f.mu.Lock()
	f.stmts = append(f.stmts, st)
	fn := f.queryFn
	f.mu.Unlock()
	if fn != nil && strings.Contains(st.Query, "WHERE") {
		return fn(st)
	}
	return &sqlexec.ResultSet{Columns: f.columns, Rows: f.rows}, nil
}

func (f *fakeExecutor) Exec(_ context.Context, st sqlexec.Statement) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stmts = append(f.stmts, st)
	if f.execErr != nil {
		return 0, f.execErr
	}
	return f.affected, nil
}

func (f *fakeExecutor) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeExecutor) last() sqlexec.Statement {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.stmts) == 0 {
		return sqlexec.Statement{}
	}
	return f.stmts[len(f.stmts)-1]
}

var errBoom = errors.New("boom")

// newUsers returns the users fixture: (0, alice, true), (1, bob, false).
func newUsers() *fakeExecutor {
	return &fakeExecutor{
		dialect:  sqlexec.MySQL,
		table:    "users",
		columns:  []string{"id", "name", "active"},
		rows:     [][]any{{int64(0), []byte("alice"), true}, {int64(1), []byte("bob"), false}},
		affected: 1,
	}
}

// discard is a logger that drops every record.
var discard = slog.New(slog.DiscardHandler)

func loadUsers(t *testing.T, f *fakeExecutor, opts Options) *Table {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = discard
	}
	tbl, err := loadTable(t.Context(), f, "users", &opts)
	if err != nil {
		t.Fatal(err)
	}
	return tbl
}
