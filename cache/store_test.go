package cache

import (
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/maruel/rowcache/sqlexec"
)

// openSQLite returns a Store over a fresh in-memory database holding the
// users fixture.
func openSQLite(t *testing.T, opts Options) *Store {
	t.Helper()
	ctx := t.Context()
	exec, err := sqlexec.Open(ctx, sqlexec.Config{Driver: sqlexec.SQLite, Database: ":memory:"})
	if err != nil {
		t.Fatal(err)
	}
	for _, q := range []string{
		"CREATE TABLE users (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL, active INTEGER NOT NULL DEFAULT 1)",
		"INSERT INTO users (name, active) VALUES ('alice', 1), ('bob', 0)",
		"CREATE TABLE teams (name TEXT)",
		"CREATE TABLE people (name TEXT, email TEXT)",
		"INSERT INTO people (name, email) VALUES ('alice', NULL), ('bob', 'bob@example.com')",
	} {
		if _, err := exec.Exec(ctx, sqlexec.Statement{Query: q}); err != nil {
			t.Fatalf("%s: %v", q, err)
		}
	}
	if opts.Logger == nil {
		opts.Logger = discard
	}
	s := New(exec, opts)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore(t *testing.T) {
	t.Run("load once", func(t *testing.T) {
		s := openSQLite(t, Options{})
		a, err := s.Table(t.Context(), "users")
		if err != nil {
			t.Fatal(err)
		}
		b, err := s.Table(t.Context(), "users")
		if err != nil {
			t.Fatal(err)
		}
		if a != b {
			t.Error("table loaded twice")
		}
		if got := s.Loaded(); !reflect.DeepEqual(got, []string{"users"}) {
			t.Errorf("loaded %v", got)
		}
	})
	t.Run("concurrent load", func(t *testing.T) {
		s := openSQLite(t, Options{})
		var wg sync.WaitGroup
		tables := make([]*Table, 8)
		for i := range tables {
			wg.Go(func() {
				tbl, err := s.Table(t.Context(), "users")
				if err != nil {
					t.Error(err)
				}
				tables[i] = tbl
			})
		}
		wg.Wait()
		for _, tbl := range tables[1:] {
			if tbl != tables[0] {
				t.Fatal("concurrent loads returned different tables")
			}
		}
	})
	t.Run("not found", func(t *testing.T) {
		s := openSQLite(t, Options{})
		if _, err := s.Table(t.Context(), "nope"); !errors.Is(err, ErrTableNotFound) {
			t.Errorf("got %v", err)
		}
		if len(s.Loaded()) != 0 {
			t.Errorf("missing table cached: %v", s.Loaded())
		}
		if _, err := s.Table(t.Context(), "users; --"); !errors.Is(err, sqlexec.ErrInvalidIdentifier) {
			t.Errorf("got %v", err)
		}
	})
	t.Run("drop", func(t *testing.T) {
		s := openSQLite(t, Options{})
		a, err := s.Table(t.Context(), "users")
		if err != nil {
			t.Fatal(err)
		}
		if !s.Drop("users") {
			t.Error("Drop returned false")
		}
		if s.Drop("users") {
			t.Error("second Drop returned true")
		}
		b, err := s.Table(t.Context(), "users")
		if err != nil {
			t.Fatal(err)
		}
		if a == b {
			t.Error("table not reloaded after Drop")
		}
	})
	t.Run("max tables", func(t *testing.T) {
		s := openSQLite(t, Options{MaxTables: 1})
		if _, err := s.Table(t.Context(), "users"); err != nil {
			t.Fatal(err)
		}
		if _, err := s.Table(t.Context(), "teams"); err != nil {
			t.Fatal(err)
		}
		if got := s.Loaded(); !reflect.DeepEqual(got, []string{"teams"}) {
			t.Errorf("loaded %v", got)
		}
	})
	t.Run("closed", func(t *testing.T) {
		s := openSQLite(t, Options{})
		if err := s.Close(); err != nil {
			t.Fatal(err)
		}
		if _, err := s.Table(t.Context(), "users"); !errors.Is(err, ErrClosed) {
			t.Errorf("got %v", err)
		}
	})
}

func TestStoreSQLite(t *testing.T) {
	s := openSQLite(t, Options{})
	ctx := t.Context()
	tbl, err := s.Table(ctx, "users")
	if err != nil {
		t.Fatal(err)
	}
	if got := tbl.Columns(); !reflect.DeepEqual(got, []string{"id", "name", "active"}) {
		t.Errorf("columns %v", got)
	}
	if n := len(tbl.Entries()); n != tbl.Len()*3 || tbl.Len() != 2 {
		t.Fatalf("%d entries for %d rows", n, tbl.Len())
	}

	active := tbl.FilterValues(Values{"active": Bool(true)})
	if got := active.RowIDs(); !reflect.DeepEqual(got, []int{0}) {
		t.Errorf("active rows %v", got)
	}

	// Server assigned id and default are read back.
	id, err := tbl.Create(ctx, Values{"name": String("carol")})
	if err != nil {
		t.Fatal(err)
	}
	r := tbl.Filter(ByID(id)).All()[0]
	if r.Int("id") != 3 || !r.Bool("active") || r.String("name") != "carol" {
		t.Errorf("created row %v", r.Map())
	}

	n, err := tbl.Update(ctx, Values{"name": String("alice")}, Values{"active": Bool(false)})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("updated %d rows", n)
	}
	if first, _ := tbl.First(); first.Bool("active") {
		t.Error("alice still active")
	}

	if _, err := tbl.Delete(ctx, Values{"name": String("bob")}); err != nil {
		t.Fatal(err)
	}
	if tbl.HasMatch(Values{"name": String("bob")}) {
		t.Error("bob still cached")
	}

	// The cache agrees with the database.
	if err := tbl.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	names := map[string]bool{}
	for r := range tbl.Rows() {
		names[r.String("name")] = r.Bool("active")
	}
	if want := map[string]bool{"alice": false, "carol": true}; !reflect.DeepEqual(names, want) {
		t.Errorf("after refresh %v, want %v", names, want)
	}

	if _, err := tbl.Create(ctx, Values{"id": Int(3), "name": String("dup")}); err == nil {
		t.Error("expected constraint violation")
	}
	if tbl.HasMatch(Values{"name": String("dup")}) {
		t.Error("failed insert cached")
	}
}

func TestStoreSQLiteNullConditions(t *testing.T) {
	people := func(t *testing.T, tbl *Table) map[string]string {
		t.Helper()
		out := map[string]string{}
		for r := range tbl.Rows() {
			out[r.String("name")] = r.Value("email").String()
		}
		return out
	}
	t.Run("update", func(t *testing.T) {
		s := openSQLite(t, Options{})
		ctx := t.Context()
		tbl, err := s.Table(ctx, "people")
		if err != nil {
			t.Fatal(err)
		}
		n, err := tbl.Update(ctx, Values{"email": Null()}, Values{"name": String("zed")})
		if err != nil {
			t.Fatal(err)
		}
		if n != 1 {
			t.Errorf("updated %d rows", n)
		}
		want := map[string]string{"zed": "NULL", "bob": "bob@example.com"}
		if got := people(t, tbl); !reflect.DeepEqual(got, want) {
			t.Errorf("cached %v, want %v", got, want)
		}
		if err := tbl.Refresh(ctx); err != nil {
			t.Fatal(err)
		}
		if got := people(t, tbl); !reflect.DeepEqual(got, want) {
			t.Errorf("after refresh %v, want %v", got, want)
		}
	})
	t.Run("delete", func(t *testing.T) {
		s := openSQLite(t, Options{})
		ctx := t.Context()
		tbl, err := s.Table(ctx, "people")
		if err != nil {
			t.Fatal(err)
		}
		n, err := tbl.Delete(ctx, Values{"email": Null()})
		if err != nil {
			t.Fatal(err)
		}
		if n != 1 {
			t.Errorf("deleted %d rows", n)
		}
		want := map[string]string{"bob": "bob@example.com"}
		if got := people(t, tbl); !reflect.DeepEqual(got, want) {
			t.Errorf("cached %v, want %v", got, want)
		}
		if err := tbl.Refresh(ctx); err != nil {
			t.Fatal(err)
		}
		if got := people(t, tbl); !reflect.DeepEqual(got, want) {
			t.Errorf("after refresh %v, want %v", got, want)
		}
	})
}
