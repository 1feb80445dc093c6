package server

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/maruel/rowcache/cache"
	apierrors "github.com/maruel/rowcache/internal/errors"
	"github.com/maruel/rowcache/internal/server/handlers"
	"github.com/maruel/rowcache/internal/server/ratelimit"
	"github.com/maruel/rowcache/sqlexec"
)

var discard = slog.New(slog.DiscardHandler)

func newTestStore(t *testing.T) *cache.Store {
	t.Helper()
	ctx := t.Context()
	exec, err := sqlexec.Open(ctx, sqlexec.Config{Driver: sqlexec.SQLite, Database: ":memory:"})
	if err != nil {
		t.Fatal(err)
	}
	for _, q := range []string{
		"CREATE TABLE users (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL, active INTEGER NOT NULL DEFAULT 1)",
		"INSERT INTO users (name, active) VALUES ('alice', 1), ('bob', 0)",
	} {
		if _, err := exec.Exec(ctx, sqlexec.Statement{Query: q}); err != nil {
			t.Fatalf("%s: %v", q, err)
		}
	}
	s := cache.New(exec, cache.Options{Logger: discard})
	t.Cleanup(func() { _ = s.Close() })
	return s
}

type errorResponse struct {
	Error struct {
		Code    apierrors.ErrorCode `json:"code"`
		Message string              `json:"message"`
	} `json:"error"`
	Details map[string]any `json:"details"`
}

// do sends a request and decodes the JSON response into out when the status
// is 200, or checks the error code otherwise.
func do(t *testing.T, h http.Handler, method, path, body string, wantStatus int, out any) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, http.NoBody)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Code != wantStatus {
		t.Fatalf("%s %s: status %d, want %d; body %s", method, path, w.Code, wantStatus, w.Body)
	}
	if out != nil {
		if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
			t.Fatalf("%s %s: %v; body %s", method, path, err, w.Body)
		}
	}
	return w
}

func wantCode(t *testing.T, h http.Handler, method, path, body string, status int, code apierrors.ErrorCode) {
	t.Helper()
	var e errorResponse
	do(t, h, method, path, body, status, &e)
	if e.Error.Code != code {
		t.Errorf("%s %s: code %q, want %q (%s)", method, path, e.Error.Code, code, e.Error.Message)
	}
}

func names(rows []handlers.Row) []string {
	var out []string
	for _, r := range rows {
		out = append(out, r.Values["name"].String())
	}
	return out
}

func TestRouter(t *testing.T) {
	h := NewRouter(newTestStore(t), Options{Logger: discard})

	var health handlers.HealthResponse
	w := do(t, h, "GET", "/api/health", "", http.StatusOK, &health)
	if health.Status != "ok" {
		t.Errorf("health %+v", health)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}

	var list handlers.ListTablesResponse
	do(t, h, "GET", "/api/tables", "", http.StatusOK, &list)
	if len(list.Tables) != 0 {
		t.Errorf("tables %v", list.Tables)
	}

	t.Run("read", func(t *testing.T) {
		var tbl handlers.TableResponse
		do(t, h, "GET", "/api/tables/users", "", http.StatusOK, &tbl)
		if !reflect.DeepEqual(tbl.Columns, []string{"id", "name", "active"}) {
			t.Errorf("columns %v", tbl.Columns)
		}
		if got := names(tbl.Rows); !reflect.DeepEqual(got, []string{"alice", "bob"}) {
			t.Errorf("rows %v", got)
		}
		if tbl.Rows[1].ID != 1 || tbl.Rows[1].Values["id"] != cache.Int(2) {
			t.Errorf("row 1 %+v", tbl.Rows[1])
		}

		do(t, h, "GET", "/api/tables/users?active=1", "", http.StatusOK, &tbl)
		if got := names(tbl.Rows); !reflect.DeepEqual(got, []string{"alice"}) {
			t.Errorf("active=1: %v", got)
		}
		do(t, h, "GET", "/api/tables/users?id=1", "", http.StatusOK, &tbl)
		if got := names(tbl.Rows); !reflect.DeepEqual(got, []string{"bob"}) {
			t.Errorf("id=1: %v", got)
		}
		do(t, h, "GET", "/api/tables/users?id=1&active=1", "", http.StatusOK, &tbl)
		if len(tbl.Rows) != 0 {
			t.Errorf("id=1&active=1: %v", names(tbl.Rows))
		}

		do(t, h, "GET", "/api/tables", "", http.StatusOK, &list)
		if !reflect.DeepEqual(list.Tables, []string{"users"}) {
			t.Errorf("tables %v", list.Tables)
		}
	})

	t.Run("read errors", func(t *testing.T) {
		wantCode(t, h, "GET", "/api/tables/nope", "", http.StatusNotFound, apierrors.ErrTableNotFound)
		wantCode(t, h, "GET", "/api/tables/users;drop", "", http.StatusBadRequest, apierrors.ErrValidationFailed)
		wantCode(t, h, "GET", "/api/tables/users?nope=1", "", http.StatusBadRequest, apierrors.ErrUnknownColumn)
		wantCode(t, h, "GET", "/api/tables/users?id=x", "", http.StatusBadRequest, apierrors.ErrValidationFailed)
	})

	t.Run("schema", func(t *testing.T) {
		var s struct {
			Title      string                       `json:"title"`
			Type       string                       `json:"type"`
			Properties map[string]map[string]string `json:"properties"`
		}
		do(t, h, "GET", "/api/tables/users/schema", "", http.StatusOK, &s)
		if s.Title != "users" || s.Type != "object" {
			t.Errorf("schema %+v", s)
		}
		want := map[string]map[string]string{
			"id":     {"type": "integer"},
			"name":   {"type": "string"},
			"active": {"type": "integer"},
		}
		if !reflect.DeepEqual(s.Properties, want) {
			t.Errorf("properties %v", s.Properties)
		}
	})

	t.Run("write", func(t *testing.T) {
		var row handlers.Row
		do(t, h, "POST", "/api/tables/users/rows", `{"values": {"name": "carol"}}`, http.StatusOK, &row)
		if row.ID != 2 || row.Values["id"] != cache.Int(3) || row.Values["active"] != cache.Int(1) {
			t.Errorf("created %+v", row)
		}

		var aff handlers.AffectedResponse
		do(t, h, "PATCH", "/api/tables/users/rows", `{"where": {"name": "alice"}, "set": {"active": 0}}`, http.StatusOK, &aff)
		if aff.Affected != 1 {
			t.Errorf("update affected %d", aff.Affected)
		}
		do(t, h, "DELETE", "/api/tables/users/rows", `{"where": {"name": "bob"}}`, http.StatusOK, &aff)
		if aff.Affected != 1 {
			t.Errorf("delete affected %d", aff.Affected)
		}

		var tbl handlers.TableResponse
		do(t, h, "GET", "/api/tables/users?active=0", "", http.StatusOK, &tbl)
		if got := names(tbl.Rows); !reflect.DeepEqual(got, []string{"alice"}) {
			t.Errorf("inactive %v", got)
		}

		var sum handlers.TableSummary
		do(t, h, "POST", "/api/tables/users/refresh", "", http.StatusOK, &sum)
		if sum.Rows != 2 {
			t.Errorf("refresh %+v", sum)
		}
	})

	t.Run("write errors", func(t *testing.T) {
		wantCode(t, h, "POST", "/api/tables/users/rows", `{}`, http.StatusBadRequest, apierrors.ErrMissingField)
		wantCode(t, h, "POST", "/api/tables/users/rows", `{"bogus": 1}`, http.StatusBadRequest, apierrors.ErrValidationFailed)
		wantCode(t, h, "POST", "/api/tables/users/rows", `{"values": {"nope": 1}}`, http.StatusBadRequest, apierrors.ErrUnknownColumn)
		wantCode(t, h, "POST", "/api/tables/users/rows", `{"values": {"name": "x", "NAME": "y"}}`, http.StatusBadRequest, apierrors.ErrValidationFailed)
		wantCode(t, h, "PATCH", "/api/tables/users/rows", `{"where": {"id": 1, "ID": 2}, "values": {"name": "x"}}`, http.StatusBadRequest, apierrors.ErrValidationFailed)
		wantCode(t, h, "POST", "/api/tables/users/rows", `{"values": {"id": 1, "name": "dup"}}`, http.StatusBadGateway, apierrors.ErrStorageError)
		wantCode(t, h, "PATCH", "/api/tables/users/rows", `{"where": {"name": "alice"}}`, http.StatusBadRequest, apierrors.ErrMissingField)
		wantCode(t, h, "DELETE", "/api/tables/users/rows", `{"where": {}}`, http.StatusBadRequest, apierrors.ErrMissingField)
		wantCode(t, h, "POST", "/api/tables/nope/rows", `{"values": {"a": 1}}`, http.StatusNotFound, apierrors.ErrTableNotFound)
	})

	t.Run("drop", func(t *testing.T) {
		var d handlers.DropResponse
		do(t, h, "DELETE", "/api/tables/users", "", http.StatusOK, &d)
		if !d.Dropped {
			t.Error("not dropped")
		}
		do(t, h, "DELETE", "/api/tables/users", "", http.StatusOK, &d)
		if d.Dropped {
			t.Error("dropped twice")
		}
		do(t, h, "GET", "/api/tables", "", http.StatusOK, &list)
		if len(list.Tables) != 0 {
			t.Errorf("tables %v", list.Tables)
		}
	})
}

func TestRouterRateLimit(t *testing.T) {
	limits := ratelimit.NewTiers(0, 1)
	defer limits.Close()
	h := NewRouter(newTestStore(t), Options{Logger: discard, Limits: limits})

	do(t, h, "POST", "/api/tables/users/refresh", "", http.StatusOK, nil)
	var e errorResponse
	w := do(t, h, "POST", "/api/tables/users/refresh", "", http.StatusTooManyRequests, &e)
	if e.Error.Code != apierrors.ErrRateLimitExceeded {
		t.Errorf("code %q", e.Error.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
	// Reads are not limited.
	for range 5 {
		do(t, h, "GET", "/api/tables", "", http.StatusOK, nil)
	}
}
