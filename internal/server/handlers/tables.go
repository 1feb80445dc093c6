// Package handlers implements the HTTP API over a cache.Store.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/invopop/jsonschema"

	"github.com/maruel/rowcache/cache"
	apierrors "github.com/maruel/rowcache/internal/errors"
	"github.com/maruel/rowcache/sqlexec"
)

// TableHandler serves the cached tables of a Store.
type TableHandler struct {
	store *cache.Store
}

// NewTableHandler returns a handler over store.
func NewTableHandler(store *cache.Store) *TableHandler {
	return &TableHandler{store: store}
}

// Row is one logical row.
type Row struct {
	ID     int          `json:"id"`
	Values cache.Values `json:"values"`
}

// TableResponse holds a table or a filtered view of it.
type TableResponse struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// TableSummary describes a table without its rows.
type TableSummary struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Rows    int      `json:"rows"`
}

// ListTablesRequest is the request for ListTables (empty).
type ListTablesRequest struct{}

// ListTablesResponse lists the loaded tables.
type ListTablesResponse struct {
	Tables []string `json:"tables"`
}

// ListTables returns the names of the tables currently cached.
func (h *TableHandler) ListTables(ctx context.Context, req ListTablesRequest) (*ListTablesResponse, error) {
	return &ListTablesResponse{Tables: h.store.Loaded()}, nil
}

// GetTableRequest selects rows of a table. Every query parameter other than
// id is an equality filter on the column of the same name.
type GetTableRequest struct {
	Name  string            `path:"name"`
	ID    string            `query:"id"`
	Where map[string]string `query:"*"`
}

// GetTable returns the rows matching every filter, loading the table on
// first access.
func (h *TableHandler) GetTable(ctx context.Context, req GetTableRequest) (*TableResponse, error) {
	t, err := h.table(ctx, req.Name)
	if err != nil {
		return nil, err
	}
	var filters []cache.Filter
	if req.ID != "" {
		id, err := strconv.Atoi(req.ID)
		if err != nil {
			return nil, apierrors.BadRequest("id must be an integer").WithDetail("id", req.ID)
		}
		filters = append(filters, cache.ByID(id))
	}
	for c, v := range req.Where {
		if !hasColumn(t, c) {
			return nil, unknownColumn(t.Name(), c)
		}
		if v == "null" {
			filters = append(filters, cache.ByValue(c, cache.Null()))
		} else {
			filters = append(filters, cache.ByValue(c, cache.String(v)))
		}
	}
	if len(filters) > 0 {
		t = t.Filter(filters...)
	}
	return toResponse(t), nil
}

// SchemaRequest names a table.
type SchemaRequest struct {
	Name string `path:"name"`
}

// Schema returns a JSON Schema describing the rows of a table. Column types
// are inferred from the cached values; columns holding only nulls are
// untyped.
func (h *TableHandler) Schema(ctx context.Context, req SchemaRequest) (*jsonschema.Schema, error) {
	t, err := h.table(ctx, req.Name)
	if err != nil {
		return nil, err
	}
	return tableSchema(t), nil
}

// CreateRowRequest inserts a row.
type CreateRowRequest struct {
	Name   string       `path:"name" json:"-"`
	Values cache.Values `json:"values"`
}

// CreateRow inserts a row and returns it as cached.
func (h *TableHandler) CreateRow(ctx context.Context, req CreateRowRequest) (*Row, error) {
	if len(req.Values) == 0 {
		return nil, apierrors.MissingField("values")
	}
	t, err := h.table(ctx, req.Name)
	if err != nil {
		return nil, err
	}
	id, err := t.Create(ctx, req.Values)
	if err != nil {
		return nil, storeError(req.Name, err)
	}
	row := Row{ID: id, Values: cache.Values{}}
	if r, ok := t.Filter(cache.ByID(id)).First(); ok {
		row.Values = r.Map()
	}
	return &row, nil
}

// UpdateRowsRequest sets columns on the rows matching every condition.
type UpdateRowsRequest struct {
	Name  string       `path:"name" json:"-"`
	Where cache.Values `json:"where"`
	Set   cache.Values `json:"set"`
}

// AffectedResponse reports how many rows the database changed. -1 means the
// driver could not tell.
type AffectedResponse struct {
	Affected int64 `json:"affected"`
}

// UpdateRows updates the database and the cached rows.
func (h *TableHandler) UpdateRows(ctx context.Context, req UpdateRowsRequest) (*AffectedResponse, error) {
	if len(req.Where) == 0 {
		return nil, apierrors.MissingField("where")
	}
	if len(req.Set) == 0 {
		return nil, apierrors.MissingField("set")
	}
	t, err := h.table(ctx, req.Name)
	if err != nil {
		return nil, err
	}
	n, err := t.Update(ctx, req.Where, req.Set)
	if err != nil {
		return nil, storeError(req.Name, err)
	}
	return &AffectedResponse{Affected: n}, nil
}

// DeleteRowsRequest removes the rows matching every condition.
type DeleteRowsRequest struct {
	Name  string       `path:"name" json:"-"`
	Where cache.Values `json:"where"`
}

// DeleteRows deletes from the database and the cache.
func (h *TableHandler) DeleteRows(ctx context.Context, req DeleteRowsRequest) (*AffectedResponse, error) {
	if len(req.Where) == 0 {
		return nil, apierrors.MissingField("where")
	}
	t, err := h.table(ctx, req.Name)
	if err != nil {
		return nil, err
	}
	n, err := t.Delete(ctx, req.Where)
	if err != nil {
		return nil, storeError(req.Name, err)
	}
	return &AffectedResponse{Affected: n}, nil
}

// TableRequest names a table.
type TableRequest struct {
	Name string `path:"name"`
}

// Refresh reloads a table from the database.
func (h *TableHandler) Refresh(ctx context.Context, req TableRequest) (*TableSummary, error) {
	t, err := h.table(ctx, req.Name)
	if err != nil {
		return nil, err
	}
	if err := t.Refresh(ctx); err != nil {
		return nil, storeError(req.Name, err)
	}
	return &TableSummary{Name: t.Name(), Columns: t.Columns(), Rows: t.Len()}, nil
}

// DropResponse reports whether the table was cached.
type DropResponse struct {
	Dropped bool `json:"dropped"`
}

// Drop evicts a table from the cache. The database is not touched.
func (h *TableHandler) Drop(ctx context.Context, req TableRequest) (*DropResponse, error) {
	return &DropResponse{Dropped: h.store.Drop(req.Name)}, nil
}

func (h *TableHandler) table(ctx context.Context, name string) (*cache.Table, error) {
	t, err := h.store.Table(ctx, name)
	if err != nil {
		return nil, storeError(name, err)
	}
	return t, nil
}

func toResponse(t *cache.Table) *TableResponse {
	resp := &TableResponse{Name: t.Name(), Columns: t.Columns(), Rows: []Row{}}
	for r := range t.Rows() {
		resp.Rows = append(resp.Rows, Row{ID: r.RowID(), Values: r.Map()})
	}
	return resp
}

func hasColumn(t *cache.Table, name string) bool {
	return slices.ContainsFunc(t.Columns(), func(c string) bool { return strings.EqualFold(c, name) })
}

func unknownColumn(table, column string) *apierrors.APIError {
	return apierrors.NewAPIError(http.StatusBadRequest, apierrors.ErrUnknownColumn, "unknown column").
		WithDetails(map[string]any{"table": table, "column": column})
}

// storeError maps cache and sqlexec errors to API errors.
func storeError(table string, err error) error {
	switch {
	case errors.Is(err, cache.ErrTableNotFound):
		return apierrors.TableNotFound(table)
	case errors.Is(err, sqlexec.ErrInvalidIdentifier):
		return apierrors.BadRequest("invalid table name").WithDetail("table", table)
	case errors.Is(err, cache.ErrUnknownColumn):
		return apierrors.NewAPIError(http.StatusBadRequest, apierrors.ErrUnknownColumn, "unknown column").Wrap(err)
	case errors.Is(err, cache.ErrDuplicateColumn):
		return apierrors.BadRequest("column given twice").Wrap(err)
	case errors.Is(err, cache.ErrNoConditions):
		return apierrors.MissingField("where")
	case errors.Is(err, cache.ErrNoValues):
		return apierrors.MissingField("values")
	case errors.Is(err, cache.ErrClosed), errors.Is(err, sqlexec.ErrClosed):
		return apierrors.NewAPIError(http.StatusServiceUnavailable, apierrors.ErrUnavailable, "store closed")
	default:
		return apierrors.NewAPIError(http.StatusBadGateway, apierrors.ErrStorageError, "database error").
			WithDetail("table", table).Wrap(err)
	}
}
