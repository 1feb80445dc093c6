package sqlexec

import (
	"context"
	"errors"
	"fmt"
	"sync"

	// Registers the "pgx" driver.
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/jmoiron/sqlx"
	// Registers the "sqlite" driver.
	_ "modernc.org/sqlite"
)

// ErrClosed is returned by an Executor after Close.
var ErrClosed = errors.New("executor is closed")

// ResultSet is a fully materialized query result.
type ResultSet struct {
	// Columns are the cursor's column names in order.
	Columns []string
	// Rows holds one driver value per column for each row, in cursor order.
	Rows [][]any
}

// Executor serializes access to a single database connection.
type Executor struct {
	dialect Dialect

	mu     sync.Mutex
	db     *sqlx.DB
	closed bool
}

// Open connects to the database described by cfg and verifies the
// connection with a ping.
func Open(ctx context.Context, cfg Config) (*Executor, error) {
	dsn, err := cfg.DataSourceName()
	if err != nil {
		return nil, err
	}
	db, err := sqlx.Open(string(cfg.Driver), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", cfg.Driver, err)
	}
	// One physical connection; an in-memory SQLite database only lives in it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to %s database %q: %w", cfg.Driver, cfg.Database, err)
	}
	return New(db, cfg.Driver), nil
}

// New wraps an already opened database handle.
func New(db *sqlx.DB, dialect Dialect) *Executor {
	return &Executor{db: db, dialect: dialect}
}

// Dialect returns the dialect used to build statements.
func (e *Executor) Dialect() Dialect {
	return e.dialect
}

// Columns returns the column names of table in ordinal order. A table that
// does not exist has no columns.
func (e *Executor) Columns(ctx context.Context, table string) (_ []string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrClosed
	}
	st := e.dialect.Columns(table)
	rows, err := e.db.QueryxContext(ctx, st.Query, st.Args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		cols = append(cols, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return cols, nil
}

// Query runs a statement that returns rows and materializes all of them.
func (e *Executor) Query(ctx context.Context, st Statement) (_ *ResultSet, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrClosed
	}
	rows, err := e.db.QueryxContext(ctx, st.Query, st.Args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	rs := &ResultSet{Columns: cols}
	for rows.Next() {
		row, err := rows.SliceScan()
		if err != nil {
			return nil, err
		}
		rs.Rows = append(rs.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rs, nil
}

// Exec runs a statement that does not return rows and returns the number of
// affected rows, or -1 when the driver cannot report it.
func (e *Executor) Exec(ctx context.Context, st Statement) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0, ErrClosed
	}
	res, err := e.db.ExecContext(ctx, st.Query, st.Args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return -1, nil
	}
	return n, nil
}

// Close closes the connection. Later calls fail with ErrClosed.
func (e *Executor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return e.db.Close()
}
