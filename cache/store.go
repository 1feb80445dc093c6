package cache

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/golang/groupcache/lru"
	"golang.org/x/sync/singleflight"

	"github.com/maruel/rowcache/sqlexec"
)

// Options configures a Store.
type Options struct {
	// Logger receives diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
	// MaxTables bounds the number of cached tables; the least recently used
	// one is dropped first. 0 means no limit.
	MaxTables int
	// DisableReconcile skips reading back rows after Create.
	DisableReconcile bool
}

func (o *Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Store owns the database connection and the tables loaded from it.
type Store struct {
	exec   Executor
	opts   Options
	logger *slog.Logger
	loads  singleflight.Group

	mu     sync.Mutex
	tables *lru.Cache
	names  map[string]struct{}
	closed bool
}

// Open connects to the database and returns an empty Store.
func Open(ctx context.Context, cfg sqlexec.Config, opts Options) (*Store, error) {
	exec, err := sqlexec.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return New(exec, opts), nil
}

// New returns a Store over an existing executor. The Store closes exec on
// Close.
func New(exec Executor, opts Options) *Store {
	s := &Store{
		exec:   exec,
		opts:   opts,
		logger: opts.logger(),
		tables: lru.New(opts.MaxTables),
		names:  map[string]struct{}{},
	}
	s.tables.OnEvicted = func(key lru.Key, _ any) {
		name := key.(string)
		delete(s.names, name)
		s.logger.Debug("dropped table", "table", name)
	}
	return s
}

// Table returns the cached table name, loading it on first access.
//
// Concurrent first accesses share a single load. A table that failed to load
// is not cached; ErrTableNotFound is returned when it doesn't exist.
func (s *Store) Table(ctx context.Context, name string) (*Table, error) {
	if err := sqlexec.ValidIdentifier(name); err != nil {
		return nil, err
	}
	if t, err := s.cached(name); t != nil || err != nil {
		return t, err
	}
	v, err, _ := s.loads.Do(name, func() (any, error) {
		if t, err := s.cached(name); t != nil || err != nil {
			return t, err
		}
		t, err := loadTable(ctx, s.exec, name, &s.opts)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			return nil, ErrClosed
		}
		s.tables.Add(name, t)
		s.names[name] = struct{}{}
		return t, nil
	})
	if err != nil {
		s.logger.Debug("failed to load table", "table", name, "err", err)
		return nil, err
	}
	return v.(*Table), nil
}

func (s *Store) cached(name string) (*Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if v, ok := s.tables.Get(name); ok {
		return v.(*Table), nil
	}
	return nil, nil
}

// Drop forgets a cached table and reports whether it was loaded. The next
// Table call reloads it.
func (s *Store) Drop(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.names[name]; !ok {
		return false
	}
	s.tables.Remove(name)
	return true
}

// Loaded returns the names of the cached tables, sorted.
func (s *Store) Loaded() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.names))
	for n := range s.names {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

// Close drops every table and closes the connection.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.tables.Clear()
	s.mu.Unlock()
	if err := s.exec.Close(); err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}
	return nil
}
