package server

import (
	"log/slog"
	"net/http"

	"github.com/maruel/rowcache/cache"
	"github.com/maruel/rowcache/internal/server/handlers"
	"github.com/maruel/rowcache/internal/server/ratelimit"
)

// Options configures NewRouter.
type Options struct {
	// Logger receives the access log. Defaults to slog.Default().
	Logger *slog.Logger
	// JWTSecret enables bearer token authentication when set.
	JWTSecret []byte
	// Limits throttles clients when set.
	Limits *ratelimit.Tiers
}

// NewRouter creates and configures the HTTP router.
func NewRouter(store *cache.Store, opts Options) http.Handler {
	mux := http.NewServeMux()
	th := handlers.NewTableHandler(store)

	mux.Handle("GET /api/health", Wrap(th.Health))

	mux.Handle("GET /api/tables", Wrap(th.ListTables))
	mux.Handle("GET /api/tables/{name}", Wrap(th.GetTable))
	mux.Handle("DELETE /api/tables/{name}", Wrap(th.Drop))
	mux.Handle("GET /api/tables/{name}/schema", Wrap(th.Schema))
	mux.Handle("POST /api/tables/{name}/refresh", Wrap(th.Refresh))

	mux.Handle("POST /api/tables/{name}/rows", Wrap(th.CreateRow))
	mux.Handle("PATCH /api/tables/{name}/rows", Wrap(th.UpdateRows))
	mux.Handle("DELETE /api/tables/{name}/rows", Wrap(th.DeleteRows))

	var h http.Handler = mux
	if opts.Limits != nil {
		h = opts.Limits.Middleware(writeRateLimitError)(h)
	}
	if len(opts.JWTSecret) != 0 {
		h = AuthMiddleware(opts.JWTSecret)(h)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return RequestIDMiddleware(LogMiddleware(logger)(h))
}
