package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/maruel/rowcache/cache"
	"github.com/maruel/rowcache/internal/config"
	"github.com/maruel/rowcache/internal/server"
	"github.com/maruel/rowcache/internal/server/ratelimit"
)

// serve runs the HTTP API until ctx is canceled. Editing one of the
// configuration files or replacing the executable stops the server so a
// supervisor restarts it with the new settings.
func serve(ctx context.Context, stop context.CancelFunc, store *cache.Store, cfg *config.Config, configFiles []string) error {
	addr := cfg.Server.HTTP
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	watched := slices.Clone(configFiles)
	if exe, err := os.Executable(); err == nil {
		if exe, err = filepath.EvalSymlinks(exe); err == nil {
			watched = append(watched, exe)
		}
	}
	if err := watchFiles(ctx, stop, watched); err != nil {
		return fmt.Errorf("failed to watch files: %w", err)
	}

	limits := ratelimit.NewTiers(cfg.Server.ReadPerMin, cfg.Server.WritePerMin)
	defer limits.Close()
	httpServer := &http.Server{
		Addr: addr,
		Handler: server.NewRouter(store, server.Options{
			Logger:    slog.Default(),
			JWTSecret: []byte(cfg.Server.JWTSecret),
			Limits:    limits,
		}),
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		version, _, _, _ := getBuildInfo()
		slog.InfoContext(ctx, "Starting server", "addr", addr, "version", version, "auth", cfg.Server.JWTSecret != "")
		serverErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		slog.InfoContext(ctx, "Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		slog.InfoContext(ctx, "Server stopped")
	}
	return nil
}

// watchFiles calls stop when one of files is written, replaced or removed.
//
// The parent directories are watched so that files created after startup,
// and editors that save by renaming, are noticed.
func watchFiles(ctx context.Context, stop context.CancelFunc, files []string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	targets := map[string]bool{}
	dirs := map[string]bool{}
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			_ = w.Close()
			return err
		}
		targets[abs] = true
		dir := filepath.Dir(abs)
		if dirs[dir] {
			continue
		}
		if err := w.Add(dir); err != nil {
			_ = w.Close()
			return err
		}
		dirs[dir] = true
	}
	go func() {
		defer func() { _ = w.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if !targets[filepath.Clean(event.Name)] || event.Op == fsnotify.Chmod {
					continue
				}
				slog.InfoContext(ctx, "File modified, initiating shutdown", "path", event.Name, "op", event.Op.String())
				stop()
				return
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.WarnContext(ctx, "Error watching files", "err", err)
			}
		}
	}()
	return nil
}
