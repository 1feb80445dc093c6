// Package main is the entry point for rowcache.
//
// rowcache loads SQL tables into memory, prints and filters their rows, and
// writes changes through to the database. It can also serve the cached
// tables over HTTP. Configuration is read from CLI flags, a .env file and a
// YAML file, in that order of precedence.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/maruel/rowcache/cache"
	"github.com/maruel/rowcache/internal/config"
)

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "rowcache: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	version := flag.Bool("version", false, "Print version and exit")
	configPath := flag.String("config", config.DefaultPath, "YAML configuration file")
	envPath := flag.String("env", ".env", "File of KEY=value overrides applied on top of -config")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	driver := flag.String("driver", "", "Database driver (mysql, postgres, sqlite)")
	host := flag.String("host", "", "Database host")
	port := flag.Int("port", 0, "Database port")
	dbName := flag.String("db", "", "Database name, or file for sqlite")
	user := flag.String("user", "", "Database user")
	password := flag.String("password", "", "Database password")
	dsn := flag.String("dsn", "", "Driver specific data source name; overrides -host, -port, -db, -user and -password")
	httpAddr := flag.String("http", "", "Address to listen on for serve (e.g. localhost:8080)")
	flag.Usage = usage
	flag.Parse()

	if *version {
		printVersion()
		return nil
	}
	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		return errors.New("missing command")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()
	ll := &slog.LevelVar{}
	logger := newLogger(ll)
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	env, err := config.LoadDotEnv(*envPath)
	if err != nil {
		return err
	}
	if err := cfg.ApplyEnv(env); err != nil {
		return err
	}

	// Explicit flags win over both files.
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	if set["log-level"] {
		cfg.LogLevel = *logLevel
	}
	if set["driver"] {
		cfg.Database.Driver = *driver
	}
	if set["host"] {
		cfg.Database.Host = *host
	}
	if set["port"] {
		cfg.Database.Port = *port
	}
	if set["db"] {
		cfg.Database.Name = *dbName
	}
	if set["user"] {
		cfg.Database.User = *user
	}
	if set["password"] {
		cfg.Database.Password = *password
	}
	if set["dsn"] {
		cfg.Database.DSN = *dsn
	}
	if set["http"] {
		cfg.Server.HTTP = *httpAddr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	ll.Set(parseLevel(cfg.LogLevel))

	store, err := cache.Open(ctx, cfg.SQL(), cache.Options{
		Logger:           logger,
		MaxTables:        cfg.Cache.MaxTables,
		DisableReconcile: cfg.Cache.DisableReconcile,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.WarnContext(ctx, "Failed to close store", "err", err)
		}
	}()

	if args[0] == "serve" {
		if len(args) != 1 {
			return fmt.Errorf("serve: unexpected arguments %v", args[1:])
		}
		return serve(ctx, stop, store, cfg, []string{*configPath, *envPath})
	}
	return run(ctx, os.Stdout, store, args)
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "usage: rowcache [flags] <command> [args]\n\n")
	fmt.Fprintf(out, "commands:\n")
	fmt.Fprintf(out, "  columns <table>                      print the column names\n")
	fmt.Fprintf(out, "  dump <table> [col=value ...]         print the rows matching every filter\n")
	fmt.Fprintf(out, "  insert <table> col=value ...         insert a row\n")
	fmt.Fprintf(out, "  update <table> k=v ... set c=v ...   update the rows matching every k=v\n")
	fmt.Fprintf(out, "  delete <table> k=v ...               delete the rows matching every k=v\n")
	fmt.Fprintf(out, "  serve                                serve the HTTP API\n\n")
	fmt.Fprintf(out, "Values are JSON scalars when they parse as one, strings otherwise.\n\n")
	flag.PrintDefaults()
}

// newLogger returns a colored logger on stderr, without timestamps under
// systemd.
func newLogger(ll *slog.LevelVar) *slog.Logger {
	underSystemd := os.Getenv("JOURNAL_STREAM") != ""
	return slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      ll,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if underSystemd && a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			skip := false
			switch t := a.Value.Any().(type) {
			case string:
				skip = t == ""
			case time.Duration:
				skip = t == 0
			case nil:
				skip = true
			}
			if skip {
				return slog.Attr{}
			}
			return a
		},
	}))
}

// parseLevel maps a validated level name to its slog.Level.
func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func printVersion() {
	version, goVersion, revision, dirty := getBuildInfo()
	fmt.Printf("rowcache %s\n", version)
	fmt.Printf("  Go version: %s\n", goVersion)
	fmt.Printf("  Revision:   %s\n", revision)
	if dirty {
		fmt.Printf("  Modified:   true\n")
	}
}

func getBuildInfo() (version, goVersion, revision string, dirty bool) {
	version = "unknown"
	goVersion = "unknown"
	revision = "unknown"
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	version = info.Main.Version
	if version == "" || version == "(devel)" {
		version = "dev"
	}
	goVersion = info.GoVersion
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	return
}
