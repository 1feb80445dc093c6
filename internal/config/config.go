// Package config loads rowcache settings from a YAML file and a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/maruel/rowcache/sqlexec"
)

// DefaultPath is the configuration file read when none is given.
const DefaultPath = "rowcache.yaml"

// Config is the content of rowcache.yaml.
type Config struct {
	Database Database `yaml:"database"`
	Cache    Cache    `yaml:"cache"`
	Server   Server   `yaml:"server"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level,omitempty"`
}

// Database describes the backing store.
type Database struct {
	// Driver is mysql, pgx (or postgres) or sqlite.
	Driver   string            `yaml:"driver"`
	Host     string            `yaml:"host,omitempty"`
	Port     int               `yaml:"port,omitempty"`
	Name     string            `yaml:"name"`
	User     string            `yaml:"user,omitempty"`
	Password string            `yaml:"password,omitempty"`
	Params   map[string]string `yaml:"params,omitempty"`
	// DSN overrides every field above except Driver.
	DSN string `yaml:"dsn,omitempty"`
}

// Cache tunes the row cache.
type Cache struct {
	// MaxTables bounds the number of tables kept in memory. 0 means unlimited.
	MaxTables int `yaml:"max_tables,omitempty"`
	// DisableReconcile skips reading back inserted rows.
	DisableReconcile bool `yaml:"disable_reconcile,omitempty"`
}

// Server configures "rowcache serve".
type Server struct {
	// HTTP is the listen address.
	HTTP string `yaml:"http"`
	// JWTSecret enables bearer authentication when set. At least 32 bytes.
	JWTSecret string `yaml:"jwt_secret,omitempty"`
	// ReadPerMin limits GET requests per client. 0 means unlimited.
	ReadPerMin int `yaml:"read_per_min,omitempty"`
	// WritePerMin limits mutating requests per client. 0 means unlimited.
	WritePerMin int `yaml:"write_per_min,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Database: Database{Driver: string(sqlexec.SQLite), Name: "rowcache.db"},
		Server:   Server{HTTP: "localhost:8080", ReadPerMin: 6000, WritePerMin: 600},
		LogLevel: "info",
	}
}

// Load reads path on top of Default. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is provided by the operator.
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		return &cfg, nil
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &cfg, nil
}

// ApplyEnv overrides fields with the values of a .env file. Callers apply
// explicit flags afterwards so they keep precedence.
func (c *Config) ApplyEnv(env map[string]string) error {
	if v := env["DB_DRIVER"]; v != "" {
		c.Database.Driver = v
	}
	if v := env["DB_HOST"]; v != "" {
		c.Database.Host = v
	}
	if v := env["DB_PORT"]; v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid DB_PORT %q: %w", v, err)
		}
		c.Database.Port = p
	}
	if v := env["DB_NAME"]; v != "" {
		c.Database.Name = v
	}
	if v := env["DB_USER"]; v != "" {
		c.Database.User = v
	}
	if v := env["DB_PASSWORD"]; v != "" {
		c.Database.Password = v
	}
	if v := env["DB_DSN"]; v != "" {
		c.Database.DSN = v
	}
	if v := env["HTTP"]; v != "" {
		c.Server.HTTP = v
	}
	if v := env["JWT_SECRET"]; v != "" {
		c.Server.JWTSecret = v
	}
	if v := env["LOG_LEVEL"]; v != "" {
		c.LogLevel = v
	}
	return nil
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	if _, err := sqlexec.ParseDialect(c.Database.Driver); err != nil {
		return fmt.Errorf("database.driver: %w", err)
	}
	if c.Database.Name == "" && c.Database.DSN == "" {
		return errors.New("database.name is required")
	}
	if c.Database.Port < 0 || c.Database.Port > 65535 {
		return fmt.Errorf("database.port %d is out of range", c.Database.Port)
	}
	if c.Cache.MaxTables < 0 {
		return errors.New("cache.max_tables must be non-negative")
	}
	if c.Server.JWTSecret != "" && len(c.Server.JWTSecret) < 32 {
		return errors.New("server.jwt_secret must be at least 32 bytes")
	}
	if c.Server.ReadPerMin < 0 {
		return errors.New("server.read_per_min must be non-negative")
	}
	if c.Server.WritePerMin < 0 {
		return errors.New("server.write_per_min must be non-negative")
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level: %q", c.LogLevel)
	}
	return nil
}

// SQL returns the connection settings. Call Validate first.
func (c *Config) SQL() sqlexec.Config {
	d, _ := sqlexec.ParseDialect(c.Database.Driver)
	return sqlexec.Config{
		Driver:   d,
		Host:     c.Database.Host,
		Port:     c.Database.Port,
		Database: c.Database.Name,
		User:     c.Database.User,
		Password: c.Database.Password,
		Params:   c.Database.Params,
		DSN:      c.Database.DSN,
	}
}
