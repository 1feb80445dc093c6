package sqlexec

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jmoiron/sqlx"
)

// ErrInvalidIdentifier is returned when a table or column name cannot be
// safely embedded in a statement.
var ErrInvalidIdentifier = errors.New("invalid SQL identifier")

// identRe matches unqualified identifiers. Anything else is rejected rather
// than escaped.
var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)

// Dialect is the SQL flavour of the backing store. Its value is the
// database/sql driver name.
type Dialect string

const (
	// MySQL talks to MySQL or MariaDB through github.com/go-sql-driver/mysql.
	MySQL Dialect = "mysql"
	// Postgres talks to PostgreSQL through github.com/jackc/pgx/v4/stdlib.
	Postgres Dialect = "pgx"
	// SQLite uses the pure Go modernc.org/sqlite driver.
	SQLite Dialect = "sqlite"
)

// ParseDialect maps a driver name, including common aliases, to a Dialect.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mysql", "mariadb":
		return MySQL, nil
	case "pgx", "postgres", "postgresql":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return "", fmt.Errorf("unknown database driver %q", s)
	}
}

// Validate reports whether d is a supported dialect.
func (d Dialect) Validate() error {
	switch d {
	case MySQL, Postgres, SQLite:
		return nil
	default:
		return fmt.Errorf("unknown database driver %q", string(d))
	}
}

// ValidIdentifier returns ErrInvalidIdentifier if name cannot be used as a
// table or column name.
func ValidIdentifier(name string) error {
	if !identRe.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	return nil
}

// Quote validates name and quotes it for the dialect.
func (d Dialect) Quote(name string) (string, error) {
	if err := ValidIdentifier(name); err != nil {
		return "", err
	}
	if d == MySQL {
		return "`" + name + "`", nil
	}
	return `"` + name + `"`, nil
}

// Rebind rewrites '?' placeholders into the driver's bind style.
func (d Dialect) Rebind(query string) string {
	return sqlx.Rebind(sqlx.BindType(string(d)), query)
}

// columnsQuery returns the catalog query listing a table's columns in
// ordinal order. The table name is its only argument.
func (d Dialect) columnsQuery() string {
	switch d {
	case Postgres:
		return d.Rebind("SELECT column_name FROM information_schema.columns WHERE table_name = ? AND table_schema = current_schema() ORDER BY ordinal_position")
	case SQLite:
		return "SELECT name FROM pragma_table_info(?) ORDER BY cid"
	default:
		return "SELECT COLUMN_NAME FROM INFORMATION_SCHEMA.COLUMNS WHERE TABLE_NAME = ? AND TABLE_SCHEMA = DATABASE() ORDER BY ORDINAL_POSITION"
	}
}
