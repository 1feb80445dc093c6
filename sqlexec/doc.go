// Package sqlexec owns the connection to the backing SQL database.
//
// # Overview
//
// An [Executor] wraps a single [sqlx.DB] limited to one open connection. It
// reads the column catalog of a table, runs queries that return rows and runs
// statements that do not. Every call is serialized by a mutex; callers never
// share the connection concurrently.
//
// # Statements
//
// [Dialect] builds parameterized statements with the logical shapes
//
//	SELECT * FROM <table> [WHERE c = ? AND ...]
//	INSERT INTO <table> (<cols>) VALUES (?, ...)
//	UPDATE <table> SET c = ?, ... WHERE k = ? AND ...
//	DELETE FROM <table> WHERE k = ? AND ...
//
// Values are always bound as arguments, except that a nil condition is written
// "k IS NULL". Identifiers cannot be bound, so they
// are validated and quoted for the dialect. Placeholders are rebound for the
// driver with [sqlx.Rebind].
//
// # Drivers
//
// MySQL (github.com/go-sql-driver/mysql), PostgreSQL through pgx
// (github.com/jackc/pgx/v4/stdlib) and SQLite (modernc.org/sqlite) are
// registered by this package.
package sqlexec
