// Package cache materializes SQL tables into an in-process row cache.
//
// A [Store] owns the connection and lazily loads one [Table] per table name.
// A Table keeps every row as a set of [Entry] triples (row id, column, value)
// and answers reads purely from memory: [Table.First], [Table.All],
// [Table.Filter], [Table.HasMatch].
//
// Mutations ([Table.Create], [Table.Update], [Table.Delete]) first run the
// matching parameterized statement against the database, then patch the
// cached entries. The database is the source of truth: when the statement
// fails the cache is left untouched. [Table.Refresh] reloads a table when the
// cache may have drifted.
//
// Update and Delete match a row only when every condition matches, exactly
// like the generated "WHERE a = ? AND b = ?". [Table.HasMatch] is
// intentionally looser: it reports whether any cached cell matches any
// criterion.
package cache
