package cache

import "errors"

var (
	// ErrTableNotFound is returned when the database has no table by that name.
	ErrTableNotFound = errors.New("table not found")
	// ErrUnknownColumn is returned when a mutation names a column the table
	// doesn't have.
	ErrUnknownColumn = errors.New("unknown column")
	// ErrDuplicateColumn is returned when two keys of one Values name the same
	// column, for example "name" and "NAME".
	ErrDuplicateColumn = errors.New("column given twice")
	// ErrNoConditions is returned by Update and Delete without conditions.
	ErrNoConditions = errors.New("at least one condition is required")
	// ErrNoValues is returned by Create and Update without values.
	ErrNoValues = errors.New("at least one value is required")
	// ErrReadOnly is returned when mutating a table produced by Filter.
	ErrReadOnly = errors.New("filtered table is read-only")
	// ErrClosed is returned by a Store after Close.
	ErrClosed = errors.New("store is closed")

	// ErrNull is returned when coercing a null value.
	ErrNull = errors.New("value is null")
	// ErrCoerce is returned when a value cannot be represented as the
	// requested type.
	ErrCoerce = errors.New("cannot coerce value")
)
