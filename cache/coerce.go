package cache

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Coercion rules used by Result getters:
//
//	want     accepted kinds
//	string   any non-null kind, formatted with Value.String
//	int      Int, Bool (0/1), whole Float in range, numeric String
//	float    Int, Float, Bool (0/1), numeric String
//	bool     Bool, Int and Float (non-zero is true), String ("1", "t", "true", "yes", ...)
//	time     Date, Timestamp, String in RFC 3339, "2006-01-02 15:04:05" or "2006-01-02"
//	uuid     UUID, String in any form accepted by uuid.Parse, 16 byte String
//
// Null always fails with ErrNull; anything else fails with ErrCoerce.

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	time.DateOnly,
}

func coerceErr(v Value, want string) error {
	return fmt.Errorf("%w: %s %q to %s", ErrCoerce, v.kind, v.String(), want)
}

// AsString returns the text form of v.
func (v Value) AsString() (string, error) {
	if v.kind == KindNull {
		return "", ErrNull
	}
	return v.String(), nil
}

// AsInt returns v as an integer.
func (v Value) AsInt() (int64, error) {
	switch v.kind {
	case KindNull:
		return 0, ErrNull
	case KindInt, KindBool:
		return v.n, nil
	case KindFloat:
		if v.f == math.Trunc(v.f) && v.f >= math.MinInt64 && v.f < math.MaxInt64 {
			return int64(v.f), nil
		}
	case KindString:
		s := strings.TrimSpace(v.s)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return Float(f).AsInt()
		}
	}
	return 0, coerceErr(v, "int")
}

// AsFloat returns v as a floating point number.
func (v Value) AsFloat() (float64, error) {
	switch v.kind {
	case KindNull:
		return 0, ErrNull
	case KindInt, KindBool, KindFloat:
		return v.float(), nil
	case KindString:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v.s), 64); err == nil {
			return f, nil
		}
	}
	return 0, coerceErr(v, "float")
}

// AsBool returns v as a boolean.
func (v Value) AsBool() (bool, error) {
	switch v.kind {
	case KindNull:
		return false, ErrNull
	case KindInt, KindBool:
		return v.n != 0, nil
	case KindFloat:
		return v.f != 0, nil
	case KindString:
		if b, err := parseBool(v.s); err == nil {
			return b, nil
		}
	}
	return false, coerceErr(v, "bool")
}

// AsTime returns v as a point in time.
func (v Value) AsTime() (time.Time, error) {
	switch v.kind {
	case KindNull:
		return time.Time{}, ErrNull
	case KindDate, KindTimestamp:
		return v.t, nil
	case KindString:
		if t, err := parseTime(v.s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, coerceErr(v, "time")
}

// AsUUID returns v as a UUID.
func (v Value) AsUUID() (uuid.UUID, error) {
	switch v.kind {
	case KindNull:
		return uuid.Nil, ErrNull
	case KindUUID:
		return v.u, nil
	case KindString:
		if u, err := parseUUID(v.s); err == nil {
			return u, nil
		}
	}
	return uuid.Nil, coerceErr(v, "uuid")
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes", "on":
		return true, nil
	case "n", "no", "off":
		return false, nil
	}
	return strconv.ParseBool(strings.TrimSpace(s))
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, l := range timeLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q is not a time", ErrCoerce, s)
}

func parseUUID(s string) (uuid.UUID, error) {
	// BINARY(16) columns come back as raw bytes.
	if len(s) == 16 {
		return uuid.FromBytes([]byte(s))
	}
	return uuid.Parse(strings.TrimSpace(s))
}
