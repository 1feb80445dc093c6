package cache

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Kind is the type of a Value.
type Kind uint8

// Value kinds.
const (
	KindNull Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindDate
	KindTimestamp
	KindUUID
)

var kindNames = [...]string{
	KindNull:      "null",
	KindString:    "string",
	KindInt:       "int",
	KindFloat:     "float",
	KindBool:      "bool",
	KindDate:      "date",
	KindTimestamp: "timestamp",
	KindUUID:      "uuid",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is a single cell. The zero Value is Null.
type Value struct {
	kind Kind
	s    string
	n    int64 // Int, and Bool as 0 or 1.
	f    float64
	t    time.Time
	u    uuid.UUID
}

// Null returns the SQL NULL value.
func Null() Value { return Value{} }

// String returns a text value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Int returns an integer value.
func Int(n int64) Value { return Value{kind: KindInt, n: n} }

// Float returns a floating point value.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// Bool returns a boolean value.
func Bool(b bool) Value {
	v := Value{kind: KindBool}
	if b {
		v.n = 1
	}
	return v
}

// Date returns a calendar day. The time of day is discarded.
func Date(t time.Time) Value {
	y, m, d := t.Date()
	return Value{kind: KindDate, t: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// Timestamp returns a point in time.
func Timestamp(t time.Time) Value { return Value{kind: KindTimestamp, t: t} }

// UUID returns a UUID value.
func UUID(u uuid.UUID) Value { return Value{kind: KindUUID, u: u} }

// FromDriver converts a value returned by a database/sql driver, or a plain
// Go scalar, to a Value.
func FromDriver(v any) Value {
	switch x := v.(type) {
	case nil:
		return Null()
	case Value:
		return x
	case string:
		return String(x)
	case []byte:
		return String(string(x))
	case bool:
		return Bool(x)
	case int:
		return Int(int64(x))
	case int8:
		return Int(int64(x))
	case int16:
		return Int(int64(x))
	case int32:
		return Int(int64(x))
	case int64:
		return Int(x)
	case uint:
		return fromUint(uint64(x))
	case uint8:
		return Int(int64(x))
	case uint16:
		return Int(int64(x))
	case uint32:
		return Int(int64(x))
	case uint64:
		return fromUint(x)
	case float32:
		return Float(float64(x))
	case float64:
		return Float(x)
	case time.Time:
		return Timestamp(x)
	case uuid.UUID:
		return UUID(x)
	case fmt.Stringer:
		return String(x.String())
	default:
		return String(fmt.Sprint(x))
	}
}

func fromUint(x uint64) Value {
	if x > math.MaxInt64 {
		return Float(float64(x))
	}
	return Int(int64(x))
}

// Kind returns the type of v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is Null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Arg returns v as a database/sql statement argument.
func (v Value) Arg() any {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return v.n
	case KindFloat:
		return v.f
	case KindBool:
		return v.n != 0
	case KindDate, KindTimestamp:
		return v.t
	case KindUUID:
		return v.u.String()
	default:
		return nil
	}
}

// String returns the text form of v. Null is "NULL".
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "NULL"
	case KindString:
		return v.s
	case KindInt:
		return strconv.FormatInt(v.n, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.n != 0)
	case KindDate:
		return v.t.Format(time.DateOnly)
	case KindTimestamp:
		return v.t.Format(time.RFC3339Nano)
	case KindUUID:
		return v.u.String()
	default:
		return ""
	}
}

// Equal compares two values the way a database compares a column with a
// literal. Values of the same kind compare exactly. Int, Float and Bool
// compare numerically. A String compared with another kind is parsed as that
// kind first. Null is only equal to Null.
func (v Value) Equal(o Value) bool {
	if v.kind == KindNull || o.kind == KindNull {
		return v.kind == o.kind
	}
	if v.kind == o.kind {
		switch v.kind {
		case KindString:
			return v.s == o.s
		case KindInt, KindBool:
			return v.n == o.n
		case KindFloat:
			return v.f == o.f
		case KindDate, KindTimestamp:
			return v.t.Equal(o.t)
		case KindUUID:
			return v.u == o.u
		}
		return false
	}
	if v.kind == KindString {
		p, ok := parseAs(v.s, o.kind)
		return ok && p.Equal(o)
	}
	if o.kind == KindString {
		p, ok := parseAs(o.s, v.kind)
		return ok && p.Equal(v)
	}
	if v.numeric() && o.numeric() {
		return v.float() == o.float()
	}
	if v.temporal() && o.temporal() {
		return v.t.Equal(o.t)
	}
	return false
}

func (v Value) numeric() bool {
	return v.kind == KindInt || v.kind == KindFloat || v.kind == KindBool
}

func (v Value) temporal() bool {
	return v.kind == KindDate || v.kind == KindTimestamp
}

func (v Value) float() float64 {
	if v.kind == KindFloat {
		return v.f
	}
	return float64(v.n)
}

// parseAs parses s as a value of kind k. The result never has KindString.
func parseAs(s string, k Kind) (Value, bool) {
	switch k {
	case KindInt:
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return Int(n), true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return Float(f), true
		}
	case KindFloat:
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return Float(f), true
		}
	case KindBool:
		if b, err := parseBool(s); err == nil {
			return Bool(b), true
		}
	case KindDate, KindTimestamp:
		if t, err := parseTime(s); err == nil {
			return Timestamp(t), true
		}
	case KindUUID:
		if u, err := parseUUID(s); err == nil {
			return UUID(u), true
		}
	}
	return Value{}, false
}

// MarshalJSON encodes Null as null, numbers and booleans natively and
// everything else as a string.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindInt:
		return strconv.AppendInt(nil, v.n, 10), nil
	case KindFloat:
		return json.Marshal(v.f)
	case KindBool:
		return strconv.AppendBool(nil, v.n != 0), nil
	default:
		return json.Marshal(v.String())
	}
}

// UnmarshalJSON decodes a JSON scalar. Strings stay strings; Equal parses
// them on comparison.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("%w: empty JSON", ErrCoerce)
	}
	switch data[0] {
	case 'n':
		if string(data) != "null" {
			return fmt.Errorf("%w: invalid JSON %q", ErrCoerce, data)
		}
		*v = Null()
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = Bool(b)
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = String(s)
	case '{', '[':
		return fmt.Errorf("%w: JSON %s is not a scalar", ErrCoerce, data[:1])
	default:
		if c := data[0]; c != '-' && (c < '0' || c > '9') {
			return fmt.Errorf("%w: invalid JSON %q", ErrCoerce, data)
		}
		if bytes.ContainsAny(data, ".eE") {
			f, err := strconv.ParseFloat(string(data), 64)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrCoerce, err)
			}
			*v = Float(f)
			return nil
		}
		n, err := strconv.ParseInt(string(data), 10, 64)
		if err != nil {
			f, ferr := strconv.ParseFloat(string(data), 64)
			if ferr != nil {
				return fmt.Errorf("%w: %v", ErrCoerce, err)
			}
			*v = Float(f)
			return nil
		}
		*v = Int(n)
	}
	return nil
}
