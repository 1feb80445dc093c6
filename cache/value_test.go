package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

func TestValueEqual(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"null null", Null(), Null(), true},
		{"null string", Null(), String(""), false},
		{"null int", Int(0), Null(), false},
		{"string", String("a"), String("a"), true},
		{"string case", String("a"), String("A"), false},
		{"int", Int(3), Int(3), true},
		{"int float", Int(3), Float(3), true},
		{"int float frac", Int(3), Float(3.5), false},
		{"bool int", Bool(true), Int(1), true},
		{"bool int zero", Bool(false), Int(0), true},
		{"bool bool", Bool(true), Bool(false), false},
		{"string int", String("42"), Int(42), true},
		{"int string", Int(42), String("42"), true},
		{"string int bad", String("x"), Int(42), false},
		{"string bool", String("true"), Bool(true), true},
		{"string bool numeric", String("1"), Bool(true), true},
		{"bool string false", Bool(false), String("false"), true},
		{"string float", String("1.5"), Float(1.5), true},
		{"string timestamp", String("2024-03-01T12:30:00Z"), Timestamp(ts), true},
		{"string timestamp sql", String("2024-03-01 12:30:00"), Timestamp(ts), true},
		{"date timestamp", Date(ts), Timestamp(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)), true},
		{"date truncates", Date(ts), Date(ts.Add(time.Hour)), true},
		{"string date", String("2024-03-01"), Date(ts), true},
		{"uuid", UUID(id), UUID(id), true},
		{"string uuid", String(id.String()), UUID(id), true},
		{"uuid bytes", String(string(id[:])), UUID(id), true},
		{"uuid int", UUID(id), Int(1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.want {
				t.Errorf("%v.Equal(%v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
			if got := tt.b.Equal(tt.a); got != tt.want {
				t.Errorf("%v.Equal(%v) = %v, want %v (reversed)", tt.b, tt.a, got, tt.want)
			}
		})
	}
}

func TestFromDriver(t *testing.T) {
	ts := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		in   any
		want Value
		kind Kind
	}{
		{nil, Null(), KindNull},
		{"x", String("x"), KindString},
		{[]byte("x"), String("x"), KindString},
		{int64(-3), Int(-3), KindInt},
		{int32(7), Int(7), KindInt},
		{uint8(7), Int(7), KindInt},
		{uint64(1 << 63), Float(1 << 63), KindFloat},
		{float32(0.5), Float(0.5), KindFloat},
		{true, Bool(true), KindBool},
		{ts, Timestamp(ts), KindTimestamp},
		{Int(9), Int(9), KindInt},
		{uuid.Nil, UUID(uuid.Nil), KindUUID},
	}
	for _, tt := range tests {
		got := FromDriver(tt.in)
		if got.Kind() != tt.kind {
			t.Errorf("FromDriver(%#v).Kind() = %s, want %s", tt.in, got.Kind(), tt.kind)
		}
		if !got.Equal(tt.want) {
			t.Errorf("FromDriver(%#v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestValueArg(t *testing.T) {
	id := uuid.New()
	if got := Null().Arg(); got != nil {
		t.Errorf("Null: %#v", got)
	}
	if got := Bool(true).Arg(); got != true {
		t.Errorf("Bool: %#v", got)
	}
	if got := Int(5).Arg(); got != int64(5) {
		t.Errorf("Int: %#v", got)
	}
	if got := UUID(id).Arg(); got != id.String() {
		t.Errorf("UUID: %#v", got)
	}
}

func TestValueCoerce(t *testing.T) {
	t.Run("int", func(t *testing.T) {
		for _, v := range []Value{Int(4), Float(4), String(" 4 "), String("4.0")} {
			if n, err := v.AsInt(); err != nil || n != 4 {
				t.Errorf("%v.AsInt() = %d, %v", v, n, err)
			}
		}
		if n, err := Bool(true).AsInt(); err != nil || n != 1 {
			t.Errorf("Bool.AsInt() = %d, %v", n, err)
		}
		for _, v := range []Value{Float(4.5), String("four"), UUID(uuid.Nil)} {
			if _, err := v.AsInt(); !errors.Is(err, ErrCoerce) {
				t.Errorf("%v.AsInt() error = %v", v, err)
			}
		}
		if _, err := Null().AsInt(); !errors.Is(err, ErrNull) {
			t.Errorf("Null.AsInt() error = %v", err)
		}
	})
	t.Run("bool", func(t *testing.T) {
		for s, want := range map[string]bool{"1": true, "0": false, "TRUE": true, "f": false, "yes": true, "off": false} {
			if b, err := String(s).AsBool(); err != nil || b != want {
				t.Errorf("%q.AsBool() = %v, %v", s, b, err)
			}
		}
		if _, err := String("maybe").AsBool(); !errors.Is(err, ErrCoerce) {
			t.Errorf("error = %v", err)
		}
	})
	t.Run("time", func(t *testing.T) {
		want := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
		for _, s := range []string{"2024-03-01", "2024-03-01 00:00:00", "2024-03-01T00:00:00Z"} {
			if got, err := String(s).AsTime(); err != nil || !got.Equal(want) {
				t.Errorf("%q.AsTime() = %v, %v", s, got, err)
			}
		}
		if _, err := Int(3).AsTime(); !errors.Is(err, ErrCoerce) {
			t.Errorf("error = %v", err)
		}
	})
	t.Run("string", func(t *testing.T) {
		if s, err := Float(1.25).AsString(); err != nil || s != "1.25" {
			t.Errorf("got %q, %v", s, err)
		}
		if _, err := Null().AsString(); !errors.Is(err, ErrNull) {
			t.Errorf("error = %v", err)
		}
	})
}

func TestValueJSON(t *testing.T) {
	v := Values{
		"id":     Int(1),
		"name":   String("alice"),
		"score":  Float(2.5),
		"active": Bool(true),
		"gone":   Null(),
		"day":    Date(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)),
	}
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"active":true,"day":"2024-03-01","gone":null,"id":1,"name":"alice","score":2.5}`
	if string(b) != want {
		t.Errorf("got %s\nwant %s", b, want)
	}
	var got Values
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatal(err)
	}
	kinds := map[string]Kind{"active": KindBool, "day": KindString, "gone": KindNull, "id": KindInt, "name": KindString, "score": KindFloat}
	for c, k := range kinds {
		if got[c].Kind() != k {
			t.Errorf("%s: kind %s, want %s", c, got[c].Kind(), k)
		}
		if !got[c].Equal(v[c]) {
			t.Errorf("%s: %v != %v", c, got[c], v[c])
		}
	}
	if err := json.Unmarshal([]byte(`{"x":[1]}`), &got); err == nil {
		t.Error("expected error for array value")
	}
}
