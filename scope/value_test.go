package scope

import (
	"errors"
	"testing"
)

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindNull, "Null"},
		{KindString, "String"},
		{KindInt, "Int"},
		{KindBool, "Bool"},
		{KindList, "List"},
		{KindMap, "Map"},
		{KindDeferred, "Deferred"},
		{KindHandler, "Handler"},
		{Kind(99), "Unknown"},
	}

	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", int(tt.kind), got, tt.want)
		}
	}
}

func TestValueClone_Isolation(t *testing.T) {
	orig := NewMap(map[string]Value{
		"tags": NewList(NewString("a"), NewString("b")),
		"name": NewString("demo"),
	})

	clone := orig.Clone()
	clone.Map["name"] = NewString("changed")
	clone.Map["tags"].List[0] = NewString("changed")

	if orig.Map["name"].Str != "demo" {
		t.Errorf("clone mutation reached original map entry: %v", orig.Map["name"])
	}

	if orig.Map["tags"].List[0].Str != "a" {
		t.Errorf("clone mutation reached original list entry: %v", orig.Map["tags"].List[0])
	}
}

func TestValueEqual(t *testing.T) {
	fn := func(*Scope, Vars, Namespace) (string, error) { return "", nil }

	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"null null", Value{}, Value{}, true},
		{"null string", Value{}, NewString(""), false},
		{"same string", NewString("x"), NewString("x"), true},
		{"diff string", NewString("x"), NewString("y"), false},
		{"same int", NewInt(3), NewInt(3), true},
		{"int bool", NewInt(1), NewBool(true), false},
		{
			"same list",
			NewList(NewInt(1), NewString("a")),
			NewList(NewInt(1), NewString("a")),
			true,
		},
		{
			"list order matters",
			NewList(NewInt(1), NewInt(2)),
			NewList(NewInt(2), NewInt(1)),
			false,
		},
		{
			"same map",
			NewMap(map[string]Value{"k": NewInt(1)}),
			NewMap(map[string]Value{"k": NewInt(1)}),
			true,
		},
		{
			"map value differs",
			NewMap(map[string]Value{"k": NewInt(1)}),
			NewMap(map[string]Value{"k": NewInt(2)}),
			false,
		},
		{"handler never equal", NewHandler(fn), NewHandler(fn), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.want {
				t.Errorf("Equal = %v, want %v", got, tt.want)
			}

			if got := tt.b.Equal(tt.a); got != tt.want {
				t.Errorf("Equal (reversed) = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValueEqual_Deferred(t *testing.T) {
	ss := NewSession()
	a := ss.New("a")
	b := ss.New("b")

	sameA := a.Render(NewString("x {y}"))
	againA := a.Render(NewString("x {y}"))
	otherTmpl := a.Render(NewString("z"))
	sameB := b.Render(NewString("x {y}"))

	if !sameA.Equal(againA) {
		t.Errorf("same template and origin should be equal")
	}

	if sameA.Equal(otherTmpl) {
		t.Errorf("different templates should not be equal")
	}

	if sameA.Equal(sameB) {
		t.Errorf("different origins should not be equal")
	}
}

func TestToNative(t *testing.T) {
	v := NewMap(map[string]Value{
		"name":    NewString("demo"),
		"count":   NewInt(3),
		"enabled": NewBool(true),
		"tags":    NewList(NewString("a"), NewInt(1)),
		"none":    {},
	})

	got, ok := v.ToNative().(map[string]any)
	if !ok {
		t.Fatalf("expected map[string]any, got %T", v.ToNative())
	}

	if got["name"] != "demo" || got["count"] != int64(3) || got["enabled"] != true {
		t.Errorf("scalar conversion mismatch: %v", got)
	}

	if got["none"] != nil {
		t.Errorf("null should convert to nil, got %v", got["none"])
	}

	list, ok := got["tags"].([]any)
	if !ok || len(list) != 2 || list[0] != "a" || list[1] != int64(1) {
		t.Errorf("list conversion mismatch: %v", got["tags"])
	}
}

func TestToNative_Deferred(t *testing.T) {
	ss := NewSession()
	s := ss.New("s")

	v := s.Render(NewString("port {port}"))
	if got := v.ToNative(); got != "port {port}" {
		t.Errorf("deferred should convert to its template, got %v", got)
	}
}

func TestFromNative(t *testing.T) {
	raw := map[string]any{
		"name":    "demo",
		"count":   42,
		"ratio":   float64(7), // integral floats are accepted
		"enabled": true,
		"tags":    []any{"a", "b"},
		"none":    nil,
	}

	v, err := FromNative(raw)
	if err != nil {
		t.Fatalf("convert error: %v", err)
	}

	if v.Kind != KindMap {
		t.Fatalf("expected map, got %v", v.Kind)
	}

	want := NewMap(map[string]Value{
		"name":    NewString("demo"),
		"count":   NewInt(42),
		"ratio":   NewInt(7),
		"enabled": NewBool(true),
		"tags":    NewList(NewString("a"), NewString("b")),
		"none":    {},
	})

	if !v.Equal(want) {
		t.Errorf("conversion mismatch:\nwant: %s\ngot:  %s", want.Format(), v.Format())
	}
}

func TestFromNative_Rejects(t *testing.T) {
	tests := []struct {
		name string
		raw  any
	}{
		{"fractional float", 1.5},
		{"uint64 overflow", uint64(1) << 63},
		{"unsupported type", struct{}{}},
		{"nested bad value", []any{1, 2.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := FromNative(tt.raw); !errors.Is(err, ErrTypeMismatch) {
				t.Errorf("expected ErrTypeMismatch, got %v", err)
			}
		})
	}
}

func TestValueFormat(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want string
	}{
		{"null", Value{}, "null"},
		{"string", NewString("a b"), `"a b"`},
		{"int", NewInt(-3), "-3"},
		{"bool", NewBool(true), "true"},
		{"list", NewList(NewInt(1), NewString("x")), `[1, "x"]`},
		{
			"map sorted",
			NewMap(map[string]Value{"b": NewInt(2), "a": NewInt(1)}),
			"{a: 1, b: 2}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.Format(); got != tt.want {
				t.Errorf("Format = %q, want %q", got, tt.want)
			}
		})
	}
}
