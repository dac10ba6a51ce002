package scope

import (
	"log/slog"
	"maps"
	"math"
	"strconv"
)

// Namespace maps placeholder names to their substitution strings.
// It is the flat view of string-valued properties a scope exposes for
// template expansion.
type Namespace map[string]string

// Vars carries externally supplied runtime overrides into deferred
// resolution. Entries take precedence over every namespace value gathered
// from the scope tree. It is nil during immediate interpolation.
type Vars map[string]string

// Handler injects computed entries into an interpolation namespace at
// resolution time.
//
// During immediate interpolation a handler-valued property is invoked with
// the querying scope, nil vars, and the scope's namespace; the returned
// string becomes the resolved value. During deferred resolution every
// handler registered under [HandlerChainProperty] is invoked with the
// template's origin scope, the caller's runtime vars, and the working
// namespace; the returned string is ignored and mutations to ns are kept.
// A non-nil error aborts resolution in both cases.
//
// Handlers must not mutate the scope tree itself, only ns.
type Handler func(s *Scope, vars Vars, ns Namespace) (string, error)

// Kind indicates the type of a property value.
type Kind int

const (
	// KindNull represents the absent value.
	KindNull Kind = iota

	// KindString represents a string scalar.
	KindString

	// KindInt represents an integer scalar.
	KindInt

	// KindBool represents a boolean scalar.
	KindBool

	// KindList represents an ordered sequence of values.
	KindList

	// KindMap represents a mapping from string keys to values.
	KindMap

	// KindDeferred represents a captured template awaiting deferred
	// resolution.
	KindDeferred

	// KindHandler represents an opaque namespace-mutation function.
	KindHandler
)

// String returns a string representation of the value kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "Null"
	case KindString:
		return "String"
	case KindInt:
		return "Int"
	case KindBool:
		return "Bool"
	case KindList:
		return "List"
	case KindMap:
		return "Map"
	case KindDeferred:
		return "Deferred"
	case KindHandler:
		return "Handler"
	default:
		return "Unknown"
	}
}

// Value represents any property value held by a scope.
// The zero Value is the null value.
type Value struct {
	Kind Kind
	// Exactly one of these is set based on Kind
	Str  string
	Int  int64
	Bool bool
	List []Value
	Map  map[string]Value
	Def  *Deferred
	Fn   Handler
}

// NewString creates a string value.
func NewString(s string) Value {
	return Value{Kind: KindString, Str: s}
}

// NewInt creates an integer value.
func NewInt(n int64) Value {
	return Value{Kind: KindInt, Int: n}
}

// NewBool creates a boolean value.
func NewBool(b bool) Value {
	return Value{Kind: KindBool, Bool: b}
}

// NewList creates a list value from the given elements.
func NewList(elems ...Value) Value {
	return Value{Kind: KindList, List: elems}
}

// NewMap creates a map value from the given entries.
func NewMap(entries map[string]Value) Value {
	if entries == nil {
		entries = map[string]Value{}
	}

	return Value{Kind: KindMap, Map: entries}
}

// NewHandler creates a handler value.
func NewHandler(fn Handler) Value {
	return Value{Kind: KindHandler, Fn: fn}
}

// IsNull reports whether v is the absent value.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// IsScalar reports whether v is a scalar (null, string, int, or bool).
func (v Value) IsScalar() bool {
	switch v.Kind {
	case KindNull, KindString, KindInt, KindBool:
		return true
	default:
		return false
	}
}

// Clone returns a deep copy of v.
//
// List and Map payloads are copied recursively so callers can never mutate
// stored scope state through a resolved value. Deferred and Handler payloads
// are immutable and shared.
func (v Value) Clone() Value {
	switch v.Kind {
	case KindList:
		list := make([]Value, len(v.List))
		for i, it := range v.List {
			list[i] = it.Clone()
		}

		return Value{Kind: KindList, List: list}

	case KindMap:
		dict := make(map[string]Value, len(v.Map))
		for key, it := range v.Map {
			dict[key] = it.Clone()
		}

		return Value{Kind: KindMap, Map: dict}

	default:
		return v
	}
}

// Equal reports whether v and o are structurally equal.
//
// Handler values are never equal, even to themselves, because function
// identity is opaque. Deferred values are equal iff they share both template
// and origin scope.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}

	switch v.Kind {
	case KindNull:
		return true

	case KindString:
		return v.Str == o.Str

	case KindInt:
		return v.Int == o.Int

	case KindBool:
		return v.Bool == o.Bool

	case KindList:
		if len(v.List) != len(o.List) {
			return false
		}

		for i := range v.List {
			if !v.List[i].Equal(o.List[i]) {
				return false
			}
		}

		return true

	case KindMap:
		return maps.EqualFunc(v.Map, o.Map, Value.Equal)

	case KindDeferred:
		return v.Def != nil && o.Def != nil &&
			v.Def.template == o.Def.template &&
			v.Def.origin == o.Def.origin

	default:
		return false
	}
}

// ToNative converts v to a plain Go value suitable for encoding and
// decoding: nil, string, int64, bool, []any, or map[string]any.
// Deferred values convert to their template string; handlers convert to nil.
func (v Value) ToNative() any {
	switch v.Kind {
	case KindString:
		return v.Str

	case KindInt:
		return v.Int

	case KindBool:
		return v.Bool

	case KindList:
		list := make([]any, len(v.List))
		for i, it := range v.List {
			list[i] = it.ToNative()
		}

		return list

	case KindMap:
		dict := make(map[string]any, len(v.Map))
		for key, it := range v.Map {
			dict[key] = it.ToNative()
		}

		return dict

	case KindDeferred:
		if v.Def == nil {
			return nil
		}

		return v.Def.template

	default:
		return nil
	}
}

// FromNative converts a plain Go value to a Value. It accepts the types
// produced by decoding YAML and JSON documents: nil, string, bool, all
// integer widths, float64 with an integral value, []any, and map[string]any.
func FromNative(raw any) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return Value{}, nil

	case string:
		return NewString(t), nil

	case bool:
		return NewBool(t), nil

	case int:
		return NewInt(int64(t)), nil

	case int8:
		return NewInt(int64(t)), nil

	case int16:
		return NewInt(int64(t)), nil

	case int32:
		return NewInt(int64(t)), nil

	case int64:
		return NewInt(t), nil

	case uint:
		return NewInt(int64(t)), nil

	case uint8:
		return NewInt(int64(t)), nil

	case uint16:
		return NewInt(int64(t)), nil

	case uint32:
		return NewInt(int64(t)), nil

	case uint64:
		if t > math.MaxInt64 {
			return Value{}, ErrTypeMismatch.
				With(slog.Uint64("value", t)).
				With(slog.String("reason", "integer overflow"))
		}

		return NewInt(int64(t)), nil

	case float64:
		if t != math.Trunc(t) || math.IsInf(t, 0) || math.IsNaN(t) {
			return Value{}, ErrTypeMismatch.
				With(slog.Float64("value", t)).
				With(slog.String("reason", "non-integral number"))
		}

		return NewInt(int64(t)), nil

	case []any:
		list := make([]Value, len(t))

		for i, it := range t {
			val, err := FromNative(it)
			if err != nil {
				return Value{}, err
			}

			list[i] = val
		}

		return NewList(list...), nil

	case map[string]any:
		dict := make(map[string]Value, len(t))

		for key, it := range t {
			val, err := FromNative(it)
			if err != nil {
				return Value{}, err
			}

			dict[key] = val
		}

		return NewMap(dict), nil

	default:
		return Value{}, ErrTypeMismatch.
			With(slog.String("type", typeName(raw)))
	}
}

// Format returns a compact single-line rendition of v for diagnostics and
// previews.
func (v Value) Format() string {
	switch v.Kind {
	case KindNull:
		return "null"

	case KindString:
		return strconv.Quote(v.Str)

	case KindInt:
		return strconv.FormatInt(v.Int, 10)

	case KindBool:
		return strconv.FormatBool(v.Bool)

	case KindList:
		out := "["

		for i, it := range v.List {
			if i > 0 {
				out += ", "
			}

			out += it.Format()
		}

		return out + "]"

	case KindMap:
		out := "{"

		for i, key := range sortedKeys(v.Map) {
			if i > 0 {
				out += ", "
			}

			out += key + ": " + v.Map[key].Format()
		}

		return out + "}"

	case KindDeferred:
		if v.Def == nil {
			return "deferred()"
		}

		return "deferred(" + strconv.Quote(v.Def.template) + ")"

	default:
		return "handler()"
	}
}
