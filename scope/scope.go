package scope

import (
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// prefixSep separates an extraction prefix from the remainder of a property
// name. A property belongs to prefix "sync" iff its name starts with
// "sync" + prefixSep.
const prefixSep = "_"

// Scope is a node of the property tree. Each scope holds its own property
// mapping and inherits the rest from its ancestors according to the merge
// rules of [Scope.Get].
//
// Scopes are created through a [Session], which links each new scope to the
// scope active at its construction. The parent link is fixed for the life of
// the node.
type Scope struct {
	name     string
	parent   *Scope
	children []*Scope
	props    map[string]Value
	build    BuildFunc
	private  bool
}

// ScopeOption configures a scope at construction.
type ScopeOption func(*Scope)

// WithPrivate marks the scope private: its properties feed only its direct
// parent's container merges and interpolation namespace, and are never
// visible further up the tree or to siblings.
func WithPrivate() ScopeOption {
	return func(s *Scope) { s.private = true }
}

// WithBuild registers the scope's build hook, invoked by [Scope.BuildTree]
// after all of the scope's descendants have built.
func WithBuild(fn BuildFunc) ScopeOption {
	return func(s *Scope) { s.build = fn }
}

func newScope(name string, parent *Scope, opts ...ScopeOption) *Scope {
	s := &Scope{
		name:   name,
		parent: parent,
		props:  map[string]Value{},
	}

	for _, opt := range opts {
		opt(s)
	}

	if parent != nil {
		parent.children = append(parent.children, s)
	}

	return s
}

// Name returns the scope's name, which may be empty.
func (s *Scope) Name() string { return s.name }

// Parent returns the scope's parent, or nil for a root.
func (s *Scope) Parent() *Scope { return s.parent }

// IsPrivate reports whether the scope was constructed with [WithPrivate].
func (s *Scope) IsPrivate() bool { return s.private }

// Children returns the scope's direct children in construction order.
// The returned slice is a copy.
func (s *Scope) Children() []*Scope {
	return slices.Clone(s.children)
}

// Root returns the root of the tree containing s.
func (s *Scope) Root() *Scope {
	cur := s
	for cur.parent != nil {
		cur = cur.parent
	}

	return cur
}

// Path returns the slash-separated route from the root to this scope,
// used to identify the scope in diagnostics. Unnamed scopes render as
// their bracketed child index; an unnamed root is "/".
func (s *Scope) Path() string {
	if s.parent == nil {
		return "/" + s.name
	}

	base := s.parent.Path()
	if base == "/" {
		return base + s.segment()
	}

	return base + "/" + s.segment()
}

func (s *Scope) segment() string {
	if s.name != "" {
		return s.name
	}

	for i, c := range s.parent.children {
		if c == s {
			return "[" + strconv.Itoa(i) + "]"
		}
	}

	return "[?]"
}

// Find returns the descendant at the slash-separated path relative to s.
// Segments name children; "." and empty segments are ignored, and ".."
// steps to the parent. An empty path returns s itself.
func (s *Scope) Find(path string) (*Scope, bool) {
	cur := s

	for seg := range strings.SplitSeq(path, "/") {
		switch seg {
		case "", ".":
			continue

		case "..":
			if cur.parent != nil {
				cur = cur.parent
			}

		default:
			next, ok := cur.child(seg)
			if !ok {
				return nil, false
			}

			cur = next
		}
	}

	return cur, true
}

func (s *Scope) child(name string) (*Scope, bool) {
	for _, c := range s.children {
		if c.name == name {
			return c, true
		}
	}

	return nil, false
}

// Ancestor returns the nearest ancestor of s satisfying match.
func (s *Scope) Ancestor(match func(*Scope) bool) (*Scope, bool) {
	for cur := s.parent; cur != nil; cur = cur.parent {
		if match(cur) {
			return cur, true
		}
	}

	return nil, false
}

// Set assigns a property on this scope, overwriting any existing value.
func (s *Scope) Set(name string, v Value) {
	s.props[name] = v
}

// SetChecked assigns a property on this scope unless v is null, and verifies
// its kind first. A null v is silently skipped so callers can forward
// optional values without testing them. When want is not KindNull, a v of
// any other kind fails with ErrTypeMismatch.
func (s *Scope) SetChecked(name string, v Value, want Kind) error {
	if v.IsNull() {
		return nil
	}

	if want != KindNull && v.Kind != want {
		return s.mismatch(name, want, v.Kind)
	}

	s.Set(name, v)

	return nil
}

// Append extends the local list property name with the given values,
// creating the list when absent. A local value of any other kind fails with
// ErrTypeMismatch.
func (s *Scope) Append(name string, vs ...Value) error {
	cur, ok := s.props[name]
	if !ok {
		cur = Value{Kind: KindList}
	}

	if cur.Kind != KindList {
		return s.mismatch(name, KindList, cur.Kind)
	}

	cur.List = append(cur.List, vs...)
	s.props[name] = cur

	return nil
}

// Update sets one entry of the local map property name, creating the map
// when absent. A local value of any other kind fails with ErrTypeMismatch.
func (s *Scope) Update(name, key string, v Value) error {
	cur, ok := s.props[name]
	if !ok {
		cur = NewMap(nil)
	}

	if cur.Kind != KindMap {
		return s.mismatch(name, KindMap, cur.Kind)
	}

	cur.Map[key] = v
	s.props[name] = cur

	return nil
}

// Get resolves a property against this scope and its related scopes.
//
// A scalar, deferred, or handler value on the closest scope wins outright.
// List values concatenate local entries first, then each private child's
// list in construction order, then the inherited list. Map values overlay
// the inherited map with each private child's map, then with local entries,
// so closer keys win. When nothing resolves, def is returned.
//
// Ancestors contribute their own properties only: a scope's private
// children surface exclusively through that scope's own resolution, never
// through a descendant's or sibling's. Returned lists and maps are
// independent copies of the stored state.
//
// Merging a container with a related value of any other kind fails with
// ErrTypeMismatch.
func (s *Scope) Get(name string, def Value) (Value, error) {
	v, err := s.resolve(name, true)
	if err != nil {
		return Value{}, err
	}

	if v.IsNull() {
		return def, nil
	}

	return v, nil
}

// Has reports whether name resolves to a non-null value on s.
func (s *Scope) Has(name string) bool {
	v, err := s.resolve(name, true)

	return err == nil && !v.IsNull()
}

func (s *Scope) resolve(name string, withPrivate bool) (Value, error) {
	local, hasLocal := s.props[name]

	// A scalar-like local value wins immediately: closest node, no merge.
	// This also lets a scalar override an inherited container without error.
	if hasLocal && local.Kind != KindList && local.Kind != KindMap {
		return local.Clone(), nil
	}

	var privs []Value

	if withPrivate {
		for _, child := range s.children {
			if !child.private {
				continue
			}

			cv, ok := child.props[name]
			if !ok || (cv.Kind != KindList && cv.Kind != KindMap) {
				// Private properties surface only through container merges.
				continue
			}

			privs = append(privs, cv)
		}
	}

	var parentVal Value

	if s.parent != nil {
		pv, err := s.parent.resolve(name, false)
		if err != nil {
			return Value{}, err
		}

		parentVal = pv
	}

	switch {
	case hasLocal && local.Kind == KindList:
		return s.mergeList(name, local, privs, parentVal)

	case hasLocal && local.Kind == KindMap:
		return s.mergeMap(name, local, privs, parentVal)

	case len(privs) > 0:
		// No local value: the private children dictate the container kind.
		if privs[0].Kind == KindList {
			return s.mergeList(name, Value{Kind: KindList}, privs, parentVal)
		}

		return s.mergeMap(name, NewMap(nil), privs, parentVal)

	default:
		return parentVal, nil
	}
}

// mergeList concatenates local entries, private children's entries in
// construction order, and the inherited list, in that priority order.
func (s *Scope) mergeList(
	name string,
	local Value,
	privs []Value,
	parentVal Value,
) (Value, error) {
	out := make([]Value, 0, len(local.List))

	for _, it := range local.List {
		out = append(out, it.Clone())
	}

	for _, pv := range privs {
		if pv.Kind != KindList {
			return Value{}, s.mismatch(name, KindList, pv.Kind)
		}

		for _, it := range pv.List {
			out = append(out, it.Clone())
		}
	}

	if !parentVal.IsNull() {
		if parentVal.Kind != KindList {
			return Value{}, s.mismatch(name, KindList, parentVal.Kind)
		}

		// Values returned by resolve are already independent copies.
		out = append(out, parentVal.List...)
	}

	return Value{Kind: KindList, List: out}, nil
}

// mergeMap overlays the inherited map with private children's maps in
// construction order and finally with local entries, so closer keys win.
func (s *Scope) mergeMap(
	name string,
	local Value,
	privs []Value,
	parentVal Value,
) (Value, error) {
	out := make(map[string]Value, len(local.Map))

	if !parentVal.IsNull() {
		if parentVal.Kind != KindMap {
			return Value{}, s.mismatch(name, KindMap, parentVal.Kind)
		}

		maps.Copy(out, parentVal.Map)
	}

	for _, pv := range privs {
		if pv.Kind != KindMap {
			return Value{}, s.mismatch(name, KindMap, pv.Kind)
		}

		for key, it := range pv.Map {
			out[key] = it.Clone()
		}
	}

	for key, it := range local.Map {
		out[key] = it.Clone()
	}

	return Value{Kind: KindMap, Map: out}, nil
}

// Names returns every property name visible from s, sorted: the ancestors'
// own properties, the private children's properties, and the scope's own.
func (s *Scope) Names() []string {
	seen := map[string]struct{}{}
	s.collectNames(seen, "", true)

	return slices.Sorted(maps.Keys(seen))
}

// NamesWithPrefix returns the visible property names belonging to prefix,
// sorted. A name belongs to prefix iff it starts with prefix followed by
// the underscore separator. The traversal matches [Scope.Get]: ancestors'
// own properties plus this scope's private children and its own.
func (s *Scope) NamesWithPrefix(prefix string) []string {
	seen := map[string]struct{}{}
	s.collectNames(seen, prefix+prefixSep, true)

	return slices.Sorted(maps.Keys(seen))
}

// LocalNames returns the names declared directly on this scope, sorted.
// Unlike [Scope.Names], it ignores ancestors and private children.
func (s *Scope) LocalNames() []string {
	return slices.Sorted(maps.Keys(s.props))
}

func (s *Scope) collectNames(
	seen map[string]struct{},
	prefix string,
	withPrivate bool,
) {
	if s.parent != nil {
		s.parent.collectNames(seen, prefix, false)
	}

	if withPrivate {
		for _, child := range s.children {
			if child.private {
				child.mergeableNames(seen, prefix)
			}
		}
	}

	s.ownNames(seen, prefix)
}

func (s *Scope) ownNames(seen map[string]struct{}, prefix string) {
	for key := range s.props {
		if strings.HasPrefix(key, prefix) {
			seen[key] = struct{}{}
		}
	}
}

// mergeableNames adds only the names a private child can contribute to its
// parent's resolution, which are its container-valued properties.
func (s *Scope) mergeableNames(seen map[string]struct{}, prefix string) {
	for key, val := range s.props {
		if val.Kind != KindList && val.Kind != KindMap {
			continue
		}

		if strings.HasPrefix(key, prefix) {
			seen[key] = struct{}{}
		}
	}
}

// Namespace gathers the string-valued properties visible from s into a flat
// substitution namespace. Ancestors contribute first (lowest priority),
// then this scope's private children, then the scope's own strings, so the
// closest definition of a name wins.
func (s *Scope) Namespace() Namespace {
	ns := Namespace{}
	s.fillNamespace(ns, true)

	return ns
}

func (s *Scope) fillNamespace(ns Namespace, withPrivate bool) {
	if s.parent != nil {
		s.parent.fillNamespace(ns, false)
	}

	if withPrivate {
		for _, child := range s.children {
			if child.private {
				child.ownStrings(ns)
			}
		}
	}

	s.ownStrings(ns)
}

func (s *Scope) ownStrings(ns Namespace) {
	for key, val := range s.props {
		if val.Kind == KindString {
			ns[key] = val.Str
		}
	}
}

func (s *Scope) mismatch(name string, want, got Kind) *Error {
	return ErrTypeMismatch.With(
		slog.String("property", name),
		slog.String("want", want.String()),
		slog.String("got", got.String()),
		slog.String("scope", s.Path()),
	)
}
