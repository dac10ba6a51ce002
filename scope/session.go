package scope

import "log/slog"

// Session is a construction arena for one scope tree.
//
// It replaces the ambient "current scope" with an explicit object: the scope
// active when a node is constructed becomes that node's parent, and entering
// a scope is always paired with restoration of the previous one, on every
// exit path. A session is only meaningful while the tree is being declared;
// resolution never consults it.
//
// Sessions are not safe for concurrent use, but independent sessions may
// construct independent trees concurrently.
type Session struct {
	top  *Scope
	root *Scope
}

// NewSession creates an empty construction session.
func NewSession() *Session {
	return &Session{}
}

// Top returns the currently active scope, or nil outside any [Session.With].
func (ss *Session) Top() *Scope { return ss.top }

// Root returns the first root scope constructed in this session, or nil.
func (ss *Session) Root() *Scope { return ss.root }

// New constructs a scope as a child of the active scope. With no active
// scope the new scope is a root; the session remembers the first root for
// [Session.Root].
func (ss *Session) New(name string, opts ...ScopeOption) *Scope {
	s := newScope(name, ss.top, opts...)

	if ss.top == nil && ss.root == nil {
		ss.root = s
	}

	return s
}

// With makes s the active scope for the duration of fn, restoring the
// previously active scope when fn returns, fails, or panics.
//
// Fails with ErrIllegalReentry when s is already the active scope.
func (ss *Session) With(s *Scope, fn func(*Scope) error) error {
	if s == ss.top {
		return ErrIllegalReentry.With(slog.String("scope", s.Path()))
	}

	prev := ss.top
	ss.top = s

	defer func() { ss.top = prev }()

	return fn(s)
}

// In constructs a scope under the active scope and immediately enters it,
// running fn with the new scope active. It is the common declaration form:
//
//	_, err := ss.In("worker", func(s *scope.Scope) error {
//		s.Set("worker_name", scope.NewString("linux-{arch}"))
//		return nil
//	})
func (ss *Session) In(
	name string,
	fn func(*Scope) error,
	opts ...ScopeOption,
) (*Scope, error) {
	s := ss.New(name, opts...)

	return s, ss.With(s, fn)
}

// Set assigns a property on the active scope.
// Fails with ErrNoScope when the session has no active scope.
func (ss *Session) Set(name string, v Value) error {
	if ss.top == nil {
		return ErrNoScope.With(slog.String("property", name))
	}

	ss.top.Set(name, v)

	return nil
}

// SetChecked assigns a non-null property of the expected kind on the active
// scope. See [Scope.SetChecked].
func (ss *Session) SetChecked(name string, v Value, want Kind) error {
	if ss.top == nil {
		return ErrNoScope.With(slog.String("property", name))
	}

	return ss.top.SetChecked(name, v, want)
}

// Append extends a list property on the active scope.
// See [Scope.Append].
func (ss *Session) Append(name string, vs ...Value) error {
	if ss.top == nil {
		return ErrNoScope.With(slog.String("property", name))
	}

	return ss.top.Append(name, vs...)
}

// Update sets one entry of a map property on the active scope.
// See [Scope.Update].
func (ss *Session) Update(name, key string, v Value) error {
	if ss.top == nil {
		return ErrNoScope.With(slog.String("property", name))
	}

	return ss.top.Update(name, key, v)
}
