// Package scope implements a hierarchical property store with typed merge
// semantics, deterministic string interpolation, and deferred rendering.
//
// Properties live on nodes of a scope tree. A property resolved at a node
// sees the node's own definitions first, then its ancestors', with kind
// deciding how generations combine: scalars shadow, lists concatenate, and
// maps overlay.
//
// # Resolution
//
// [Scope.Get] walks from the queried node toward the root:
//
//   - A local scalar wins outright. No ancestor is consulted, even one
//     holding a list or map under the same name.
//   - Lists concatenate local entries before inherited ones, so a node
//     prepends to what it inherits.
//   - Maps overlay inherited entries with local ones, so a node overrides
//     individual keys without redefining the rest.
//   - Mixing a list with a map (or either with a non-null scalar) across
//     generations fails with [ErrTypeMismatch].
//
// Returned lists and maps are deep copies. Mutating a result never alters
// the tree.
//
// # Private scopes
//
// A child built with [WithPrivate] contributes its list- and map-typed
// properties to its parent's resolution as if declared on the parent, while
// remaining invisible to its own siblings and to the parent's ancestors.
// Private nodes let a subtree feed aggregate properties upward without
// leaking them sideways.
//
// # Construction
//
// Trees are built through a [Session], which tracks the scope under
// construction:
//
//	ss := scope.NewSession()
//	root := ss.New("root")
//	err := ss.With(root, func(s *scope.Scope) error {
//		s.Set("project_name", scope.NewString("demo"))
//		_, err := ss.In("ci", func(s *scope.Scope) error {
//			return s.Append("tags", scope.NewString("ci"))
//		}, scope.WithPrivate())
//		return err
//	})
//
// A Session is single-threaded. Concurrent construction takes one Session
// per goroutine; finished trees are read-only and safe to share.
//
// # Interpolation and rendering
//
// String values may reference other properties with "{name}" placeholders.
// [Scope.Interpolate] expands them immediately against the namespace of
// string properties visible from the scope; an unknown name fails with
// [ErrMissingKey] rather than defaulting.
//
// [Scope.Render] instead captures the template and its scope as a
// [Deferred] value. [Deferred.Resolve] expands it later, on demand: it
// rebuilds the origin's namespace, runs the handler chain registered under
// [HandlerChainProperty] (each handler may inject or rewrite entries), and
// overlays caller-supplied [Vars] last. Resolution repeats all steps on
// every call, so results track the tree's current state.
//
// # Extraction
//
// [Scope.Extract] collects the properties sharing a name prefix into a
// [Bundle] keyed by the stripped names, the bridge between tree-shaped
// configuration and flat consumer structs. Bundles decode into tagged
// structs, overlay with [Bundle.Merge], and enforce presence with
// [Bundle.Require].
//
// # Building
//
// [Scope.BuildTree] runs per-node hooks over a finished tree, children
// before parents, so each hook observes its descendants' results.
//
// All failures surface immediately as [Error] values carrying the property
// name and scope path as structured attributes; sentinel classification
// works through [errors.Is].
package scope
