package scope

import (
	"context"
	"log/slog"
)

// BuildFunc is a node's build hook. The context belongs to the caller of
// [Scope.BuildTree] and passes through the walk untouched; hooks that need
// a shared collector stash it in the context.
type BuildFunc func(ctx context.Context, s *Scope) error

// OnBuild registers the hook BuildTree runs for this node, replacing any
// previous one. Nodes without a hook are traversal-only.
func (s *Scope) OnBuild(fn BuildFunc) {
	s.build = fn
}

// BuildTree walks the subtree rooted at s and runs each node's build hook,
// children before parents, siblings in construction order. Every hook in a
// node's subtree has completed before the node's own hook runs, so parents
// always assemble from finished children. The first error aborts the walk.
func (s *Scope) BuildTree(ctx context.Context) error {
	for _, child := range s.children {
		if err := child.BuildTree(ctx); err != nil {
			return err
		}
	}

	if s.build == nil {
		return nil
	}

	if err := s.build(ctx, s); err != nil {
		return WrapError(err).With(slog.String("scope", s.Path()))
	}

	return nil
}
