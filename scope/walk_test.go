package scope

import (
	"context"
	"errors"
	"testing"
)

type buildLogKey struct{}

// logBuild appends the built scope's path to the collector carried by the
// walk context.
func logBuild(ctx context.Context, s *Scope) error {
	log, _ := ctx.Value(buildLogKey{}).(*[]string)
	*log = append(*log, s.Path())

	return nil
}

func buildWalkTree(t *testing.T, hookAll bool) *Scope {
	t.Helper()

	ss := NewSession()

	var opts []ScopeOption
	if hookAll {
		opts = append(opts, WithBuild(logBuild))
	}

	root := ss.New("root", opts...)

	err := ss.With(root, func(*Scope) error {
		_, err := ss.In("a", func(*Scope) error {
			ss.New("a1", WithBuild(logBuild))
			ss.New("a2", WithBuild(logBuild))

			return nil
		}, opts...)
		if err != nil {
			return err
		}

		ss.New("b", WithBuild(logBuild))

		return nil
	})
	if err != nil {
		t.Fatalf("build tree: %v", err)
	}

	return root
}

func TestBuildTree_ChildrenFirst(t *testing.T) {
	root := buildWalkTree(t, true)

	var log []string

	ctx := context.WithValue(context.Background(), buildLogKey{}, &log)
	if err := root.BuildTree(ctx); err != nil {
		t.Fatalf("build error: %v", err)
	}

	// Post-order: every subtree completes before its parent, siblings in
	// construction order.
	want := []string{
		"/root/a/a1",
		"/root/a/a2",
		"/root/a",
		"/root/b",
		"/root",
	}

	if len(log) != len(want) {
		t.Fatalf("build order mismatch:\nwant: %v\ngot:  %v", want, log)
	}

	for i := range want {
		if log[i] != want[i] {
			t.Errorf("build order mismatch at %d:\nwant: %v\ngot:  %v", i, want, log)
		}
	}
}

func TestBuildTree_Hookless(t *testing.T) {
	// Nodes without hooks are traversal-only: the walk still descends
	// through them.
	root := buildWalkTree(t, false)

	var log []string

	ctx := context.WithValue(context.Background(), buildLogKey{}, &log)
	if err := root.BuildTree(ctx); err != nil {
		t.Fatalf("build error: %v", err)
	}

	want := []string{"/root/a/a1", "/root/a/a2", "/root/b"}
	if len(log) != len(want) {
		t.Fatalf("build order mismatch:\nwant: %v\ngot:  %v", want, log)
	}
}

func TestBuildTree_ErrorAborts(t *testing.T) {
	ss := NewSession()
	boom := errors.New("boom")

	var built []string

	root := ss.New("root", WithBuild(func(_ context.Context, s *Scope) error {
		built = append(built, s.Path())

		return nil
	}))

	err := ss.With(root, func(*Scope) error {
		ss.New("ok", WithBuild(func(_ context.Context, s *Scope) error {
			built = append(built, s.Path())

			return nil
		}))
		ss.New("bad", WithBuild(func(context.Context, *Scope) error {
			return boom
		}))
		ss.New("after", WithBuild(func(_ context.Context, s *Scope) error {
			built = append(built, s.Path())

			return nil
		}))

		return nil
	})
	if err != nil {
		t.Fatalf("build tree: %v", err)
	}

	err = root.BuildTree(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected hook error, got %v", err)
	}

	// Only the sibling before the failure ran; the failure stopped the
	// walk before the later sibling and the parent.
	if len(built) != 1 || built[0] != "/root/ok" {
		t.Errorf("walk should abort at the first error, built %v", built)
	}
}

func TestBuildTree_OnBuild(t *testing.T) {
	ss := NewSession()
	root := ss.New("root")

	var ran bool

	root.OnBuild(func(context.Context, *Scope) error {
		ran = true

		return nil
	})

	if err := root.BuildTree(context.Background()); err != nil {
		t.Fatalf("build error: %v", err)
	}

	if !ran {
		t.Errorf("OnBuild hook did not run")
	}
}
