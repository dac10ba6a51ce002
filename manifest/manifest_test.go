package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ardnew/strata/scope"
)

const demoDocument = `
scope: root
properties:
  project_name: demo
  registry: example.com
  image: "{registry}/app"
  tags: [base]
  limits:
    cpu: 2
    mem: 4
handlers:
  - name: build-id
    expr: '{"build_id": vars.build_id ?? "no_build"}'
scopes:
  - scope: app
    properties:
      tags: [app]
      release: "r-{build_id}"
  - scope: ci
    private: true
    properties:
      tags: [ci-extra]
`

func TestLoad_Document(t *testing.T) {
	m, err := Load(strings.NewReader(demoDocument))
	if err != nil {
		t.Fatalf("load error: %v", err)
	}

	if m.Scope != "root" {
		t.Errorf("expected scope root, got %q", m.Scope)
	}

	if got := m.Properties["project_name"]; got != "demo" {
		t.Errorf("expected project_name=demo, got %v", got)
	}

	if _, ok := m.Properties["tags"].([]any); !ok {
		t.Errorf("expected tags to decode as a sequence, got %T", m.Properties["tags"])
	}

	if _, ok := m.Properties["limits"].(map[string]any); !ok {
		t.Errorf("expected limits to decode as a mapping, got %T", m.Properties["limits"])
	}

	if len(m.Handlers) != 1 || m.Handlers[0].Name != "build-id" {
		t.Errorf("expected one handler named build-id, got %+v", m.Handlers)
	}

	if len(m.Scopes) != 2 {
		t.Fatalf("expected 2 child scopes, got %d", len(m.Scopes))
	}

	if m.Scopes[0].Scope != "app" || m.Scopes[0].Private {
		t.Errorf("unexpected first child: %+v", m.Scopes[0])
	}

	if m.Scopes[1].Scope != "ci" || !m.Scopes[1].Private {
		t.Errorf("expected private child ci, got %+v", m.Scopes[1])
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want error
	}{
		{
			name: "unknown field",
			doc:  "scope: x\nbogus: 1\n",
			want: ErrLoadManifest,
		},
		{
			name: "duplicate key",
			doc:  "scope: a\nscope: b\n",
			want: ErrLoadManifest,
		},
		{
			name: "not yaml",
			doc:  ": : :\n",
			want: ErrLoadManifest,
		},
		{
			name: "empty scope name",
			doc:  "properties:\n  key: value\n",
			want: ErrEmptyScopeName,
		},
		{
			name: "nested empty scope name",
			doc:  "scope: root\nscopes:\n  - properties:\n      key: value\n",
			want: ErrEmptyScopeName,
		},
		{
			name: "empty handler expression",
			doc:  "scope: root\nhandlers:\n  - name: noop\n",
			want: ErrEmptyHandler,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.doc))
			if err == nil {
				t.Fatal("expected error, got nil")
			}

			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.yaml")
	if err := os.WriteFile(path, []byte(demoDocument), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	m, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}

	if m.Scope != "root" {
		t.Errorf("expected scope root, got %q", m.Scope)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nosuch.yaml"))
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	if !errors.Is(err, ErrLoadManifest) {
		t.Errorf("expected ErrLoadManifest, got %v", err)
	}
}

func TestManifest_Build(t *testing.T) {
	m, err := Load(strings.NewReader(demoDocument))
	if err != nil {
		t.Fatalf("load error: %v", err)
	}

	ss := scope.NewSession()

	root, err := m.Build(ss)
	if err != nil {
		t.Fatalf("build error: %v", err)
	}

	if ss.Root() != root {
		t.Error("expected session to remember the manifest root")
	}

	if ss.Top() != nil {
		t.Error("expected no active scope after build")
	}

	app, ok := root.Find("app")
	if !ok {
		t.Fatal("expected child scope app")
	}

	ci, ok := root.Find("ci")
	if !ok || !ci.IsPrivate() {
		t.Fatal("expected private child scope ci")
	}

	// Inherited scalar through the merge.
	val, err := app.Get("project_name", scope.Value{})
	if err != nil {
		t.Fatalf("get error: %v", err)
	}

	if val.Str != "demo" {
		t.Errorf("expected project_name=demo at app, got %v", val.Format())
	}

	// List merge: local, then private sibling has no effect below root.
	val, err = app.Get("tags", scope.Value{})
	if err != nil {
		t.Fatalf("get error: %v", err)
	}

	want := []string{"app", "base"}
	if len(val.List) != len(want) {
		t.Fatalf("expected tags %v, got %v", want, val.Format())
	}

	for i, item := range val.List {
		if item.Str != want[i] {
			t.Errorf("tags[%d]: expected %q, got %q", i, want[i], item.Str)
		}
	}

	// Private child lists merge at the root.
	val, err = root.Get("tags", scope.Value{})
	if err != nil {
		t.Fatalf("get error: %v", err)
	}

	want = []string{"base", "ci-extra"}
	if len(val.List) != len(want) {
		t.Fatalf("expected tags %v at root, got %v", want, val.Format())
	}

	// Interpolation across the loaded tree.
	val, err = app.GetInterpolated("image", scope.Value{})
	if err != nil {
		t.Fatalf("interpolate error: %v", err)
	}

	if val.Str != "example.com/app" {
		t.Errorf("expected image=example.com/app, got %v", val.Format())
	}
}

func TestManifest_Build_NullProperty(t *testing.T) {
	doc := "scope: root\nproperties:\n  channel: alpha\nscopes:\n  - scope: app\n    properties:\n      channel: null\n"

	m, err := Load(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("load error: %v", err)
	}

	root, err := m.Build(scope.NewSession())
	if err != nil {
		t.Fatalf("build error: %v", err)
	}

	app, _ := root.Find("app")

	// The explicit null shadows the inherited scalar.
	val, err := app.Get("channel", scope.NewString("fallback"))
	if err != nil {
		t.Fatalf("get error: %v", err)
	}

	if !val.IsNull() {
		t.Errorf("expected explicit null to shadow ancestor, got %v", val.Format())
	}
}

func TestManifest_Build_HandlerChain(t *testing.T) {
	m, err := Load(strings.NewReader(demoDocument))
	if err != nil {
		t.Fatalf("load error: %v", err)
	}

	root, err := m.Build(scope.NewSession())
	if err != nil {
		t.Fatalf("build error: %v", err)
	}

	app, _ := root.Find("app")

	val, err := app.GetRendered("release", scope.Value{})
	if err != nil {
		t.Fatalf("render error: %v", err)
	}

	if val.Kind != scope.KindDeferred {
		t.Fatalf("expected deferred value, got %v", val.Kind)
	}

	// Without overrides the handler supplies the default.
	out, err := val.Def.Resolve(nil)
	if err != nil {
		t.Fatalf("resolve error: %v", err)
	}

	if out != "r-no_build" {
		t.Errorf("expected r-no_build, got %q", out)
	}

	// Caller vars reach the handler program and the namespace.
	out, err = val.Def.Resolve(scope.Vars{"build_id": "42"})
	if err != nil {
		t.Fatalf("resolve error: %v", err)
	}

	if out != "r-42" {
		t.Errorf("expected r-42, got %q", out)
	}
}

func TestManifest_Build_UnderActiveScope(t *testing.T) {
	doc := "scope: leaf\nproperties:\n  kind: attached\n"

	m, err := Load(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("load error: %v", err)
	}

	ss := scope.NewSession()

	var leaf *scope.Scope

	_, err = ss.In("root", func(*scope.Scope) error {
		leaf, err = m.Build(ss)

		return err
	})
	if err != nil {
		t.Fatalf("build error: %v", err)
	}

	if leaf.Parent() == nil || leaf.Parent().Name() != "root" {
		t.Error("expected manifest to attach under the active scope")
	}
}

func TestManifest_Build_BadHandlerSource(t *testing.T) {
	doc := "scope: root\nhandlers:\n  - name: broken\n    expr: '1 +'\n"

	m, err := Load(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("load error: %v", err)
	}

	_, err = m.Build(scope.NewSession())
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	if !errors.Is(err, ErrCompileHandler) {
		t.Errorf("expected ErrCompileHandler, got %v", err)
	}
}

func TestBuildAll(t *testing.T) {
	first, err := Load(strings.NewReader("scope: base\nproperties:\n  layer: one\n"))
	if err != nil {
		t.Fatalf("load error: %v", err)
	}

	second, err := Load(strings.NewReader("scope: site\nproperties:\n  layer: two\n"))
	if err != nil {
		t.Fatalf("load error: %v", err)
	}

	t.Run("single becomes root", func(t *testing.T) {
		root, err := BuildAll(scope.NewSession(), first)
		if err != nil {
			t.Fatalf("build error: %v", err)
		}

		if root.Name() != "base" || root.Parent() != nil {
			t.Errorf("expected base as root, got %q", root.Path())
		}
	})

	t.Run("several become siblings", func(t *testing.T) {
		root, err := BuildAll(scope.NewSession(), first, second)
		if err != nil {
			t.Fatalf("build error: %v", err)
		}

		if root.Name() != "" {
			t.Errorf("expected synthetic unnamed root, got %q", root.Name())
		}

		kids := root.Children()
		if len(kids) != 2 || kids[0].Name() != "base" || kids[1].Name() != "site" {
			t.Fatalf("expected children [base site], got %v", kids)
		}

		// Siblings do not shadow one another.
		val, err := kids[0].Get("layer", scope.Value{})
		if err != nil {
			t.Fatalf("get error: %v", err)
		}

		if val.Str != "one" {
			t.Errorf("expected layer=one at base, got %v", val.Format())
		}
	})

	t.Run("none is an error", func(t *testing.T) {
		_, err := BuildAll(scope.NewSession())
		if !errors.Is(err, ErrNoManifest) {
			t.Errorf("expected ErrNoManifest, got %v", err)
		}
	})
}
