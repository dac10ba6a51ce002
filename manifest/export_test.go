package manifest

import (
	"strings"
	"testing"

	"github.com/ardnew/strata/scope"
)

const exportDocument = `
scope: root
properties:
  registry: example.com
  image: "{registry}/app"
  port: 8080
  debug: true
  log-level: info
  idle: null
  tags: [lint, test]
  limits:
    cpu: 2
    mem: 4
handlers:
  - name: noop
    expr: '""'
`

func exportLines(t *testing.T, s *scope.Scope, opts ...ExportOption) []string {
	t.Helper()

	var b strings.Builder
	if err := ExportEnv(&b, s, opts...); err != nil {
		t.Fatalf("export error: %v", err)
	}

	out := strings.TrimSpace(b.String())
	if out == "" {
		return nil
	}

	return strings.Split(out, "\n")
}

func TestExportEnv(t *testing.T) {
	m, err := Load(strings.NewReader(exportDocument))
	if err != nil {
		t.Fatalf("load error: %v", err)
	}

	root, err := m.Build(scope.NewSession())
	if err != nil {
		t.Fatalf("build error: %v", err)
	}

	lines := exportLines(t, root, WithDelim(","))

	want := []string{
		"DEBUG=true",
		"IMAGE=example.com/app",
		"LIMITS_CPU=2",
		"LIMITS_MEM=4",
		"LOG_LEVEL=info",
		"PORT=8080",
		"REGISTRY=example.com",
		"TAGS=lint,test",
	}

	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %d:\n%s", len(want), len(lines), strings.Join(lines, "\n"))
	}

	for i, line := range want {
		if lines[i] != line {
			t.Errorf("line %d: expected %q, got %q", i, line, lines[i])
		}
	}
}

func TestExportEnv_Inherited(t *testing.T) {
	doc := "scope: root\nproperties:\n  channel: alpha\nscopes:\n  - scope: app\n    properties:\n      channel: beta\n      arch: amd64\n"

	m, err := Load(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("load error: %v", err)
	}

	root, err := m.Build(scope.NewSession())
	if err != nil {
		t.Fatalf("build error: %v", err)
	}

	app, _ := root.Find("app")

	lines := exportLines(t, app)

	want := []string{"ARCH=amd64", "CHANNEL=beta"}
	if len(lines) != len(want) {
		t.Fatalf("expected %v, got %v", want, lines)
	}

	for i, line := range want {
		if lines[i] != line {
			t.Errorf("line %d: expected %q, got %q", i, line, lines[i])
		}
	}
}

func TestExportEnv_HandlerFallback(t *testing.T) {
	doc := `
scope: root
properties:
  release: "r-{build_id}"
handlers:
  - name: build-id
    expr: '{"build_id": vars.build_id ?? "dev"}'
`

	m, err := Load(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("load error: %v", err)
	}

	root, err := m.Build(scope.NewSession())
	if err != nil {
		t.Fatalf("build error: %v", err)
	}

	lines := exportLines(t, root)

	if len(lines) != 1 || lines[0] != "RELEASE=r-dev" {
		t.Errorf("expected [RELEASE=r-dev], got %v", lines)
	}
}

func TestExportEnv_WithPrefix(t *testing.T) {
	doc := "scope: root\nproperties:\n  channel: alpha\n"

	m, err := Load(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("load error: %v", err)
	}

	root, err := m.Build(scope.NewSession())
	if err != nil {
		t.Fatalf("build error: %v", err)
	}

	lines := exportLines(t, root, WithPrefix("app"))

	if len(lines) != 1 || lines[0] != "APP_CHANNEL=alpha" {
		t.Errorf("expected [APP_CHANNEL=alpha], got %v", lines)
	}
}
