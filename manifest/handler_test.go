package manifest

import (
	"errors"
	"testing"

	"github.com/ardnew/strata/scope"
)

func handlerScope(t *testing.T) *scope.Scope {
	t.Helper()

	ss := scope.NewSession()

	s, err := ss.In("test", func(*scope.Scope) error { return nil })
	if err != nil {
		t.Fatalf("session error: %v", err)
	}

	return s
}

func TestCompileHandler_StringResult(t *testing.T) {
	fn, err := compileHandler(Handler{Name: "version", Expr: `"v-" + ns.channel`})
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}

	s := handlerScope(t)
	ns := scope.Namespace{"channel": "beta"}

	out, err := fn(s, nil, ns)
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}

	if out != "v-beta" {
		t.Errorf("expected v-beta, got %q", out)
	}
}

func TestCompileHandler_MapResultMergesNamespace(t *testing.T) {
	expr := `{"num": 7, "flag": true, "raw": "x", "pi": 3.5, "nothing": nil}`

	fn, err := compileHandler(Handler{Name: "mix", Expr: expr})
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}

	s := handlerScope(t)
	ns := scope.Namespace{"keep": "me"}

	out, err := fn(s, nil, ns)
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}

	if out != "" {
		t.Errorf("expected empty result for map programs, got %q", out)
	}

	want := scope.Namespace{
		"keep":    "me",
		"num":     "7",
		"flag":    "true",
		"raw":     "x",
		"pi":      "3.5",
		"nothing": "",
	}

	if len(ns) != len(want) {
		t.Fatalf("expected namespace %v, got %v", want, ns)
	}

	for key, val := range want {
		if ns[key] != val {
			t.Errorf("ns[%q]: expected %q, got %q", key, val, ns[key])
		}
	}
}

func TestCompileHandler_VarsDefaulting(t *testing.T) {
	fn, err := compileHandler(Handler{Name: "tag", Expr: `vars.tag ?? "none"`})
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}

	s := handlerScope(t)

	out, err := fn(s, nil, scope.Namespace{})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}

	if out != "none" {
		t.Errorf("expected none without vars, got %q", out)
	}

	out, err = fn(s, scope.Vars{"tag": "v1"}, scope.Namespace{})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}

	if out != "v1" {
		t.Errorf("expected v1 with vars, got %q", out)
	}
}

func TestCompileHandler_NameBinding(t *testing.T) {
	fn, err := compileHandler(Handler{Name: "who-am-i", Expr: `name`})
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}

	out, err := fn(handlerScope(t), nil, scope.Namespace{})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}

	if out != "who-am-i" {
		t.Errorf("expected handler name, got %q", out)
	}
}

func TestCompileHandler_Errors(t *testing.T) {
	t.Run("compile failure", func(t *testing.T) {
		_, err := compileHandler(Handler{Name: "broken", Expr: `1 +`})
		if !errors.Is(err, ErrCompileHandler) {
			t.Errorf("expected ErrCompileHandler, got %v", err)
		}
	})

	t.Run("runtime failure", func(t *testing.T) {
		fn, err := compileHandler(Handler{Name: "boom", Expr: `vars.missing + 1`})
		if err != nil {
			t.Fatalf("compile error: %v", err)
		}

		_, err = fn(handlerScope(t), nil, scope.Namespace{})
		if !errors.Is(err, ErrRunHandler) {
			t.Errorf("expected ErrRunHandler, got %v", err)
		}
	})

	t.Run("unsupported result type", func(t *testing.T) {
		fn, err := compileHandler(Handler{Name: "list", Expr: `[1, 2]`})
		if err != nil {
			t.Fatalf("compile error: %v", err)
		}

		_, err = fn(handlerScope(t), nil, scope.Namespace{})
		if !errors.Is(err, scope.ErrTypeMismatch) {
			t.Errorf("expected ErrTypeMismatch, got %v", err)
		}
	})
}
