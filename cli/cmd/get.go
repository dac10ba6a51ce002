package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/ardnew/strata/manifest"
	"github.com/ardnew/strata/scope"
)

// Get resolves a single property at a scope and prints its value.
type Get struct {
	Name string `arg:"" help:"Property name to resolve"`

	Scope string   `help:"Scope path to resolve at"           placeholder:"PATH"`
	Mode  string   `help:"Resolution mode"                    default:"interp"   enum:"raw,interp,render"`
	Vars  []string `help:"Render-time variable (repeatable)"  name:"var"         placeholder:"KEY=VALUE"`
}

// Run executes the get command.
func (g *Get) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	_, root, _, err := buildTree(ctx)
	if err != nil {
		return err
	}

	s, err := findScope(root, g.Scope)
	if err != nil {
		return err
	}

	vars, err := parseVars(g.Vars)
	if err != nil {
		return err
	}

	native, err := resolveNative(s, g.Name, g.Mode, vars)
	if err != nil {
		return err
	}

	return printNative(ctx, os.Stdout, native)
}

// resolveNative resolves one property in the given mode and converts it
// to its native representation. In render mode, deferred values resolve
// through the scope's handler chain with the given vars. In interp mode,
// a placeholder missing from the static namespace falls back to a render
// pass, so handler-backed defaults still apply.
func resolveNative(
	s *scope.Scope,
	name, mode string,
	vars scope.Vars,
) (any, error) {
	switch mode {
	case "raw":
		v, err := s.Get(name, scope.Value{})
		if err != nil {
			return nil, err
		}

		return v.ToNative(), nil

	case "render":
		return renderProperty(s, name, vars)

	default:
		v, err := s.GetInterpolated(name, scope.Value{})
		if errors.Is(err, scope.ErrMissingKey) {
			return renderProperty(s, name, vars)
		}

		if err != nil {
			return nil, err
		}

		return v.ToNative(), nil
	}
}

// renderProperty resolves one property through the deferred-rendering
// pipeline, including deferred values nested inside containers.
func renderProperty(s *scope.Scope, name string, vars scope.Vars) (any, error) {
	v, err := s.GetRendered(name, scope.Value{})
	if err != nil {
		return nil, err
	}

	native, skip, err := manifest.ResolveValue(v, vars)
	if err != nil {
		return nil, err
	}

	if skip {
		return nil, nil
	}

	return native, nil
}

// printNative writes a resolved value to w, one line for scalars and
// flow-style YAML for containers.
func printNative(ctx context.Context, w io.Writer, native any) error {
	switch v := native.(type) {
	case nil:
		_, err := fmt.Fprintln(w, "null")

		return err

	case string:
		_, err := fmt.Fprintln(w, v)

		return err

	case int64, bool:
		_, err := fmt.Fprintln(w, v)

		return err

	default:
		data, err := yaml.MarshalContext(ctx, native, yaml.Flow(true))
		if err != nil {
			return ErrYAMLMarshal.Wrap(err)
		}

		_, err = fmt.Fprint(w, string(data))

		return err
	}
}
