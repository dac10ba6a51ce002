package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/ardnew/strata/scope"
)

// Format selects an artifact encoding.
type Format int

const (
	FormatYAML Format = iota
	FormatJSON
)

// String returns the canonical name of the format.
func (f Format) String() string {
	switch f {
	case FormatYAML:
		return "yaml"
	case FormatJSON:
		return "json"
	default:
		return "Format(" + fmt.Sprint(int(f)) + ")"
	}
}

// ParseFormat converts a format name to a [Format].
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "yaml", "yml":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	default:
		return FormatYAML, ErrUnknownFormat.With(slog.String("format", name))
	}
}

// Artifact is the resolved counterpart of a [Manifest]: the same subtree
// shape, with every locally declared property replaced by its resolved
// value and the handler-chain property omitted.
type Artifact struct {
	Scope      string         `json:"scope"                yaml:"scope"`
	Private    bool           `json:"private,omitempty"    yaml:"private,omitempty"`
	Properties map[string]any `json:"properties,omitempty" yaml:"properties,omitempty"`
	Scopes     []*Artifact    `json:"scopes,omitempty"     yaml:"scopes,omitempty"`
}

// Resolve resolves the subtree rooted at s into an artifact.
//
// Each scope contributes its locally declared names, resolved through the
// full inheritance merge. With nil vars, values are interpolated; a
// placeholder missing from the static namespace falls back to one render
// pass with no overrides, so handler-backed defaults still apply. With
// vars, values are rendered and deferred templates resolve through the
// scope's handler chain with the given overrides.
func Resolve(s *scope.Scope, vars scope.Vars) (*Artifact, error) {
	a, err := ResolveLocal(s, vars)
	if err != nil {
		return nil, err
	}

	for _, child := range s.Children() {
		sub, err := Resolve(child, vars)
		if err != nil {
			return nil, err
		}

		a.Scopes = append(a.Scopes, sub)
	}

	return a, nil
}

// ResolveLocal resolves the locally declared properties of s into an
// artifact with no child scopes. It is the per-scope step of [Resolve],
// exposed for callers that walk the tree themselves.
func ResolveLocal(s *scope.Scope, vars scope.Vars) (*Artifact, error) {
	a := &Artifact{Scope: s.Name(), Private: s.IsPrivate()}

	for _, name := range s.LocalNames() {
		if name == scope.HandlerChainProperty {
			continue
		}

		val, skip, err := resolveProperty(s, name, vars)
		if err != nil {
			return nil, WrapError(err).With(
				slog.String("property", name),
				slog.String("scope", s.Path()),
			)
		}

		if skip {
			continue
		}

		if a.Properties == nil {
			a.Properties = make(map[string]any)
		}

		a.Properties[name] = val
	}

	return a, nil
}

// resolveProperty resolves one property to its native representation.
// skip is true for values with no data rendition, such as bare handlers.
func resolveProperty(
	s *scope.Scope,
	name string,
	vars scope.Vars,
) (val any, skip bool, err error) {
	if vars == nil {
		v, err := s.GetInterpolated(name, scope.Value{})

		// A placeholder absent from the static namespace may still be
		// satisfied by the scope's renderer handlers.
		if errors.Is(err, scope.ErrMissingKey) {
			return resolveRendered(s, name, scope.Vars{})
		}

		if err != nil {
			return nil, false, err
		}

		return v.ToNative(), false, nil
	}

	return resolveRendered(s, name, vars)
}

// resolveRendered resolves one property through the deferred-rendering
// pipeline with the given vars.
func resolveRendered(
	s *scope.Scope,
	name string,
	vars scope.Vars,
) (any, bool, error) {
	v, err := s.GetRendered(name, scope.Value{})
	if err != nil {
		return nil, false, err
	}

	return renderNative(v, vars)
}

// ResolveValue converts a resolved value to its native representation,
// rendering deferred templates with the given vars. skip is true for
// values with no data rendition, such as bare handlers.
func ResolveValue(v scope.Value, vars scope.Vars) (val any, skip bool, err error) {
	return renderNative(v, vars)
}

// renderNative converts a rendered value to its native representation,
// resolving deferred templates with the given vars.
func renderNative(v scope.Value, vars scope.Vars) (any, bool, error) {
	switch v.Kind {
	case scope.KindHandler:
		return nil, true, nil

	case scope.KindDeferred:
		out, err := v.Def.Resolve(vars)
		if err != nil {
			return nil, false, err
		}

		return out, false, nil

	case scope.KindList:
		items := make([]any, 0, len(v.List))

		for _, it := range v.List {
			native, skip, err := renderNative(it, vars)
			if err != nil {
				return nil, false, err
			}

			if skip {
				continue
			}

			items = append(items, native)
		}

		return items, false, nil

	case scope.KindMap:
		entries := make(map[string]any, len(v.Map))

		for key, it := range v.Map {
			native, skip, err := renderNative(it, vars)
			if err != nil {
				return nil, false, err
			}

			if skip {
				continue
			}

			entries[key] = native
		}

		return entries, false, nil

	default:
		return v.ToNative(), false, nil
	}
}

// Encode writes the artifact to w in the given format. A positive indent
// selects indented output; zero or less selects the encoder's compact
// form (flow style for YAML, single-line for JSON).
func (a *Artifact) Encode(
	ctx context.Context,
	w io.Writer,
	format Format,
	indent int,
) error {
	switch format {
	case FormatJSON:
		var (
			data []byte
			err  error
		)

		if indent > 0 {
			data, err = json.MarshalIndent(a, "", strings.Repeat(" ", indent))
		} else {
			data, err = json.Marshal(a)
		}

		if err != nil {
			return ErrEncodeArtifact.Wrap(err)
		}

		_, err = fmt.Fprintln(w, string(data))

		return err

	case FormatYAML:
		var opts []yaml.EncodeOption
		if indent > 0 {
			opts = append(opts, yaml.Indent(indent))
		} else {
			opts = append(opts, yaml.Flow(true))
		}

		data, err := yaml.MarshalContext(ctx, a, opts...)
		if err != nil {
			return ErrEncodeArtifact.Wrap(err)
		}

		_, err = fmt.Fprint(w, string(data))

		return err

	default:
		return ErrUnknownFormat.With(slog.String("format", format.String()))
	}
}
