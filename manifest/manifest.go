package manifest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"

	"github.com/goccy/go-yaml"

	"github.com/ardnew/strata/scope"
)

// Handler declares one deferred-rendering program in a manifest. Name is
// exposed to the program as the variable "name"; Expr is an expr-lang
// expression evaluated against the render-time namespace.
type Handler struct {
	Name string `yaml:"name"`
	Expr string `yaml:"expr"`
}

// Manifest describes one scope subtree in declarative form:
//
//	scope: root
//	properties:
//	  project_name: demo
//	  tags: [base]
//	handlers:
//	  - name: build-id
//	    expr: '{"build_id": vars.build_id ?? "no_build"}'
//	scopes:
//	  - scope: ci
//	    private: true
//	    properties:
//	      tags: [private]
type Manifest struct {
	Scope      string         `yaml:"scope"`
	Private    bool           `yaml:"private,omitempty"`
	Properties map[string]any `yaml:"properties,omitempty"`
	Handlers   []Handler      `yaml:"handlers,omitempty"`
	Scopes     []*Manifest    `yaml:"scopes,omitempty"`
}

// Load reads and validates a single manifest document from r.
// Unknown fields and duplicate mapping keys are rejected.
func Load(r io.Reader) (*Manifest, error) {
	var m Manifest

	dec := yaml.NewDecoder(r, yaml.Strict())
	if err := dec.Decode(&m); err != nil {
		return nil, ErrLoadManifest.Wrap(err)
	}

	if err := m.validate(); err != nil {
		return nil, err
	}

	return &m, nil
}

// LoadAll reads and validates every manifest document in the YAML stream
// from r. Documents are separated by "---" lines in the usual way.
func LoadAll(r io.Reader) ([]*Manifest, error) {
	var manifests []*Manifest

	dec := yaml.NewDecoder(r, yaml.Strict())

	for {
		var m Manifest

		err := dec.Decode(&m)
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, ErrLoadManifest.Wrap(err)
		}

		if err := m.validate(); err != nil {
			return nil, err
		}

		manifests = append(manifests, &m)
	}

	if len(manifests) == 0 {
		return nil, ErrNoManifest
	}

	return manifests, nil
}

// LoadFile reads and validates the manifest document at path.
func LoadFile(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ErrLoadManifest.Wrap(err).
			With(slog.String("file", path))
	}
	defer f.Close()

	m, err := Load(f)
	if err != nil {
		return nil, WrapError(err).With(slog.String("file", path))
	}

	return m, nil
}

// Encode writes the manifests to w as a YAML stream, separating documents
// with "---" lines. The output parses back through [LoadAll].
func Encode(ctx context.Context, w io.Writer, manifests ...*Manifest) error {
	for i, m := range manifests {
		if i > 0 {
			if _, err := fmt.Fprintln(w, "---"); err != nil {
				return err
			}
		}

		data, err := yaml.MarshalContext(ctx, m, yaml.Indent(2))
		if err != nil {
			return ErrEncodeArtifact.Wrap(err).
				With(slog.String("scope", m.Scope))
		}

		if _, err := fmt.Fprint(w, string(data)); err != nil {
			return err
		}
	}

	return nil
}

// validate checks the manifest subtree for structural errors before any
// scope is constructed, so a failed Build never leaves a half-declared
// sibling behind it in the session.
func (m *Manifest) validate() error {
	if m.Scope == "" {
		return ErrEmptyScopeName
	}

	for _, h := range m.Handlers {
		if h.Expr == "" {
			return ErrEmptyHandler.With(
				slog.String("handler", h.Name),
				slog.String("scope", m.Scope),
			)
		}
	}

	for _, child := range m.Scopes {
		if err := child.validate(); err != nil {
			return WrapError(err).With(slog.String("scope", m.Scope))
		}
	}

	return nil
}

// Build declares the manifest's subtree in the given session and returns
// its root scope. The scope active in ss when Build is called becomes the
// subtree's parent, so a manifest can extend a tree under construction.
//
// Properties are converted with [scope.FromNative] and assigned in name
// order. Handler entries are compiled and appended to the scope's
// [scope.HandlerChainProperty] list. Child manifests build recursively,
// each inside its parent's activation.
func (m *Manifest) Build(ss *scope.Session) (*scope.Scope, error) {
	if m.Scope == "" {
		return nil, ErrEmptyScopeName
	}

	var opts []scope.ScopeOption
	if m.Private {
		opts = append(opts, scope.WithPrivate())
	}

	s, err := ss.In(m.Scope, func(s *scope.Scope) error {
		return m.declare(ss, s)
	}, opts...)
	if err != nil {
		return nil, err
	}

	return s, nil
}

// declare populates s from the manifest while s is the session's active
// scope.
func (m *Manifest) declare(ss *scope.Session, s *scope.Scope) error {
	for _, name := range slices.Sorted(maps.Keys(m.Properties)) {
		val, err := scope.FromNative(m.Properties[name])
		if err != nil {
			return WrapError(err).With(
				slog.String("property", name),
				slog.String("scope", s.Path()),
			)
		}

		s.Set(name, val)
	}

	for _, h := range m.Handlers {
		fn, err := compileHandler(h)
		if err != nil {
			return WrapError(err).With(slog.String("scope", s.Path()))
		}

		if err := s.Append(scope.HandlerChainProperty, scope.NewHandler(fn)); err != nil {
			return WrapError(err).With(slog.String("scope", s.Path()))
		}
	}

	for _, child := range m.Scopes {
		if _, err := child.Build(ss); err != nil {
			return err
		}
	}

	return nil
}

// BuildAll declares one or more manifests in the given session.
//
// A single manifest becomes the root of the returned tree. Several
// manifests become siblings under an unnamed synthetic root, which lets
// property layers composed from multiple source files shadow and merge
// against one another through their common parent.
func BuildAll(ss *scope.Session, manifests ...*Manifest) (*scope.Scope, error) {
	switch len(manifests) {
	case 0:
		return nil, ErrNoManifest

	case 1:
		return manifests[0].Build(ss)
	}

	root, err := ss.In("", func(*scope.Scope) error {
		for _, m := range manifests {
			if _, err := m.Build(ss); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return root, nil
}
