package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/ardnew/strata/manifest"
	"github.com/ardnew/strata/scope"
)

// Extract gathers properties sharing a name prefix into a bundle and
// emits it with the prefixes stripped from its keys.
type Extract struct {
	Prefixes []string `arg:"" help:"Name prefix(es) to collect, in precedence order"`

	Scope    string   `help:"Scope path to extract from"                      placeholder:"PATH"`
	Raw      []string `help:"Full property names to copy uninterpolated"      placeholder:"NAME"`
	Rendered []string `help:"Full property names to extract in deferred form" placeholder:"NAME"`
	Require  []string `help:"Bundle keys that must be present"                placeholder:"KEY"`
	Vars     []string `help:"Render-time variable (repeatable)"               name:"var"         placeholder:"KEY=VALUE"`
	Format   string   `help:"Output encoding"                                 default:"yaml"     enum:"yaml,json"`
	Indent   int      `help:"Indentation width, 0 for compact"                default:"2"`
	Output   string   `help:"Output file or '-' for stdout"                   default:"-"        short:"o"`
}

// Run executes the extract command.
func (e *Extract) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	_, root, _, err := buildTree(ctx)
	if err != nil {
		return err
	}

	s, err := findScope(root, e.Scope)
	if err != nil {
		return err
	}

	vars, err := parseVars(e.Vars)
	if err != nil {
		return err
	}

	format, err := manifest.ParseFormat(e.Format)
	if err != nil {
		return err
	}

	bundle, err := s.Extract(e.Prefixes,
		scope.WithRaw(e.Raw...),
		scope.WithRendered(e.Rendered...),
	)
	if err != nil {
		return err
	}

	// Require pops its entries from the bundle, so reinstate them after
	// the presence check: the command validates, it does not consume.
	if len(e.Require) > 0 {
		vals, err := bundle.Require(e.Require...)
		if err != nil {
			return WrapError(err).With(slog.String("scope", s.Path()))
		}

		for i, key := range e.Require {
			bundle[key] = vals[i]
		}
	}

	native, err := bundleNative(bundle, vars)
	if err != nil {
		return err
	}

	out, err := openOutput(e.Output)
	if err != nil {
		return err
	}
	defer out.Close()

	return encodeNative(ctx, out, native, format, e.Indent)
}

// bundleNative converts a bundle to its native mapping. Deferred entries
// resolve through their handler chains when vars is non-nil and stay in
// template form otherwise. Handler entries have no data rendition and
// are dropped.
func bundleNative(b scope.Bundle, vars scope.Vars) (map[string]any, error) {
	native := make(map[string]any, len(b))

	for key, val := range b {
		switch val.Kind {
		case scope.KindHandler:
			continue

		case scope.KindDeferred:
			if vars == nil {
				native[key] = val.ToNative()

				continue
			}

			out, err := val.Def.Resolve(vars)
			if err != nil {
				return nil, WrapError(err).With(slog.String("key", key))
			}

			native[key] = out

		default:
			native[key] = val.ToNative()
		}
	}

	return native, nil
}

// encodeNative writes a native value to w in the given format, following
// the same indent conventions as [manifest.Artifact.Encode].
func encodeNative(
	ctx context.Context,
	w io.Writer,
	native any,
	format manifest.Format,
	indent int,
) error {
	if format == manifest.FormatJSON {
		var (
			data []byte
			err  error
		)

		if indent > 0 {
			data, err = json.MarshalIndent(native, "", strings.Repeat(" ", indent))
		} else {
			data, err = json.Marshal(native)
		}

		if err != nil {
			return ErrJSONMarshal.Wrap(err)
		}

		_, err = fmt.Fprintln(w, string(data))

		return err
	}

	var opts []yaml.EncodeOption
	if indent > 0 {
		opts = append(opts, yaml.Indent(indent))
	} else {
		opts = append(opts, yaml.Flow(true))
	}

	data, err := yaml.MarshalContext(ctx, native, opts...)
	if err != nil {
		return ErrYAMLMarshal.Wrap(err)
	}

	_, err = fmt.Fprint(w, string(data))

	return err
}
