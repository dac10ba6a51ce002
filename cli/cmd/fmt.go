package cmd

import (
	"context"

	"github.com/ardnew/strata/manifest"
	"github.com/ardnew/strata/scope"
)

// Fmt rewrites manifest sources as a canonical YAML stream, one document
// per manifest. Sources read from multiple files coalesce into a single
// stream on output.
type Fmt struct {
	Check  bool   `help:"Validate sources without writing output"`
	Output string `help:"Output file or '-' for stdout"          default:"-" short:"o"`
}

// Run executes the fmt command.
func (f *Fmt) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	manifests, err := loadManifests(ctx)
	if err != nil {
		return err
	}

	// Composing the tree validates what decoding alone cannot, such as
	// duplicate property declarations and malformed handler expressions.
	if _, err := manifest.BuildAll(scope.NewSession(), manifests...); err != nil {
		return err
	}

	if f.Check {
		return nil
	}

	out, err := openOutput(f.Output)
	if err != nil {
		return err
	}
	defer out.Close()

	return manifest.Encode(ctx, out, manifests...)
}
