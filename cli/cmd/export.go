package cmd

import (
	"context"
	"log/slog"

	"github.com/ardnew/strata/log"
	"github.com/ardnew/strata/manifest"
)

// Export emits the properties visible at a scope as environment variable
// assignments, one NAME=value per line.
type Export struct {
	Scope  string `help:"Scope path to export from"        placeholder:"PATH"`
	Prefix string `help:"Prefix for variable names"        placeholder:"PREFIX"`
	Delim  string `help:"List item separator"              placeholder:"CHAR"`
	Output string `help:"Output file or '-' for stdout"    default:"-"          short:"o"`
}

// Run executes the export command.
func (e *Export) Run(ctx context.Context) (err error) {
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

	out, err := openOutput(e.Output)
	if err != nil {
		return err
	}
	defer out.Close()

	var opts []manifest.ExportOption

	if e.Prefix != "" {
		opts = append(opts, manifest.WithPrefix(e.Prefix))
	}

	if e.Delim != "" {
		opts = append(opts, manifest.WithDelim(e.Delim))
	}

	log.DebugContext(ctx, "exporting environment",
		slog.String("scope", s.Path()),
		slog.String("prefix", e.Prefix),
	)

	return manifest.ExportEnv(out, s, opts...)
}
