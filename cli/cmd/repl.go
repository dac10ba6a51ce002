package cmd

import (
	"context"

	"github.com/ardnew/strata/cli/cmd/repl"
	"github.com/ardnew/strata/log"
	"github.com/ardnew/strata/pkg"
)

// Repl explores the composed scope tree interactively.
type Repl struct{}

// Run executes the repl command.
func (r *Repl) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	manifests, err := loadManifests(ctx)
	if err != nil {
		return err
	}

	cacheDir := pkg.CacheDir()

	// The CLI layer interpolates the cache dir into kong vars; prefer it so
	// history lands beside any profile output.
	if ktx := kongContextFrom(ctx); ktx != nil {
		if dir, ok := ktx.Model.Vars()[CacheIdentifier]; ok && dir != "" {
			cacheDir = dir
		}
	}

	return repl.Run(ctx, manifests, cacheDir, log.With())
}
