package cmd

import (
	"context"
	"log/slog"

	"github.com/ardnew/strata/log"
	"github.com/ardnew/strata/manifest"
	"github.com/ardnew/strata/scope"
)

// Build composes the manifest sources into a scope tree and emits its
// resolved artifact.
type Build struct {
	Scope  string   `help:"Emit only the subtree at this scope path"      placeholder:"PATH"`
	Render bool     `help:"Resolve deferred templates through handlers"                       short:"r"`
	Vars   []string `help:"Render-time variable (repeatable, implies -r)" name:"var"          placeholder:"KEY=VALUE"`
	Format string   `help:"Output encoding"                               default:"yaml"      enum:"yaml,json"`
	Indent int      `help:"Indentation width, 0 for compact"              default:"2"`
	Output string   `help:"Output file or '-' for stdout"                 default:"-"         short:"o"`
}

// Run executes the build command.
func (b *Build) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	_, root, _, err := buildTree(ctx)
	if err != nil {
		return err
	}

	target, err := findScope(root, b.Scope)
	if err != nil {
		return err
	}

	vars, err := parseVars(b.Vars)
	if err != nil {
		return err
	}

	if b.Render && vars == nil {
		vars = scope.Vars{}
	}

	format, err := manifest.ParseFormat(b.Format)
	if err != nil {
		return err
	}

	artifact, err := resolveTree(ctx, target, vars)
	if err != nil {
		return err
	}

	out, err := openOutput(b.Output)
	if err != nil {
		return err
	}
	defer out.Close()

	log.DebugContext(ctx, "emitting artifact",
		slog.String("scope", target.Path()),
		slog.String("format", format.String()),
		slog.Bool("rendered", vars != nil),
	)

	return artifact.Encode(ctx, out, format, b.Indent)
}

// collectorKey stashes an artifactCollector in the build-walk context.
type collectorKey struct{}

// artifactCollector assembles per-scope artifacts during the build walk.
// Because the walk runs children before parents, a node's hook always
// finds its children's artifacts already collected.
type artifactCollector struct {
	vars      scope.Vars
	artifacts map[*scope.Scope]*manifest.Artifact
}

func withCollector(
	ctx context.Context,
	c *artifactCollector,
) context.Context {
	return context.WithValue(ctx, collectorKey{}, c)
}

func collectorFrom(ctx context.Context) *artifactCollector {
	c, _ := ctx.Value(collectorKey{}).(*artifactCollector)

	return c
}

// collectArtifact is the build hook registered on every node of the
// target subtree. It resolves the node's local properties and adopts the
// artifacts its children collected before it ran.
func collectArtifact(ctx context.Context, s *scope.Scope) error {
	c := collectorFrom(ctx)
	if c == nil {
		return nil
	}

	a, err := manifest.ResolveLocal(s, c.vars)
	if err != nil {
		return err
	}

	for _, child := range s.Children() {
		if sub, ok := c.artifacts[child]; ok {
			a.Scopes = append(a.Scopes, sub)
		}
	}

	c.artifacts[s] = a

	return nil
}

// resolveTree resolves the subtree rooted at target through the build
// walk and returns target's assembled artifact.
func resolveTree(
	ctx context.Context,
	target *scope.Scope,
	vars scope.Vars,
) (*manifest.Artifact, error) {
	c := &artifactCollector{
		vars:      vars,
		artifacts: make(map[*scope.Scope]*manifest.Artifact),
	}

	registerCollect(target)

	if err := target.BuildTree(withCollector(ctx, c)); err != nil {
		return nil, err
	}

	return c.artifacts[target], nil
}

// registerCollect installs collectArtifact on every node under s.
func registerCollect(s *scope.Scope) {
	s.OnBuild(collectArtifact)

	for _, child := range s.Children() {
		registerCollect(child)
	}
}
