package cmd

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/ardnew/strata/manifest"
	"github.com/ardnew/strata/scope"
)

// ContextKey is used to store a [kong.Context] value in [context.Context].
type contextKey struct{}

// WithContext returns a new context.Context containing the given kong.Context.
func WithContext(ctx context.Context, ktx *kong.Context) context.Context {
	return context.WithValue(ctx, contextKey{}, ktx)
}

func kongContextFrom(ctx context.Context) *kong.Context {
	ktx, ok := ctx.Value(contextKey{}).(*kong.Context)
	if !ok || ktx == nil {
		return nil
	}

	return ktx
}

type (
	sourceFilesKey struct{}
	sourceFiles    struct {
		read     []io.Reader
		name     []string
		hasStdin bool
	}

	SourceFiles interface {
		IsZero() bool
		Stdin() io.Reader
		Readers() []io.Reader
		Names() []string
		io.Reader
	}
)

// IsZero reports whether there are no source files.
func (s *sourceFiles) IsZero() bool { return len(s.read) == 0 && !s.hasStdin }

// Stdin returns os.Stdin if stdin was included as a source, or nil otherwise.
func (s *sourceFiles) Stdin() io.Reader {
	if s.hasStdin {
		return os.Stdin
	}

	return nil
}

// Readers returns one reader per source file, in order, with stdin last if
// present. Each reader is a complete document stream of its own; callers
// must not concatenate them, or documents would run together across file
// boundaries.
func (s *sourceFiles) Readers() []io.Reader {
	readers := s.read
	if s.hasStdin {
		readers = append(readers, os.Stdin)
	}

	return readers
}

// Names returns the resolved path of each reader from [Readers], with "-"
// naming stdin.
func (s *sourceFiles) Names() []string {
	names := s.name
	if s.hasStdin {
		names = append(names, stdinSource)
	}

	return names
}

// Read implements io.Reader by reading from all source files in order,
// including stdin if present.
func (s *sourceFiles) Read(p []byte) (n int, err error) {
	return io.MultiReader(s.Readers()...).Read(p)
}

// fileKey uniquely identifies a file by its device and inode numbers.
// This handles deduplication across symlinks, absolute/relative paths, and
// special device files.
type fileKey struct {
	dev uint64
	ino uint64
}

// stdinSource is the special source indicator for reading from stdin.
const stdinSource = "-"

// WithSourceFiles returns a new context.Context containing a [SourceFiles]
// that reads from the given source files.
//
// The function deduplicates readers by resolving symlinks and comparing
// device/inode pairs. All occurrences of "-" are replaced with a single
// stdin reader. The stdin reader is placed last so it reads after all
// regular files.
func WithSourceFiles(ctx context.Context, sources []string) context.Context {
	return context.WithValue(ctx, sourceFilesKey{}, buildSourceFiles(sources))
}

// buildSourceFiles constructs a SourceFiles from the given source paths.
func buildSourceFiles(sources []string) SourceFiles {
	if len(sources) == 0 {
		return nil
	}

	var srcs sourceFiles

	srcs.read = make([]io.Reader, 0, len(sources))
	srcs.name = make([]string, 0, len(sources))
	seen := make(map[fileKey]struct{})

	stdinInfo, _ := os.Stdin.Stat()
	stdinKey, _ := makeFileKey(stdinInfo)

	for _, src := range sources {
		if src == stdinSource {
			seen[stdinKey] = struct{}{}

			continue
		}

		reader, path, ok := openUniqueFile(src, seen)
		if !ok {
			continue
		}

		srcs.read = append(srcs.read, reader)
		srcs.name = append(srcs.name, path)
	}

	// Stdin may have been included via "-" or as a named file.
	// Both of which will be represented by stdinKey in seen.
	_, srcs.hasStdin = seen[stdinKey]
	delete(seen, stdinKey)

	// If no files were successfully opened and no stdin, return nil
	if len(srcs.read) == 0 && !srcs.hasStdin {
		return nil
	}

	return &srcs
}

// openUniqueFile opens the file at path if it hasn't been seen before.
// It resolves symlinks and uses device/inode to detect duplicates.
// Returns the opened file, its resolved path, and true if successful, or
// false if the file is a duplicate or cannot be opened.
func openUniqueFile(
	path string,
	seen map[fileKey]struct{},
) (io.Reader, string, bool) {
	// Resolve to absolute path to handle relative path duplicates.
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, "", false
	}

	// Resolve symlinks to their target.
	resolved, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		return nil, "", false
	}

	// Get file info to extract device and inode.
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, "", false
	}

	key, ok := makeFileKey(info)
	if !ok {
		return nil, "", false
	}

	if _, exists := seen[key]; exists {
		return nil, "", false
	}

	seen[key] = struct{}{}

	file, err := os.Open(resolved)
	if err != nil {
		return nil, "", false
	}

	return file, resolved, true
}

// makeFileKey creates a fileKey from os.FileInfo.
// Returns false if the underlying Sys() data is not of type *syscall.Stat_t.
func makeFileKey(info os.FileInfo) (key fileKey, ok bool) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return key, false
	}

	return fileKey{dev: stat.Dev, ino: stat.Ino}, true
}

// sourceFilesFrom retrieves the SourceFiles stored in ctx by
// WithSourceFiles. Returns nil if none was stored.
func sourceFilesFrom(ctx context.Context) SourceFiles {
	r, _ := ctx.Value(sourceFilesKey{}).(SourceFiles)

	return r
}

// loadManifests parses every manifest document from the source files in
// ctx. Each file is its own YAML stream, so one file may carry several
// documents separated by "---" lines.
func loadManifests(ctx context.Context) ([]*manifest.Manifest, error) {
	srcs := sourceFilesFrom(ctx)
	if srcs == nil || srcs.IsZero() {
		return nil, ErrNoSource
	}

	var manifests []*manifest.Manifest

	names := srcs.Names()

	for i, r := range srcs.Readers() {
		docs, err := manifest.LoadAll(r)
		if err != nil {
			return nil, ErrLoadSource.Wrap(err).
				With(slog.String("source", names[i]))
		}

		manifests = append(manifests, docs...)
	}

	return manifests, nil
}

// buildTree loads the manifests named in ctx and composes them into a
// scope tree, returning the session, the tree root, and the parsed
// documents.
func buildTree(
	ctx context.Context,
) (*scope.Session, *scope.Scope, []*manifest.Manifest, error) {
	manifests, err := loadManifests(ctx)
	if err != nil {
		return nil, nil, nil, err
	}

	ss := scope.NewSession()

	root, err := manifest.BuildAll(ss, manifests...)
	if err != nil {
		return nil, nil, nil, err
	}

	return ss, root, manifests, nil
}

// findScope resolves a slash-separated path relative to root, tolerating a
// leading "/". An empty path returns root itself.
func findScope(root *scope.Scope, path string) (*scope.Scope, error) {
	s, ok := root.Find(strings.TrimPrefix(path, "/"))
	if !ok {
		return nil, ErrScopeNotFound.With(slog.String("scope", path))
	}

	return s, nil
}

// parseVars converts repeated "key=value" assignments into [scope.Vars].
func parseVars(assignments []string) (scope.Vars, error) {
	if len(assignments) == 0 {
		return nil, nil
	}

	vars := make(scope.Vars, len(assignments))

	for _, kv := range assignments {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, ErrBadVar.With(slog.String("assignment", kv))
		}

		vars[key] = value
	}

	return vars, nil
}

// openOutput opens the output target for a command. An empty path or "-"
// selects stdout, with a no-op closer.
func openOutput(path string) (io.WriteCloser, error) {
	if path == "" || path == stdinSource {
		return nopWriteCloser{os.Stdout}, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, ErrWriteOutput.Wrap(err).
			With(slog.String("path", path))
	}

	return f, nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
