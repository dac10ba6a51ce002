package repl

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/ardnew/strata/log"
	"github.com/ardnew/strata/manifest"
	"github.com/ardnew/strata/scope"
)

const defaultEditor = "vi"

// editTreeCommand implements [tea.ExecCommand] for the manifest
// edit-parse-retry loop. It renders the loaded manifests to a temp file,
// opens the user's editor, and rebuilds the scope tree from the result.
// On a parse or build error the user is prompted to re-edit; declining
// exits the program.
type editTreeCommand struct {
	docs    []*manifest.Manifest
	ctxFunc func() context.Context
	newRoot *scope.Scope
	newDocs []*manifest.Manifest
	logger  log.Logger
	stdin   io.Reader
	stdout  io.Writer
	stderr  io.Writer
}

// SetStdin sets the stdin reader for the command.
func (c *editTreeCommand) SetStdin(r io.Reader) { c.stdin = r }

// SetStdout sets the stdout writer for the command.
func (c *editTreeCommand) SetStdout(w io.Writer) { c.stdout = w }

// SetStderr sets the stderr writer for the command.
func (c *editTreeCommand) SetStderr(w io.Writer) { c.stderr = w }

// Run executes the edit-parse-retry loop. It renders the manifests, opens
// the editor, rebuilds the tree from the result, and prompts on error. If
// the user declines to re-edit, it returns [ErrEditDeclined].
func (c *editTreeCommand) Run() error {
	ctx := c.ctxFunc()

	// Render the manifest documents to YAML.
	var buf bytes.Buffer
	if err := manifest.Encode(ctx, &buf, c.docs...); err != nil {
		return fmt.Errorf("encode manifests: %w", err)
	}

	content := buf.String()

	// Create a single temp file for the entire loop.
	f, err := os.CreateTemp(os.TempDir(), "strata-repl-*.yaml")
	if err != nil {
		return err
	}

	tmpPath := f.Name()

	defer os.Remove(tmpPath)

	if err := f.Chmod(0o600); err != nil {
		f.Close()

		return err
	}

	f.Close()

	for {
		// Write current content to temp file.
		if err := os.WriteFile(tmpPath, []byte(content), 0o600); err != nil {
			return err
		}

		// Launch editor and get a reader over the result.
		r, err := runEditor(ctx, c.stdin, c.stdout, c.stderr, tmpPath)
		if err != nil {
			return err
		}

		// Check for empty file (user cleared content).
		br := bufio.NewReader(r)
		if _, err := br.Peek(1); err != nil {
			// EOF or read error; treat as cancelled edit.
			return nil
		}

		// Read all content and rebuild the tree from it.
		data, err := io.ReadAll(br)
		if err != nil {
			return err
		}

		root, docs, rebuildErr := rebuildTree(data)

		c.logger.TraceContext(
			ctx,
			"editor rebuild attempt",
			slog.Int("content_length", len(data)),
			slog.Bool("success", rebuildErr == nil),
		)

		if rebuildErr == nil {
			c.newRoot = root
			c.newDocs = docs

			return nil
		}

		// Show error and prompt.
		fmt.Fprintf(c.stderr, "\nManifest error: %s\n", rebuildErr)
		fmt.Fprintf(c.stdout, "Re-edit? [Y/n] ")

		scanner := bufio.NewScanner(c.stdin)
		if !scanner.Scan() {
			return ErrEditDeclined
		}

		response := strings.TrimSpace(strings.ToLower(scanner.Text()))
		if response == "n" || response == "no" {
			return ErrEditDeclined
		}

		// Re-read the (failed) content for the next editor iteration.
		data, readErr := os.ReadFile(tmpPath)
		if readErr != nil {
			return readErr
		}

		content = string(data)
	}
}

// rebuildTree parses a manifest stream and composes it into a fresh scope
// tree, returning the tree root and the parsed documents.
func rebuildTree(data []byte) (*scope.Scope, []*manifest.Manifest, error) {
	docs, err := manifest.LoadAll(bytes.NewReader(data))
	if err != nil {
		return nil, nil, err
	}

	ss := scope.NewSession()

	root, err := manifest.BuildAll(ss, docs...)
	if err != nil {
		return nil, nil, err
	}

	return root, docs, nil
}

// runEditor launches the user's editor on the given file path and returns a
// reader over the edited file content.
func runEditor(
	ctx context.Context,
	stdin io.Reader,
	stdout io.Writer,
	stderr io.Writer,
	path string,
) (io.Reader, error) {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = defaultEditor
	}

	cmd := exec.CommandContext(ctx, editor, path)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Run(); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	return f, nil
}
