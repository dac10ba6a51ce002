package repl

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	"github.com/ardnew/strata/scope"
)

// ctrlCommands are the available control-mode commands.
var ctrlCommands = []string{"help", "list", "tree", "cd", "edit", "clear", "quit"}

// isWordBoundary returns true if the rune is a word delimiter for
// completion purposes. This includes whitespace, the path separator, and
// the query suffix markers. Hyphens and dots are intentionally excluded
// because property names may contain them (e.g., log-pretty).
func isWordBoundary(r rune) bool {
	switch r {
	case '/', ' ', '\t', '!', '@':
		return true
	}

	return false
}

// wordBounds returns the current word at the cursor position and its byte
// boundaries within input. Words are delimited by whitespace, slashes, and
// the query suffix markers.
// Returns an empty word when the cursor sits on a boundary (after a space,
// between slashes, start of line, etc.).
func wordBounds(input string, cursor int) (word string, start, end int) {
	if cursor > len(input) {
		cursor = len(input)
	}

	// Walk backward from cursor to find word start.
	start = cursor

	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(input[:start])
		if isWordBoundary(r) {
			break
		}

		start -= size
	}

	// Walk forward from cursor to find word end.
	end = cursor

	for end < len(input) {
		r, size := utf8.DecodeRuneInString(input[end:])
		if isWordBoundary(r) {
			break
		}

		end += size
	}

	word = input[start:end]

	return word, start, end
}

// slashParent returns the slash-separated scope path leading up to the
// current word, considering only the contiguous path chain. For input
// "cd app/ci/wo" with the word "wo", the parent path is "app/ci". A chain
// anchored at the line's start or after whitespace is relative; one typed
// with a leading "/" stays absolute. Returns "" for unqualified words.
func slashParent(input string, wordStart int) string {
	prefix := input[:wordStart]

	trimmed := strings.TrimRight(prefix, "/")
	if trimmed == prefix {
		// The word is not preceded by a path separator.
		return ""
	}

	if trimmed == "" {
		// Nothing but separators: an absolute path from the root.
		return "/"
	}

	// Walk backward from the end of the trimmed prefix. Collect characters
	// that are separators or valid name characters. Stop at the first
	// non-separator word boundary.
	end := len(trimmed)
	pos := end

	for pos > 0 {
		r, size := utf8.DecodeLastRuneInString(trimmed[:pos])
		if r == '/' {
			pos -= size

			continue
		}

		if isWordBoundary(r) {
			break
		}

		pos -= size
	}

	result := strings.TrimSpace(trimmed[pos:end])
	if result == "" {
		return "/"
	}

	return result
}

// scopeAt resolves a completion path chain against the model's current
// scope. An empty chain is the current scope itself; a leading "/" walks
// from the tree root.
func (m model) scopeAt(path string) (*scope.Scope, bool) {
	switch {
	case path == "":
		return m.current, true

	case strings.HasPrefix(path, "/"):
		return m.root.Find(strings.TrimPrefix(path, "/"))

	default:
		return m.current.Find(path)
	}
}

// childNames returns the names of a scope's direct children, including
// private ones, which are navigable from their parent.
func childNames(s *scope.Scope) []string {
	children := s.Children()
	if len(children) == 0 {
		return nil
	}

	names := make([]string, 0, len(children))
	for _, child := range children {
		names = append(names, child.Name())
	}

	return names
}

// evalCandidates returns the completion candidates for a query word under
// the given parent chain: the visible property names of the resolved
// scope plus its child-scope names.
func (m model) evalCandidates(parent string) []string {
	s, ok := m.scopeAt(parent)
	if !ok {
		return nil
	}

	return append(s.Names(), childNames(s)...)
}

// ctrlCandidates returns the completion candidates for control mode. The
// command position completes command names; the argument of "cd"
// completes child-scope paths.
func (m model) ctrlCandidates(input string, wordStart int) []string {
	fields := strings.Fields(input[:wordStart])
	if len(fields) == 0 {
		return ctrlCommands
	}

	if fields[0] != "cd" {
		return nil
	}

	s, ok := m.scopeAt(slashParent(input, wordStart))
	if !ok {
		return nil
	}

	return childNames(s)
}

// computeMatches calculates the fuzzy match results for the word at the
// cursor. It returns the matches (ranked best-first), the candidate list,
// and the word boundaries. When the current word is empty at the top
// level, it returns nil matches. When the word is empty after a slash, it
// returns all children as matches so the user can browse the subtree.
func (m model) computeMatches() (
	matches fuzzy.Matches,
	candidates []string,
	wordStart, wordEnd int,
) {
	input := m.input.Value()
	cursor := m.input.Position()

	word, ws, we := wordBounds(input, cursor)
	wordStart, wordEnd = ws, we

	if m.mode == modeCtrl {
		candidates = m.ctrlCandidates(input, wordStart)

		if word == "" && !strings.HasSuffix(input[:wordStart], "/") {
			return nil, nil, wordStart, wordEnd
		}
	} else {
		parent := slashParent(input, wordStart)
		candidates = m.evalCandidates(parent)

		// When the word is empty at the top level, don't show completions
		// (allows the hint text to be visible). After a slash, show all
		// children immediately so the user can browse the available scopes.
		if word == "" {
			if parent == "" || len(candidates) == 0 {
				return nil, nil, wordStart, wordEnd
			}

			// Return all candidates as unfiltered matches.
			matches = make(fuzzy.Matches, len(candidates))
			for i, c := range candidates {
				matches[i] = fuzzy.Match{Str: c, Index: i}
			}

			return matches, candidates, wordStart, wordEnd
		}
	}

	if len(candidates) == 0 {
		return nil, nil, wordStart, wordEnd
	}

	matches = fuzzy.Find(word, candidates)

	return matches, candidates, wordStart, wordEnd
}

// renderCandidateBar builds the single-line completion bar, ellipsized to
// fit within the given terminal width. Each candidate is rendered with its
// matched characters highlighted. The selected candidate (when tabbing)
// uses the selected style.
func renderCandidateBar(
	matches fuzzy.Matches,
	suggIdx int,
	tabActive bool,
	width int,
) string {
	if len(matches) == 0 || width <= 0 {
		return ""
	}

	const sep = "  "

	sepWidth := lipgloss.Width(sep)
	ellipsis := hintStyle.Render("...")
	ellipsisWidth := lipgloss.Width(ellipsis)

	var b strings.Builder

	used := 0

	for i, match := range matches {
		selected := tabActive && i == suggIdx
		rendered := renderCandidate(match, selected)
		candidateWidth := lipgloss.Width(rendered)

		entryWidth := candidateWidth
		if i > 0 {
			entryWidth += sepWidth
		}

		// Check if adding this candidate would exceed width.
		if used+entryWidth+ellipsisWidth > width && i > 0 {
			b.WriteString(sep)
			b.WriteString(ellipsis)

			break
		}

		if i > 0 {
			b.WriteString(sep)
		}

		b.WriteString(rendered)

		used += entryWidth

		// If this is the last candidate, no need to reserve ellipsis space.
		if i == len(matches)-1 {
			break
		}
	}

	return b.String()
}

// renderCandidate renders a single candidate with matched characters
// highlighted.
func renderCandidate(match fuzzy.Match, selected bool) string {
	baseStyle := suggestionStyle
	highlightStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("4")).
		Bold(true)

	if selected {
		baseStyle = selectedStyle
		highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("4")).
			Bold(true)
	}

	matchSet := make(map[int]bool, len(match.MatchedIndexes))
	for _, idx := range match.MatchedIndexes {
		matchSet[idx] = true
	}

	var b strings.Builder

	for i, r := range match.Str {
		ch := string(r)
		if matchSet[i] {
			b.WriteString(highlightStyle.Render(ch))
		} else {
			b.WriteString(baseStyle.Render(ch))
		}
	}

	return b.String()
}

// formatValuePreview generates a short preview of a property value.
func formatValuePreview(v scope.Value) string {
	src := v.Format()
	if len(src) > 40 {
		return src[:37] + "..."
	}

	return src
}

// formatScopePreview generates a preview string for a child scope.
func formatScopePreview(s *scope.Scope) string {
	preview := fmt.Sprintf("{ %d properties, %d scopes }",
		len(s.LocalNames()), len(s.Children()))

	if s.IsPrivate() {
		preview += " (private)"
	}

	return preview
}
