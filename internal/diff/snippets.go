package diff

import (
	"strings"

	"github.com/prhythm/prhythm/internal/domain"
)

// Snippets scans a unified diff and collects the added/removed line
// groups in order of appearance. A new `diff --git` header or `@@` hunk
// header closes the snippet in progress; only +/- content lines are
// accumulated (file header lines +++/--- are skipped).
func Snippets(unified string) []domain.Snippet {
	if strings.TrimSpace(unified) == "" {
		return nil
	}

	var (
		snippets    []domain.Snippet
		currentFile string
		currentHdr  string
		current     []string
	)

	flush := func() {
		if len(current) == 0 {
			return
		}
		snippets = append(snippets, domain.Snippet{
			File:   currentFile,
			Header: currentHdr,
			Code:   strings.Join(current, "\n"),
		})
		current = nil
	}

	for _, line := range strings.Split(unified, "\n") {
		switch {
		case strings.HasPrefix(line, "diff --git"):
			flush()
			currentFile = newSidePath(line)
			currentHdr = ""
		case strings.HasPrefix(line, "@@"):
			flush()
			currentHdr = strings.TrimSpace(line)
		case strings.HasPrefix(line, "+++ "), strings.HasPrefix(line, "--- "):
			// File header lines, not content.
		case strings.HasPrefix(line, "+"), strings.HasPrefix(line, "-"):
			current = append(current, line)
		}
	}
	flush()

	return snippets
}

// newSidePath extracts the new-side file path from a `diff --git` line,
// stripping the "b/" prefix.
func newSidePath(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	path := fields[len(fields)-1]
	return strings.TrimPrefix(path, "b/")
}

// TopSnippets returns up to max snippets in appearance order.
func TopSnippets(unified string, max int) []domain.Snippet {
	snippets := Snippets(unified)
	if max > 0 && len(snippets) > max {
		return snippets[:max]
	}
	return snippets
}
