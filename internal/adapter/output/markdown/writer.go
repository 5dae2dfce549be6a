// Package markdown persists analysis reports and diff patches under a
// per-repository, per-month directory tree.
package markdown

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prhythm/prhythm/internal/domain"
)

type clock func() time.Time

// Writer saves Markdown reports and patch files. The timestamp supplier
// is injected so tests control file naming.
type Writer struct {
	baseDir string
	now     clock
	logger  Logger
}

// Logger receives warnings about filename fallbacks.
type Logger interface {
	LogWarning(ctx context.Context, message string, fields map[string]interface{})
}

// NewWriter constructs a writer rooted at baseDir with a timestamp
// supplier. The logger may be nil.
func NewWriter(baseDir string, now clock, logger Logger) *Writer {
	return &Writer{baseDir: baseDir, now: now, logger: logger}
}

// dir returns (and creates) the per-repository month directory, e.g.
// <base>/hello/2024-03.
func (w *Writer) dir(repo string) (string, error) {
	d := filepath.Join(w.baseDir, domain.ShortRepoName(repo), w.now().Format("2006-01"))
	if err := os.MkdirAll(d, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	return d, nil
}

// WriteReport saves one report as pr_<num>_<lang>_<date>.md, appending
// _1, _2, ... when the name is taken. Unrecognized language codes fall
// back to "en" in the filename so paths stay predictable.
func (w *Writer) WriteReport(ctx context.Context, pr domain.PullRequest, language, content string) (string, error) {
	dir, err := w.dir(pr.Repository)
	if err != nil {
		return "", err
	}

	code := language
	if _, ok := domain.LookupLanguage(code); !ok {
		if w.logger != nil {
			w.logger.LogWarning(ctx, "unknown language code in filename, defaulting to en", map[string]interface{}{
				"language": code,
			})
		}
		code = "en"
	}

	base := fmt.Sprintf("pr_%d_%s_%s", pr.Number, code, w.now().Format("20060102"))
	path := uniquePath(dir, base, ".md")

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

// WritePatch saves the unified diff as pr_<num>.patch next to the
// reports. An empty diff writes nothing and returns an empty path.
func (w *Writer) WritePatch(ctx context.Context, pr domain.PullRequest, diff string) (string, error) {
	if diff == "" {
		return "", nil
	}
	dir, err := w.dir(pr.Repository)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("pr_%d.patch", pr.Number))
	if err := os.WriteFile(path, []byte(diff), 0o644); err != nil {
		return "", fmt.Errorf("write patch: %w", err)
	}
	return path, nil
}

// uniquePath returns dir/base+ext, or dir/base_N+ext for the first N
// that does not exist yet.
func uniquePath(dir, base, ext string) string {
	path := filepath.Join(dir, base+ext)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}
	for n := 1; ; n++ {
		path = filepath.Join(dir, fmt.Sprintf("%s_%d%s", base, n, ext))
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path
		}
	}
}
