// Package json persists normalized pull request records as JSON
// snapshots for later reprocessing.
package json

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prhythm/prhythm/internal/domain"
)

// Writer saves pull request records under
// <base>/<repo>/<YYYY-MM>/pr_<num>_<date>.json.
type Writer struct {
	baseDir string
	now     func() time.Time
}

// NewWriter constructs a writer rooted at baseDir with a timestamp
// supplier.
func NewWriter(baseDir string, now func() time.Time) *Writer {
	return &Writer{baseDir: baseDir, now: now}
}

// Write persists the record, appending _1, _2, ... when a snapshot for
// the same day already exists.
func (w *Writer) Write(ctx context.Context, pr domain.PullRequest) (string, error) {
	dir := filepath.Join(w.baseDir, domain.ShortRepoName(pr.Repository), w.now().Format("2006-01"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	data, err := json.MarshalIndent(pr, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal pull request: %w", err)
	}

	base := fmt.Sprintf("pr_%d_%s", pr.Number, w.now().Format("20060102"))
	path := uniquePath(dir, base, ".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write pull request record: %w", err)
	}
	return path, nil
}

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
