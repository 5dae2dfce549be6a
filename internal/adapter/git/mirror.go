// Package git maintains local clones of the tracked repositories.
// Local checkouts let the context extractor read files without burning
// API requests; the contents API remains the fallback.
package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	gogit "github.com/go-git/go-git/v5"

	"github.com/prhythm/prhythm/internal/domain"
)

// Mirror manages repository clones under a base directory. Each
// repository lives at <baseDir>/<short-name>.
type Mirror struct {
	baseDir string
}

// NewMirror constructs a mirror rooted at baseDir.
func NewMirror(baseDir string) *Mirror {
	return &Mirror{baseDir: baseDir}
}

// Path returns the local checkout directory for a repository.
func (m *Mirror) Path(repo string) string {
	return filepath.Join(m.baseDir, domain.ShortRepoName(repo))
}

// HasClone reports whether a local checkout exists for the repository.
func (m *Mirror) HasClone(repo string) bool {
	info, err := os.Stat(filepath.Join(m.Path(repo), ".git"))
	return err == nil && info.IsDir()
}

// Sync clones the repository if absent, otherwise pulls the default
// branch. An already up-to-date checkout is not an error.
func (m *Mirror) Sync(ctx context.Context, repo string) error {
	dir := m.Path(repo)

	if !m.HasClone(repo) {
		if err := os.MkdirAll(m.baseDir, 0o755); err != nil {
			return fmt.Errorf("create repos dir: %w", err)
		}
		_, err := gogit.PlainCloneContext(ctx, dir, false, &gogit.CloneOptions{
			URL: fmt.Sprintf("https://github.com/%s.git", repo),
		})
		if err != nil {
			return fmt.Errorf("clone %s: %w", repo, err)
		}
		return nil
	}

	r, err := gogit.PlainOpen(dir)
	if err != nil {
		return fmt.Errorf("open %s: %w", repo, err)
	}
	wt, err := r.Worktree()
	if err != nil {
		return fmt.Errorf("worktree %s: %w", repo, err)
	}
	err = wt.PullContext(ctx, &gogit.PullOptions{RemoteName: "origin"})
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return fmt.Errorf("pull %s: %w", repo, err)
	}
	return nil
}

// SyncAll syncs every repository, collecting per-repo failures instead
// of stopping at the first one. The returned map holds the error for
// each repository that failed; an empty map means full success.
func (m *Mirror) SyncAll(ctx context.Context, repos []string) map[string]error {
	failures := make(map[string]error)
	for _, repo := range repos {
		if err := ctx.Err(); err != nil {
			failures[repo] = err
			continue
		}
		if err := m.Sync(ctx, repo); err != nil {
			failures[repo] = err
		}
	}
	return failures
}

// ReadFile reads a file from the local checkout. Callers must treat a
// missing clone or file as a soft failure and fall back to the API.
func (m *Mirror) ReadFile(repo, path string) (string, error) {
	data, err := os.ReadFile(filepath.Join(m.Path(repo), filepath.FromSlash(path)))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ListDir lists file names (not directories) in a checkout directory.
func (m *Mirror) ListDir(repo, path string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(m.Path(repo), filepath.FromSlash(path)))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
