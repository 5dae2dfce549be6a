package analyze

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/prhythm/prhythm/internal/domain"
)

// Extensions excluded from file-content fetching. Binary assets add
// nothing to the prompt and waste the token budget.
var binaryExtensions = []string{
	".png", ".jpg", ".jpeg", ".gif", ".svg", ".ico",
	".woff", ".ttf", ".eot", ".bin", ".exe", ".dll", ".so", ".dylib",
}

const maxFetchedFileBytes = 100 * 1024

// FetchModifiedContents reads the post-merge content of every text file
// the pull request touches from the local mirror. Oversized, missing,
// and unreadable files get a short placeholder instead of content so the
// prompt can still mention them.
func FetchModifiedContents(local LocalRepo, pr *domain.PullRequest) map[string]string {
	contents := map[string]string{}
	if local == nil || !local.HasClone(pr.Repository) {
		return contents
	}

	for _, f := range pr.Files {
		if f.Path == "" || isBinaryPath(f.Path) {
			continue
		}

		content, err := local.ReadFile(pr.Repository, f.Path)
		switch {
		case err != nil:
			if isNotExist(err) {
				contents[f.Path] = "File not found in repository"
			} else {
				contents[f.Path] = "Error reading file: " + err.Error()
			}
		case len(content) > maxFetchedFileBytes:
			contents[f.Path] = "File too large to include in context"
		default:
			contents[f.Path] = content
		}
	}
	return contents
}

func isBinaryPath(path string) bool {
	for _, ext := range binaryExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
