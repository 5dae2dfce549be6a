// Package track decides which merged pull requests still need analysis
// by comparing them against the per-repository watermark.
package track

import (
	"sort"

	"github.com/prhythm/prhythm/internal/domain"
)

// FindUnsynced returns the merged pull requests numbered above the
// watermark, oldest first so processing advances the watermark
// monotonically.
func FindUnsynced(merged []domain.PullRequest, latestProcessed int) []domain.PullRequest {
	var out []domain.PullRequest
	for _, pr := range merged {
		if pr.Number > latestProcessed {
			out = append(out, pr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}
