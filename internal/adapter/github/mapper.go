package github

import (
	"fmt"
	"regexp"
	"time"

	"github.com/prhythm/prhythm/internal/domain"
)

var (
	ownerRepoPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9-]*/[A-Za-z0-9._-]+$`)
	githubURLPattern = regexp.MustCompile(`github\.com[:/]([^/]+/[^/]+?)(?:\.git)?/?$`)
)

// ValidateRepo normalizes a repository reference to owner/repo form.
// Accepts "owner/repo" directly or any github.com URL variant
// (https, ssh, with or without .git). URL forms are matched first so
// SSH remotes like git@github.com:owner/repo.git, which also contain a
// single slash, normalize instead of passing through verbatim.
func ValidateRepo(raw string) (string, error) {
	if m := githubURLPattern.FindStringSubmatch(raw); m != nil {
		return m[1], nil
	}
	if ownerRepoPattern.MatchString(raw) {
		return raw, nil
	}
	return "", fmt.Errorf("invalid repository format: %q (expected owner/repo or GitHub URL)", raw)
}

// mapPull converts an API pull payload (and optional file listing) into
// the normalized domain record. Raw API types never leave this package.
func mapPull(p apiPull, files []apiPullFile, repo string, fetchedAt time.Time) domain.PullRequest {
	pr := domain.PullRequest{
		Number:     p.Number,
		Title:      p.Title,
		URL:        p.HTMLURL,
		State:      p.State,
		Body:       p.Body,
		CreatedAt:  p.CreatedAt,
		MergedAt:   p.MergedAt,
		Repository: repo,
		FetchedAt:  fetchedAt,
	}
	if p.User != nil {
		pr.Author = p.User.Login
	}
	if p.MergedBy != nil {
		pr.MergedBy = p.MergedBy.Login
	}
	for _, l := range p.Labels {
		pr.Labels = append(pr.Labels, l.Name)
	}
	for _, f := range files {
		pr.Files = append(pr.Files, domain.FileChange{
			Path:      f.Filename,
			Additions: f.Additions,
			Deletions: f.Deletions,
		})
	}
	return pr
}

// mapCheckRuns converts the check-runs listing into domain records.
func mapCheckRuns(runs []apiCheckRun) []domain.CheckRun {
	out := make([]domain.CheckRun, 0, len(runs))
	for _, r := range runs {
		out = append(out, domain.CheckRun{
			Name:       r.Name,
			Status:     r.Status,
			Conclusion: r.Conclusion,
		})
	}
	return out
}
