// Package domain defines the core types shared across the pipeline.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// FileChange describes a single file touched by a pull request.
type FileChange struct {
	Path      string `json:"path"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
}

// Changes returns the total number of changed lines for the file.
func (f FileChange) Changes() int {
	return f.Additions + f.Deletions
}

// PullRequest is the normalized record for a GitHub pull request.
// All raw API payloads are mapped into this type at the ingestion
// boundary; nothing downstream touches untyped JSON.
type PullRequest struct {
	Number     int          `json:"number"`
	Title      string       `json:"title"`
	URL        string       `json:"url"`
	State      string       `json:"state"`
	Author     string       `json:"author"`
	Body       string       `json:"body"`
	CreatedAt  time.Time    `json:"createdAt"`
	MergedAt   *time.Time   `json:"mergedAt,omitempty"`
	MergedBy   string       `json:"mergedBy,omitempty"`
	Labels     []string     `json:"labels"`
	Files      []FileChange `json:"files"`
	Checks     []CheckRun   `json:"checks,omitempty"`
	Repository string       `json:"repository"`
	FetchedAt  time.Time    `json:"fetchedAt"`
}

// CheckRun is one CI check result for the pull request's head commit.
type CheckRun struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	Conclusion string `json:"conclusion"`
}

// Passed reports whether the check finished successfully. Neutral and
// skipped conclusions count as passing, matching the GitHub rollup.
func (c CheckRun) Passed() bool {
	switch c.Conclusion {
	case "success", "neutral", "skipped":
		return true
	}
	return false
}

// Merged reports whether the pull request has been merged.
func (pr PullRequest) Merged() bool {
	return pr.MergedAt != nil
}

// TotalChanges returns the sum of additions and deletions across all files.
func (pr PullRequest) TotalChanges() int {
	total := 0
	for _, f := range pr.Files {
		total += f.Changes()
	}
	return total
}

// Description returns the PR body, or a placeholder when it is empty.
func (pr PullRequest) Description() string {
	if strings.TrimSpace(pr.Body) == "" {
		return "No description provided"
	}
	return pr.Body
}

// MergedAtLabel renders the merge timestamp for display.
func (pr PullRequest) MergedAtLabel() string {
	if pr.MergedAt == nil {
		return "Not merged"
	}
	return pr.MergedAt.UTC().Format(time.RFC3339)
}

// MergedByLabel renders the merging user for display.
func (pr PullRequest) MergedByLabel() string {
	if pr.MergedBy == "" {
		return "N/A"
	}
	return pr.MergedBy
}

// LabelsLabel renders the label list for display.
func (pr PullRequest) LabelsLabel() string {
	if len(pr.Labels) == 0 {
		return "None"
	}
	return strings.Join(pr.Labels, ", ")
}

// ChecksLabel renders the CI check rollup for display. API tokens
// without checks:read scope yield no runs, so absence is reported as
// unavailable rather than as a failure.
func (pr PullRequest) ChecksLabel() string {
	if len(pr.Checks) == 0 {
		return "Not available"
	}
	passed := 0
	var failing []string
	for _, c := range pr.Checks {
		if c.Passed() {
			passed++
			continue
		}
		failing = append(failing, c.Name)
	}
	if len(failing) == 0 {
		return fmt.Sprintf("%d/%d checks passed", passed, len(pr.Checks))
	}
	return fmt.Sprintf("%d/%d checks passed (failing: %s)", passed, len(pr.Checks), strings.Join(failing, ", "))
}

// ShortRepoName returns the repository name without the owner prefix.
// "golang/go" becomes "go"; a bare name is returned unchanged.
func ShortRepoName(repo string) string {
	if idx := strings.LastIndex(repo, "/"); idx >= 0 {
		return repo[idx+1:]
	}
	return repo
}
