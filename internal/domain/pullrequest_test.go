package domain_test

import (
	"testing"
	"time"

	"github.com/prhythm/prhythm/internal/domain"
)

func TestPullRequestDescriptionFallback(t *testing.T) {
	pr := domain.PullRequest{Body: "   "}
	if got := pr.Description(); got != "No description provided" {
		t.Fatalf("unexpected description: %q", got)
	}

	pr.Body = "Fixes a bug"
	if got := pr.Description(); got != "Fixes a bug" {
		t.Fatalf("unexpected description: %q", got)
	}
}

func TestPullRequestMergeLabels(t *testing.T) {
	pr := domain.PullRequest{}
	if pr.Merged() {
		t.Fatal("expected unmerged PR")
	}
	if got := pr.MergedAtLabel(); got != "Not merged" {
		t.Fatalf("unexpected merged-at label: %q", got)
	}
	if got := pr.MergedByLabel(); got != "N/A" {
		t.Fatalf("unexpected merged-by label: %q", got)
	}

	mergedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	pr.MergedAt = &mergedAt
	pr.MergedBy = "octocat"
	if !pr.Merged() {
		t.Fatal("expected merged PR")
	}
	if got := pr.MergedAtLabel(); got != "2025-06-01T12:00:00Z" {
		t.Fatalf("unexpected merged-at label: %q", got)
	}
	if got := pr.MergedByLabel(); got != "octocat" {
		t.Fatalf("unexpected merged-by label: %q", got)
	}
}

func TestPullRequestLabelsLabel(t *testing.T) {
	pr := domain.PullRequest{}
	if got := pr.LabelsLabel(); got != "None" {
		t.Fatalf("unexpected labels: %q", got)
	}
	pr.Labels = []string{"bug", "backport"}
	if got := pr.LabelsLabel(); got != "bug, backport" {
		t.Fatalf("unexpected labels: %q", got)
	}
}

func TestPullRequestChecksLabel(t *testing.T) {
	pr := domain.PullRequest{}
	if got := pr.ChecksLabel(); got != "Not available" {
		t.Fatalf("unexpected empty rollup: %q", got)
	}

	pr.Checks = []domain.CheckRun{
		{Name: "build", Conclusion: "success"},
		{Name: "docs", Conclusion: "skipped"},
	}
	if got := pr.ChecksLabel(); got != "2/2 checks passed" {
		t.Fatalf("unexpected passing rollup: %q", got)
	}

	pr.Checks = append(pr.Checks, domain.CheckRun{Name: "lint", Conclusion: "failure"})
	if got := pr.ChecksLabel(); got != "2/3 checks passed (failing: lint)" {
		t.Fatalf("unexpected failing rollup: %q", got)
	}
}

func TestPullRequestTotalChanges(t *testing.T) {
	pr := domain.PullRequest{
		Files: []domain.FileChange{
			{Path: "a.go", Additions: 10, Deletions: 5},
			{Path: "b.go", Additions: 1, Deletions: 0},
		},
	}
	if got := pr.TotalChanges(); got != 16 {
		t.Fatalf("unexpected total changes: %d", got)
	}
}

func TestShortRepoName(t *testing.T) {
	if got := domain.ShortRepoName("golang/go"); got != "go" {
		t.Fatalf("unexpected short name: %q", got)
	}
	if got := domain.ShortRepoName("standalone"); got != "standalone" {
		t.Fatalf("unexpected short name: %q", got)
	}
}
