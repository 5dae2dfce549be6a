package github_test

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prhythm/prhythm/internal/adapter/github"
	llmhttp "github.com/prhythm/prhythm/internal/adapter/llm/http"
)

func fastRetry() llmhttp.RetryConfig {
	return llmhttp.RetryConfig{
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *github.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := github.NewClient("test-token", fastRetry())
	client.SetBaseURL(server.URL)
	return client
}

func TestMergedPullsFiltersUnmerged(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/golang/go/pulls" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("state") != "closed" || q.Get("sort") != "updated" || q.Get("direction") != "desc" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("unexpected auth: %s", got)
		}
		if got := r.Header.Get("X-GitHub-Api-Version"); got != "2022-11-28" {
			t.Errorf("missing api version header: %s", got)
		}
		fmt.Fprint(w, `[
			{"number": 3, "title": "merged", "merged_at": "2025-06-01T00:00:00Z", "user": {"login": "alice"}},
			{"number": 2, "title": "closed only", "merged_at": null},
			{"number": 1, "title": "older merged", "merged_at": "2025-05-01T00:00:00Z"}
		]`)
	})

	pulls, err := client.MergedPulls(context.Background(), "golang/go", 10)
	if err != nil {
		t.Fatalf("MergedPulls returned error: %v", err)
	}
	if len(pulls) != 2 {
		t.Fatalf("expected 2 merged PRs, got %d", len(pulls))
	}
	if pulls[0].Number != 3 || pulls[0].Author != "alice" {
		t.Fatalf("unexpected first PR: %+v", pulls[0])
	}
	if pulls[0].Repository != "golang/go" {
		t.Fatalf("repository not stamped: %q", pulls[0].Repository)
	}
}

func TestPullRequestMapsRecordAndFiles(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/o/r/pulls/7":
			fmt.Fprint(w, `{
				"number": 7, "title": "Add feature", "html_url": "https://github.com/o/r/pull/7",
				"state": "closed", "body": "Detailed body",
				"user": {"login": "bob"}, "merged_by": {"login": "carol"},
				"created_at": "2025-05-30T10:00:00Z", "merged_at": "2025-06-01T00:00:00Z",
				"labels": [{"name": "feature"}, {"name": "v2"}]
			}`)
		case "/repos/o/r/pulls/7/files":
			fmt.Fprint(w, `[
				{"filename": "core/server.go", "additions": 120, "deletions": 30},
				{"filename": "docs/readme.md", "additions": 5, "deletions": 0}
			]`)
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	pr, err := client.PullRequest(context.Background(), "o/r", 7)
	if err != nil {
		t.Fatalf("PullRequest returned error: %v", err)
	}
	if pr.Number != 7 || pr.Title != "Add feature" || pr.Author != "bob" || pr.MergedBy != "carol" {
		t.Fatalf("unexpected PR: %+v", pr)
	}
	if len(pr.Labels) != 2 || pr.Labels[0] != "feature" {
		t.Fatalf("unexpected labels: %v", pr.Labels)
	}
	if len(pr.Files) != 2 || pr.Files[0].Path != "core/server.go" || pr.Files[0].Additions != 120 {
		t.Fatalf("unexpected files: %+v", pr.Files)
	}
	if !pr.Merged() {
		t.Fatal("expected merged PR")
	}
}

func TestDiffUsesDiffAccept(t *testing.T) {
	const diff = "diff --git a/main.go b/main.go\n"
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Accept"); got != "application/vnd.github.v3.diff" {
			t.Errorf("unexpected accept header: %s", got)
		}
		fmt.Fprint(w, diff)
	})

	got, err := client.Diff(context.Background(), "o/r", 7)
	if err != nil {
		t.Fatalf("Diff returned error: %v", err)
	}
	if got != diff {
		t.Fatalf("unexpected diff: %q", got)
	}
}

func TestChecksFetchesHeadCheckRuns(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/o/r/pulls/7":
			fmt.Fprint(w, `{"number": 7, "head": {"sha": "abc123"}}`)
		case "/repos/o/r/commits/abc123/check-runs":
			fmt.Fprint(w, `{"total_count": 1, "check_runs": [{"name": "ci", "status": "completed", "conclusion": "success"}]}`)
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
	})

	runs, err := client.Checks(context.Background(), "o/r", 7)
	if err != nil {
		t.Fatalf("Checks returned error: %v", err)
	}
	if len(runs) != 1 || runs[0].Name != "ci" || runs[0].Conclusion != "success" {
		t.Fatalf("unexpected runs: %+v", runs)
	}
}

func TestFileContentDecodesBase64(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte("package main\n"))
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/o/r/contents/cmd/main.go" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		fmt.Fprintf(w, `{"type": "file", "path": "cmd/main.go", "encoding": "base64", "content": "%s"}`, encoded)
	})

	content, err := client.FileContent(context.Background(), "o/r", "cmd/main.go")
	if err != nil {
		t.Fatalf("FileContent returned error: %v", err)
	}
	if content != "package main\n" {
		t.Fatalf("unexpected content: %q", content)
	}
}

func TestListDirReturnsFileNames(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"type": "file", "name": "server.go"},
			{"type": "dir", "name": "internal"},
			{"type": "file", "name": "server_test.go"}
		]`)
	})

	names, err := client.ListDir(context.Background(), "o/r", "core")
	if err != nil {
		t.Fatalf("ListDir returned error: %v", err)
	}
	if len(names) != 2 || names[0] != "server.go" || names[1] != "server_test.go" {
		t.Fatalf("unexpected names: %v", names)
	}
}

func TestRateLimitRetried(t *testing.T) {
	attempts := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.Header().Set("X-Ratelimit-Remaining", "0")
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"message": "API rate limit exceeded"}`)
			return
		}
		fmt.Fprint(w, `[]`)
	})

	if _, err := client.MergedPulls(context.Background(), "o/r", 5); err != nil {
		t.Fatalf("expected recovery after rate limit, got %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestNotFoundNotRetried(t *testing.T) {
	attempts := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message": "Not Found"}`)
	})

	_, err := client.PullRequest(context.Background(), "o/r", 999)
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Fatalf("404 must not be retried, got %d attempts", attempts)
	}
}

func TestValidateRepo(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"owner/repo", "owner/repo", false},
		{"https://github.com/owner/repo", "owner/repo", false},
		{"https://github.com/owner/repo.git", "owner/repo", false},
		{"git@github.com:owner/repo.git", "owner/repo", false},
		{"https://github.com/owner/repo/", "owner/repo", false},
		{"not a repo", "", true},
		{"git@gitlab.com:owner/repo.git", "", true},
		{"owner@host/repo", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := github.ValidateRepo(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ValidateRepo(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ValidateRepo(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ValidateRepo(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
