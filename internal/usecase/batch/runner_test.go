package batch_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prhythm/prhythm/internal/domain"
	"github.com/prhythm/prhythm/internal/usecase/analyze"
	"github.com/prhythm/prhythm/internal/usecase/batch"
)

type fakeSyncer struct {
	synced [][]string
	errs   map[string]error
}

func (f *fakeSyncer) SyncAll(ctx context.Context, repos []string) map[string]error {
	f.synced = append(f.synced, repos)
	out := map[string]error{}
	for _, r := range repos {
		out[r] = f.errs[r]
	}
	return out
}

type fakeLister struct {
	merged map[string][]domain.PullRequest
}

func (f *fakeLister) MergedPulls(ctx context.Context, repo string, limit int) ([]domain.PullRequest, error) {
	return f.merged[repo], nil
}

func (f *fakeLister) Diff(ctx context.Context, repo string, number int) (string, error) {
	return "diff --git a/x b/x\n", nil
}

func (f *fakeLister) Checks(ctx context.Context, repo string, number int) ([]domain.CheckRun, error) {
	return nil, nil
}

type timeoutError struct{}

func (timeoutError) Error() string { return "request timed out" }
func (timeoutError) Timeout() bool { return true }

type fakeAnalyzer struct {
	calls    int
	perKey   map[string]int
	errOnce  map[string]error // error returned until attempts exhausted
	errCount map[string]int   // how many times to fail per key
}

func key(pr domain.PullRequest, lang string) string {
	return pr.Repository + ":" + lang
}

func (f *fakeAnalyzer) RunFetched(ctx context.Context, pr domain.PullRequest, diff string, opts analyze.Options) (*domain.Analysis, error) {
	f.calls++
	k := key(pr, opts.Languages[0])
	if f.perKey == nil {
		f.perKey = map[string]int{}
	}
	f.perKey[k]++
	if remaining := f.errCount[k]; remaining > 0 {
		f.errCount[k] = remaining - 1
		return nil, f.errOnce[k]
	}
	return &domain.Analysis{PR: pr}, nil
}

type fakeWatermark struct {
	latest  map[string]int
	updates []bool
}

func (f *fakeWatermark) LatestProcessed(repo string) int { return f.latest[repo] }

func (f *fakeWatermark) Update(pr domain.PullRequest, operation string, success bool) (bool, error) {
	f.updates = append(f.updates, success)
	if f.latest == nil {
		f.latest = map[string]int{}
	}
	if pr.Number > f.latest[pr.Repository] {
		f.latest[pr.Repository] = pr.Number
	}
	return true, nil
}

type fakeFailures struct {
	rows []string
}

func (f *fakeFailures) RecordFailure(repo string, prNumber int, language string, cause error) error {
	f.rows = append(f.rows, language)
	return nil
}

func fastConfig(repos, langs []string) batch.Config {
	return batch.Config{
		Repos:      repos,
		Languages:  langs,
		RetryPause: time.Millisecond,
		PRPause:    time.Millisecond,
	}
}

func TestRunAnalyzesPendingPRs(t *testing.T) {
	lister := &fakeLister{merged: map[string][]domain.PullRequest{
		"octocat/hello": {
			{Number: 12, Repository: "octocat/hello"},
			{Number: 10, Repository: "octocat/hello"},
			{Number: 8, Repository: "octocat/hello"},
		},
	}}
	analyzer := &fakeAnalyzer{}
	watermark := &fakeWatermark{latest: map[string]int{"octocat/hello": 10}}
	syncer := &fakeSyncer{}

	r := batch.NewRunner(batch.RunnerDeps{
		Syncer:    syncer,
		Lister:    lister,
		Analyzer:  analyzer,
		Watermark: watermark,
	})

	summary, err := r.Run(context.Background(), fastConfig([]string{"octocat/hello"}, []string{"en"}))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.Analyzed != 1 || summary.Failed != 0 {
		t.Fatalf("summary = %+v", summary)
	}
	if analyzer.calls != 1 {
		t.Fatalf("analyzer calls = %d, want only PR 12", analyzer.calls)
	}
	if watermark.latest["octocat/hello"] != 12 {
		t.Fatalf("watermark = %d, want 12", watermark.latest["octocat/hello"])
	}
	if len(syncer.synced) != 1 {
		t.Fatal("expected one sync pass")
	}
}

func TestRunRetriesTimeouts(t *testing.T) {
	repo := "octocat/hello"
	lister := &fakeLister{merged: map[string][]domain.PullRequest{
		repo: {{Number: 5, Repository: repo}},
	}}
	analyzer := &fakeAnalyzer{
		errOnce:  map[string]error{repo + ":en": timeoutError{}},
		errCount: map[string]int{repo + ":en": 2},
	}
	watermark := &fakeWatermark{}

	r := batch.NewRunner(batch.RunnerDeps{
		Syncer:    &fakeSyncer{},
		Lister:    lister,
		Analyzer:  analyzer,
		Watermark: watermark,
	})

	summary, err := r.Run(context.Background(), fastConfig([]string{repo}, []string{"en"}))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if analyzer.perKey[repo+":en"] != 3 {
		t.Fatalf("attempts = %d, want 3 (initial + 2 retries)", analyzer.perKey[repo+":en"])
	}
	if summary.Analyzed != 1 {
		t.Fatalf("summary = %+v, want success on final retry", summary)
	}
}

func TestRunRecordsPersistentFailure(t *testing.T) {
	repo := "octocat/hello"
	lister := &fakeLister{merged: map[string][]domain.PullRequest{
		repo: {{Number: 5, Repository: repo}},
	}}
	analyzer := &fakeAnalyzer{
		errOnce:  map[string]error{repo + ":ja": errors.New("invalid request")},
		errCount: map[string]int{repo + ":ja": 10},
	}
	watermark := &fakeWatermark{}
	failures := &fakeFailures{}

	r := batch.NewRunner(batch.RunnerDeps{
		Syncer:    &fakeSyncer{},
		Lister:    lister,
		Analyzer:  analyzer,
		Watermark: watermark,
		Failures:  failures,
	})

	summary, err := r.Run(context.Background(), fastConfig([]string{repo}, []string{"en", "ja"}))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Non-timeout errors are not retried.
	if analyzer.perKey[repo+":ja"] != 1 {
		t.Fatalf("ja attempts = %d, want 1", analyzer.perKey[repo+":ja"])
	}
	if summary.Failed != 1 || summary.Analyzed != 0 {
		t.Fatalf("summary = %+v", summary)
	}
	if len(failures.rows) != 1 || failures.rows[0] != "ja" {
		t.Fatalf("failure rows = %v", failures.rows)
	}
	// Watermark still advances so the PR is not retried forever,
	// recording the failure.
	if len(watermark.updates) != 1 || watermark.updates[0] {
		t.Fatalf("watermark updates = %v, want one failed update", watermark.updates)
	}
}
