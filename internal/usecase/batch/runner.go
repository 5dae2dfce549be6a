// Package batch processes every unanalyzed merged pull request across
// the configured repositories in one pass.
package batch

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/prhythm/prhythm/internal/domain"
	"github.com/prhythm/prhythm/internal/usecase/analyze"
	"github.com/prhythm/prhythm/internal/usecase/track"
)

// Syncer keeps the local repository mirrors up to date.
type Syncer interface {
	SyncAll(ctx context.Context, repos []string) map[string]error
}

// Lister fetches merged pull requests, their diffs, and check runs.
type Lister interface {
	MergedPulls(ctx context.Context, repo string, limit int) ([]domain.PullRequest, error)
	Diff(ctx context.Context, repo string, number int) (string, error)
	Checks(ctx context.Context, repo string, number int) ([]domain.CheckRun, error)
}

// Analyzer runs the analysis pipeline for one already-fetched PR.
type Analyzer interface {
	RunFetched(ctx context.Context, pr domain.PullRequest, diff string, opts analyze.Options) (*domain.Analysis, error)
}

// Watermark reads and advances the per-repository watermark.
type Watermark interface {
	LatestProcessed(repo string) int
	Update(pr domain.PullRequest, operation string, success bool) (bool, error)
}

// FailureLog records LLM requests that ultimately failed.
type FailureLog interface {
	RecordFailure(repo string, prNumber int, language string, cause error) error
}

// Summary counts what one batch pass did.
type Summary struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Repos      int
	Analyzed   int
	Failed     int
}

// History records batch run summaries.
type History interface {
	RecordBatch(ctx context.Context, s Summary) error
}

// Config controls one batch pass.
type Config struct {
	Repos       []string
	Languages   []string
	Limit       int // merged PRs fetched per repository
	SaveDiff    bool
	SkipContext bool

	// MaxRetries is the number of extra attempts after a timed-out LLM
	// request. Other errors are not retried.
	MaxRetries int
	RetryPause time.Duration // wait between timeout retries
	PRPause    time.Duration // wait between pull requests
}

func (c Config) withDefaults() Config {
	if c.Limit <= 0 {
		c.Limit = 10
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 2
	}
	if c.RetryPause == 0 {
		c.RetryPause = 3 * time.Second
	}
	if c.PRPause == 0 {
		c.PRPause = 5 * time.Second
	}
	return c
}

// Runner drives the batch workflow: sync mirrors, find unsynced merged
// PRs, analyze each one per language, and advance the watermark.
type Runner struct {
	syncer    Syncer
	lister    Lister
	analyzer  Analyzer
	watermark Watermark
	failures  FailureLog
	history   History
	logger    analyze.Logger
	sleep     func(ctx context.Context, d time.Duration)
}

// RunnerDeps bundles the runner's collaborators. Failures, history, and
// logger may be nil.
type RunnerDeps struct {
	Syncer    Syncer
	Lister    Lister
	Analyzer  Analyzer
	Watermark Watermark
	Failures  FailureLog
	History   History
	Logger    analyze.Logger
}

// NewRunner wires up a batch runner.
func NewRunner(deps RunnerDeps) *Runner {
	return &Runner{
		syncer:    deps.Syncer,
		lister:    deps.Lister,
		analyzer:  deps.Analyzer,
		watermark: deps.Watermark,
		failures:  deps.Failures,
		history:   deps.History,
		logger:    deps.Logger,
		sleep:     sleepCtx,
	}
}

// Run executes one batch pass and returns its summary. Per-repository
// and per-PR failures are logged and counted but do not abort the pass;
// only context cancellation stops it early.
func (r *Runner) Run(ctx context.Context, cfg Config) (Summary, error) {
	cfg = cfg.withDefaults()
	summary := Summary{StartedAt: time.Now()}

	for repo, err := range r.syncer.SyncAll(ctx, cfg.Repos) {
		if err != nil {
			r.warn(ctx, "repository sync failed", map[string]interface{}{
				"repository": repo,
				"error":      err.Error(),
			})
		}
	}

	for _, repo := range cfg.Repos {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		summary.Repos++

		merged, err := r.lister.MergedPulls(ctx, repo, cfg.Limit)
		if err != nil {
			r.warn(ctx, "failed to list merged pull requests", map[string]interface{}{
				"repository": repo,
				"error":      err.Error(),
			})
			continue
		}

		pending := track.FindUnsynced(merged, r.watermark.LatestProcessed(repo))
		r.info(ctx, "repository scanned", map[string]interface{}{
			"repository": repo,
			"merged":     len(merged),
			"pending":    len(pending),
		})

		for i, pr := range pending {
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			if i > 0 {
				r.sleep(ctx, cfg.PRPause)
			}

			if r.processPR(ctx, pr, cfg) {
				summary.Analyzed++
			} else {
				summary.Failed++
			}
		}
	}

	summary.FinishedAt = time.Now()
	if r.history != nil {
		if err := r.history.RecordBatch(ctx, summary); err != nil {
			r.warn(ctx, "failed to record batch summary", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
	return summary, ctx.Err()
}

// processPR analyzes one pull request in every configured language and
// advances the watermark regardless of outcome, recording success or
// failure so the PR is not retried forever.
func (r *Runner) processPR(ctx context.Context, pr domain.PullRequest, cfg Config) bool {
	unified, err := r.lister.Diff(ctx, pr.Repository, pr.Number)
	if err != nil {
		r.warn(ctx, "failed to fetch diff, continuing without it", map[string]interface{}{
			"repository": pr.Repository,
			"pr":         pr.Number,
			"error":      err.Error(),
		})
		unified = ""
	}

	checks, err := r.lister.Checks(ctx, pr.Repository, pr.Number)
	if err != nil {
		r.warn(ctx, "failed to fetch check runs, continuing without them", map[string]interface{}{
			"repository": pr.Repository,
			"pr":         pr.Number,
			"error":      err.Error(),
		})
	} else {
		pr.Checks = checks
	}

	success := true
	for _, lang := range cfg.Languages {
		if !r.analyzeLanguage(ctx, pr, unified, lang, cfg) {
			success = false
		}
	}

	if _, err := r.watermark.Update(pr, "analysis_complete", success); err != nil {
		r.warn(ctx, "failed to update processing status", map[string]interface{}{
			"repository": pr.Repository,
			"pr":         pr.Number,
			"error":      err.Error(),
		})
	}
	return success
}

// analyzeLanguage runs one per-language analysis, retrying timed-out
// LLM requests a limited number of times.
func (r *Runner) analyzeLanguage(ctx context.Context, pr domain.PullRequest, unified, lang string, cfg Config) bool {
	opts := analyze.Options{
		Languages:   []string{lang},
		SaveDiff:    cfg.SaveDiff,
		SkipContext: cfg.SkipContext,
	}

	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			r.info(ctx, "retrying timed-out analysis", map[string]interface{}{
				"repository": pr.Repository,
				"pr":         pr.Number,
				"language":   lang,
				"attempt":    attempt,
			})
			r.sleep(ctx, cfg.RetryPause)
		}

		_, err := r.analyzer.RunFetched(ctx, pr, unified, opts)
		if err == nil {
			return true
		}
		lastErr = err
		if !isTimeout(err) {
			break
		}
	}

	r.warn(ctx, "analysis failed", map[string]interface{}{
		"repository": pr.Repository,
		"pr":         pr.Number,
		"language":   lang,
		"error":      lastErr.Error(),
	})
	if r.failures != nil {
		if err := r.failures.RecordFailure(pr.Repository, pr.Number, lang, lastErr); err != nil {
			r.warn(ctx, "failed to record failure", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
	return false
}

// isTimeout reports whether err is a timeout worth retrying.
func isTimeout(err error) bool {
	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "timed out")
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (r *Runner) info(ctx context.Context, message string, fields map[string]interface{}) {
	if r.logger != nil {
		r.logger.LogInfo(ctx, message, fields)
	}
}

func (r *Runner) warn(ctx context.Context, message string, fields map[string]interface{}) {
	if r.logger != nil {
		r.logger.LogWarning(ctx, message, fields)
	}
}
