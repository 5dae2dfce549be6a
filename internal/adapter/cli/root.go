// Package cli exposes the pipeline as a Cobra command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/prhythm/prhythm/internal/adapter/github"
	"github.com/prhythm/prhythm/internal/domain"
	"github.com/prhythm/prhythm/internal/usecase/analyze"
	"github.com/prhythm/prhythm/internal/usecase/batch"
	"github.com/prhythm/prhythm/internal/usecase/track"
)

// ErrVersionRequested indicates the user requested the CLI version and
// no further work should be done.
var ErrVersionRequested = errors.New("version requested")

// Analyzer runs the pipeline for a single pull request.
type Analyzer interface {
	Run(ctx context.Context, repo string, number int, opts analyze.Options) (*domain.Analysis, error)
}

// BatchRunner executes one batch pass.
type BatchRunner interface {
	Run(ctx context.Context, cfg batch.Config) (batch.Summary, error)
}

// Lister fetches merged pull requests.
type Lister interface {
	MergedPulls(ctx context.Context, repo string, limit int) ([]domain.PullRequest, error)
}

// Watermark reads the per-repository watermark.
type Watermark interface {
	LatestProcessed(repo string) int
}

// Syncer clones or updates repository mirrors.
type Syncer interface {
	SyncAll(ctx context.Context, repos []string) map[string]error
}

// HistoryEntry is one row shown by the history command.
type HistoryEntry struct {
	Repository string
	PRNumber   int
	Language   string
	Provider   string
	Model      string
	ReportPath string
	CreatedAt  time.Time
}

// HistoryLister lists past analyses.
type HistoryLister interface {
	ListHistory(ctx context.Context, repository string, limit int) ([]HistoryEntry, error)
}

// Arguments encapsulates IO writers injected from the host process.
type Arguments struct {
	OutWriter io.Writer
	ErrWriter io.Writer
}

// Defaults holds configuration-derived defaults for flag values.
type Defaults struct {
	Repos     []string
	Languages []string
	Limit     int
}

// Dependencies captures the collaborators for the CLI.
type Dependencies struct {
	Args      Arguments
	Analyzer  Analyzer
	Batch     BatchRunner
	Lister    Lister
	Watermark Watermark
	Syncer    Syncer
	History   HistoryLister
	Defaults  Defaults
	Version   string
}

// NewRootCommand constructs the root Cobra command.
func NewRootCommand(deps Dependencies) *cobra.Command {
	versionString := deps.Version
	if versionString == "" {
		versionString = "v0.0.0"
	}

	root := &cobra.Command{
		Use:   "prhythm",
		Short: "Analyze merged GitHub pull requests with an LLM",
	}
	root.SilenceUsage = true
	root.SilenceErrors = true

	outWriter := deps.Args.OutWriter
	if outWriter == nil {
		outWriter = os.Stdout
	}
	errWriter := deps.Args.ErrWriter
	if errWriter == nil {
		errWriter = os.Stderr
	}
	root.SetOut(outWriter)
	root.SetErr(errWriter)

	root.AddCommand(analyzeCommand(deps))
	root.AddCommand(batchCommand(deps))
	root.AddCommand(trackCommand(deps))
	root.AddCommand(syncCommand(deps))
	root.AddCommand(historyCommand(deps))
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), versionString)
			return err
		},
	})

	var showVersion bool
	root.PersistentFlags().BoolVarP(&showVersion, "version", "v", false, "Show version and exit")
	versionHandler := func(cmd *cobra.Command, args []string) error {
		if showVersion {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), versionString)
			return ErrVersionRequested
		}
		return nil
	}
	root.PersistentPreRunE = versionHandler
	root.RunE = func(cmd *cobra.Command, args []string) error {
		if err := versionHandler(cmd, args); err != nil {
			return err
		}
		return cmd.Help()
	}

	return root
}

func analyzeCommand(deps Dependencies) *cobra.Command {
	var repo string
	var number int
	var languages []string
	var dryRun bool
	var saveDiff bool
	var skipContext bool

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze a single merged pull request",
		RunE: func(cmd *cobra.Command, args []string) error {
			if repo == "" {
				return fmt.Errorf("--repo is required")
			}
			repo, err := github.ValidateRepo(repo)
			if err != nil {
				return err
			}
			if number <= 0 {
				return fmt.Errorf("--pr must be a positive integer")
			}

			langs := languages
			if len(langs) == 0 {
				langs = deps.Defaults.Languages
			}
			langs = domain.NormalizeLanguages(langs)

			result, err := deps.Analyzer.Run(cmd.Context(), repo, number, analyze.Options{
				Languages:   langs,
				DryRun:      dryRun,
				SaveDiff:    saveDiff,
				SkipContext: skipContext,
				StatusOp:    "analysis_complete",
			})
			if err != nil {
				return err
			}

			if dryRun {
				fmt.Fprintf(cmd.OutOrStdout(), "Dry run: prompt prepared for %s#%d (%d chars)\n",
					repo, number, len(result.Prompt))
				return nil
			}
			for _, lang := range langs {
				if path, ok := result.ReportPaths[lang]; ok {
					fmt.Fprintf(cmd.OutOrStdout(), "Saved analysis report: %s\n", path)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&repo, "repo", "", "Repository in owner/repo format or GitHub URL")
	cmd.Flags().IntVar(&number, "pr", 0, "Pull request number")
	cmd.Flags().StringSliceVar(&languages, "language", nil, "Output language codes (default from config)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Build and save the prompt without calling the LLM")
	cmd.Flags().BoolVar(&saveDiff, "save-diff", false, "Also save the unified diff as a patch file")
	cmd.Flags().BoolVar(&skipContext, "skip-context", false, "Skip module context extraction")
	return cmd
}

func batchCommand(deps Dependencies) *cobra.Command {
	var limit int
	var saveDiff bool
	var skipContext bool
	var schedule int

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Analyze all unprocessed merged pull requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(deps.Defaults.Repos) == 0 {
				return fmt.Errorf("no repositories configured")
			}

			cfg := batch.Config{
				Repos:       deps.Defaults.Repos,
				Languages:   deps.Defaults.Languages,
				Limit:       limit,
				SaveDiff:    saveDiff,
				SkipContext: skipContext,
			}

			runOnce := func(ctx context.Context) error {
				summary, err := deps.Batch.Run(ctx, cfg)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Batch finished: %d repos, %d analyzed, %d failed\n",
					summary.Repos, summary.Analyzed, summary.Failed)
				return nil
			}

			ctx := cmd.Context()
			if err := runOnce(ctx); err != nil {
				return err
			}
			if schedule <= 0 {
				return nil
			}

			interval := time.Duration(schedule) * time.Second
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-ticker.C:
					if err := runOnce(ctx); err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "batch pass failed: %v\n", err)
					}
				}
			}
		},
	}

	cmd.Flags().IntVar(&limit, "limit", deps.Defaults.Limit, "Merged PRs fetched per repository")
	cmd.Flags().BoolVar(&saveDiff, "save-diff", true, "Also save unified diffs as patch files")
	cmd.Flags().BoolVar(&skipContext, "skip-context", false, "Skip module context extraction")
	cmd.Flags().IntVar(&schedule, "schedule", 0, "Repeat every N seconds (0 runs once)")
	return cmd
}

func trackCommand(deps Dependencies) *cobra.Command {
	var repo string
	var limit int

	cmd := &cobra.Command{
		Use:   "track",
		Short: "List merged pull requests not yet analyzed",
		RunE: func(cmd *cobra.Command, args []string) error {
			repos := deps.Defaults.Repos
			if repo != "" {
				normalized, err := github.ValidateRepo(repo)
				if err != nil {
					return err
				}
				repos = []string{normalized}
			}
			if len(repos) == 0 {
				return fmt.Errorf("no repositories configured; pass --repo")
			}

			for _, r := range repos {
				merged, err := deps.Lister.MergedPulls(cmd.Context(), r, limit)
				if err != nil {
					return fmt.Errorf("list merged pull requests for %s: %w", r, err)
				}
				pending := track.FindUnsynced(merged, deps.Watermark.LatestProcessed(r))

				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d merged fetched, %d pending\n", r, len(merged), len(pending))
				for _, pr := range pending {
					fmt.Fprintf(cmd.OutOrStdout(), "  #%d %s\n", pr.Number, pr.Title)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&repo, "repo", "", "Repository in owner/repo format (default: all configured)")
	cmd.Flags().IntVar(&limit, "limit", deps.Defaults.Limit, "Merged PRs fetched per repository")
	return cmd
}

func syncCommand(deps Dependencies) *cobra.Command {
	var repo string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Clone or update local repository mirrors",
		RunE: func(cmd *cobra.Command, args []string) error {
			repos := deps.Defaults.Repos
			if repo != "" {
				normalized, err := github.ValidateRepo(repo)
				if err != nil {
					return err
				}
				repos = []string{normalized}
			}
			if len(repos) == 0 {
				return fmt.Errorf("no repositories configured; pass --repo")
			}

			failures := 0
			for r, err := range deps.Syncer.SyncAll(cmd.Context(), repos) {
				if err != nil {
					failures++
					fmt.Fprintf(cmd.ErrOrStderr(), "sync %s: %v\n", r, err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Synced %d repositories (%d failed)\n", len(repos)-failures, failures)
			if failures > 0 {
				return fmt.Errorf("%d repositories failed to sync", failures)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&repo, "repo", "", "Repository in owner/repo format (default: all configured)")
	return cmd
}

func historyCommand(deps Dependencies) *cobra.Command {
	var repo string
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past analyses",
		RunE: func(cmd *cobra.Command, args []string) error {
			if deps.History == nil {
				return fmt.Errorf("analysis history is not configured; set paths.history_db")
			}
			entries, err := deps.History.ListHistory(cmd.Context(), repo, limit)
			if err != nil {
				return fmt.Errorf("list history: %w", err)
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No analyses recorded yet")
				return nil
			}
			for _, e := range entries {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s#%d [%s] %s/%s  %s\n",
					e.CreatedAt.Format("2006-01-02 15:04"),
					e.Repository, e.PRNumber, e.Language, e.Provider, e.Model, e.ReportPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&repo, "repo", "", "Filter by repository")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum rows to show")
	return cmd
}
