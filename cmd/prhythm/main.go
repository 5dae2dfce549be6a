package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prhythm/prhythm/internal/adapter/cli"
	"github.com/prhythm/prhythm/internal/adapter/git"
	githubadapter "github.com/prhythm/prhythm/internal/adapter/github"
	"github.com/prhythm/prhythm/internal/adapter/llm"
	llmhttp "github.com/prhythm/prhythm/internal/adapter/llm/http"
	"github.com/prhythm/prhythm/internal/adapter/llm/openai"
	"github.com/prhythm/prhythm/internal/adapter/observability"
	jsonout "github.com/prhythm/prhythm/internal/adapter/output/json"
	"github.com/prhythm/prhythm/internal/adapter/output/logs"
	"github.com/prhythm/prhythm/internal/adapter/output/markdown"
	"github.com/prhythm/prhythm/internal/adapter/store/sqlite"
	"github.com/prhythm/prhythm/internal/adapter/store/status"
	"github.com/prhythm/prhythm/internal/config"
	"github.com/prhythm/prhythm/internal/redaction"
	"github.com/prhythm/prhythm/internal/usecase/analyze"
	"github.com/prhythm/prhythm/internal/usecase/batch"
	"github.com/prhythm/prhythm/internal/version"
)

func main() {
	if err := run(); err != nil {
		// Redact API keys from URLs in error messages before logging
		log.Println(llmhttp.RedactURLSecrets(err.Error()))
		os.Exit(1)
	}
}

func run() error {
	// Cancellable context with signal handling for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Config path and logging flags are resolved before Cobra runs so
	// every subcommand sees the same fully-wired dependencies.
	configFile := stringFlag(os.Args[1:], "config")

	cfg, err := config.Load(config.LoaderOptions{
		ConfigFile:  configFile,
		ConfigPaths: defaultConfigPaths(),
		FileName:    "config",
	})
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	for i, repo := range cfg.GitHub.Repositories {
		normalized, err := githubadapter.ValidateRepo(repo)
		if err != nil {
			return fmt.Errorf("invalid configuration: github.repositories[%d]: %w", i, err)
		}
		cfg.GitHub.Repositories[i] = normalized
	}

	if level := stringFlag(os.Args[1:], "log-level"); level != "" {
		cfg.Log.Level = level
	}
	if format := stringFlag(os.Args[1:], "log-format"); format != "" {
		cfg.Log.Format = format
	}

	logger := buildLogger(cfg.Log)

	retryConf := retryFromConfig(cfg.LLM)

	github := githubadapter.NewClient(cfg.ResolveToken(), retryConf)
	mirror := git.NewMirror(cfg.Paths.ReposDir)

	completer, err := buildCompleter(cfg, retryConf)
	if err != nil {
		return err
	}

	nowFunc := time.Now

	reports := markdown.NewWriter(cfg.Paths.AnalysisDir, nowFunc, logger)
	records := jsonout.NewWriter(cfg.Paths.OutputDir, nowFunc)
	logDir := logs.NewDir(cfg.Paths.LogDir, nowFunc)
	tracker := status.NewTracker(cfg.Paths.ReposDir, nowFunc)

	// Analysis history is best-effort: a broken database warns and the
	// pipeline keeps running without it.
	var history *historyStore
	if cfg.Paths.HistoryDB != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Paths.HistoryDB), 0755); err != nil {
			log.Printf("warning: failed to create history directory: %v", err)
		} else if store, err := sqlite.NewStore(cfg.Paths.HistoryDB); err != nil {
			log.Printf("warning: failed to initialize history store: %v", err)
		} else {
			history = &historyStore{store: store}
			defer store.Close()
		}
	}

	redactor := redaction.NewEngine()

	extractor := analyze.NewContextExtractor(mirror, github, logger)
	prompts := analyze.NewPromptBuilder()
	splitter := analyze.NewSplitter(logger)

	deps := analyze.OrchestratorDeps{
		Source:      github,
		Local:       mirror,
		Extractor:   extractor,
		Prompts:     prompts,
		Completer:   completer,
		Splitter:    splitter,
		Reports:     reports,
		Records:     records,
		PromptLog:   logDir,
		Watermark:   tracker,
		Redactor:    redactor,
		Temperature: cfg.LLM.Temperature,
		Logger:      logger,
	}
	if history != nil {
		deps.History = history
	}
	orchestrator := analyze.NewOrchestrator(deps)

	// The batch runner records the watermark itself, with the per-PR
	// success flag, so its orchestrator must not also advance it.
	batchDeps := deps
	batchDeps.Watermark = nil
	batchOrchestrator := analyze.NewOrchestrator(batchDeps)

	runnerDeps := batch.RunnerDeps{
		Syncer:    mirror,
		Lister:    github,
		Analyzer:  batchOrchestrator,
		Watermark: tracker,
		Failures:  logDir,
		Logger:    logger,
	}
	if history != nil {
		runnerDeps.History = history
	}
	runner := batch.NewRunner(runnerDeps)

	cliDeps := cli.Dependencies{
		Args: cli.Arguments{
			OutWriter: os.Stdout,
			ErrWriter: os.Stderr,
		},
		Analyzer:  orchestrator,
		Batch:     runner,
		Lister:    github,
		Watermark: tracker,
		Syncer:    mirror,
		Defaults: cli.Defaults{
			Repos:     cfg.GitHub.Repositories,
			Languages: cfg.Languages(),
			Limit:     10,
		},
		Version: version.Value(),
	}
	if history != nil {
		cliDeps.History = history
	}

	root := cli.NewRootCommand(cliDeps)
	root.PersistentFlags().String("config", "", "Path to the configuration file")
	root.PersistentFlags().String("log-level", "", "Override the configured log level")
	root.PersistentFlags().String("log-format", "", "Override the configured log format (human, json)")

	if err := root.ExecuteContext(ctx); err != nil {
		if errors.Is(err, cli.ErrVersionRequested) {
			return nil
		}
		return fmt.Errorf("command failed: %w", err)
	}
	return nil
}

// stringFlag extracts a --name value from the raw arguments without
// consuming the rest of the command line.
func stringFlag(args []string, name string) string {
	fs := flag.NewFlagSet("pre", flag.ContinueOnError)
	fs.SetOutput(nopWriter{})
	fs.Usage = func() {}
	value := fs.String(name, "", "")
	prefix := "--" + name + "="
	for i, arg := range args {
		if arg == "--"+name || arg == "-"+name {
			_ = fs.Parse(args[i:])
			break
		}
		if strings.HasPrefix(arg, prefix) {
			return arg[len(prefix):]
		}
	}
	return *value
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func defaultConfigPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".prhythm"))
	}
	return paths
}

// buildLogger constructs the application logger. JSON format is forced
// when stdout is not a terminal so piped output stays parseable.
func buildLogger(cfg config.LogConfig) *observability.Logger {
	format := cfg.Format
	if format == "human" && !cli.IsOutputTerminal() {
		format = "json"
	}
	return observability.NewLogger(cfg.Level, format)
}

// retryFromConfig builds the shared retry policy used by every
// outbound HTTP client.
func retryFromConfig(cfg config.LLMConfig) llmhttp.RetryConfig {
	conf := llmhttp.DefaultRetryConfig()
	if cfg.MaxRetries > 0 {
		conf.MaxRetries = cfg.MaxRetries
	}
	if d, err := time.ParseDuration(cfg.InitialBackoff); err == nil && d > 0 {
		conf.InitialBackoff = d
	}
	if d, err := time.ParseDuration(cfg.MaxBackoff); err == nil && d > 0 {
		conf.MaxBackoff = d
	}
	return conf
}

func buildCompleter(cfg config.Config, retryConf llmhttp.RetryConfig) (*completerAdapter, error) {
	name, pc, err := cfg.ActiveProvider()
	if err != nil {
		return nil, err
	}
	apiKey, err := cfg.ResolveAPIKey(name, pc)
	if err != nil {
		return nil, err
	}

	client := openai.NewClient(name, apiKey, pc.Model, pc.BaseURL, retryConf)

	level := llmhttp.LogLevelInfo
	if cfg.Log.Level == "debug" {
		level = llmhttp.LogLevelDebug
	}
	format := llmhttp.LogFormatHuman
	if cfg.Log.Format == "json" || !cli.IsOutputTerminal() {
		format = llmhttp.LogFormatJSON
	}
	client.SetLogger(llmhttp.NewDefaultLogger(level, format, true))

	return &completerAdapter{client: client, maxTokens: pc.MaxTokens}, nil
}

// completerAdapter bridges the chat-completion client into the analysis
// pipeline's completer contract. maxTokens, when positive, is the
// provider-configured ceiling applied on top of the complexity scaling.
type completerAdapter struct {
	client    *openai.Client
	maxTokens int
}

func (a *completerAdapter) Provider() string { return a.client.Provider() }
func (a *completerAdapter) Model() string    { return a.client.Model() }

func (a *completerAdapter) Generate(ctx context.Context, req analyze.CompletionRequest) (analyze.CompletionResult, error) {
	if a.maxTokens > 0 && req.MaxTokens > a.maxTokens {
		req.MaxTokens = a.maxTokens
	}
	completion, err := a.client.Complete(ctx, req.Prompt, openai.CallOptions{
		Temperature:      req.Temperature,
		MaxTokens:        req.MaxTokens,
		TopP:             req.TopP,
		FrequencyPenalty: req.FrequencyPenalty,
	})
	if err != nil {
		return analyze.CompletionResult{}, err
	}
	tokensIn := completion.TokensIn
	if tokensIn == 0 {
		tokensIn = llm.EstimateTokens(req.Prompt)
	}
	return analyze.CompletionResult{
		Text:      completion.Text,
		TokensIn:  tokensIn,
		TokensOut: completion.TokensOut,
	}, nil
}

// historyStore bridges the SQLite store into the pipeline, batch, and
// CLI history contracts.
type historyStore struct {
	store *sqlite.Store
}

func (h *historyStore) RecordAnalysis(ctx context.Context, entry analyze.HistoryEntry) error {
	return h.store.RecordAnalysis(ctx, sqlite.AnalysisRecord{
		Repository: entry.Repository,
		PRNumber:   entry.PRNumber,
		Language:   entry.Language,
		Provider:   entry.Provider,
		Model:      entry.Model,
		ReportPath: entry.ReportPath,
		Complexity: entry.Complexity,
		TokensIn:   entry.TokensIn,
		TokensOut:  entry.TokensOut,
		CreatedAt:  entry.CreatedAt,
	})
}

func (h *historyStore) RecordBatch(ctx context.Context, s batch.Summary) error {
	return h.store.RecordBatchRun(ctx, sqlite.BatchRecord{
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
		Repos:      s.Repos,
		Analyzed:   s.Analyzed,
		Failed:     s.Failed,
	})
}

func (h *historyStore) ListHistory(ctx context.Context, repository string, limit int) ([]cli.HistoryEntry, error) {
	recs, err := h.store.ListAnalyses(ctx, repository, limit)
	if err != nil {
		return nil, err
	}
	entries := make([]cli.HistoryEntry, 0, len(recs))
	for _, rec := range recs {
		entries = append(entries, cli.HistoryEntry{
			Repository: rec.Repository,
			PRNumber:   rec.PRNumber,
			Language:   rec.Language,
			Provider:   rec.Provider,
			Model:      rec.Model,
			ReportPath: rec.ReportPath,
			CreatedAt:  rec.CreatedAt,
		})
	}
	return entries, nil
}

// Compile-time checks that the adapters satisfy the contracts they are
// wired into.
var (
	_ analyze.Completer  = (*completerAdapter)(nil)
	_ analyze.History    = (*historyStore)(nil)
	_ batch.History      = (*historyStore)(nil)
	_ cli.HistoryLister  = (*historyStore)(nil)
	_ analyze.PullSource = (*githubadapter.Client)(nil)
	_ analyze.LocalRepo  = (*git.Mirror)(nil)
	_ analyze.Watermark  = (*status.Tracker)(nil)
	_ analyze.Redactor   = (*redaction.Engine)(nil)
	_ batch.Watermark    = (*status.Tracker)(nil)
	_ batch.Syncer       = (*git.Mirror)(nil)
	_ batch.Lister       = (*githubadapter.Client)(nil)
)
