package analyze

import (
	"context"
	"fmt"
	"time"

	"github.com/prhythm/prhythm/internal/domain"
)

// PullSource fetches pull request data from the hosting provider.
type PullSource interface {
	PullRequest(ctx context.Context, repo string, number int) (domain.PullRequest, error)
	Diff(ctx context.Context, repo string, number int) (string, error)
	Checks(ctx context.Context, repo string, number int) ([]domain.CheckRun, error)
}

// CompletionRequest carries one prompt with its sampling parameters.
type CompletionRequest struct {
	Prompt           string
	MaxTokens        int
	Temperature      float64
	TopP             float64
	FrequencyPenalty float64
}

// CompletionResult is the model's reply with token accounting.
type CompletionResult struct {
	Text      string
	TokensIn  int
	TokensOut int
}

// Completer generates text from a prompt.
type Completer interface {
	Provider() string
	Model() string
	Generate(ctx context.Context, req CompletionRequest) (CompletionResult, error)
}

// ReportWriter persists reports and diff patches.
type ReportWriter interface {
	WriteReport(ctx context.Context, pr domain.PullRequest, language, content string) (string, error)
	WritePatch(ctx context.Context, pr domain.PullRequest, diff string) (string, error)
}

// RecordWriter persists the normalized pull request record.
type RecordWriter interface {
	Write(ctx context.Context, pr domain.PullRequest) (string, error)
}

// PromptRecorder saves the rendered prompt before the LLM call.
type PromptRecorder interface {
	SavePrompt(prNumber int, prompt string) (string, error)
}

// Watermark advances the per-repository processing watermark.
type Watermark interface {
	Update(pr domain.PullRequest, operation string, success bool) (bool, error)
}

// HistoryEntry is one completed per-language analysis for the history
// store.
type HistoryEntry struct {
	Repository string
	PRNumber   int
	Language   string
	Provider   string
	Model      string
	ReportPath string
	Complexity int
	TokensIn   int
	TokensOut  int
	CreatedAt  time.Time
}

// Redactor scrubs secrets from prompt text before it leaves the
// process.
type Redactor interface {
	Redact(input string) (string, error)
}

// History records completed analyses.
type History interface {
	RecordAnalysis(ctx context.Context, entry HistoryEntry) error
}

// Options controls one orchestrator run.
type Options struct {
	Languages   []string // target language codes, already normalized
	DryRun      bool     // stop after saving the prompt
	SaveDiff    bool     // also save the unified diff as a patch file
	SkipContext bool     // skip module context extraction
	StatusOp    string   // operation name recorded with the watermark update
}

// Orchestrator runs the full analysis pipeline for a single pull
// request: fetch, context, prompt, completion, split, persist.
type Orchestrator struct {
	source      PullSource
	local       LocalRepo
	extractor   *ContextExtractor
	prompts     *PromptBuilder
	completer   Completer
	splitter    *Splitter
	reports     ReportWriter
	records     RecordWriter
	promptLog   PromptRecorder
	watermark   Watermark
	history     History
	redactor    Redactor
	temperature *float64
	logger      Logger
}

// OrchestratorDeps bundles the orchestrator's collaborators. Records,
// promptLog, watermark, history, and redactor may be nil, in which case
// that step is skipped. Temperature, when set, overrides the
// complexity-derived sampling temperature for every request.
type OrchestratorDeps struct {
	Source      PullSource
	Local       LocalRepo
	Extractor   *ContextExtractor
	Prompts     *PromptBuilder
	Completer   Completer
	Splitter    *Splitter
	Reports     ReportWriter
	Records     RecordWriter
	PromptLog   PromptRecorder
	Watermark   Watermark
	History     History
	Redactor    Redactor
	Temperature *float64
	Logger      Logger
}

// NewOrchestrator wires up an orchestrator from its dependencies.
func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	return &Orchestrator{
		source:      deps.Source,
		local:       deps.Local,
		extractor:   deps.Extractor,
		prompts:     deps.Prompts,
		completer:   deps.Completer,
		splitter:    deps.Splitter,
		reports:     deps.Reports,
		records:     deps.Records,
		promptLog:   deps.PromptLog,
		watermark:   deps.Watermark,
		history:     deps.History,
		redactor:    deps.Redactor,
		temperature: deps.Temperature,
		logger:      deps.Logger,
	}
}

// Run fetches the pull request and produces a report per configured
// language. It returns the analysis with report paths filled in.
func (o *Orchestrator) Run(ctx context.Context, repo string, number int, opts Options) (*domain.Analysis, error) {
	pr, err := o.source.PullRequest(ctx, repo, number)
	if err != nil {
		return nil, fmt.Errorf("fetch pull request %s#%d: %w", repo, number, err)
	}

	unified, err := o.source.Diff(ctx, repo, number)
	if err != nil {
		o.warn(ctx, "failed to fetch diff, continuing without it", map[string]interface{}{
			"repository": repo,
			"pr":         number,
			"error":      err.Error(),
		})
		unified = ""
	}

	checks, err := o.source.Checks(ctx, repo, number)
	if err != nil {
		o.warn(ctx, "failed to fetch check runs, continuing without them", map[string]interface{}{
			"repository": repo,
			"pr":         number,
			"error":      err.Error(),
		})
	} else {
		pr.Checks = checks
	}

	return o.RunFetched(ctx, pr, unified, opts)
}

// RunFetched runs the pipeline for an already-fetched pull request.
// Batch processing uses this to avoid refetching list results.
func (o *Orchestrator) RunFetched(ctx context.Context, pr domain.PullRequest, unified string, opts Options) (*domain.Analysis, error) {
	languages := opts.Languages
	if len(languages) == 0 {
		languages = []string{"en"}
	}

	var modules []domain.ModuleContext
	if !opts.SkipContext && o.extractor != nil {
		modules = o.extractor.Extract(ctx, &pr)
	}
	contents := FetchModifiedContents(o.local, &pr)

	complexity := ScoreComplexity(&pr)
	if o.temperature != nil {
		complexity.Temperature = *o.temperature
	}
	o.info(ctx, "pull request scored", map[string]interface{}{
		"repository": pr.Repository,
		"pr":         pr.Number,
		"complexity": complexity.Score,
		"max_tokens": complexity.MaxTokens,
	})

	if o.records != nil {
		if _, err := o.records.Write(ctx, pr); err != nil {
			o.warn(ctx, "failed to save pull request record", map[string]interface{}{
				"pr":    pr.Number,
				"error": err.Error(),
			})
		}
	}

	analysis := &domain.Analysis{
		PR:          pr,
		Complexity:  complexity.Score,
		Reports:     map[string]string{},
		ReportPaths: map[string]string{},
	}

	for _, lang := range languages {
		prompt, err := o.prompts.Build(PromptInput{
			PR:       &pr,
			Diff:     unified,
			Modules:  modules,
			Contents: contents,
			Language: lang,
		})
		if err != nil {
			return nil, fmt.Errorf("build prompt for %s: %w", lang, err)
		}

		if o.redactor != nil {
			redacted, err := o.redactor.Redact(prompt)
			if err != nil {
				o.warn(ctx, "prompt redaction failed, sending original", map[string]interface{}{
					"pr":    pr.Number,
					"error": err.Error(),
				})
			} else {
				prompt = redacted
			}
		}
		analysis.Prompt = prompt

		if o.promptLog != nil {
			if _, err := o.promptLog.SavePrompt(pr.Number, prompt); err != nil {
				o.warn(ctx, "failed to save prompt log", map[string]interface{}{
					"pr":    pr.Number,
					"error": err.Error(),
				})
			}
		}

		if opts.DryRun {
			continue
		}

		result, err := o.completer.Generate(ctx, CompletionRequest{
			Prompt:           prompt,
			MaxTokens:        ScaleTokens(complexity.MaxTokens, len(prompt), o.completer.Model()),
			Temperature:      complexity.Temperature,
			TopP:             complexity.TopP,
			FrequencyPenalty: complexity.FrequencyPenalty,
		})
		if err != nil {
			return nil, fmt.Errorf("completion for %s#%d (%s): %w", pr.Repository, pr.Number, lang, err)
		}

		sections := o.splitter.Split(ctx, result.Text, []string{lang})
		for code, content := range sections {
			analysis.Reports[code] = content
			path, err := o.reports.WriteReport(ctx, pr, code, content)
			if err != nil {
				return nil, fmt.Errorf("save %s report: %w", code, err)
			}
			analysis.ReportPaths[code] = path

			if o.history != nil {
				entry := HistoryEntry{
					Repository: pr.Repository,
					PRNumber:   pr.Number,
					Language:   code,
					Provider:   o.completer.Provider(),
					Model:      o.completer.Model(),
					ReportPath: path,
					Complexity: complexity.Score,
					TokensIn:   result.TokensIn,
					TokensOut:  result.TokensOut,
				}
				if err := o.history.RecordAnalysis(ctx, entry); err != nil {
					o.warn(ctx, "failed to record analysis history", map[string]interface{}{
						"pr":    pr.Number,
						"error": err.Error(),
					})
				}
			}
		}
	}

	if opts.DryRun {
		return analysis, nil
	}

	if opts.SaveDiff && unified != "" {
		if _, err := o.reports.WritePatch(ctx, pr, unified); err != nil {
			o.warn(ctx, "failed to save patch file", map[string]interface{}{
				"pr":    pr.Number,
				"error": err.Error(),
			})
		}
	}

	if o.watermark != nil {
		if _, err := o.watermark.Update(pr, opts.StatusOp, true); err != nil {
			o.warn(ctx, "failed to update processing status", map[string]interface{}{
				"pr":    pr.Number,
				"error": err.Error(),
			})
		}
	}

	return analysis, nil
}

func (o *Orchestrator) info(ctx context.Context, message string, fields map[string]interface{}) {
	if o.logger != nil {
		o.logger.LogInfo(ctx, message, fields)
	}
}

func (o *Orchestrator) warn(ctx context.Context, message string, fields map[string]interface{}) {
	if o.logger != nil {
		o.logger.LogWarning(ctx, message, fields)
	}
}
