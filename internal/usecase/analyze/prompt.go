package analyze

import (
	"bytes"
	"fmt"
	"path"
	"sort"
	"strings"
	"text/template"

	"github.com/prhythm/prhythm/internal/diff"
	"github.com/prhythm/prhythm/internal/domain"
)

const (
	maxSummaryFiles     = 5
	maxMatrixFiles      = 5
	maxSnippets         = 3
	maxDiffExcerptChars = 2000
	maxContentFiles     = 10
	maxCharsPerFile     = 3000
	maxTotalContent     = 30000
	maxKeyFileChars     = 500
	maxKeyFilesPerMod   = 2
)

// PromptInput carries everything the builder needs to render one prompt.
type PromptInput struct {
	PR       *domain.PullRequest
	Diff     string
	Modules  []domain.ModuleContext
	Contents map[string]string // path -> post-merge file content
	Language string            // target language code
}

// PromptBuilder renders the analysis prompt from a text template. A
// custom template may be supplied; otherwise the built-in one is used.
type PromptBuilder struct {
	templateText string
}

// NewPromptBuilder creates a builder using the built-in template.
func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{templateText: defaultAnalysisTemplate()}
}

// SetTemplate replaces the prompt template.
func (b *PromptBuilder) SetTemplate(text string) {
	b.templateText = text
}

// TemplateData holds all values available to the prompt template. Every
// section is pre-rendered to a string so templates stay flat.
type TemplateData struct {
	Title        string
	Number       int
	URL          string
	Author       string
	Body         string
	Repository   string
	State        string
	CreatedAt    string
	MergedAt     string
	MergedBy     string
	Labels       string
	CIStatus     string
	FilesChanged int

	FileChangesSummary   string
	ArchitectureContext  string
	CommitAnalysis       string
	CodeReferences       string
	ImpactMatrix         string
	LearningPoints       string
	ModuleContext        string
	ModifiedFileContents string
	DiffExcerpt          string

	OutputLanguage      string
	OutputLanguageCode  string
	LanguageInstruction string
}

// Build renders the prompt for one pull request in one target language.
func (b *PromptBuilder) Build(in PromptInput) (string, error) {
	pr := in.PR
	data := TemplateData{
		Title:        pr.Title,
		Number:       pr.Number,
		URL:          pr.URL,
		Author:       pr.Author,
		Body:         pr.Description(),
		Repository:   pr.Repository,
		State:        pr.State,
		CreatedAt:    pr.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		MergedAt:     pr.MergedAtLabel(),
		MergedBy:     pr.MergedByLabel(),
		Labels:       pr.LabelsLabel(),
		CIStatus:     pr.ChecksLabel(),
		FilesChanged: len(pr.Files),

		FileChangesSummary:   fileChangesSummary(pr),
		ArchitectureContext:  architectureContext(pr),
		CommitAnalysis:       commitAnalysis,
		CodeReferences:       codeReferences(in.Diff),
		ImpactMatrix:         impactMatrix(pr),
		LearningPoints:       learningPoints(pr),
		ModuleContext:        moduleContextSection(in.Modules),
		ModifiedFileContents: modifiedFileContents(in.Contents),
		DiffExcerpt:          diffExcerpt(in.Diff),

		OutputLanguage:      domain.LanguageName(in.Language),
		OutputLanguageCode:  in.Language,
		LanguageInstruction: languageInstruction(in.Language),
	}

	tmpl, err := template.New("analysis").Parse(b.templateText)
	if err != nil {
		return "", fmt.Errorf("failed to parse prompt template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render prompt template: %w", err)
	}
	return buf.String(), nil
}

// sortByChurn returns the files ordered by total changed lines, largest
// first. The input is not modified.
func sortByChurn(files []domain.FileChange) []domain.FileChange {
	sorted := make([]domain.FileChange, len(files))
	copy(sorted, files)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Changes() > sorted[j].Changes()
	})
	return sorted
}

func fileChangesSummary(pr *domain.PullRequest) string {
	sorted := sortByChurn(pr.Files)
	if len(sorted) > maxSummaryFiles {
		sorted = sorted[:maxSummaryFiles]
	}

	var lines []string
	for _, f := range sorted {
		if f.Path == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("- `%s` (+%d/-%d)", f.Path, f.Additions, f.Deletions))
	}
	if len(lines) == 0 {
		return "- No file changes found in the PR data"
	}
	return strings.Join(lines, "\n")
}

func architectureContext(pr *domain.PullRequest) string {
	counts := map[string]int{}
	var order []string
	for _, f := range pr.Files {
		parts := strings.Split(f.Path, "/")
		if len(parts) < 2 {
			continue
		}
		if _, ok := counts[parts[0]]; !ok {
			order = append(order, parts[0])
		}
		counts[parts[0]]++
	}
	if len(order) == 0 {
		return "No clear module structure identified from the PR changes."
	}

	var b strings.Builder
	b.WriteString("The PR affects the following modules:\n")
	for _, mod := range order {
		fmt.Fprintf(&b, "- **%s**: %d files modified\n", mod, counts[mod])
	}
	return strings.TrimRight(b.String(), "\n")
}

const commitAnalysis = "Commit information is not available as commits data is not fetched."

func codeReferences(unified string) string {
	if strings.TrimSpace(unified) == "" {
		return "No code diff available."
	}
	snippets := diff.TopSnippets(unified, maxSnippets)
	if len(snippets) == 0 {
		return "No significant code changes identified."
	}

	formatted := make([]string, 0, len(snippets))
	for i, s := range snippets {
		formatted = append(formatted, fmt.Sprintf(
			"**Code Snippet %d** - `%s` %s:\n```\n%s\n```",
			i+1, s.File, s.Header, s.Code))
	}
	return strings.Join(formatted, "\n\n")
}

func impactMatrix(pr *domain.PullRequest) string {
	if len(pr.Files) == 0 {
		return "| No files changed | - | - | - | - |"
	}

	sorted := sortByChurn(pr.Files)
	if len(sorted) > maxMatrixFiles {
		sorted = sorted[:maxMatrixFiles]
	}

	rows := make([]string, 0, len(sorted))
	for _, f := range sorted {
		rows = append(rows, fmt.Sprintf("| `%s` | +%d/-%d | %s | %s | %s |",
			f.Path, f.Additions, f.Deletions,
			fileFunctionality(f.Path), fileModule(f.Path), fileRisk(f)))
	}
	return strings.Join(rows, "\n")
}

func fileFunctionality(filename string) string {
	switch path.Ext(filename) {
	case ".py":
		return "Python Logic"
	case ".js", ".ts":
		return "Frontend Logic"
	case ".html", ".css":
		return "UI/Presentation"
	case ".md", ".txt":
		return "Documentation"
	case ".json", ".yaml", ".yml":
		return "Configuration"
	case ".sql":
		return "Database"
	case ".sh":
		return "Build/Deployment"
	default:
		return "Unknown"
	}
}

func fileModule(filename string) string {
	parts := strings.Split(filename, "/")
	if len(parts) > 1 {
		return parts[0]
	}
	return "Unknown"
}

// fileRisk grades a file change for the impact matrix. The test-path
// check runs first: a test file stays Low even when its path also
// mentions core or main, and regardless of churn.
func fileRisk(f domain.FileChange) string {
	risk := "Low"
	switch {
	case f.Changes() > 100:
		risk = "High"
	case f.Changes() > 30:
		risk = "Medium"
	}

	lower := strings.ToLower(f.Path)
	if strings.Contains(lower, "test") {
		return "Low"
	}
	if strings.Contains(lower, "core") || strings.Contains(lower, "main") {
		return "High"
	}
	return risk
}

func learningPoints(pr *domain.PullRequest) string {
	if len(pr.Files) == 0 {
		return "No files changed, no learning points identified."
	}

	sorted := sortByChurn(pr.Files)
	main := sorted[0]

	var patterns []string
	if anyFileEndsWith(pr.Files, ".py", ".js", ".ts", ".java", ".c", ".cpp") {
		patterns = append(patterns, "Implementation techniques")
	}
	if anyFileEndsWith(pr.Files, "test.py", "test.js", "Test.java", "_test.go") {
		patterns = append(patterns, "Testing strategies")
	}
	if anyFileEndsWith(pr.Files, ".md", ".txt", ".rst", ".adoc") {
		patterns = append(patterns, "Documentation practices")
	}
	if len(patterns) == 0 {
		patterns = append(patterns, "Implementation techniques")
	}

	return strings.Join([]string{
		"## Key Learning Points",
		"",
		fmt.Sprintf("- **Main File**: `%s` (+%d/-%d)", main.Path, main.Additions, main.Deletions),
		fmt.Sprintf("- **Technical Concepts**: %s", strings.Join(patterns, ", ")),
		"",
		"## Suggested Learning Path",
		"",
		fmt.Sprintf("1. Start by understanding the purpose of `%s`", main.Path),
		fmt.Sprintf("2. Examine the changes to identify the %s used", patterns[0]),
		"3. Look for related test files to understand validation approach",
	}, "\n")
}

func anyFileEndsWith(files []domain.FileChange, suffixes ...string) bool {
	for _, f := range files {
		for _, suffix := range suffixes {
			if strings.HasSuffix(f.Path, suffix) {
				return true
			}
		}
	}
	return false
}

func moduleContextSection(modules []domain.ModuleContext) string {
	if len(modules) == 0 {
		return "No module context available."
	}

	sections := make([]string, 0, len(modules))
	for _, mod := range modules {
		lines := []string{fmt.Sprintf("### Module: %s", mod.Name)}
		if len(mod.Classes) > 0 {
			lines = append(lines, fmt.Sprintf("**Classes**: %s", strings.Join(mod.Classes, ", ")))
		}
		if len(mod.Functions) > 0 {
			lines = append(lines, fmt.Sprintf("**Functions**: %s", strings.Join(mod.Functions, ", ")))
		}
		if len(mod.Imports) > 0 {
			lines = append(lines, fmt.Sprintf("**Dependencies**: %s", strings.Join(mod.Imports, ", ")))
		}

		if len(mod.Files) > 0 {
			lines = append(lines, "\n**Key Files:**")
			limit := len(mod.Files)
			if limit > maxKeyFilesPerMod {
				limit = maxKeyFilesPerMod
			}
			for _, f := range mod.Files[:limit] {
				content := f.Content
				if len(content) > maxKeyFileChars {
					content = content[:maxKeyFileChars] + "...\n[content truncated]"
				}
				lines = append(lines, fmt.Sprintf("\n`%s`:\n```\n%s\n```", f.Path, content))
			}
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}
	return strings.Join(sections, "\n\n")
}

// syntaxFor picks a fenced-code-block language tag from a file extension.
func syntaxFor(filename string) string {
	switch strings.TrimPrefix(path.Ext(filename), ".") {
	case "py", "python":
		return "python"
	case "js", "javascript":
		return "javascript"
	case "ts", "typescript":
		return "typescript"
	case "java":
		return "java"
	case "c", "cpp", "h", "hpp":
		return "cpp"
	case "go":
		return "go"
	case "rs":
		return "rust"
	case "html":
		return "html"
	case "css":
		return "css"
	case "json":
		return "json"
	case "yaml", "yml":
		return "yaml"
	case "md", "markdown":
		return "markdown"
	case "sh", "bash":
		return "bash"
	default:
		return ""
	}
}

func modifiedFileContents(contents map[string]string) string {
	if len(contents) == 0 {
		return "No modified file contents available."
	}

	paths := make([]string, 0, len(contents))
	for p := range contents {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	if len(paths) > maxContentFiles {
		paths = paths[:maxContentFiles]
	}

	var sections []string
	total := 0
	for _, p := range paths {
		content := contents[p]
		if len(content) > maxCharsPerFile {
			content = content[:maxCharsPerFile] + "\n...\n[content truncated]"
		}

		if total+len(content) > maxTotalContent {
			if len(sections) > 0 {
				sections = append(sections, "\n### [Additional files omitted due to size constraints]")
				break
			}
			content = content[:maxTotalContent-100] + "\n...\n[content severely truncated]"
		}

		sections = append(sections, fmt.Sprintf("### File: `%s`\n\n```%s\n%s\n```\n", p, syntaxFor(p), content))
		total += len(content)
	}
	return strings.Join(sections, "\n")
}

func diffExcerpt(unified string) string {
	if strings.TrimSpace(unified) == "" {
		return "No diff found in the PR data"
	}
	if len(unified) <= maxDiffExcerptChars {
		return unified
	}
	return unified[:maxDiffExcerptChars] +
		fmt.Sprintf("\n\n[Diff truncated, total length: %d characters]", len(unified))
}

func languageInstruction(code string) string {
	name := domain.LanguageName(code)
	if code == "en" {
		return fmt.Sprintf(`Generate your analysis in %s.
1. Use %s for all content except code and technical terms
2. For the "Description Translation" section, simply include the original PR description verbatim
3. Never translate code snippets, variable names, function names, or code comments`, name, name)
	}
	return fmt.Sprintf(`Generate your analysis in %s.
1. Use %s for all content except code and technical terms
2. Keep widely recognized technical terms in English
3. For other terms, provide translation with English in parentheses
4. For complex concepts, explain in both languages for clarity
5. Never translate code snippets, variable names, function names, or code comments`, name, name)
}

// defaultAnalysisTemplate returns the built-in prompt template.
func defaultAnalysisTemplate() string {
	return `You are an experienced software engineer writing an educational analysis of a merged pull request. Explain what changed, why it matters, and what a reader can learn from it.

# #{{.Number}} {{.Title}}

## Pull Request Information

- **Repository**: {{.Repository}}
- **URL**: {{.URL}}
- **Author**: {{.Author}}
- **State**: {{.State}}
- **Created At**: {{.CreatedAt}}
- **Merged At**: {{.MergedAt}}
- **Merged By**: {{.MergedBy}}
- **Labels**: {{.Labels}}
- **CI Status**: {{.CIStatus}}
- **Files Changed**: {{.FilesChanged}}

## Description

{{.Body}}

## File Changes Summary

{{.FileChangesSummary}}

## Architecture Context

{{.ArchitectureContext}}

## Commit Analysis

{{.CommitAnalysis}}

## Code Impact Matrix

| File | Changes | Functionality | Module | Risk |
|------|---------|---------------|--------|------|
{{.ImpactMatrix}}

## Code References

{{.CodeReferences}}

{{.LearningPoints}}

## Module Context

{{.ModuleContext}}

## Modified File Contents

{{.ModifiedFileContents}}

## Diff Excerpt

` + "```diff\n{{.DiffExcerpt}}\n```" + `

## Output Requirements

Write a thorough Markdown report with these sections: a summary of the change, a walkthrough of the key modifications, design decisions and trade-offs, potential risks, and key takeaways for learners. Include a "Description Translation" section restating the PR description in the output language.
{{.LanguageInstruction}}`
}
