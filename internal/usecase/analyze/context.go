package analyze

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/prhythm/prhythm/internal/domain"
)

// LocalRepo reads files from a local repository mirror.
type LocalRepo interface {
	HasClone(repo string) bool
	ReadFile(repo, path string) (string, error)
	ListDir(repo, path string) ([]string, error)
}

// RemoteRepo reads files through the hosting provider's API. Used as a
// fallback when no local mirror exists.
type RemoteRepo interface {
	FileContent(ctx context.Context, repo, path string) (string, error)
	ListDir(ctx context.Context, repo, path string) ([]string, error)
}

// Directories that rarely carry code worth summarizing.
var skippedModules = map[string]bool{
	"docs":     true,
	"tests":    true,
	"test":     true,
	"examples": true,
	".github":  true,
}

// Well-known entry-point files consulted when summarizing a module.
var keyFileNames = []string{"__init__.py", "README.md", "main.py", "index.js", "setup.py"}

var codeFileExtensions = []string{".py", ".js", ".ts", ".java", ".c", ".cpp", ".go"}

var (
	importPattern   = regexp.MustCompile(`(?m)^(?:import|from)\s+([^\s;]+)`)
	classPattern    = regexp.MustCompile(`(?m)^class\s+([^\s(:]+)`)
	functionPattern = regexp.MustCompile(`(?m)^(?:def|func)\s+([^\s(]+)`)
)

const maxStructureEntries = 10

// ContextExtractor summarizes the structure of modules touched by a pull
// request. It prefers a local mirror and falls back to the remote API.
type ContextExtractor struct {
	local  LocalRepo
	remote RemoteRepo
	logger Logger
}

// NewContextExtractor creates an extractor. Either source may be nil;
// a nil source is simply skipped.
func NewContextExtractor(local LocalRepo, remote RemoteRepo, logger Logger) *ContextExtractor {
	return &ContextExtractor{local: local, remote: remote, logger: logger}
}

// Extract groups the changed files by top-level directory and builds a
// ModuleContext for each module, reading a few key files to sketch its
// classes, functions, and imports. Files at the repository root are not
// treated as a module.
func (e *ContextExtractor) Extract(ctx context.Context, pr *domain.PullRequest) []domain.ModuleContext {
	grouped := map[string][]string{}
	for _, f := range pr.Files {
		if f.Path == "" {
			continue
		}
		parts := strings.Split(f.Path, "/")
		if len(parts) < 2 {
			continue
		}
		grouped[parts[0]] = append(grouped[parts[0]], f.Path)
	}

	names := make([]string, 0, len(grouped))
	for name := range grouped {
		if skippedModules[strings.ToLower(name)] {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	contexts := make([]domain.ModuleContext, 0, len(names))
	for _, name := range names {
		mc := domain.ModuleContext{Name: name}
		mc.Files = e.keyFiles(ctx, pr.Repository, name)
		mc.Classes, mc.Functions, mc.Imports = analyzeStructure(mc.Files)
		contexts = append(contexts, mc)
	}

	if e.logger != nil {
		e.logger.LogInfo(ctx, "module context extracted", map[string]interface{}{
			"repository": pr.Repository,
			"pr":         pr.Number,
			"modules":    len(contexts),
		})
	}
	return contexts
}

// keyFiles fetches entry-point files for a module, trying the local
// mirror first and the remote API second.
func (e *ContextExtractor) keyFiles(ctx context.Context, repo, module string) []domain.ModuleFile {
	var files []domain.ModuleFile

	if e.local != nil && e.local.HasClone(repo) {
		for _, name := range keyFileNames {
			path := module + "/" + name
			content, err := e.local.ReadFile(repo, path)
			if err != nil {
				continue
			}
			files = append(files, domain.ModuleFile{Path: path, Content: content})
		}
	}

	if len(files) == 0 && e.remote != nil {
		for _, name := range keyFileNames {
			path := module + "/" + name
			content, err := e.remote.FileContent(ctx, repo, path)
			if err != nil {
				continue
			}
			files = append(files, domain.ModuleFile{Path: path, Content: content})
		}

		// Nothing well-known found; grab the first couple of code files.
		if len(files) == 0 {
			entries, err := e.remote.ListDir(ctx, repo, module)
			if err == nil {
				taken := 0
				for _, entry := range entries {
					if taken >= 2 {
						break
					}
					if !hasCodeExtension(entry) {
						continue
					}
					path := module + "/" + entry
					content, err := e.remote.FileContent(ctx, repo, path)
					if err != nil {
						continue
					}
					files = append(files, domain.ModuleFile{Path: path, Content: content})
					taken++
				}
			} else if e.logger != nil {
				e.logger.LogWarning(ctx, "failed to list module directory", map[string]interface{}{
					"repository": repo,
					"module":     module,
					"error":      err.Error(),
				})
			}
		}
	}

	return files
}

func hasCodeExtension(name string) bool {
	for _, ext := range codeFileExtensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// analyzeStructure extracts class, function, and import names from the
// given files, deduplicated and capped at a handful of entries each.
func analyzeStructure(files []domain.ModuleFile) (classes, functions, imports []string) {
	for _, f := range files {
		imports = appendMatches(imports, importPattern, f.Content)
		classes = appendMatches(classes, classPattern, f.Content)
		functions = appendMatches(functions, functionPattern, f.Content)
	}
	return capEntries(classes), capEntries(functions), capEntries(imports)
}

func appendMatches(dst []string, re *regexp.Regexp, content string) []string {
	for _, m := range re.FindAllStringSubmatch(content, -1) {
		name := m[1]
		seen := false
		for _, existing := range dst {
			if existing == name {
				seen = true
				break
			}
		}
		if !seen {
			dst = append(dst, name)
		}
	}
	return dst
}

func capEntries(entries []string) []string {
	if len(entries) > maxStructureEntries {
		return entries[:maxStructureEntries]
	}
	return entries
}
