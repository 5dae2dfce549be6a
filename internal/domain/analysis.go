package domain

// ModuleContext captures lightweight structural information about one
// top-level module touched by a pull request.
type ModuleContext struct {
	Name      string
	Files     []ModuleFile
	Classes   []string
	Functions []string
	Imports   []string
}

// ModuleFile is a key file fetched for module context.
type ModuleFile struct {
	Path    string
	Content string
}

// Snippet is one extracted hunk of added/removed lines from a diff.
type Snippet struct {
	File   string // path on the new side of the diff
	Header string // trailing context from the @@ hunk header
	Code   string // the +/- lines, prefixes preserved
}

// Analysis is the result of running the pipeline over one pull request
// in one or more languages.
type Analysis struct {
	PR          PullRequest
	Complexity  int
	Prompt      string
	Reports     map[string]string // language code -> markdown report
	ReportPaths map[string]string // language code -> saved file path
}
