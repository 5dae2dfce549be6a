// Package diff extracts change snippets from unified diff text.
//
// The pipeline feeds the raw `git diff` output of a pull request
// through Snippets to pull out the added/removed line groups, keyed by
// file and hunk header, for inclusion in the analysis prompt.
package diff
