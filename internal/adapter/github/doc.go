// Package github is the REST client for the GitHub API surface the
// pipeline needs: listing merged pull requests, fetching a single PR
// with its file list and diff, reading CI check results, and reading
// repository contents for module context.
package github
