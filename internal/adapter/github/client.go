package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	llmhttp "github.com/prhythm/prhythm/internal/adapter/llm/http"
	"github.com/prhythm/prhythm/internal/domain"
)

const (
	providerName   = "github"
	defaultBaseURL = "https://api.github.com"
	defaultTimeout = 30 * time.Second
	filesPerPage   = 100
)

// Client is an HTTP client for the GitHub REST API.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
	retryConf  llmhttp.RetryConfig
}

// NewClient creates a GitHub API client. The token may be empty for
// unauthenticated access to public repositories (low rate limits).
func NewClient(token string, retryConf llmhttp.RetryConfig) *Client {
	return &Client{
		token:      token,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		retryConf:  retryConf,
	}
}

// SetBaseURL sets a custom base URL (for testing).
func (c *Client) SetBaseURL(url string) {
	c.baseURL = strings.TrimRight(url, "/")
}

// SetTimeout sets the HTTP timeout.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.httpClient.Timeout = timeout
}

// MergedPulls lists recently merged pull requests, most recently
// updated first. limit bounds how many closed PRs are inspected.
func (c *Client) MergedPulls(ctx context.Context, repo string, limit int) ([]domain.PullRequest, error) {
	if limit <= 0 {
		limit = 10
	}
	endpoint := fmt.Sprintf("%s/repos/%s/pulls?state=closed&sort=updated&direction=desc&per_page=%d",
		c.baseURL, repo, limit)

	var pulls []apiPull
	if err := c.getJSON(ctx, endpoint, "", &pulls); err != nil {
		return nil, fmt.Errorf("list merged pulls for %s: %w", repo, err)
	}

	merged := make([]domain.PullRequest, 0, len(pulls))
	now := time.Now().UTC()
	for _, p := range pulls {
		if p.MergedAt == nil {
			continue
		}
		merged = append(merged, mapPull(p, nil, repo, now))
	}
	return merged, nil
}

// PullRequest fetches a single pull request and its full file list.
func (c *Client) PullRequest(ctx context.Context, repo string, number int) (domain.PullRequest, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/pulls/%d", c.baseURL, repo, number)

	var pull apiPull
	if err := c.getJSON(ctx, endpoint, "", &pull); err != nil {
		return domain.PullRequest{}, fmt.Errorf("fetch PR %s#%d: %w", repo, number, err)
	}

	files, err := c.pullFiles(ctx, repo, number)
	if err != nil {
		return domain.PullRequest{}, fmt.Errorf("fetch PR %s#%d files: %w", repo, number, err)
	}

	return mapPull(pull, files, repo, time.Now().UTC()), nil
}

// pullFiles pages through the PR files listing.
func (c *Client) pullFiles(ctx context.Context, repo string, number int) ([]apiPullFile, error) {
	var all []apiPullFile
	for page := 1; ; page++ {
		endpoint := fmt.Sprintf("%s/repos/%s/pulls/%d/files?per_page=%d&page=%d",
			c.baseURL, repo, number, filesPerPage, page)
		var batch []apiPullFile
		if err := c.getJSON(ctx, endpoint, "", &batch); err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) < filesPerPage {
			return all, nil
		}
	}
}

// Diff fetches the unified diff for a pull request.
func (c *Client) Diff(ctx context.Context, repo string, number int) (string, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/pulls/%d", c.baseURL, repo, number)
	body, err := c.get(ctx, endpoint, "application/vnd.github.v3.diff")
	if err != nil {
		return "", fmt.Errorf("fetch PR %s#%d diff: %w", repo, number, err)
	}
	return string(body), nil
}

// Checks fetches CI check runs for the head commit of a pull request.
// A nil slice with nil error means the checks could not be determined;
// callers treat that as "no check data".
func (c *Client) Checks(ctx context.Context, repo string, number int) ([]domain.CheckRun, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/pulls/%d", c.baseURL, repo, number)
	var pull apiPull
	if err := c.getJSON(ctx, endpoint, "", &pull); err != nil {
		return nil, err
	}
	if pull.Head.SHA == "" {
		return nil, nil
	}

	checksURL := fmt.Sprintf("%s/repos/%s/commits/%s/check-runs", c.baseURL, repo, pull.Head.SHA)
	var runs apiCheckRuns
	if err := c.getJSON(ctx, checksURL, "", &runs); err != nil {
		return nil, err
	}
	return mapCheckRuns(runs.CheckRuns), nil
}

// FileContent fetches a single file through the contents API.
func (c *Client) FileContent(ctx context.Context, repo, path string) (string, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/contents/%s", c.baseURL, repo, escapePath(path))
	var content apiContent
	if err := c.getJSON(ctx, endpoint, "", &content); err != nil {
		return "", fmt.Errorf("fetch %s:%s: %w", repo, path, err)
	}
	if content.Type != "file" {
		return "", fmt.Errorf("fetch %s:%s: not a file", repo, path)
	}
	if content.Encoding != "base64" {
		return content.Content, nil
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(content.Content, "\n", ""))
	if err != nil {
		return "", fmt.Errorf("decode %s:%s: %w", repo, path, err)
	}
	return string(decoded), nil
}

// ListDir lists the entries of a repository directory.
func (c *Client) ListDir(ctx context.Context, repo, path string) ([]string, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/contents/%s", c.baseURL, repo, escapePath(path))
	var entries []apiContent
	if err := c.getJSON(ctx, endpoint, "", &entries); err != nil {
		return nil, fmt.Errorf("list %s:%s: %w", repo, path, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type == "file" {
			names = append(names, e.Name)
		}
	}
	return names, nil
}

// getJSON performs a retried GET and decodes the JSON response.
func (c *Client) getJSON(ctx context.Context, endpoint, accept string, out any) error {
	body, err := c.get(ctx, endpoint, accept)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// get performs a retried GET request and returns the raw body.
func (c *Client) get(ctx context.Context, endpoint, accept string) ([]byte, error) {
	var body []byte
	err := llmhttp.RetryWithBackoff(ctx, func(ctx context.Context) error {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if reqErr != nil {
			return fmt.Errorf("create request: %w", reqErr)
		}

		if accept == "" {
			accept = "application/vnd.github+json"
		}
		req.Header.Set("Accept", accept)
		req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, callErr := c.httpClient.Do(req)
		if callErr != nil {
			if ctx.Err() == context.DeadlineExceeded {
				return llmhttp.NewTimeoutError(providerName, "request timed out")
			}
			return llmhttp.NewNetworkError(providerName, callErr.Error())
		}
		defer resp.Body.Close()

		raw, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return llmhttp.NewNetworkError(providerName, fmt.Sprintf("read response: %v", readErr))
		}

		if resp.StatusCode >= 400 {
			return mapHTTPError(resp.StatusCode, resp.Header, raw)
		}

		body = raw
		return nil
	}, c.retryConf)
	if err != nil {
		return nil, err
	}
	return body, nil
}

// mapHTTPError converts GitHub error responses to typed errors.
// 403 with an exhausted rate limit is treated as retryable throttling
// rather than an authorization failure.
func mapHTTPError(statusCode int, header http.Header, body []byte) error {
	message := fmt.Sprintf("HTTP %d", statusCode)
	var envelope apiError
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Message != "" {
		message = envelope.Message
	}

	switch {
	case statusCode == http.StatusTooManyRequests,
		statusCode == http.StatusForbidden && header.Get("X-Ratelimit-Remaining") == "0":
		return llmhttp.NewRateLimitError(providerName, message, parseRateLimitReset(header))
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return llmhttp.NewAuthenticationError(providerName, message)
	case statusCode == http.StatusNotFound:
		return llmhttp.NewNotFoundError(providerName, message)
	case statusCode >= 500:
		return llmhttp.NewServiceUnavailableError(providerName, message, statusCode)
	default:
		return &llmhttp.Error{
			Type:       llmhttp.ErrTypeUnknown,
			Message:    message,
			StatusCode: statusCode,
			Retryable:  false,
			Provider:   providerName,
		}
	}
}

// parseRateLimitReset derives a wait duration from the Retry-After or
// X-Ratelimit-Reset headers, capped so a distant reset does not stall
// the pipeline.
func parseRateLimitReset(header http.Header) time.Duration {
	const maxWait = 2 * time.Minute

	if raw := header.Get("Retry-After"); raw != "" {
		if secs, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil && secs > 0 {
			return minDuration(time.Duration(secs)*time.Second, maxWait)
		}
	}
	if raw := header.Get("X-Ratelimit-Reset"); raw != "" {
		if epoch, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64); err == nil {
			until := time.Until(time.Unix(epoch, 0))
			if until > 0 {
				return minDuration(until, maxWait)
			}
		}
	}
	return 0
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

func escapePath(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
