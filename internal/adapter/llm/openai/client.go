// Package openai implements a chat-completions client for
// OpenAI-compatible APIs (api.openai.com, api.deepseek.com, and any
// other endpoint speaking the same protocol).
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prhythm/prhythm/internal/adapter/llm"
	llmhttp "github.com/prhythm/prhythm/internal/adapter/llm/http"
)

const defaultTimeout = 120 * time.Second

// Client is an HTTP client for an OpenAI-compatible chat API.
type Client struct {
	provider  string // provider name used in errors and logs
	apiKey    string
	model     string
	baseURL   string
	client    *http.Client
	retryConf llmhttp.RetryConfig
	logger    llmhttp.Logger
}

// NewClient creates a client for the named provider. baseURL may or may
// not carry a trailing /v1 segment; both forms are accepted.
func NewClient(provider, apiKey, model, baseURL string, retryConf llmhttp.RetryConfig) *Client {
	return &Client{
		provider:  provider,
		apiKey:    apiKey,
		model:     model,
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    &http.Client{Timeout: defaultTimeout},
		retryConf: retryConf,
	}
}

// SetBaseURL sets a custom base URL (for testing).
func (c *Client) SetBaseURL(url string) {
	c.baseURL = strings.TrimRight(url, "/")
}

// SetTimeout sets the HTTP timeout.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.client.Timeout = timeout
}

// SetLogger attaches a request logger.
func (c *Client) SetLogger(logger llmhttp.Logger) {
	c.logger = logger
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Provider returns the provider name.
func (c *Client) Provider() string {
	return c.provider
}

// CallOptions contains the generation parameters for one completion.
type CallOptions struct {
	Temperature      float64
	MaxTokens        int
	TopP             float64
	FrequencyPenalty float64
}

// Completion is the parsed result of a chat completion call.
type Completion struct {
	Text         string
	TokensIn     int
	TokensOut    int
	Model        string
	FinishReason string
}

// endpoint returns the chat-completions URL, tolerating base URLs that
// already end in /v1.
func (c *Client) endpoint() string {
	if strings.HasSuffix(c.baseURL, "/v1") {
		return c.baseURL + "/chat/completions"
	}
	return c.baseURL + "/v1/chat/completions"
}

// Complete sends the prompt as a single user message and returns the
// first choice. Retryable failures (429, 5xx, network) go through the
// shared retry policy; a Retry-After header on 429 overrides the
// computed backoff.
func (c *Client) Complete(ctx context.Context, prompt string, options CallOptions) (*Completion, error) {
	reqBody := ChatCompletionRequest{
		Model: c.model,
		Messages: []Message{
			{Role: "user", Content: prompt},
		},
		Temperature:      options.Temperature,
		MaxTokens:        options.MaxTokens,
		TopP:             options.TopP,
		FrequencyPenalty: options.FrequencyPenalty,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	if c.logger != nil {
		c.logger.LogRequest(ctx, llmhttp.RequestLog{
			Provider:    c.provider,
			Model:       c.model,
			Timestamp:   time.Now(),
			PromptChars: len(prompt),
			PromptToks:  llm.EstimateTokens(prompt),
			APIKey:      c.apiKey,
		})
	}

	started := time.Now()
	var completion *Completion
	operation := func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(jsonData))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() == context.DeadlineExceeded {
				return llmhttp.NewTimeoutError(c.provider, "request timed out")
			}
			return llmhttp.NewNetworkError(c.provider, err.Error())
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return llmhttp.NewNetworkError(c.provider, fmt.Sprintf("read response: %v", err))
		}

		if resp.StatusCode != http.StatusOK {
			return c.handleErrorResponse(resp.StatusCode, resp.Header, body)
		}

		var chatResp ChatCompletionResponse
		if err := json.Unmarshal(body, &chatResp); err != nil {
			return llmhttp.NewInvalidResponseError(c.provider, fmt.Sprintf("parse response: %v", err))
		}
		if len(chatResp.Choices) == 0 {
			return llmhttp.NewInvalidResponseError(c.provider, "no choices in response")
		}

		completion = &Completion{
			Text:         StripMarkdownFence(chatResp.Choices[0].Message.Content),
			TokensIn:     chatResp.Usage.PromptTokens,
			TokensOut:    chatResp.Usage.CompletionTokens,
			Model:        chatResp.Model,
			FinishReason: chatResp.Choices[0].FinishReason,
		}
		return nil
	}

	if err := llmhttp.RetryWithBackoff(ctx, operation, c.retryConf); err != nil {
		if c.logger != nil {
			var typed *llmhttp.Error
			errLog := llmhttp.ErrorLog{
				Provider:  c.provider,
				Model:     c.model,
				Timestamp: time.Now(),
				Duration:  time.Since(started),
				Error:     err,
			}
			if errors.As(err, &typed) {
				errLog.ErrorType = typed.Type
				errLog.StatusCode = typed.StatusCode
				errLog.Retryable = typed.Retryable
			}
			c.logger.LogError(ctx, errLog)
		}
		return nil, err
	}

	if c.logger != nil {
		c.logger.LogResponse(ctx, llmhttp.ResponseLog{
			Provider:   c.provider,
			Model:      c.model,
			Timestamp:  time.Now(),
			Duration:   time.Since(started),
			TokensIn:   completion.TokensIn,
			TokensOut:  completion.TokensOut,
			StatusCode: http.StatusOK,
		})
	}

	return completion, nil
}

// handleErrorResponse converts HTTP error responses to typed errors.
func (c *Client) handleErrorResponse(statusCode int, header http.Header, body []byte) error {
	message := fmt.Sprintf("HTTP %d", statusCode)

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
	} else if len(body) > 0 && len(body) < 200 {
		message = string(body)
	}

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return llmhttp.NewAuthenticationError(c.provider, message)
	case http.StatusTooManyRequests:
		return llmhttp.NewRateLimitError(c.provider, message, parseRetryAfter(header))
	case http.StatusNotFound:
		return llmhttp.NewNotFoundError(c.provider, message)
	case http.StatusBadRequest:
		return llmhttp.NewInvalidRequestError(c.provider, message)
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return llmhttp.NewServiceUnavailableError(c.provider, message, statusCode)
	default:
		return &llmhttp.Error{
			Type:       llmhttp.ErrTypeUnknown,
			Message:    message,
			StatusCode: statusCode,
			Retryable:  statusCode >= 500,
			Provider:   c.provider,
		}
	}
}

// parseRetryAfter reads a seconds-valued Retry-After header.
func parseRetryAfter(header http.Header) time.Duration {
	raw := header.Get("Retry-After")
	if raw == "" {
		return 0
	}
	secs, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// StripMarkdownFence removes a leading ```markdown fence and a trailing
// ``` fence. Some models wrap the whole report in a code block; the
// report content itself is markdown, so the fence is noise.
func StripMarkdownFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "```markdown") {
		trimmed = strings.TrimPrefix(trimmed, "```markdown")
		trimmed = strings.TrimLeft(trimmed, "\n")
	}
	if strings.HasSuffix(trimmed, "```") {
		trimmed = strings.TrimSuffix(trimmed, "```")
		trimmed = strings.TrimRight(trimmed, "\n")
	}
	return strings.TrimSpace(trimmed)
}
