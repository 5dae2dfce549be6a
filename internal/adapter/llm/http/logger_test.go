package http_test

import (
	"strings"
	"testing"

	llmhttp "github.com/prhythm/prhythm/internal/adapter/llm/http"
)

func TestRedactAPIKey(t *testing.T) {
	logger := llmhttp.NewDefaultLogger(llmhttp.LogLevelInfo, llmhttp.LogFormatHuman, true)

	if got := logger.RedactAPIKey("sk-abcdef1234"); got != "[REDACTED-1234]" {
		t.Fatalf("unexpected redaction: %q", got)
	}
	if got := logger.RedactAPIKey("abcd"); got != "[REDACTED]" {
		t.Fatalf("short keys must be fully redacted: %q", got)
	}
	if got := logger.RedactAPIKey(""); got != "[REDACTED]" {
		t.Fatalf("empty key redaction: %q", got)
	}
}

func TestRedactAPIKeyDisabled(t *testing.T) {
	logger := llmhttp.NewDefaultLogger(llmhttp.LogLevelInfo, llmhttp.LogFormatHuman, false)
	if got := logger.RedactAPIKey("sk-secret"); got != "sk-secret" {
		t.Fatalf("redaction should be off: %q", got)
	}
}

func TestTruncateForLogging(t *testing.T) {
	short := "short response"
	if got := llmhttp.TruncateForLogging(short); got != short {
		t.Fatalf("short responses must pass through: %q", got)
	}

	long := strings.Repeat("x", llmhttp.MaxLoggedResponseLength+50)
	got := llmhttp.TruncateForLogging(long)
	if !strings.Contains(got, "[truncated") {
		t.Fatalf("missing truncation marker: %q", got)
	}
	if len(got) >= len(long) {
		t.Fatalf("truncated output not shorter than input")
	}
}

func TestRedactURLSecrets(t *testing.T) {
	in := `https://api.example.com/v1?key=secret123&foo=bar`
	got := llmhttp.RedactURLSecrets(in)
	if strings.Contains(got, "secret123") {
		t.Fatalf("secret leaked: %q", got)
	}
	if !strings.Contains(got, "key=[REDACTED]") {
		t.Fatalf("missing redaction marker: %q", got)
	}
	if !strings.Contains(got, "foo=bar") {
		t.Fatalf("non-secret params must survive: %q", got)
	}

	if got := llmhttp.RedactURLSecrets(""); got != "" {
		t.Fatalf("empty input changed: %q", got)
	}
}
