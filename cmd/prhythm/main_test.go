package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	llmhttp "github.com/prhythm/prhythm/internal/adapter/llm/http"
	"github.com/prhythm/prhythm/internal/adapter/llm/openai"
	"github.com/prhythm/prhythm/internal/config"
	"github.com/prhythm/prhythm/internal/usecase/analyze"
)

func TestStringFlag(t *testing.T) {
	tests := []struct {
		name string
		args []string
		flag string
		want string
	}{
		{"absent", []string{"analyze", "--repo", "a/b"}, "config", ""},
		{"separate value", []string{"--config", "/etc/prhythm/config.json", "batch"}, "config", "/etc/prhythm/config.json"},
		{"equals form", []string{"batch", "--config=conf.json"}, "config", "conf.json"},
		{"after subcommand", []string{"analyze", "--config", "x.json", "--pr", "9"}, "config", "x.json"},
		{"log level", []string{"batch", "--log-level", "debug"}, "log-level", "debug"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := stringFlag(tc.args, tc.flag); got != tc.want {
				t.Fatalf("stringFlag(%v, %q) = %q, want %q", tc.args, tc.flag, got, tc.want)
			}
		})
	}
}

func TestRetryFromConfig(t *testing.T) {
	conf := retryFromConfig(config.LLMConfig{
		MaxRetries:     5,
		InitialBackoff: "2s",
		MaxBackoff:     "30s",
	})
	if conf.MaxRetries != 5 {
		t.Fatalf("MaxRetries = %d, want 5", conf.MaxRetries)
	}
	if conf.InitialBackoff != 2*time.Second {
		t.Fatalf("InitialBackoff = %v, want 2s", conf.InitialBackoff)
	}
	if conf.MaxBackoff != 30*time.Second {
		t.Fatalf("MaxBackoff = %v, want 30s", conf.MaxBackoff)
	}
}

func TestCompleterAdapterCapsMaxTokens(t *testing.T) {
	var got openai.ChatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		resp := openai.ChatCompletionResponse{
			Model: "gpt-4",
			Choices: []openai.Choice{
				{Message: openai.Message{Role: "assistant", Content: "ok"}, FinishReason: "stop"},
			},
			Usage: openai.Usage{PromptTokens: 10, CompletionTokens: 5},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := openai.NewClient("openai", "test-key", "gpt-4", server.URL, llmhttp.DefaultRetryConfig())
	adapter := &completerAdapter{client: client, maxTokens: 3000}

	_, err := adapter.Generate(context.Background(), analyze.CompletionRequest{
		Prompt:    "hello",
		MaxTokens: 8000,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got.MaxTokens != 3000 {
		t.Fatalf("max_tokens = %d, want provider cap 3000", got.MaxTokens)
	}
}

func TestRetryFromConfigDefaults(t *testing.T) {
	conf := retryFromConfig(config.LLMConfig{InitialBackoff: "bogus"})
	def := retryFromConfig(config.LLMConfig{})
	if conf.InitialBackoff != def.InitialBackoff {
		t.Fatalf("invalid duration should keep default, got %v", conf.InitialBackoff)
	}
	if def.MaxRetries <= 0 {
		t.Fatalf("default MaxRetries should be positive, got %d", def.MaxRetries)
	}
}
