// Package config loads and validates the application configuration.
// Configuration is an explicit value passed to constructors; there is
// no package-level state.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/prhythm/prhythm/internal/domain"
)

// Config represents the full application configuration.
type Config struct {
	GitHub GitHubConfig `mapstructure:"github"`
	LLM    LLMConfig    `mapstructure:"llm"`
	Output OutputConfig `mapstructure:"output"`
	Paths  PathsConfig  `mapstructure:"paths"`
	Log    LogConfig    `mapstructure:"log"`
}

// GitHubConfig holds repository tracking settings.
type GitHubConfig struct {
	Repositories []string `mapstructure:"repositories"`
	Token        string   `mapstructure:"token"`
}

// LLMConfig selects and configures the completion provider.
type LLMConfig struct {
	Provider    string                    `mapstructure:"provider"`
	Temperature *float64                  `mapstructure:"temperature"`
	Providers   map[string]ProviderConfig `mapstructure:"providers"`

	// Shared retry policy for all outbound clients.
	MaxRetries     int    `mapstructure:"max_retries"`
	InitialBackoff string `mapstructure:"initial_backoff"`
	MaxBackoff     string `mapstructure:"max_backoff"`
}

// ProviderConfig configures a single completion provider.
type ProviderConfig struct {
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model"`
	BaseURL   string `mapstructure:"base_url"`
	MaxTokens int    `mapstructure:"max_tokens"`
}

// OutputConfig controls report generation.
type OutputConfig struct {
	Languages []string `mapstructure:"languages"`
}

// PathsConfig locates the on-disk working directories.
type PathsConfig struct {
	OutputDir   string `mapstructure:"output_dir"`
	AnalysisDir string `mapstructure:"analysis_dir"`
	ReposDir    string `mapstructure:"repos_dir"`
	LogDir      string `mapstructure:"log_dir"`
	HistoryDB   string `mapstructure:"history_db"`
}

// LogConfig controls application logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, error
	Format string `mapstructure:"format"` // human, json
}

// ResolveToken returns the GitHub token from config or the GITHUB_TOKEN
// environment variable. An empty result means unauthenticated access.
func (c Config) ResolveToken() string {
	if c.GitHub.Token != "" {
		return c.GitHub.Token
	}
	return os.Getenv("GITHUB_TOKEN")
}

// ActiveProvider returns the configured provider name and its settings.
func (c Config) ActiveProvider() (string, ProviderConfig, error) {
	name := c.LLM.Provider
	if name == "" {
		name = "openai"
	}
	pc, ok := c.LLM.Providers[name]
	if !ok {
		return "", ProviderConfig{}, fmt.Errorf("provider %q not configured", name)
	}
	if pc.Model == "" {
		return "", ProviderConfig{}, fmt.Errorf("provider %q has no model configured", name)
	}
	if pc.BaseURL == "" {
		return "", ProviderConfig{}, fmt.Errorf("provider %q has no base_url configured", name)
	}
	return name, pc, nil
}

// ResolveAPIKey returns the API key for the named provider, falling back
// from config to <PROVIDER>_API_KEY and then LLM_API_KEY.
func (c Config) ResolveAPIKey(provider string, pc ProviderConfig) (string, error) {
	if pc.APIKey != "" {
		return pc.APIKey, nil
	}
	envKey := strings.ToUpper(provider) + "_API_KEY"
	if v := os.Getenv(envKey); v != "" {
		return v, nil
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("no API key for provider %q: set providers.%s.api_key, %s, or LLM_API_KEY", provider, provider, envKey)
}

// Languages returns the normalized report language list.
func (c Config) Languages() []string {
	langs := domain.NormalizeLanguages(c.Output.Languages)
	if len(langs) == 0 {
		return []string{"en"}
	}
	return langs
}

// Validate checks the configuration for fatal mistakes.
func (c Config) Validate() error {
	if _, _, err := c.ActiveProvider(); err != nil {
		return err
	}
	for _, lang := range c.Languages() {
		if _, ok := domain.LookupLanguage(lang); !ok {
			return fmt.Errorf("unsupported output language %q", lang)
		}
	}
	if c.Log.Level != "" {
		switch c.Log.Level {
		case "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("invalid log level %q", c.Log.Level)
		}
	}
	if c.Log.Format != "" && c.Log.Format != "human" && c.Log.Format != "json" {
		return fmt.Errorf("invalid log format %q", c.Log.Format)
	}
	return nil
}
