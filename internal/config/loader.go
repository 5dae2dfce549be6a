package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/spf13/viper"
)

// LoaderOptions describes how configuration should be discovered.
type LoaderOptions struct {
	// ConfigFile is an explicit config path (--config flag). When set,
	// discovery is skipped and a missing file is an error.
	ConfigFile  string
	ConfigPaths []string
	FileName    string
}

// Load returns the merged configuration from the config file, defaults,
// and environment variable expansion.
func Load(opts LoaderOptions) (Config, error) {
	v := viper.New()
	v.SetConfigType("json")

	name := opts.FileName
	if name == "" {
		name = "config"
	}

	configFile := opts.ConfigFile
	if configFile == "" {
		configFile = locateConfigFile(name, opts.ConfigPaths)
	} else if _, err := os.Stat(configFile); err != nil {
		return Config{}, fmt.Errorf("config file %s: %w", configFile, err)
	}

	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg = expandEnvVars(cfg)

	// The history database lives next to the repo mirrors. This cannot
	// be a viper default because it derives from another key.
	if cfg.Paths.HistoryDB == "" {
		cfg.Paths.HistoryDB = filepath.Join(cfg.Paths.ReposDir, "prhythm.db")
	}

	return cfg, nil
}

// expandEnvVars expands ${VAR} placeholders in configuration strings.
func expandEnvVars(cfg Config) Config {
	cfg.GitHub.Token = expandEnvString(cfg.GitHub.Token)
	for name, provider := range cfg.LLM.Providers {
		provider.APIKey = expandEnvString(provider.APIKey)
		provider.Model = expandEnvString(provider.Model)
		provider.BaseURL = expandEnvString(provider.BaseURL)
		cfg.LLM.Providers[name] = provider
	}
	cfg.Paths.OutputDir = expandEnvString(cfg.Paths.OutputDir)
	cfg.Paths.AnalysisDir = expandEnvString(cfg.Paths.AnalysisDir)
	cfg.Paths.ReposDir = expandEnvString(cfg.Paths.ReposDir)
	cfg.Paths.LogDir = expandEnvString(cfg.Paths.LogDir)
	cfg.Paths.HistoryDB = expandEnvString(cfg.Paths.HistoryDB)
	return cfg
}

var envPlaceholder = regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*)\}`)

// expandEnvString replaces ${VAR} with environment variable values.
// Unset variables keep the literal placeholder so the failure surfaces
// where the value is used instead of silently becoming empty.
func expandEnvString(s string) string {
	if s == "" {
		return s
	}
	return envPlaceholder.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match
	})
}

func locateConfigFile(name string, paths []string) string {
	searchPaths := append([]string{}, paths...)
	searchPaths = append(searchPaths, ".")
	for _, dir := range searchPaths {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, name+".json")
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.initial_backoff", "5s")
	v.SetDefault("llm.max_backoff", "60s")

	v.SetDefault("llm.providers.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.providers.openai.model", "gpt-4")
	v.SetDefault("llm.providers.deepseek.base_url", "https://api.deepseek.com")
	v.SetDefault("llm.providers.deepseek.model", "deepseek-reasoner")

	v.SetDefault("output.languages", []string{"en"})

	v.SetDefault("paths.output_dir", "output")
	v.SetDefault("paths.analysis_dir", "analysis")
	v.SetDefault("paths.repos_dir", "repos")
	v.SetDefault("paths.log_dir", "logs")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "human")
}
