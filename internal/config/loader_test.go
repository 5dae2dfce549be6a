package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prhythm/prhythm/internal/config"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := config.Load(config.LoaderOptions{ConfigPaths: []string{t.TempDir()}})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.LLM.Provider != "openai" {
		t.Fatalf("unexpected default provider: %q", cfg.LLM.Provider)
	}
	openai := cfg.LLM.Providers["openai"]
	if openai.BaseURL != "https://api.openai.com/v1" || openai.Model != "gpt-4" {
		t.Fatalf("unexpected openai defaults: %+v", openai)
	}
	deepseek := cfg.LLM.Providers["deepseek"]
	if deepseek.BaseURL != "https://api.deepseek.com" || deepseek.Model != "deepseek-reasoner" {
		t.Fatalf("unexpected deepseek defaults: %+v", deepseek)
	}
	if cfg.Paths.AnalysisDir != "analysis" || cfg.Paths.ReposDir != "repos" {
		t.Fatalf("unexpected path defaults: %+v", cfg.Paths)
	}
	if cfg.LLM.MaxRetries != 3 {
		t.Fatalf("unexpected retry default: %d", cfg.LLM.MaxRetries)
	}
	if langs := cfg.Languages(); len(langs) != 1 || langs[0] != "en" {
		t.Fatalf("unexpected language default: %v", langs)
	}
	if cfg.Paths.HistoryDB != filepath.Join("repos", "prhythm.db") {
		t.Fatalf("unexpected history db default: %q", cfg.Paths.HistoryDB)
	}
}

func TestLoadHistoryDBFollowsReposDir(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `{"paths": {"repos_dir": "/srv/mirrors"}}`)

	cfg, err := config.Load(config.LoaderOptions{ConfigPaths: []string{dir}})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Paths.HistoryDB != filepath.Join("/srv/mirrors", "prhythm.db") {
		t.Fatalf("unexpected derived history db: %q", cfg.Paths.HistoryDB)
	}

	writeConfig(t, dir, `{"paths": {"history_db": "/var/lib/prhythm/history.db"}}`)
	cfg, err = config.Load(config.LoaderOptions{ConfigPaths: []string{dir}})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Paths.HistoryDB != "/var/lib/prhythm/history.db" {
		t.Fatalf("explicit history db overridden: %q", cfg.Paths.HistoryDB)
	}
}

func TestLoadReadsJSONFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `{
		"github": {"repositories": ["golang/go"], "token": "tok"},
		"llm": {
			"provider": "deepseek",
			"providers": {"deepseek": {"api_key": "sk-ds", "max_tokens": 8000}}
		},
		"output": {"languages": ["en", "zh-cn"]},
		"paths": {"analysis_dir": "reports"}
	}`)

	cfg, err := config.Load(config.LoaderOptions{ConfigPaths: []string{dir}})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if len(cfg.GitHub.Repositories) != 1 || cfg.GitHub.Repositories[0] != "golang/go" {
		t.Fatalf("unexpected repositories: %v", cfg.GitHub.Repositories)
	}
	if cfg.LLM.Provider != "deepseek" {
		t.Fatalf("unexpected provider: %q", cfg.LLM.Provider)
	}
	ds := cfg.LLM.Providers["deepseek"]
	if ds.APIKey != "sk-ds" || ds.MaxTokens != 8000 {
		t.Fatalf("unexpected deepseek config: %+v", ds)
	}
	// File values merge with defaults.
	if ds.Model != "deepseek-reasoner" {
		t.Fatalf("default model lost: %q", ds.Model)
	}
	if cfg.Paths.AnalysisDir != "reports" {
		t.Fatalf("unexpected analysis dir: %q", cfg.Paths.AnalysisDir)
	}
	if cfg.Paths.OutputDir != "output" {
		t.Fatalf("default output dir lost: %q", cfg.Paths.OutputDir)
	}
}

func TestLoadExplicitFileMissing(t *testing.T) {
	_, err := config.Load(config.LoaderOptions{ConfigFile: filepath.Join(t.TempDir(), "nope.json")})
	if err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestLoadExpandsEnvPlaceholders(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `{
		"github": {"token": "${TEST_PR_GH_TOKEN}"},
		"llm": {"providers": {"openai": {"api_key": "${TEST_PR_LLM_KEY}"}}}
	}`)

	t.Setenv("TEST_PR_GH_TOKEN", "gh-secret")
	t.Setenv("TEST_PR_LLM_KEY", "llm-secret")

	cfg, err := config.Load(config.LoaderOptions{ConfigPaths: []string{dir}})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.GitHub.Token != "gh-secret" {
		t.Fatalf("token not expanded: %q", cfg.GitHub.Token)
	}
	if cfg.LLM.Providers["openai"].APIKey != "llm-secret" {
		t.Fatalf("api key not expanded: %q", cfg.LLM.Providers["openai"].APIKey)
	}
}

func TestLoadKeepsUnsetPlaceholders(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `{"github": {"token": "${TEST_PR_UNSET_VAR}"}}`)

	cfg, err := config.Load(config.LoaderOptions{ConfigPaths: []string{dir}})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.GitHub.Token != "${TEST_PR_UNSET_VAR}" {
		t.Fatalf("unset placeholder rewritten: %q", cfg.GitHub.Token)
	}
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `{"github": `)
	if _, err := config.Load(config.LoaderOptions{ConfigPaths: []string{dir}}); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}
