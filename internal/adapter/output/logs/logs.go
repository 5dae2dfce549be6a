// Package logs writes operational artifacts: the prompt sent for each
// pull request and a CSV of failed LLM requests.
package logs

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const failureFile = "failed_llm_requests.csv"

var failureHeader = []string{"Timestamp", "Repository", "PR Number", "Language", "Error"}

// Dir writes prompt and failure artifacts into a single log directory.
type Dir struct {
	path string
	now  func() time.Time
}

// NewDir creates a log directory writer.
func NewDir(path string, now func() time.Time) *Dir {
	return &Dir{path: path, now: now}
}

// SavePrompt writes the rendered prompt to prompt_pr<num>_<ts>.txt
// before the LLM call, so the exact input survives a crash.
func (d *Dir) SavePrompt(prNumber int, prompt string) (string, error) {
	if err := os.MkdirAll(d.path, 0o755); err != nil {
		return "", fmt.Errorf("create log dir: %w", err)
	}
	name := fmt.Sprintf("prompt_pr%d_%s.txt", prNumber, d.now().Format("20060102_150405"))
	path := filepath.Join(d.path, name)
	if err := os.WriteFile(path, []byte(prompt), 0o644); err != nil {
		return "", fmt.Errorf("write prompt log: %w", err)
	}
	return path, nil
}

// RecordFailure appends one row to failed_llm_requests.csv, creating
// the file with a header row on first use.
func (d *Dir) RecordFailure(repo string, prNumber int, language string, cause error) error {
	if err := os.MkdirAll(d.path, 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	path := filepath.Join(d.path, failureFile)

	_, statErr := os.Stat(path)
	isNew := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open failure log: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if isNew {
		if err := w.Write(failureHeader); err != nil {
			return fmt.Errorf("write failure log header: %w", err)
		}
	}
	row := []string{
		d.now().Format(time.RFC3339),
		repo,
		fmt.Sprintf("%d", prNumber),
		language,
		cause.Error(),
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("write failure log row: %w", err)
	}
	w.Flush()
	return w.Error()
}
