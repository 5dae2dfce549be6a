// Package status maintains the per-repository processing watermark in a
// JSON file next to the repository mirrors.
package status

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prhythm/prhythm/internal/domain"
)

// FileName is the watermark file kept inside the repos directory.
const FileName = "pr_processing_status.json"

const maxBatchOperations = 100

// RepoStatus records the newest processed pull request for one repository.
type RepoStatus struct {
	LatestProcessedPR int    `json:"latest_processed_pr"`
	LastUpdated       string `json:"last_updated,omitempty"`
	LatestPRTitle     string `json:"latest_pr_title,omitempty"`
	LatestPRURL       string `json:"latest_pr_url,omitempty"`
}

// BatchOperation is one entry in the rolling operations log.
type BatchOperation struct {
	Timestamp  string `json:"timestamp"`
	Repository string `json:"repository"`
	PRNumber   int    `json:"pr_number"`
	Operation  string `json:"operation"`
	Success    bool   `json:"success"`
}

// File is the on-disk watermark document.
type File struct {
	Repositories    map[string]*RepoStatus `json:"repositories"`
	LastUpdated     string                 `json:"last_updated"`
	BatchOperations []BatchOperation       `json:"batch_operations"`
}

// Tracker reads and updates the watermark file. All writes go through a
// temp file and rename so a crash never leaves a half-written document.
type Tracker struct {
	path string
	now  func() time.Time
}

// NewTracker creates a tracker storing its file inside reposDir.
func NewTracker(reposDir string, now func() time.Time) *Tracker {
	return &Tracker{path: filepath.Join(reposDir, FileName), now: now}
}

// Path returns the watermark file location.
func (t *Tracker) Path() string {
	return t.path
}

// Load reads the watermark file. A missing or unparseable file yields an
// empty document rather than an error, so a fresh checkout just works.
func (t *Tracker) Load() *File {
	data, err := os.ReadFile(t.path)
	if err != nil {
		return t.empty()
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return t.empty()
	}
	if f.Repositories == nil {
		f.Repositories = map[string]*RepoStatus{}
	}
	return &f
}

func (t *Tracker) empty() *File {
	return &File{
		Repositories: map[string]*RepoStatus{},
		LastUpdated:  t.now().Format(time.RFC3339),
	}
}

// LatestProcessed returns the highest processed PR number for a
// repository, zero when the repository has never been processed.
func (t *Tracker) LatestProcessed(repo string) int {
	f := t.Load()
	if rs, ok := f.Repositories[repo]; ok {
		return rs.LatestProcessedPR
	}
	return 0
}

// Update advances the watermark for the pull request's repository and
// appends an operation record. The watermark only moves forward: a PR
// number at or below the stored one leaves the file untouched and
// returns false.
func (t *Tracker) Update(pr domain.PullRequest, operation string, success bool) (bool, error) {
	f := t.Load()

	rs, ok := f.Repositories[pr.Repository]
	if !ok {
		rs = &RepoStatus{}
		f.Repositories[pr.Repository] = rs
	}

	if pr.Number <= rs.LatestProcessedPR {
		return false, nil
	}

	now := t.now().Format(time.RFC3339)
	rs.LatestProcessedPR = pr.Number
	rs.LastUpdated = now
	rs.LatestPRTitle = pr.Title
	rs.LatestPRURL = pr.URL

	if operation != "" {
		f.BatchOperations = append(f.BatchOperations, BatchOperation{
			Timestamp:  now,
			Repository: pr.Repository,
			PRNumber:   pr.Number,
			Operation:  operation,
			Success:    success,
		})
		if len(f.BatchOperations) > maxBatchOperations {
			f.BatchOperations = f.BatchOperations[len(f.BatchOperations)-maxBatchOperations:]
		}
	}

	if err := t.save(f); err != nil {
		return false, err
	}
	return true, nil
}

func (t *Tracker) save(f *File) error {
	f.LastUpdated = t.now().Format(time.RFC3339)

	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return fmt.Errorf("create status dir: %w", err)
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}

	tmp := t.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write status temp file: %w", err)
	}
	if err := os.Rename(tmp, t.path); err != nil {
		return fmt.Errorf("replace status file: %w", err)
	}
	return nil
}
