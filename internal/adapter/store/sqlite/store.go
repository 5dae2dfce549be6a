// Package sqlite keeps a local history of completed analyses and batch
// runs so past work can be listed without scanning the output tree.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store records analysis history in a SQLite database.
type Store struct {
	db *sql.DB
}

// AnalysisRecord is one completed per-language analysis.
type AnalysisRecord struct {
	ID         int64
	Repository string
	PRNumber   int
	Language   string
	Provider   string
	Model      string
	ReportPath string
	Complexity int
	TokensIn   int
	TokensOut  int
	CreatedAt  time.Time
}

// BatchRecord summarizes one batch run.
type BatchRecord struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt time.Time
	Repos      int
	Analyzed   int
	Failed     int
}

// NewStore opens (or creates) the database at dbPath.
// Use ":memory:" for an in-memory database in tests.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return s, nil
}

func (s *Store) createSchema() error {
	schema := `
	-- One row per generated report
	CREATE TABLE IF NOT EXISTS analyses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		repository TEXT NOT NULL,
		pr_number INTEGER NOT NULL,
		language TEXT NOT NULL,
		provider TEXT NOT NULL,
		model TEXT NOT NULL,
		report_path TEXT NOT NULL,
		complexity INTEGER DEFAULT 0,
		tokens_in INTEGER DEFAULT 0,
		tokens_out INTEGER DEFAULT 0,
		created_at INTEGER NOT NULL
	);

	-- One row per batch invocation
	CREATE TABLE IF NOT EXISTS batch_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL,
		repos INTEGER DEFAULT 0,
		analyzed INTEGER DEFAULT 0,
		failed INTEGER DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_analyses_repo_pr
		ON analyses(repository, pr_number);
	CREATE INDEX IF NOT EXISTS idx_analyses_created
		ON analyses(created_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// RecordAnalysis inserts one completed analysis.
func (s *Store) RecordAnalysis(ctx context.Context, rec AnalysisRecord) error {
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO analyses (repository, pr_number, language, provider, model,
			report_path, complexity, tokens_in, tokens_out, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Repository, rec.PRNumber, rec.Language, rec.Provider, rec.Model,
		rec.ReportPath, rec.Complexity, rec.TokensIn, rec.TokensOut, created.Unix())
	if err != nil {
		return fmt.Errorf("failed to record analysis: %w", err)
	}
	return nil
}

// ListAnalyses returns the newest analyses, optionally filtered by
// repository. A limit of zero means 50.
func (s *Store) ListAnalyses(ctx context.Context, repository string, limit int) ([]AnalysisRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, repository, pr_number, language, provider, model,
			report_path, complexity, tokens_in, tokens_out, created_at
		FROM analyses`
	args := []interface{}{}
	if repository != "" {
		query += " WHERE repository = ?"
		args = append(args, repository)
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}
	defer rows.Close()

	var out []AnalysisRecord
	for rows.Next() {
		var rec AnalysisRecord
		var created int64
		if err := rows.Scan(&rec.ID, &rec.Repository, &rec.PRNumber, &rec.Language,
			&rec.Provider, &rec.Model, &rec.ReportPath, &rec.Complexity,
			&rec.TokensIn, &rec.TokensOut, &created); err != nil {
			return nil, fmt.Errorf("failed to scan analysis row: %w", err)
		}
		rec.CreatedAt = time.Unix(created, 0)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// RecordBatchRun inserts one batch run summary.
func (s *Store) RecordBatchRun(ctx context.Context, rec BatchRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO batch_runs (started_at, finished_at, repos, analyzed, failed)
		VALUES (?, ?, ?, ?, ?)`,
		rec.StartedAt.Unix(), rec.FinishedAt.Unix(), rec.Repos, rec.Analyzed, rec.Failed)
	if err != nil {
		return fmt.Errorf("failed to record batch run: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
