// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package audit persists evaluation audit records in SQLite so any past
// promotion decision can be inspected and reconstructed.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rotisserie/eris"

	"github.com/pdiddy/milestone-engine/internal/evaluate"
	"github.com/pdiddy/milestone-engine/internal/signal"
	"github.com/pdiddy/milestone-engine/pkg/types"
)

// Store manages the audit SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and its schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, eris.Wrap(err, "creating audit directory")
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, eris.Wrap(err, "opening database")
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "creating schema")
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			model TEXT,
			batch_size INTEGER,
			nomination_retries INTEGER,
			skip_corroboration INTEGER,
			events INTEGER,
			promoted TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS batches (
			run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
			idx INTEGER NOT NULL,
			size INTEGER,
			attempts INTEGER,
			fallback INTEGER,
			error TEXT,
			nominated TEXT,
			PRIMARY KEY (run_id, idx)
		)`,
		`CREATE TABLE IF NOT EXISTS candidates (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
			identity_key TEXT NOT NULL,
			date TEXT,
			title TEXT,
			keyword TEXT,
			readings TEXT,
			promoted INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_candidates_run_id ON candidates(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_candidates_key ON candidates(identity_key)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return eris.Wrap(err, "executing schema statement")
		}
	}
	return nil
}

// Save writes one audit record in a single transaction.
func (s *Store) Save(ctx context.Context, a evaluate.Audit) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "beginning transaction")
	}
	defer tx.Rollback()

	promoted, _ := json.Marshal(a.Promoted)
	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, started_at, model, batch_size, nomination_retries, skip_corroboration, events, promoted)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.RunID, a.StartedAt.UTC().Format(time.RFC3339Nano), a.Model, a.BatchSize,
		a.NominationRetries, a.SkipCorroboration, a.Events, string(promoted),
	)
	if err != nil {
		return eris.Wrapf(err, "inserting run %s", a.RunID)
	}

	for _, b := range a.Batches {
		nominated, _ := json.Marshal(b.Nominated)
		_, err := tx.ExecContext(ctx,
			`INSERT INTO batches (run_id, idx, size, attempts, fallback, error, nominated)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			a.RunID, b.Index, b.Size, b.Attempts, b.Fallback, b.Error, string(nominated),
		)
		if err != nil {
			return eris.Wrapf(err, "inserting batch %d", b.Index)
		}
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO candidates (run_id, identity_key, date, title, keyword, readings, promoted)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "preparing candidate insert")
	}
	defer stmt.Close()

	for _, c := range a.Candidates {
		readings, _ := json.Marshal(c.Readings)
		if _, err := stmt.ExecContext(ctx,
			a.RunID, c.Key, c.Date, c.Title, c.Keyword, string(readings), c.Promoted,
		); err != nil {
			return eris.Wrapf(err, "inserting candidate %q", c.Title)
		}
	}

	return tx.Commit()
}

// Load reads the audit record of one run.
func (s *Store) Load(ctx context.Context, runID string) (evaluate.Audit, error) {
	var (
		a         evaluate.Audit
		startedAt string
		promoted  string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT run_id, started_at, model, batch_size, nomination_retries, skip_corroboration, events, promoted
		 FROM runs WHERE run_id = ?`, runID,
	).Scan(&a.RunID, &startedAt, &a.Model, &a.BatchSize, &a.NominationRetries, &a.SkipCorroboration, &a.Events, &promoted)
	if errors.Is(err, sql.ErrNoRows) {
		return a, eris.Wrapf(types.ErrNotFound, "audit run %s", runID)
	}
	if err != nil {
		return a, eris.Wrapf(err, "querying run %s", runID)
	}

	if a.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return a, eris.Wrapf(err, "parsing started_at of run %s", runID)
	}
	if err := json.Unmarshal([]byte(promoted), &a.Promoted); err != nil {
		return a, eris.Wrap(err, "decoding promoted keys")
	}

	if a.Batches, err = s.loadBatches(ctx, runID); err != nil {
		return a, err
	}
	if a.Candidates, err = s.loadCandidates(ctx, runID); err != nil {
		return a, err
	}
	return a, nil
}

func (s *Store) loadBatches(ctx context.Context, runID string) ([]evaluate.BatchRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT idx, size, attempts, fallback, error, nominated FROM batches WHERE run_id = ? ORDER BY idx`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "querying batches")
	}
	defer rows.Close()

	var batches []evaluate.BatchRecord
	for rows.Next() {
		var (
			b         evaluate.BatchRecord
			nominated string
		)
		if err := rows.Scan(&b.Index, &b.Size, &b.Attempts, &b.Fallback, &b.Error, &nominated); err != nil {
			return nil, eris.Wrap(err, "scanning batch")
		}
		if err := json.Unmarshal([]byte(nominated), &b.Nominated); err != nil {
			return nil, eris.Wrap(err, "decoding nominated keys")
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

func (s *Store) loadCandidates(ctx context.Context, runID string) ([]evaluate.CandidateRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT identity_key, date, title, keyword, readings, promoted FROM candidates WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "querying candidates")
	}
	defer rows.Close()

	var candidates []evaluate.CandidateRecord
	for rows.Next() {
		var (
			c        evaluate.CandidateRecord
			readings string
		)
		if err := rows.Scan(&c.Key, &c.Date, &c.Title, &c.Keyword, &readings, &c.Promoted); err != nil {
			return nil, eris.Wrap(err, "scanning candidate")
		}
		var rs []signal.Reading
		if err := json.Unmarshal([]byte(readings), &rs); err != nil {
			return nil, eris.Wrap(err, "decoding readings")
		}
		c.Readings = rs
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// RunSummary is one line of the run listing.
type RunSummary struct {
	RunID      string
	StartedAt  time.Time
	Events     int
	Candidates int
	Promoted   int
}

// List returns the most recent runs, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.run_id, r.started_at, r.events,
			(SELECT count(*) FROM candidates c WHERE c.run_id = r.run_id),
			(SELECT count(*) FROM candidates c WHERE c.run_id = r.run_id AND c.promoted = 1)
		 FROM runs r ORDER BY r.started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "querying runs")
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var (
			r         RunSummary
			startedAt string
		)
		if err := rows.Scan(&r.RunID, &startedAt, &r.Events, &r.Candidates, &r.Promoted); err != nil {
			return nil, eris.Wrap(err, "scanning run")
		}
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Latest loads the most recent run.
func (s *Store) Latest(ctx context.Context) (evaluate.Audit, error) {
	runs, err := s.List(ctx, 1)
	if err != nil {
		return evaluate.Audit{}, err
	}
	if len(runs) == 0 {
		return evaluate.Audit{}, eris.Wrap(types.ErrNotFound, "no audit runs recorded")
	}
	return s.Load(ctx, runs[0].RunID)
}
