// Package history persists resolve runs in a local SQLite database so earlier
// URL inventories can be listed and compared.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	sitemapcsv "github.com/kotylevskiy/go-sitemap-csv"
)

// FileName is the database file created inside the data directory.
const FileName = "history.db"

// Store is a SQLite-backed run history.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Run summarizes one recorded resolve run.
type Run struct {
	ID           int64
	Roots        []string
	StartedAt    time.Time
	Duration     time.Duration
	URLCount     int
	FailureCount int
	Fetches      int
}

// Open opens or creates the history database in dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	dbPath := filepath.Join(dir, FileName)

	db, err := sql.Open("sqlite", dbPath+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db, dbPath: dbPath}
	if err := s.createTables(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createTables(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		roots TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		url_count INTEGER NOT NULL,
		failure_count INTEGER NOT NULL,
		fetches INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS run_urls (
		run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		url TEXT NOT NULL,
		PRIMARY KEY (run_id, position)
	);

	CREATE TABLE IF NOT EXISTS run_failures (
		run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		url TEXT NOT NULL,
		kind TEXT NOT NULL,
		message TEXT NOT NULL,
		PRIMARY KEY (run_id, position)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Record stores a run and its full URL and failure lists.
func (s *Store) Record(ctx context.Context, roots []string, startedAt time.Time, elapsed time.Duration, result *sitemapcsv.Result) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (roots, started_at, duration_ms, url_count, failure_count, fetches) VALUES (?, ?, ?, ?, ?, ?)`,
		strings.Join(roots, "\n"), startedAt.UnixMilli(), elapsed.Milliseconds(),
		len(result.URLs), len(result.Failures), result.Fetches,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	urlStmt, err := tx.PrepareContext(ctx, `INSERT INTO run_urls (run_id, position, url) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer urlStmt.Close()
	for i, u := range result.URLs {
		if _, err := urlStmt.ExecContext(ctx, runID, i, u); err != nil {
			return 0, fmt.Errorf("failed to insert url: %w", err)
		}
	}

	failStmt, err := tx.PrepareContext(ctx, `INSERT INTO run_failures (run_id, position, url, kind, message) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer failStmt.Close()
	for i, f := range result.Failures {
		if _, err := failStmt.ExecContext(ctx, runID, i, f.URL, string(f.Kind), f.Message); err != nil {
			return 0, fmt.Errorf("failed to insert failure: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return runID, nil
}

// Recent returns the latest runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, roots, started_at, duration_ms, url_count, failure_count, fetches
		 FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run        Run
			roots      string
			startedAt  int64
			durationMS int64
		)
		if err := rows.Scan(&run.ID, &roots, &startedAt, &durationMS, &run.URLCount, &run.FailureCount, &run.Fetches); err != nil {
			return nil, err
		}
		run.Roots = strings.Split(roots, "\n")
		run.StartedAt = time.UnixMilli(startedAt)
		run.Duration = time.Duration(durationMS) * time.Millisecond
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ErrRunNotFound is returned when a run ID is not in the database.
type ErrRunNotFound struct {
	ID int64
}

func (e *ErrRunNotFound) Error() string {
	return fmt.Sprintf("run %d not found", e.ID)
}

func (s *Store) checkRun(ctx context.Context, runID int64) error {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM runs WHERE id = ?)`, runID).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return &ErrRunNotFound{ID: runID}
	}
	return nil
}

// URLs returns the URLs of a run in discovery order.
func (s *Store) URLs(ctx context.Context, runID int64) ([]string, error) {
	if err := s.checkRun(ctx, runID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT url FROM run_urls WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	urls := []string{}
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

// Failures returns the failures of a run in discovery order. Err is not persisted.
func (s *Store) Failures(ctx context.Context, runID int64) ([]sitemapcsv.Failure, error) {
	if err := s.checkRun(ctx, runID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT url, kind, message FROM run_failures WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var failures []sitemapcsv.Failure
	for rows.Next() {
		var (
			f    sitemapcsv.Failure
			kind string
		)
		if err := rows.Scan(&f.URL, &kind, &f.Message); err != nil {
			return nil, err
		}
		f.Kind = sitemapcsv.ErrorKind(kind)
		failures = append(failures, f)
	}
	return failures, rows.Err()
}

// Diff compares the URL lists of two runs and returns URLs only in the newer
// run (added) and only in the older run (removed), each in run order.
func (s *Store) Diff(ctx context.Context, olderID, newerID int64) (added, removed []string, err error) {
	older, err := s.URLs(ctx, olderID)
	if err != nil {
		return nil, nil, err
	}
	newer, err := s.URLs(ctx, newerID)
	if err != nil {
		return nil, nil, err
	}
	return difference(newer, older), difference(older, newer), nil
}

func difference(left, right []string) []string {
	in := make(map[string]struct{}, len(right))
	for _, u := range right {
		in[u] = struct{}{}
	}
	out := []string{}
	for _, u := range left {
		if _, ok := in[u]; !ok {
			out = append(out, u)
		}
	}
	return out
}
