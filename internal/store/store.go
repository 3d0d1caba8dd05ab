// Package store persists jobs, matches, cover letters, applications and
// folder memberships in a single-file SQLite database. One connection per
// process, serialized writes, every multi-row update inside a transaction.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a row does not exist. Callers treat it as a
// cache miss, never as a failure.
var ErrNotFound = errors.New("store: not found")

// timeFormat is ISO-8601 UTC, the only timestamp representation on disk.
const timeFormat = time.RFC3339

// Store is the single-file relational store. Safe for concurrent readers;
// writes are serialized by the connection pool limit plus the mutex.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	path   string
	logger *zap.Logger
}

// Open initializes the database at path, creating the schema and running
// idempotent migrations. Use ":memory:" for tests.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			logger.Debug("pragma failed", zap.String("pragma", pragma), zap.Error(err))
		}
	}

	s := &Store{db: db, path: path, logger: logger}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	logger.Debug("store ready", zap.String("path", path))
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// initialize creates tables and runs migrations. Every statement is
// idempotent so startup is safe to repeat.
func (s *Store) initialize() error {
	jobsTable := `
	CREATE TABLE IF NOT EXISTS jobs (
		job_id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		company TEXT NOT NULL,
		division TEXT,
		location TEXT,
		level TEXT,
		openings INTEGER DEFAULT 0,
		applications INTEGER DEFAULT 0,
		deadline TEXT,
		summary TEXT,
		responsibilities TEXT,
		skills TEXT,
		additional_info TEXT,
		employment_location_arrangement TEXT,
		work_term_duration TEXT,
		compensation_raw TEXT,
		compensation_value REAL DEFAULT 0,
		compensation_currency TEXT,
		compensation_period TEXT,
		application_documents_required TEXT,
		targeted_degrees_disciplines TEXT,
		is_active INTEGER DEFAULT 1,
		scraped_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_jobs_company ON jobs(company);
	CREATE INDEX IF NOT EXISTS idx_jobs_active ON jobs(is_active);
	`

	matchesTable := `
	CREATE TABLE IF NOT EXISTS job_matches (
		job_id TEXT PRIMARY KEY REFERENCES jobs(job_id) ON DELETE CASCADE,
		fit_score REAL NOT NULL,
		keyword_match REAL NOT NULL,
		semantic_coverage REAL NOT NULL,
		semantic_strength REAL NOT NULL,
		seniority_alignment REAL NOT NULL,
		matched_technologies TEXT NOT NULL,
		missing_technologies TEXT NOT NULL,
		evidence TEXT NOT NULL,
		analysis_version TEXT NOT NULL,
		analyzed_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_matches_score ON job_matches(fit_score);
	CREATE INDEX IF NOT EXISTS idx_matches_version ON job_matches(analysis_version);
	`

	runsTable := `
	CREATE TABLE IF NOT EXISTS analysis_runs (
		run_id TEXT PRIMARY KEY,
		analysis_version TEXT NOT NULL,
		jobs_total INTEGER DEFAULT 0,
		cache_hits INTEGER DEFAULT 0,
		recomputed INTEGER DEFAULT 0,
		started_at TEXT NOT NULL,
		finished_at TEXT
	);
	`

	lettersTable := `
	CREATE TABLE IF NOT EXISTS cover_letters (
		letter_id INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id TEXT NOT NULL REFERENCES jobs(job_id) ON DELETE CASCADE,
		content TEXT NOT NULL,
		file_path TEXT,
		generation_provider TEXT,
		word_count INTEGER DEFAULT 0,
		generated_at TEXT NOT NULL,
		is_uploaded INTEGER DEFAULT 0,
		uploaded_at TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_letters_job ON cover_letters(job_id);
	`

	applicationsTable := `
	CREATE TABLE IF NOT EXISTS applications (
		attempt_id TEXT PRIMARY KEY,
		job_id TEXT NOT NULL REFERENCES jobs(job_id) ON DELETE CASCADE,
		status TEXT NOT NULL,
		cover_letter_id INTEGER,
		documents TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_applications_job ON applications(job_id);
	`

	foldersTable := `
	CREATE TABLE IF NOT EXISTS saved_folders (
		job_id TEXT NOT NULL REFERENCES jobs(job_id) ON DELETE CASCADE,
		folder_name TEXT NOT NULL,
		saved_at TEXT NOT NULL,
		PRIMARY KEY (job_id, folder_name)
	);
	`

	metadataTable := `
	CREATE TABLE IF NOT EXISTS cache_metadata (
		cache_key TEXT PRIMARY KEY,
		cache_value TEXT,
		updated_at TEXT NOT NULL
	);
	`

	for _, table := range []string{
		jobsTable,
		matchesTable,
		runsTable,
		lettersTable,
		applicationsTable,
		foldersTable,
		metadataTable,
	} {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	return s.migrate()
}

// migrate adds columns introduced after the initial schema. ALTER TABLE in
// sqlite fails when the column exists, so each step probes first.
func (s *Store) migrate() error {
	steps := []struct {
		table, column, ddl string
	}{
		{"jobs", "targeted_degrees_disciplines",
			"ALTER TABLE jobs ADD COLUMN targeted_degrees_disciplines TEXT"},
		{"jobs", "application_documents_required",
			"ALTER TABLE jobs ADD COLUMN application_documents_required TEXT"},
		{"cover_letters", "uploaded_at",
			"ALTER TABLE cover_letters ADD COLUMN uploaded_at TEXT"},
	}

	for _, step := range steps {
		exists, err := s.columnExists(step.table, step.column)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		if _, err := s.db.Exec(step.ddl); err != nil {
			return fmt.Errorf("migrate %s.%s: %w", step.table, step.column, err)
		}
		s.logger.Debug("migration applied",
			zap.String("table", step.table), zap.String("column", step.column))
	}
	return nil
}

func (s *Store) columnExists(table, column string) (bool, error) {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

// Stats returns row counts per table.
func (s *Store) Stats() (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]int64)
	tables := []string{
		"jobs", "job_matches", "analysis_runs",
		"cover_letters", "applications", "saved_folders", "cache_metadata",
	}
	for _, table := range tables {
		var count int64
		if err := s.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		stats[table] = count
	}
	return stats, nil
}

// SetCacheValue upserts one cache_metadata entry.
func (s *Store) SetCacheValue(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO cache_metadata (cache_key, cache_value, updated_at) VALUES (?, ?, ?)`,
		key, value, time.Now().UTC().Format(timeFormat))
	if err != nil {
		return fmt.Errorf("set cache value %s: %w", key, err)
	}
	return nil
}

// GetCacheValue returns the value for key or ErrNotFound.
func (s *Store) GetCacheValue(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	err := s.db.QueryRow(`SELECT cache_value FROM cache_metadata WHERE cache_key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get cache value %s: %w", key, err)
	}
	return value, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeFormat, s)
}

func parseNullableTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil
	}
	return &t
}
