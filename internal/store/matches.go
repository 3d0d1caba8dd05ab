package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/amanzav/geese/internal/types"
)

// UpsertMatch stores the current scored result for a job, replacing any
// previous one. The posting must already exist.
func (s *Store) UpsertMatch(m *types.MatchResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched, err := json.Marshal(emptyToNilSlice(m.MatchedTechnologies))
	if err != nil {
		return fmt.Errorf("encode matched technologies for %s: %w", m.JobID, err)
	}
	missing, err := json.Marshal(emptyToNilSlice(m.MissingTechnologies))
	if err != nil {
		return fmt.Errorf("encode missing technologies for %s: %w", m.JobID, err)
	}
	evidence, err := json.Marshal(m.Evidence)
	if err != nil {
		return fmt.Errorf("encode evidence for %s: %w", m.JobID, err)
	}

	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO job_matches (
			job_id, fit_score,
			keyword_match, semantic_coverage, semantic_strength, seniority_alignment,
			matched_technologies, missing_technologies, evidence,
			analysis_version, analyzed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.JobID, m.FitScore,
		m.KeywordMatch, m.SemanticCoverage, m.SemanticStrength, m.SeniorityAlignment,
		string(matched), string(missing), string(evidence),
		m.AnalysisVersion, formatTime(m.AnalyzedAt))
	if err != nil {
		return fmt.Errorf("upsert match %s: %w", m.JobID, err)
	}
	return nil
}

// GetMatch returns the stored result for a job or ErrNotFound. Version
// checking is the caller's concern.
func (s *Store) GetMatch(jobID string) (*types.MatchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`
		SELECT job_id, fit_score,
			keyword_match, semantic_coverage, semantic_strength, seniority_alignment,
			matched_technologies, missing_technologies, evidence,
			analysis_version, analyzed_at
		FROM job_matches WHERE job_id = ?`, jobID)

	m, err := scanMatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get match %s: %w", jobID, err)
	}
	return m, nil
}

// ListMatches returns every stored result with fit_score at or above min,
// best first, ties broken by ascending job id.
func (s *Store) ListMatches(min float64) ([]*types.MatchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT job_id, fit_score,
			keyword_match, semantic_coverage, semantic_strength, seniority_alignment,
			matched_technologies, missing_technologies, evidence,
			analysis_version, analyzed_at
		FROM job_matches WHERE fit_score >= ?
		ORDER BY fit_score DESC, job_id ASC`, min)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	defer rows.Close()

	var out []*types.MatchResult
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ClearMatches deletes stored results. With version set, only rows carrying
// that analysis version go; empty clears everything. Returns rows removed.
func (s *Store) ClearMatches(version string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res sql.Result
	var err error
	if version == "" {
		res, err = s.db.Exec(`DELETE FROM job_matches`)
	} else {
		res, err = s.db.Exec(`DELETE FROM job_matches WHERE analysis_version = ?`, version)
	}
	if err != nil {
		return 0, fmt.Errorf("clear matches: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func scanMatch(row rowScanner) (*types.MatchResult, error) {
	var m types.MatchResult
	var matched, missing, evidence string
	var analyzedAt string

	err := row.Scan(
		&m.JobID, &m.FitScore,
		&m.KeywordMatch, &m.SemanticCoverage, &m.SemanticStrength, &m.SeniorityAlignment,
		&matched, &missing, &evidence,
		&m.AnalysisVersion, &analyzedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(matched), &m.MatchedTechnologies); err != nil {
		return nil, fmt.Errorf("decode matched technologies: %w", err)
	}
	if err := json.Unmarshal([]byte(missing), &m.MissingTechnologies); err != nil {
		return nil, fmt.Errorf("decode missing technologies: %w", err)
	}
	if err := json.Unmarshal([]byte(evidence), &m.Evidence); err != nil {
		return nil, fmt.Errorf("decode evidence: %w", err)
	}
	if m.AnalyzedAt, err = parseTime(analyzedAt); err != nil {
		return nil, fmt.Errorf("parse analyzed_at: %w", err)
	}
	return &m, nil
}

// AnalysisRun records one scoring pass over the corpus.
type AnalysisRun struct {
	RunID           string
	AnalysisVersion string
	JobsTotal       int64
	CacheHits       int64
	Recomputed      int64
	StartedAt       time.Time
	FinishedAt      *time.Time
}

// BeginAnalysisRun opens a run row and returns its id.
func (s *Store) BeginAnalysisRun(version string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	runID := uuid.NewString()
	_, err := s.db.Exec(`
		INSERT INTO analysis_runs (run_id, analysis_version, started_at)
		VALUES (?, ?, ?)`,
		runID, version, formatTime(time.Now().UTC()))
	if err != nil {
		return "", fmt.Errorf("begin analysis run: %w", err)
	}
	return runID, nil
}

// FinishAnalysisRun closes a run row with its final counters.
func (s *Store) FinishAnalysisRun(runID string, jobsTotal, cacheHits, recomputed int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		UPDATE analysis_runs
		SET jobs_total = ?, cache_hits = ?, recomputed = ?, finished_at = ?
		WHERE run_id = ?`,
		jobsTotal, cacheHits, recomputed, formatTime(time.Now().UTC()), runID)
	if err != nil {
		return fmt.Errorf("finish analysis run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
