package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/amanzav/geese/internal/types"
)

// JobFilter narrows ListJobs. Zero value means no filtering.
type JobFilter struct {
	ActiveOnly  bool
	Company     string
	MinFitScore float64 // applied only when ScoredOnly is set
	ScoredOnly  bool
}

// UpsertJob inserts or updates one posting. scraped_at is written on first
// insert only; updated_at always advances.
func (s *Store) UpsertJob(job *types.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin upsert job: %w", err)
	}
	defer tx.Rollback()

	if err := upsertJobTx(tx, job, time.Now().UTC()); err != nil {
		return err
	}
	return tx.Commit()
}

// UpsertJobs writes a batch of postings in one transaction. Either every job
// lands or none does.
func (s *Store) UpsertJobs(jobs []*types.Job) error {
	if len(jobs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin upsert batch: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, job := range jobs {
		if err := upsertJobTx(tx, job, now); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert batch: %w", err)
	}
	s.logger.Debug("job batch persisted", zap.Int("count", len(jobs)))
	return nil
}

func upsertJobTx(tx *sql.Tx, job *types.Job, now time.Time) error {
	if job.JobID == "" {
		return fmt.Errorf("upsert job: empty job id")
	}

	docs, err := json.Marshal(emptyToNilSlice(job.ApplicationDocumentsRequired))
	if err != nil {
		return fmt.Errorf("encode documents for %s: %w", job.JobID, err)
	}
	degrees, err := json.Marshal(emptyToNilSlice(job.TargetedDegreesDisciplines))
	if err != nil {
		return fmt.Errorf("encode degrees for %s: %w", job.JobID, err)
	}

	var deadline any
	if job.Deadline != nil {
		deadline = formatTime(*job.Deadline)
	}

	scrapedAt := job.ScrapedAt
	if scrapedAt.IsZero() {
		scrapedAt = now
	}

	_, err = tx.Exec(`
		INSERT INTO jobs (
			job_id, title, company, division, location, level,
			openings, applications, deadline,
			summary, responsibilities, skills, additional_info,
			employment_location_arrangement, work_term_duration,
			compensation_raw, compensation_value, compensation_currency, compensation_period,
			application_documents_required, targeted_degrees_disciplines,
			is_active, scraped_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_id) DO UPDATE SET
			title = excluded.title,
			company = excluded.company,
			division = excluded.division,
			location = excluded.location,
			level = excluded.level,
			openings = excluded.openings,
			applications = excluded.applications,
			deadline = excluded.deadline,
			summary = excluded.summary,
			responsibilities = excluded.responsibilities,
			skills = excluded.skills,
			additional_info = excluded.additional_info,
			employment_location_arrangement = excluded.employment_location_arrangement,
			work_term_duration = excluded.work_term_duration,
			compensation_raw = excluded.compensation_raw,
			compensation_value = excluded.compensation_value,
			compensation_currency = excluded.compensation_currency,
			compensation_period = excluded.compensation_period,
			application_documents_required = excluded.application_documents_required,
			targeted_degrees_disciplines = excluded.targeted_degrees_disciplines,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at`,
		job.JobID, job.Title, job.Company, job.Division, job.Location, job.Level,
		job.Openings, job.Applications, deadline,
		job.Summary, job.Responsibilities, job.Skills, job.AdditionalInfo,
		job.EmploymentLocationArrangement, job.WorkTermDuration,
		job.CompensationRaw, job.CompensationValue, job.CompensationCurrency, job.CompensationPeriod,
		string(docs), string(degrees),
		boolToInt(job.IsActive), formatTime(scrapedAt), formatTime(now))
	if err != nil {
		return fmt.Errorf("upsert job %s: %w", job.JobID, err)
	}
	return nil
}

// GetJob returns one posting or ErrNotFound.
func (s *Store) GetJob(jobID string) (*types.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(jobSelect+" WHERE job_id = ?", jobID)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}
	return job, nil
}

// ListJobs returns postings matching the filter, ordered by job id.
func (s *Store) ListJobs(filter JobFilter) ([]*types.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var conds []string
	var args []any
	query := jobSelect
	if filter.ScoredOnly {
		query = jobSelect + " JOIN job_matches m ON m.job_id = jobs.job_id"
		if filter.MinFitScore > 0 {
			conds = append(conds, "m.fit_score >= ?")
			args = append(args, filter.MinFitScore)
		}
	}
	if filter.ActiveOnly {
		conds = append(conds, "jobs.is_active = 1")
	}
	if filter.Company != "" {
		conds = append(conds, "LOWER(jobs.company) = LOWER(?)")
		args = append(args, filter.Company)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY jobs.job_id"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*types.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// MarkInactiveExcept flags every job not in activeIDs as inactive. Called at
// the end of a full enumeration so disappeared postings stop surfacing.
func (s *Store) MarkInactiveExcept(activeIDs []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin mark inactive: %w", err)
	}
	defer tx.Rollback()

	now := formatTime(time.Now().UTC())
	var res sql.Result
	if len(activeIDs) == 0 {
		res, err = tx.Exec(`UPDATE jobs SET is_active = 0, updated_at = ? WHERE is_active = 1`, now)
	} else {
		placeholders := strings.Repeat("?,", len(activeIDs)-1) + "?"
		args := make([]any, 0, len(activeIDs)+1)
		args = append(args, now)
		for _, id := range activeIDs {
			args = append(args, id)
		}
		res, err = tx.Exec(
			`UPDATE jobs SET is_active = 0, updated_at = ? WHERE is_active = 1 AND job_id NOT IN (`+placeholders+`)`,
			args...)
	}
	if err != nil {
		return 0, fmt.Errorf("mark inactive: %w", err)
	}
	affected, _ := res.RowsAffected()
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit mark inactive: %w", err)
	}
	return affected, nil
}

// DeleteJob removes the posting and, via cascade, its match, letters,
// applications and folder rows.
func (s *Store) DeleteJob(jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM jobs WHERE job_id = ?`, jobID)
	if err != nil {
		return fmt.Errorf("delete job %s: %w", jobID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const jobSelect = `
	SELECT jobs.job_id, jobs.title, jobs.company, jobs.division, jobs.location, jobs.level,
		jobs.openings, jobs.applications, jobs.deadline,
		jobs.summary, jobs.responsibilities, jobs.skills, jobs.additional_info,
		jobs.employment_location_arrangement, jobs.work_term_duration,
		jobs.compensation_raw, jobs.compensation_value, jobs.compensation_currency, jobs.compensation_period,
		jobs.application_documents_required, jobs.targeted_degrees_disciplines,
		jobs.is_active, jobs.scraped_at, jobs.updated_at
	FROM jobs`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*types.Job, error) {
	var job types.Job
	var division, location, level sql.NullString
	var deadline sql.NullString
	var compRaw, compCurrency, compPeriod sql.NullString
	var docs, degrees sql.NullString
	var isActive int
	var scrapedAt, updatedAt string

	err := row.Scan(
		&job.JobID, &job.Title, &job.Company, &division, &location, &level,
		&job.Openings, &job.Applications, &deadline,
		&job.Summary, &job.Responsibilities, &job.Skills, &job.AdditionalInfo,
		&job.EmploymentLocationArrangement, &job.WorkTermDuration,
		&compRaw, &job.CompensationValue, &compCurrency, &compPeriod,
		&docs, &degrees,
		&isActive, &scrapedAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	job.Division = division.String
	job.Location = location.String
	job.Level = level.String
	job.CompensationRaw = compRaw.String
	job.CompensationCurrency = compCurrency.String
	job.CompensationPeriod = compPeriod.String
	job.IsActive = isActive != 0
	job.Deadline = parseNullableTime(deadline)

	if job.ScrapedAt, err = parseTime(scrapedAt); err != nil {
		return nil, fmt.Errorf("parse scraped_at: %w", err)
	}
	if job.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	if docs.Valid && docs.String != "" {
		if err := json.Unmarshal([]byte(docs.String), &job.ApplicationDocumentsRequired); err != nil {
			return nil, fmt.Errorf("decode documents: %w", err)
		}
	}
	if degrees.Valid && degrees.String != "" {
		if err := json.Unmarshal([]byte(degrees.String), &job.TargetedDegreesDisciplines); err != nil {
			return nil, fmt.Errorf("decode degrees: %w", err)
		}
	}
	return &job, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// emptyToNilSlice keeps json encoding of absent lists as [] rather than null.
func emptyToNilSlice(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
