package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/amanzav/geese/internal/types"
)

// RecordCoverLetter inserts a generated letter and returns its id. The most
// recent row per job is the current letter.
func (s *Store) RecordCoverLetter(letter *types.CoverLetter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		INSERT INTO cover_letters (
			job_id, content, file_path, generation_provider,
			word_count, generated_at, is_uploaded
		) VALUES (?, ?, ?, ?, ?, ?, 0)`,
		letter.JobID, letter.Content, letter.FilePath, letter.Provider,
		letter.WordCount, formatTime(letter.GeneratedAt))
	if err != nil {
		return 0, fmt.Errorf("record cover letter for %s: %w", letter.JobID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("cover letter id for %s: %w", letter.JobID, err)
	}
	return id, nil
}

// GetCoverLetter returns the latest letter for a job or ErrNotFound.
func (s *Store) GetCoverLetter(jobID string) (*types.CoverLetter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`
		SELECT letter_id, job_id, content, file_path, generation_provider,
			word_count, generated_at, is_uploaded, uploaded_at
		FROM cover_letters WHERE job_id = ?
		ORDER BY letter_id DESC LIMIT 1`, jobID)

	var l types.CoverLetter
	var filePath, provider sql.NullString
	var generatedAt string
	var isUploaded int
	var uploadedAt sql.NullString

	err := row.Scan(&l.ID, &l.JobID, &l.Content, &filePath, &provider,
		&l.WordCount, &generatedAt, &isUploaded, &uploadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get cover letter %s: %w", jobID, err)
	}

	l.FilePath = filePath.String
	l.Provider = provider.String
	l.IsUploaded = isUploaded != 0
	l.UploadedAt = parseNullableTime(uploadedAt)
	if l.GeneratedAt, err = parseTime(generatedAt); err != nil {
		return nil, fmt.Errorf("parse generated_at: %w", err)
	}
	return &l, nil
}

// MarkLetterUploaded flags the letter as delivered to the portal.
func (s *Store) MarkLetterUploaded(letterID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		UPDATE cover_letters SET is_uploaded = 1, uploaded_at = ?
		WHERE letter_id = ?`,
		formatTime(time.Now().UTC()), letterID)
	if err != nil {
		return fmt.Errorf("mark letter %d uploaded: %w", letterID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordApplication inserts one application attempt outcome.
func (s *Store) RecordApplication(app *types.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := json.Marshal(emptyToNilSlice(app.Documents))
	if err != nil {
		return fmt.Errorf("encode documents for %s: %w", app.JobID, err)
	}

	var letterID any
	if app.CoverLetterID != 0 {
		letterID = app.CoverLetterID
	}

	_, err = s.db.Exec(`
		INSERT INTO applications (attempt_id, job_id, status, cover_letter_id, documents, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		app.AttemptID, app.JobID, string(app.Status), letterID, string(docs),
		formatTime(app.CreatedAt))
	if err != nil {
		return fmt.Errorf("record application %s for %s: %w", app.AttemptID, app.JobID, err)
	}
	return nil
}

// ListApplications returns every attempt for a job, oldest first.
func (s *Store) ListApplications(jobID string) ([]*types.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT attempt_id, job_id, status, cover_letter_id, documents, created_at
		FROM applications WHERE job_id = ? ORDER BY created_at ASC, attempt_id ASC`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list applications %s: %w", jobID, err)
	}
	defer rows.Close()

	var out []*types.Application
	for rows.Next() {
		var app types.Application
		var status string
		var letterID sql.NullInt64
		var docs sql.NullString
		var createdAt string
		if err := rows.Scan(&app.AttemptID, &app.JobID, &status, &letterID, &docs, &createdAt); err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		app.Status = types.ApplicationStatus(status)
		app.CoverLetterID = letterID.Int64
		if docs.Valid && docs.String != "" {
			if err := json.Unmarshal([]byte(docs.String), &app.Documents); err != nil {
				return nil, fmt.Errorf("decode documents: %w", err)
			}
		}
		if app.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		out = append(out, &app)
	}
	return out, rows.Err()
}

// SaveFolderMembership records that a job was saved to a named portal folder.
// Saving twice is a no-op.
func (s *Store) SaveFolderMembership(jobID, folderName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO saved_folders (job_id, folder_name, saved_at)
		VALUES (?, ?, ?)`,
		jobID, folderName, formatTime(time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("save folder membership %s/%s: %w", jobID, folderName, err)
	}
	return nil
}

// InFolder reports whether the job is already recorded in the folder.
func (s *Store) InFolder(jobID, folderName string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var one int
	err := s.db.QueryRow(`
		SELECT 1 FROM saved_folders WHERE job_id = ? AND folder_name = ?`,
		jobID, folderName).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("folder lookup %s/%s: %w", jobID, folderName, err)
	}
	return true, nil
}

// ListFolder returns the job ids saved to a folder, in save order.
func (s *Store) ListFolder(folderName string) ([]types.FolderMembership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT job_id, folder_name, saved_at FROM saved_folders
		WHERE folder_name = ? ORDER BY saved_at ASC, job_id ASC`, folderName)
	if err != nil {
		return nil, fmt.Errorf("list folder %s: %w", folderName, err)
	}
	defer rows.Close()

	var out []types.FolderMembership
	for rows.Next() {
		var fm types.FolderMembership
		var savedAt string
		if err := rows.Scan(&fm.JobID, &fm.FolderName, &savedAt); err != nil {
			return nil, fmt.Errorf("scan folder row: %w", err)
		}
		if fm.SavedAt, err = parseTime(savedAt); err != nil {
			return nil, fmt.Errorf("parse saved_at: %w", err)
		}
		out = append(out, fm)
	}
	return out, rows.Err()
}
