// Package types holds the shared domain records passed between the scraper,
// matcher, store and pipeline. Identity for a posting is the portal-assigned
// job id; everything else references it.
package types

import "time"

// Job is one posting as scraped from the portal. Free-text sections are kept
// raw; the matcher decomposes them into requirements at scoring time.
type Job struct {
	JobID        string     `json:"job_id"`
	Title        string     `json:"title"`
	Company      string     `json:"company"`
	Division     string     `json:"division,omitempty"`
	Location     string     `json:"location"`
	Level        string     `json:"level,omitempty"`
	Openings     int        `json:"openings"`
	Applications int        `json:"applications"`
	Deadline     *time.Time `json:"deadline,omitempty"`

	Summary                       string `json:"summary"`
	Responsibilities              string `json:"responsibilities"`
	Skills                        string `json:"skills"`
	AdditionalInfo                string `json:"additional_info"`
	EmploymentLocationArrangement string `json:"employment_location_arrangement"`
	WorkTermDuration              string `json:"work_term_duration"`

	CompensationRaw      string  `json:"compensation_raw"`
	CompensationValue    float64 `json:"compensation_value"`
	CompensationCurrency string  `json:"compensation_currency"`
	CompensationPeriod   string  `json:"compensation_period"`

	ApplicationDocumentsRequired []string `json:"application_documents_required"`
	TargetedDegreesDisciplines   []string `json:"targeted_degrees_disciplines"`

	IsActive  bool      `json:"is_active"`
	ScrapedAt time.Time `json:"scraped_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Sections returns the free-text sections in a stable order. The lexicon runs
// over their concatenation when computing the job tech set.
func (j *Job) Sections() []string {
	return []string{
		j.Summary,
		j.Responsibilities,
		j.Skills,
		j.AdditionalInfo,
		j.EmploymentLocationArrangement,
		j.WorkTermDuration,
	}
}

// JobRow is the lightweight listing entry the portal yields while enumerating
// a folder, before the detail panel has been opened.
type JobRow struct {
	JobID   string
	Title   string
	Company string
	Href    string
}

// Evidence links one extracted requirement to its best resume bullet.
type Evidence struct {
	Requirement string  `json:"requirement"`
	BulletIndex int     `json:"bullet_index"`
	Similarity  float64 `json:"similarity"`
	Covered     bool    `json:"covered"`
}

// MatchResult is the scored outcome for one job. One current result per job;
// re-scoring overwrites.
type MatchResult struct {
	JobID string `json:"job_id"`

	FitScore float64 `json:"fit_score"` // 0..100, one decimal

	KeywordMatch       float64 `json:"keyword_match"`
	SemanticCoverage   float64 `json:"semantic_coverage"`
	SemanticStrength   float64 `json:"semantic_strength"`
	SeniorityAlignment float64 `json:"seniority_alignment"`

	MatchedTechnologies []string `json:"matched_technologies"`
	MissingTechnologies []string `json:"missing_technologies"`

	Evidence []Evidence `json:"evidence"`

	AnalysisVersion string    `json:"analysis_version"`
	AnalyzedAt      time.Time `json:"analyzed_at"`
}

// CoverLetter is one generated letter for a job; the most recent row is the
// current one.
type CoverLetter struct {
	ID          int64     `json:"id"`
	JobID       string    `json:"job_id"`
	Content     string    `json:"content"`
	FilePath    string    `json:"file_path,omitempty"`
	Provider    string    `json:"provider"`
	WordCount   int       `json:"word_count"`
	GeneratedAt time.Time `json:"generated_at"`
	IsUploaded  bool      `json:"is_uploaded"`
	UploadedAt  *time.Time `json:"uploaded_at,omitempty"`
}

// ApplicationStatus enumerates the terminal states of one application attempt.
type ApplicationStatus string

const (
	ApplicationDraft            ApplicationStatus = "draft"
	ApplicationSubmitted        ApplicationStatus = "submitted"
	ApplicationSkippedExternal  ApplicationStatus = "skipped-external"
	ApplicationSkippedExtraDocs ApplicationStatus = "skipped-extra-docs"
	ApplicationSkippedPrescreen ApplicationStatus = "skipped-prescreen"
	ApplicationFailed           ApplicationStatus = "failed"
)

// Application records one (job, attempt) submission outcome.
type Application struct {
	AttemptID     string            `json:"attempt_id"`
	JobID         string            `json:"job_id"`
	Status        ApplicationStatus `json:"status"`
	CoverLetterID int64             `json:"cover_letter_id,omitempty"`
	Documents     []string          `json:"documents,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// FolderMembership marks a job as saved to a named portal folder.
type FolderMembership struct {
	JobID      string    `json:"job_id"`
	FolderName string    `json:"folder_name"`
	SavedAt    time.Time `json:"saved_at"`
}

// Compensation is the LLM-normalized form of a raw pay string.
type Compensation struct {
	Value    float64 `json:"value"`
	Currency string  `json:"currency"`
	Period   string  `json:"period"`
}
