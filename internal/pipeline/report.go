package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/amanzav/geese/internal/filter"
)

// ReportEntry is one ranked survivor in the run report.
type ReportEntry struct {
	Rank    int    `json:"rank"`
	JobID   string `json:"job_id"`
	Title   string `json:"title"`
	Company string `json:"company"`
	Location string `json:"location"`

	FitScore           float64 `json:"fit_score"`
	KeywordMatch       float64 `json:"keyword_match"`
	SemanticCoverage   float64 `json:"semantic_coverage"`
	SemanticStrength   float64 `json:"semantic_strength"`
	SeniorityAlignment float64 `json:"seniority_alignment"`

	MatchedTechnologies []string `json:"matched_technologies"`
	MissingTechnologies []string `json:"missing_technologies"`

	Decision string `json:"decision"`
}

// Report is the JSON artifact a batch run leaves behind.
type Report struct {
	GeneratedAt     time.Time     `json:"generated_at"`
	AnalysisVersion string        `json:"analysis_version"`
	JobsScraped     int64         `json:"jobs_scraped"`
	FetchFailed     int64         `json:"fetch_failed"`
	ScoreFailed     int64         `json:"score_failed"`
	CacheHits       int64         `json:"cache_hits"`
	Recomputed      int64         `json:"recomputed"`
	Kept            int64         `json:"kept"`
	Autosaved       int64         `json:"autosaved"`
	Entries         []ReportEntry `json:"entries"`
}

// rankAndReport filters, ranks and writes the report artifact.
func (p *Pipeline) rankAndReport(scored []filter.Scored) (*Report, error) {
	kept := p.filter.Apply(scored)

	report := &Report{
		GeneratedAt:     time.Now().UTC(),
		AnalysisVersion: p.cache.Version(),
		JobsScraped:     p.stats.Scraped,
		FetchFailed:     p.stats.FetchFailed,
		ScoreFailed:     p.stats.ScoreFailed,
		CacheHits:       p.cache.Hits(),
		Recomputed:      p.cache.Recomputes(),
		Entries:         make([]ReportEntry, 0, len(kept)),
	}

	for i, item := range kept {
		p.stats.Kept++
		if item.Decision == filter.Autosave {
			p.stats.Autosaved++
		}
		report.Entries = append(report.Entries, ReportEntry{
			Rank:               i + 1,
			JobID:              item.Job.JobID,
			Title:              item.Job.Title,
			Company:            item.Job.Company,
			Location:           item.Job.Location,
			FitScore:           item.Match.FitScore,
			KeywordMatch:       item.Match.KeywordMatch,
			SemanticCoverage:   item.Match.SemanticCoverage,
			SemanticStrength:   item.Match.SemanticStrength,
			SeniorityAlignment: item.Match.SeniorityAlignment,
			MatchedTechnologies: item.Match.MatchedTechnologies,
			MissingTechnologies: item.Match.MissingTechnologies,
			Decision:           item.Decision.String(),
		})
	}
	report.Kept = p.stats.Kept
	report.Autosaved = p.stats.Autosaved

	if p.cfg.Paths.ReportPath != "" {
		if err := writeReport(report, p.cfg.Paths.ReportPath); err != nil {
			return nil, err
		}
		p.logger.Info("report written",
			zap.String("path", p.cfg.Paths.ReportPath),
			zap.Int("entries", len(report.Entries)))
	}
	return report, nil
}

func writeReport(report *Report, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return nil
}
