package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/amanzav/geese/internal/llm"
	"github.com/amanzav/geese/internal/store"
	"github.com/amanzav/geese/internal/types"
)

// GenerateLetters drafts and renders cover letters for the top stored matches
// at or above minScore, newest evidence first. Jobs that already have a
// letter are skipped. Returns the number of letters produced.
func (p *Pipeline) GenerateLetters(ctx context.Context, minScore float64, limit int, resumeBullets []string) (int, error) {
	if p.assist == nil || p.renderer == nil {
		return 0, fmt.Errorf("letter generation not configured")
	}

	matches, err := p.store.ListMatches(minScore)
	if err != nil {
		return 0, err
	}

	generated := 0
	for _, match := range matches {
		if err := ctx.Err(); err != nil {
			return generated, err
		}
		if limit > 0 && generated >= limit {
			break
		}

		if _, err := p.store.GetCoverLetter(match.JobID); err == nil {
			continue
		} else if !errors.Is(err, store.ErrNotFound) {
			return generated, err
		}

		job, err := p.store.GetJob(match.JobID)
		if err != nil {
			return generated, err
		}

		content, err := p.assist.GenerateCoverLetter(ctx, job, match.Evidence, resumeBullets)
		if err != nil {
			p.logger.Warn("letter generation failed, skipping job",
				zap.String("job_id", job.JobID), zap.Error(err))
			continue
		}

		letter := &types.CoverLetter{
			JobID:       job.JobID,
			Content:     content,
			Provider:    p.assist.Name(),
			WordCount:   llm.WordCount(content),
			GeneratedAt: time.Now().UTC(),
		}

		path, err := p.renderer.Render(letter, job)
		if err != nil {
			return generated, err
		}
		letter.FilePath = path

		if _, err := p.store.RecordCoverLetter(letter); err != nil {
			return generated, err
		}
		generated++

		p.logger.Info("cover letter ready",
			zap.String("job_id", job.JobID),
			zap.String("company", job.Company),
			zap.Float64("fit_score", match.FitScore),
			zap.String("path", path))
	}
	return generated, nil
}

// ApplyToJobs submits applications for the given job ids through an
// authenticated session, uploading the stored letter first when one exists.
// Every attempt is recorded, including skips and failures.
func (p *Pipeline) ApplyToJobs(ctx context.Context, jobIDs []string, documents []string) error {
	defer p.ClosePortal()

	if err := p.session.Login(ctx); err != nil {
		return err
	}

	for _, jobID := range jobIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.applyOne(ctx, jobID, documents); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) applyOne(ctx context.Context, jobID string, documents []string) error {
	app := &types.Application{
		AttemptID: uuid.NewString(),
		JobID:     jobID,
		Documents: documents,
		CreatedAt: time.Now().UTC(),
	}

	letter, err := p.store.GetCoverLetter(jobID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if letter != nil && !letter.IsUploaded && letter.FilePath != "" {
		if err := p.session.UploadDocument(ctx, jobID, letter.FilePath); err != nil {
			p.logger.Warn("letter upload failed",
				zap.String("job_id", jobID), zap.Error(err))
		} else if err := p.store.MarkLetterUploaded(letter.ID); err != nil {
			return err
		} else {
			app.CoverLetterID = letter.ID
		}
	}

	outcome, err := p.session.Apply(ctx, jobID, documents)
	if err != nil {
		app.Status = types.ApplicationFailed
		if recordErr := p.store.RecordApplication(app); recordErr != nil {
			return recordErr
		}
		p.logger.Warn("application failed",
			zap.String("job_id", jobID), zap.Error(err))
		return nil
	}

	app.Status = outcome.Status
	if err := p.store.RecordApplication(app); err != nil {
		return err
	}

	p.logger.Info("application recorded",
		zap.String("job_id", jobID),
		zap.String("status", string(outcome.Status)),
		zap.String("detail", outcome.Detail))
	return nil
}
