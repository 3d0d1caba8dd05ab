package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/amanzav/geese/internal/filter"
	"github.com/amanzav/geese/internal/matcher"
	"github.com/amanzav/geese/internal/portal"
	"github.com/amanzav/geese/internal/types"
)

// RunStream processes the folder one job at a time: fetch, persist, score,
// decide, and autosave high scorers back to the portal immediately. Useful
// when postings close fast and waiting for a full scrape loses them.
func (p *Pipeline) RunStream(ctx context.Context) error {
	defer p.ClosePortal()

	if err := p.session.Login(ctx); err != nil {
		return err
	}

	rows, err := p.session.ListJobs(ctx, p.cfg.Portal.Folder)
	if err != nil {
		return fmt.Errorf("enumerate folder: %w", err)
	}
	rows = p.capRows(rows)

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.streamOne(ctx, row); err != nil {
			return err
		}
	}

	p.logger.Info("stream complete",
		zap.Int64("scraped", p.stats.Scraped),
		zap.Int64("fetch_failed", p.stats.FetchFailed),
		zap.Int64("score_failed", p.stats.ScoreFailed),
		zap.Int64("kept", p.stats.Kept),
		zap.Int64("autosaved", p.stats.Autosaved))
	return nil
}

// streamOne handles a single row end to end. Per-job fetch and scoring
// failures are absorbed; store and auth failures propagate.
func (p *Pipeline) streamOne(ctx context.Context, row types.JobRow) error {
	job, err := p.session.FetchDetail(ctx, row)
	if err != nil {
		var fetchErr *portal.FetchError
		if errors.As(err, &fetchErr) {
			p.stats.FetchFailed++
			p.logger.Warn("fetch failed, skipping job",
				zap.String("job_id", row.JobID), zap.Error(err))
			return nil
		}
		return err
	}
	p.stats.Scraped++

	p.enrichCompensation(ctx, job)

	if err := p.store.UpsertJob(job); err != nil {
		return err
	}

	result, err := p.cache.GetOrCompute(ctx, job, false)
	if err != nil {
		var storeErr *matcher.StoreError
		if errors.As(err, &storeErr) || ctx.Err() != nil {
			return err
		}
		p.stats.ScoreFailed++
		p.logger.Warn("scoring failed, skipping job",
			zap.String("job_id", job.JobID), zap.Error(err))
		return nil
	}

	decision := p.filter.Decide(job, result)
	p.logger.Info("job judged",
		zap.String("job_id", job.JobID),
		zap.String("company", job.Company),
		zap.Float64("fit_score", result.FitScore),
		zap.String("decision", decision.String()))

	if decision == filter.Drop {
		return nil
	}
	p.stats.Kept++

	if decision == filter.Autosave {
		if err := p.autosave(ctx, job); err != nil {
			// Losing one save is not worth aborting the stream.
			p.logger.Warn("autosave failed",
				zap.String("job_id", job.JobID), zap.Error(err))
			return nil
		}
		p.stats.Autosaved++
	}
	return nil
}

// autosave files the job into the shortlist folder on the portal and records
// the membership locally, skipping jobs already saved.
func (p *Pipeline) autosave(ctx context.Context, job *types.Job) error {
	saved, err := p.store.InFolder(job.JobID, p.cfg.Portal.Folder)
	if err != nil {
		return err
	}
	if saved {
		return nil
	}

	if err := p.session.SaveToFolder(ctx, job.JobID, p.cfg.Portal.Folder); err != nil {
		return err
	}
	return p.store.SaveFolderMembership(job.JobID, p.cfg.Portal.Folder)
}
