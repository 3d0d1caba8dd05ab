// Package pipeline wires the portal, matcher, filter and store into the two
// end-to-end flows: batch (scrape everything, then score and rank) and
// streaming (judge each job the moment its detail arrives).
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/amanzav/geese/internal/config"
	"github.com/amanzav/geese/internal/filter"
	"github.com/amanzav/geese/internal/llm"
	"github.com/amanzav/geese/internal/matcher"
	"github.com/amanzav/geese/internal/portal"
	"github.com/amanzav/geese/internal/render"
	"github.com/amanzav/geese/internal/store"
	"github.com/amanzav/geese/internal/types"
)

// scoreWorkers caps concurrent scoring goroutines. Scoring is embedding-bound
// so a small pool is enough to hide provider latency.
const scoreWorkers = 4

// Stats are the counters one run accumulates.
type Stats struct {
	Scraped     int64
	FetchFailed int64
	ScoreFailed int64
	CacheHits   int64
	Recomputed  int64
	Kept        int64
	Autosaved   int64
}

// Pipeline owns one run's collaborators. The portal session may be nil for
// flows that never touch the browser.
type Pipeline struct {
	cfg      *config.Config
	store    *store.Store
	cache    *matcher.Cache
	filter   *filter.Filter
	session  portal.Session
	assist   llm.Assistant
	renderer render.Renderer
	logger   *zap.Logger

	closePortal sync.Once
	stats       Stats
}

// New assembles a pipeline. assist and renderer may be nil when the flow does
// not generate letters.
func New(cfg *config.Config, st *store.Store, cache *matcher.Cache, f *filter.Filter, session portal.Session, assist llm.Assistant, renderer render.Renderer, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		store:    st,
		cache:    cache,
		filter:   f,
		session:  session,
		assist:   assist,
		renderer: renderer,
		logger:   logger,
	}
}

// Stats returns a copy of the run counters.
func (p *Pipeline) Stats() Stats {
	p.stats.CacheHits = p.cache.Hits()
	p.stats.Recomputed = p.cache.Recomputes()
	return p.stats
}

// ClosePortal shuts the browser down. Safe to call from any exit path; the
// session closes exactly once.
func (p *Pipeline) ClosePortal() {
	if p.session == nil {
		return
	}
	p.closePortal.Do(func() {
		if err := p.session.Close(); err != nil {
			p.logger.Warn("portal close failed", zap.Error(err))
		}
	})
}

// RunBatch scrapes the full folder, persists postings in checkpointed
// batches, then scores, filters and reports. Authentication and store
// failures abort; per-job fetch and scoring failures are logged and skipped.
func (p *Pipeline) RunBatch(ctx context.Context) (*Report, error) {
	defer p.ClosePortal()

	if err := p.session.Login(ctx); err != nil {
		return nil, err
	}

	rows, err := p.session.ListJobs(ctx, p.cfg.Portal.Folder)
	if err != nil {
		return nil, fmt.Errorf("enumerate folder: %w", err)
	}
	rows = p.capRows(rows)

	jobs, activeIDs, err := p.scrapeAll(ctx, rows)
	if err != nil {
		return nil, err
	}

	if _, err := p.store.MarkInactiveExcept(activeIDs); err != nil {
		return nil, err
	}

	// Browser work is over; release it before the scoring phase.
	p.ClosePortal()

	scored, err := p.scoreAll(ctx, jobs, false)
	if err != nil {
		return nil, err
	}

	return p.rankAndReport(scored)
}

// scrapeAll fetches details for every row, upserting a checkpoint batch every
// ScrapeCheckpointEvery jobs so an interrupted run keeps its progress.
func (p *Pipeline) scrapeAll(ctx context.Context, rows []types.JobRow) ([]*types.Job, []string, error) {
	var jobs []*types.Job
	var pending []*types.Job
	activeIDs := make([]string, 0, len(rows))

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		if err := p.store.UpsertJobs(pending); err != nil {
			return err
		}
		pending = pending[:0]
		return nil
	}

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		job, err := p.session.FetchDetail(ctx, row)
		if err != nil {
			var fetchErr *portal.FetchError
			if errors.As(err, &fetchErr) {
				p.stats.FetchFailed++
				p.logger.Warn("fetch failed, skipping job",
					zap.String("job_id", row.JobID), zap.Error(err))
				continue
			}
			return nil, nil, err
		}

		p.enrichCompensation(ctx, job)

		jobs = append(jobs, job)
		pending = append(pending, job)
		activeIDs = append(activeIDs, job.JobID)
		p.stats.Scraped++

		if len(pending) >= p.cfg.ScrapeCheckpointEvery {
			if err := flush(); err != nil {
				return nil, nil, err
			}
		}
	}

	if err := flush(); err != nil {
		return nil, nil, err
	}

	p.logger.Info("scrape complete",
		zap.Int64("scraped", p.stats.Scraped),
		zap.Int64("fetch_failed", p.stats.FetchFailed))
	return jobs, activeIDs, nil
}

// capRows truncates the enumeration to the configured item cap.
func (p *Pipeline) capRows(rows []types.JobRow) []types.JobRow {
	if p.cfg.MaxItems > 0 && len(rows) > p.cfg.MaxItems {
		p.logger.Info("item cap applied",
			zap.Int("listed", len(rows)), zap.Int("cap", p.cfg.MaxItems))
		rows = rows[:p.cfg.MaxItems]
	}
	return rows
}

// enrichCompensation normalizes the scraped pay string into value, currency
// and period on the job record. Best-effort: without an assistant, or when
// extraction fails, the raw string stays the only record.
func (p *Pipeline) enrichCompensation(ctx context.Context, job *types.Job) {
	if p.assist == nil || job.CompensationRaw == "" || job.CompensationValue != 0 {
		return
	}

	comp, err := p.assist.ExtractCompensation(ctx, job.CompensationRaw)
	if err != nil {
		p.logger.Warn("compensation extraction failed",
			zap.String("job_id", job.JobID), zap.Error(err))
		return
	}
	if comp == nil {
		return
	}

	job.CompensationValue = comp.Value
	job.CompensationCurrency = comp.Currency
	job.CompensationPeriod = comp.Period
}

// scoreAll runs the cache-or-compute path over the jobs with a bounded worker
// pool. A scoring failure drops the job from this run's results; a store
// failure aborts.
func (p *Pipeline) scoreAll(ctx context.Context, jobs []*types.Job, force bool) ([]filter.Scored, error) {
	runID, err := p.store.BeginAnalysisRun(p.cache.Version())
	if err != nil {
		return nil, err
	}

	results := make([]*types.MatchResult, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(scoreWorkers)

	var scoreFailed sync.Map
	for i, job := range jobs {
		g.Go(func() error {
			result, err := p.cache.GetOrCompute(gctx, job, force)
			if err != nil {
				if errors.Is(err, context.Canceled) || gctx.Err() != nil {
					return err
				}
				var storeErr *matcher.StoreError
				if errors.As(err, &storeErr) {
					return err
				}
				scoreFailed.Store(i, err)
				p.logger.Warn("scoring failed, skipping job",
					zap.String("job_id", job.JobID), zap.Error(err))
				return nil
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var scored []filter.Scored
	for i, job := range jobs {
		if _, failed := scoreFailed.Load(i); failed {
			p.stats.ScoreFailed++
			continue
		}
		if results[i] == nil {
			continue
		}
		scored = append(scored, filter.Scored{Job: job, Match: results[i]})
	}

	if err := p.store.FinishAnalysisRun(runID, int64(len(jobs)), p.cache.Hits(), p.cache.Recomputes()); err != nil {
		return nil, err
	}

	p.logger.Info("scoring complete",
		zap.Int("jobs", len(jobs)),
		zap.Int64("cache_hits", p.cache.Hits()),
		zap.Int64("recomputed", p.cache.Recomputes()),
		zap.Int64("score_failed", p.stats.ScoreFailed))
	return scored, nil
}

