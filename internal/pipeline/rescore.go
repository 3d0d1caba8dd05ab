package pipeline

import (
	"context"
	"fmt"

	"github.com/amanzav/geese/internal/store"
)

// Rescore runs the scoring and ranking phases over the stored corpus without
// touching the portal. With force set, cached results are ignored and every
// job is recomputed under the current engine version.
func (p *Pipeline) Rescore(ctx context.Context, force bool) (*Report, error) {
	jobs, err := p.store.ListJobs(store.JobFilter{ActiveOnly: true})
	if err != nil {
		return nil, fmt.Errorf("load stored jobs: %w", err)
	}
	if p.cfg.MaxItems > 0 && len(jobs) > p.cfg.MaxItems {
		jobs = jobs[:p.cfg.MaxItems]
	}
	if len(jobs) == 0 {
		p.logger.Info("no stored jobs to score")
		return p.rankAndReport(nil)
	}

	scored, err := p.scoreAll(ctx, jobs, force)
	if err != nil {
		return nil, err
	}
	return p.rankAndReport(scored)
}
