package matcher

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/amanzav/geese/internal/store"
	"github.com/amanzav/geese/internal/types"
)

// MatchStore is the slice of the job store the cache needs.
type MatchStore interface {
	GetMatch(jobID string) (*types.MatchResult, error)
	UpsertMatch(m *types.MatchResult) error
}

// StoreError wraps a persistence failure inside the cache path. Callers treat
// it as fatal, unlike a per-job scoring failure.
type StoreError struct {
	JobID string
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("match cache, job %s: %v", e.JobID, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Cache memoizes MatchResults by job id, backed by the relational store. A
// stored result whose analysis version differs from the current engine
// version is a miss. Writes are atomic per job.
type Cache struct {
	store   MatchStore
	matcher *Matcher

	hits       atomic.Int64
	recomputes atomic.Int64
}

// NewCache wraps the matcher with the versioned memo.
func NewCache(st MatchStore, m *Matcher) *Cache {
	return &Cache{store: st, matcher: m}
}

// Lookup returns the cached result iff present and current-version.
func (c *Cache) Lookup(jobID string) (*types.MatchResult, bool, error) {
	cached, err := c.store.GetMatch(jobID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &StoreError{JobID: jobID, Err: err}
	}
	if cached.AnalysisVersion != c.matcher.Version() {
		return nil, false, nil
	}
	return cached, true, nil
}

// GetOrCompute returns the cached result when valid; otherwise (or when force
// is set) it scores the job and upserts the result before returning it.
func (c *Cache) GetOrCompute(ctx context.Context, job *types.Job, force bool) (*types.MatchResult, error) {
	if !force {
		cached, ok, err := c.Lookup(job.JobID)
		if err != nil {
			return nil, err
		}
		if ok {
			c.hits.Add(1)
			return cached, nil
		}
	}

	result, err := c.matcher.Score(ctx, job)
	if err != nil {
		// No cache write on a scoring failure; the job retains its last
		// known (possibly absent) match.
		return nil, err
	}

	if err := c.store.UpsertMatch(result); err != nil {
		return nil, &StoreError{JobID: job.JobID, Err: err}
	}
	c.recomputes.Add(1)
	return result, nil
}

// Version returns the engine version cached results are checked against.
func (c *Cache) Version() string {
	return c.matcher.Version()
}

// Hits returns the number of lookups served from cache.
func (c *Cache) Hits() int64 {
	return c.hits.Load()
}

// Recomputes returns the number of scores computed and written.
func (c *Cache) Recomputes() int64 {
	return c.recomputes.Load()
}
