// Package filter turns scored jobs into keep/drop/autosave decisions using
// the user's configured preferences. Pure functions over in-memory data.
package filter

import (
	"sort"
	"strings"

	"github.com/amanzav/geese/internal/config"
	"github.com/amanzav/geese/internal/types"
)

// Decision is the outcome for one scored job.
type Decision int

const (
	// Drop means the job failed a predicate and leaves the result set.
	Drop Decision = iota
	// Keep means the job passed every predicate.
	Keep
	// Autosave means Keep plus the fit score cleared the autosave threshold.
	Autosave
)

func (d Decision) String() string {
	switch d {
	case Keep:
		return "keep"
	case Autosave:
		return "autosave"
	default:
		return "drop"
	}
}

// Scored pairs a job with its match for filtering and ranking.
type Scored struct {
	Job      *types.Job
	Match    *types.MatchResult
	Decision Decision
}

// Filter evaluates the configured predicates. All predicates must pass for a
// job to survive; an empty predicate list passes everything.
type Filter struct {
	minScore      float64
	autosaveScore float64
	locations     []string // lowercased
	keywords      []string // lowercased
	avoid         map[string]bool
}

// New builds a filter from config. Location and keyword matching is
// case-insensitive substring; the company denylist is case-insensitive exact.
func New(matcherCfg config.MatcherConfig, filtersCfg config.FiltersConfig) *Filter {
	f := &Filter{
		minScore:      matcherCfg.MinMatchScore,
		autosaveScore: matcherCfg.AutoSaveThreshold,
		avoid:         make(map[string]bool),
	}
	for _, loc := range filtersCfg.PreferredLocations {
		if loc = strings.ToLower(strings.TrimSpace(loc)); loc != "" {
			f.locations = append(f.locations, loc)
		}
	}
	for _, kw := range filtersCfg.KeywordsToMatch {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			f.keywords = append(f.keywords, kw)
		}
	}
	for _, company := range filtersCfg.CompaniesToAvoid {
		if company = strings.ToLower(strings.TrimSpace(company)); company != "" {
			f.avoid[company] = true
		}
	}
	return f
}

// Decide evaluates one scored job. Used by the streaming path where each job
// is judged the moment its score exists.
func (f *Filter) Decide(job *types.Job, match *types.MatchResult) Decision {
	if match.FitScore < f.minScore {
		return Drop
	}
	if f.avoid[strings.ToLower(strings.TrimSpace(job.Company))] {
		return Drop
	}
	if !f.locationOK(job.Location) {
		return Drop
	}
	if !f.keywordsOK(job) {
		return Drop
	}
	if match.FitScore >= f.autosaveScore {
		return Autosave
	}
	return Keep
}

// Apply filters and ranks a batch. Survivors come back ordered by descending
// fit score, ties broken by ascending job id.
func (f *Filter) Apply(items []Scored) []Scored {
	var kept []Scored
	for _, item := range items {
		item.Decision = f.Decide(item.Job, item.Match)
		if item.Decision == Drop {
			continue
		}
		kept = append(kept, item)
	}
	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Match.FitScore != kept[j].Match.FitScore {
			return kept[i].Match.FitScore > kept[j].Match.FitScore
		}
		return kept[i].Job.JobID < kept[j].Job.JobID
	})
	return kept
}

// locationOK passes when no locations are configured, when any preferred
// location is a substring of the job's location, or when the job is remote.
func (f *Filter) locationOK(location string) bool {
	if len(f.locations) == 0 {
		return true
	}
	lower := strings.ToLower(location)
	if strings.TrimSpace(lower) == "remote" {
		return true
	}
	for _, loc := range f.locations {
		if strings.Contains(lower, loc) {
			return true
		}
	}
	return false
}

// keywordsOK passes when no keywords are configured or any of them appears in
// the title or summary.
func (f *Filter) keywordsOK(job *types.Job) bool {
	if len(f.keywords) == 0 {
		return true
	}
	haystack := strings.ToLower(job.Title + "\n" + job.Summary)
	for _, kw := range f.keywords {
		if strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}
