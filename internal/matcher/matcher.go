package matcher

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/amanzav/geese/internal/config"
	"github.com/amanzav/geese/internal/embedding"
	"github.com/amanzav/geese/internal/lexicon"
	"github.com/amanzav/geese/internal/resume"
	"github.com/amanzav/geese/internal/types"
)

// seniorityLevels is scanned in precedence order over title + summary; the
// first group with a hit decides the alignment component.
var seniorityLevels = []struct {
	keywords []string
	score    float64
}{
	{[]string{"intern", "co-op", "coop"}, 0.80},
	{[]string{"junior", "entry", "new grad"}, 0.50},
	{[]string{"senior", "staff", "principal", "lead"}, 0.30},
}

const seniorityUnspecified = 0.70

// Matcher produces deterministic MatchResults from a job, the resume index
// and the resume tech set. Pure and CPU-bound; safe for concurrent use since
// the index is read-only after build.
type Matcher struct {
	provider *embedding.Provider
	index    *resume.Index
	lex      *lexicon.Lexicon
	ext      *Extractor
	cfg      config.MatcherConfig
	version  string

	resumeTech map[string]bool
	logger     *zap.Logger
}

// New builds a matcher. The resume tech set is computed once, from resume
// text alone.
func New(provider *embedding.Provider, index *resume.Index, lex *lexicon.Lexicon, skip *SkipList, cfg config.MatcherConfig, logger *zap.Logger) *Matcher {
	resumeTech := make(map[string]bool)
	joined := strings.Join(index.Bullets(), "\n")
	for _, term := range lex.Extract(joined) {
		resumeTech[term] = true
	}

	m := &Matcher{
		provider:   provider,
		index:      index,
		lex:        lex,
		ext:        NewExtractor(lex, skip),
		cfg:        cfg,
		resumeTech: resumeTech,
		logger:     logger,
	}
	m.version = Version(cfg, lex.Hash(), skip.Hash(), provider.ModelID())

	logger.Info("matcher ready",
		zap.String("analysis_version", m.version),
		zap.Int("resume_bullets", index.Len()),
		zap.Int("resume_tech_terms", len(resumeTech)))
	return m
}

// Version returns the engine version of this matcher. Results carrying a
// different version are stale.
func (m *Matcher) Version() string {
	return m.version
}

// ResumeTechSet returns the canonical terms found in the resume, in lexicon
// order.
func (m *Matcher) ResumeTechSet() []string {
	var out []string
	for _, term := range m.lex.Terms() {
		if m.resumeTech[term] {
			out = append(out, term)
		}
	}
	return out
}

// Score computes the MatchResult for one job. Identical inputs under an
// identical engine version produce byte-identical output.
func (m *Matcher) Score(ctx context.Context, job *types.Job) (*types.MatchResult, error) {
	requirements := m.ext.Extract(job)

	jobTech := m.lex.Extract(strings.Join(job.Sections(), "\n"))

	matched := make([]string, 0, len(jobTech))
	missing := make([]string, 0, len(jobTech))
	for _, term := range jobTech {
		if m.resumeTech[term] {
			matched = append(matched, term)
		} else {
			missing = append(missing, term)
		}
	}

	keyword := 0.0
	if len(jobTech) > 0 {
		keyword = float64(len(matched)) / float64(len(jobTech))
	}

	evidence, err := m.buildEvidence(ctx, requirements)
	if err != nil {
		return nil, fmt.Errorf("score job %s: %w", job.JobID, err)
	}

	covered := 0
	strengthSum := 0.0
	for _, ev := range evidence {
		if ev.Covered {
			covered++
			strengthSum += clamp01(ev.Similarity)
		}
	}

	coverage := float64(covered) / math.Max(1, float64(len(evidence)))
	strength := 0.0
	if covered > 0 {
		strength = clamp01(strengthSum / float64(covered))
	}

	seniority := seniorityAlignment(job.Title + " " + job.Summary)

	w := m.cfg.Weights
	fit := round1(100 * (w.KeywordMatch*keyword +
		w.SemanticCoverage*coverage +
		w.SemanticStrength*strength +
		w.SeniorityAlignment*seniority))

	return &types.MatchResult{
		JobID:               job.JobID,
		FitScore:            fit,
		KeywordMatch:        keyword,
		SemanticCoverage:    coverage,
		SemanticStrength:    strength,
		SeniorityAlignment:  seniority,
		MatchedTechnologies: matched,
		MissingTechnologies: missing,
		Evidence:            evidence,
		AnalysisVersion:     m.version,
		AnalyzedAt:          time.Now().UTC(),
	}, nil
}

// buildEvidence embeds each requirement and records its single best bullet.
// With an empty resume index every similarity is zero and the bullet index
// is -1.
func (m *Matcher) buildEvidence(ctx context.Context, requirements []string) ([]types.Evidence, error) {
	evidence := make([]types.Evidence, 0, len(requirements))
	if len(requirements) == 0 {
		return evidence, nil
	}

	vectors, err := m.provider.Encode(ctx, requirements)
	if err != nil {
		return nil, fmt.Errorf("embed %d requirements: %w", len(requirements), err)
	}

	for i, req := range requirements {
		best := types.Evidence{Requirement: req, BulletIndex: -1, Similarity: 0}
		hits := m.index.Search(vectors[i], m.cfg.TopK)
		if len(hits) > 0 {
			sim := hits[0].Similarity
			if math.IsNaN(sim) || math.IsInf(sim, 0) {
				return nil, fmt.Errorf("requirement %d: non-finite similarity", i)
			}
			best.BulletIndex = hits[0].BulletIndex
			best.Similarity = sim
		}
		best.Covered = best.Similarity >= m.cfg.SimilarityThreshold
		evidence = append(evidence, best)
	}
	return evidence, nil
}

func seniorityAlignment(text string) float64 {
	lower := strings.ToLower(text)
	for _, level := range seniorityLevels {
		for _, kw := range level.keywords {
			if strings.Contains(lower, kw) {
				return level.score
			}
		}
	}
	return seniorityUnspecified
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
