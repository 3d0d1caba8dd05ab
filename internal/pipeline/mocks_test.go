package pipeline

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/amanzav/geese/internal/config"
	"github.com/amanzav/geese/internal/embedding"
	"github.com/amanzav/geese/internal/filter"
	"github.com/amanzav/geese/internal/lexicon"
	"github.com/amanzav/geese/internal/llm"
	"github.com/amanzav/geese/internal/matcher"
	"github.com/amanzav/geese/internal/portal"
	"github.com/amanzav/geese/internal/render"
	"github.com/amanzav/geese/internal/resume"
	"github.com/amanzav/geese/internal/store"
	"github.com/amanzav/geese/internal/types"
)

// fakeSession is an in-memory portal.Session with call counters.
type fakeSession struct {
	loginErr  error
	rows      []types.JobRow
	details   map[string]*types.Job
	fetchErrs map[string]error
	saveErr   error
	applyFn   func(jobID string) (*portal.ApplyOutcome, error)
	uploadErr error

	logins  int
	saves   []string
	uploads []string
	applies []string
	closes  int
}

func (f *fakeSession) Login(ctx context.Context) error {
	f.logins++
	return f.loginErr
}

func (f *fakeSession) ListJobs(ctx context.Context, folder string) ([]types.JobRow, error) {
	return f.rows, nil
}

func (f *fakeSession) FetchDetail(ctx context.Context, row types.JobRow) (*types.Job, error) {
	if err, ok := f.fetchErrs[row.JobID]; ok {
		return nil, err
	}
	job, ok := f.details[row.JobID]
	if !ok {
		return nil, &portal.FetchError{JobID: row.JobID, Err: fmt.Errorf("no detail fixture")}
	}
	return job, nil
}

func (f *fakeSession) SaveToFolder(ctx context.Context, jobID, folder string) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves = append(f.saves, jobID)
	return nil
}

func (f *fakeSession) UploadDocument(ctx context.Context, jobID, filePath string) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.uploads = append(f.uploads, jobID)
	return nil
}

func (f *fakeSession) Apply(ctx context.Context, jobID string, documents []string) (*portal.ApplyOutcome, error) {
	f.applies = append(f.applies, jobID)
	if f.applyFn != nil {
		return f.applyFn(jobID)
	}
	return &portal.ApplyOutcome{Status: types.ApplicationSubmitted}, nil
}

func (f *fakeSession) Close() error {
	f.closes++
	return nil
}

var _ portal.Session = (*fakeSession)(nil)

// fakeAssistant returns canned prose and compensation extractions.
type fakeAssistant struct {
	content string
	err     error
	calls   int

	comp      *types.Compensation
	compErr   error
	compCalls int
}

func (f *fakeAssistant) GenerateCoverLetter(ctx context.Context, job *types.Job, evidence []types.Evidence, resumeBullets []string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.content, nil
}

func (f *fakeAssistant) ExtractCompensation(ctx context.Context, raw string) (*types.Compensation, error) {
	f.compCalls++
	return f.comp, f.compErr
}

func (f *fakeAssistant) Name() string { return "fake-llm" }

// fakeRenderer records render calls without touching disk.
type fakeRenderer struct {
	calls int
}

func (f *fakeRenderer) Render(letter *types.CoverLetter, job *types.Job) (string, error) {
	f.calls++
	return "letters/" + job.JobID + ".pdf", nil
}

// fakeEngine maps lowercase substrings to basis axes so tests control every
// similarity exactly. Unmatched text lands on a reserved axis.
type fakeEngine struct {
	axes   map[string]int
	failOn string
}

func (f *fakeEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (f *fakeEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if f.failOn != "" && strings.Contains(text, f.failOn) {
			return nil, fmt.Errorf("backend unavailable for %q", text)
		}
		vec := make([]float32, embedding.Dimensions)
		axis := embedding.Dimensions - 1
		lower := strings.ToLower(text)
		for sub, a := range f.axes {
			if strings.Contains(lower, sub) {
				axis = a
				break
			}
		}
		vec[axis] = 1
		out[i] = vec
	}
	return out, nil
}

func (f *fakeEngine) Dimensions() int { return embedding.Dimensions }
func (f *fakeEngine) Name() string    { return "fake" }

// flakyMatchStore wraps the real store to inject persistence failures into the
// cache path.
type flakyMatchStore struct {
	inner   matcher.MatchStore
	failPut bool
}

func (f *flakyMatchStore) GetMatch(jobID string) (*types.MatchResult, error) {
	return f.inner.GetMatch(jobID)
}

func (f *flakyMatchStore) UpsertMatch(m *types.MatchResult) error {
	if f.failPut {
		return fmt.Errorf("disk full")
	}
	return f.inner.UpsertMatch(m)
}

// harness assembles the real store, matcher, cache and filter over a fake
// embedding backend.
type harness struct {
	cfg     *config.Config
	store   *store.Store
	matcher *matcher.Matcher
	filter  *filter.Filter
}

func newHarness(t *testing.T, engine *fakeEngine, bullets []string) *harness {
	t.Helper()

	cfg := config.Default()
	cfg.Paths.ReportPath = ""

	st, err := store.Open(":memory:", zap.NewNop())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	provider, err := embedding.NewProvider(engine, "test-model")
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	index, err := resume.BuildInMemory(context.Background(), bullets, provider)
	if err != nil {
		t.Fatalf("BuildInMemory: %v", err)
	}
	lex, err := lexicon.Load("")
	if err != nil {
		t.Fatalf("lexicon.Load: %v", err)
	}
	skip, err := matcher.LoadSkipList("")
	if err != nil {
		t.Fatalf("LoadSkipList: %v", err)
	}

	return &harness{
		cfg:     cfg,
		store:   st,
		matcher: matcher.New(provider, index, lex, skip, cfg.Matcher, zap.NewNop()),
		filter:  filter.New(cfg.Matcher, cfg.Filters),
	}
}

// pipeline builds a fresh Pipeline with its own cache counters.
func (h *harness) pipeline(session portal.Session, assist llm.Assistant, renderer render.Renderer) *Pipeline {
	cache := matcher.NewCache(h.store, h.matcher)
	return New(h.cfg, h.store, cache, h.filter, session, assist, renderer, zap.NewNop())
}
