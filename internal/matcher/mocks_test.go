package matcher

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/amanzav/geese/internal/embedding"
	"github.com/amanzav/geese/internal/resume"
	"github.com/amanzav/geese/internal/store"
	"github.com/amanzav/geese/internal/types"
)

// fakeEngine maps texts to fixed 384-dim vectors by keyword, so tests control
// every similarity exactly. Unknown texts land on a reserved axis and match
// nothing else.
type fakeEngine struct {
	// axes maps a lowercase substring to a basis axis. First match wins.
	axes map[string]int
	// vectors overrides axes for exact texts.
	vectors map[string][]float32
	// failOn makes EmbedBatch fail for any text containing this substring.
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
		if vec, ok := f.vectors[text]; ok {
			out[i] = vec
			continue
		}
		out[i] = basisFor(f.axes, text)
	}
	return out, nil
}

func (f *fakeEngine) Dimensions() int { return embedding.Dimensions }
func (f *fakeEngine) Name() string    { return "fake" }

// basisFor returns the unit basis vector for the first matching axis, or the
// last axis for unmatched text.
func basisFor(axes map[string]int, text string) []float32 {
	vec := make([]float32, embedding.Dimensions)
	lower := strings.ToLower(text)
	for sub, axis := range axes {
		if strings.Contains(lower, sub) {
			vec[axis] = 1
			return vec
		}
	}
	vec[embedding.Dimensions-1] = 1
	return vec
}

func testProvider(t *testing.T, engine *fakeEngine) *embedding.Provider {
	t.Helper()
	p, err := embedding.NewProvider(engine, "test-model")
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	return p
}

func testIndex(t *testing.T, provider *embedding.Provider, bullets []string) *resume.Index {
	t.Helper()
	ix, err := resume.BuildInMemory(context.Background(), bullets, provider)
	if err != nil {
		t.Fatalf("BuildInMemory: %v", err)
	}
	return ix
}

// fakeMatchStore is an in-memory MatchStore with call counters.
type fakeMatchStore struct {
	matches map[string]*types.MatchResult
	gets    int
	upserts int
	failGet bool
	failPut bool
}

func newFakeMatchStore() *fakeMatchStore {
	return &fakeMatchStore{matches: make(map[string]*types.MatchResult)}
}

func (f *fakeMatchStore) GetMatch(jobID string) (*types.MatchResult, error) {
	f.gets++
	if f.failGet {
		return nil, fmt.Errorf("disk on fire")
	}
	m, ok := f.matches[jobID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return m, nil
}

func (f *fakeMatchStore) UpsertMatch(m *types.MatchResult) error {
	f.upserts++
	if f.failPut {
		return fmt.Errorf("disk full")
	}
	f.matches[m.JobID] = m
	return nil
}
