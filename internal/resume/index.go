package resume

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/amanzav/geese/internal/embedding"
)

const (
	manifestFile = "manifest.json"
	bulletsFile  = "bullets.json"
	vectorsFile  = "vectors.json"
)

// manifest pins the inputs the index was built from. Any difference forces a
// rebuild.
type manifest struct {
	SourceHash         string `json:"source_hash"`
	ModelID            string `json:"model_id"`
	BulletSplitVersion string `json:"bullet_split_version"`
	Dimensions         int    `json:"dimensions"`
	Count              int    `json:"count"`
}

// Hit is one search result: a bullet index and its similarity to the query.
type Hit struct {
	BulletIndex int
	Similarity  float64
}

// Index maps ordered bullet indices to unit vectors and answers exact top-k
// inner-product queries. Read-only after build; safe to share across readers.
type Index struct {
	bullets []string
	vectors [][]float32
}

// Bullets returns the ordered bullet texts.
func (ix *Index) Bullets() []string {
	return ix.bullets
}

// Len returns the number of indexed bullets.
func (ix *Index) Len() int {
	return len(ix.bullets)
}

// Search ranks all bullets by inner product against query and returns the top
// k. Ties break by ascending bullet index. An empty index returns no hits.
func (ix *Index) Search(query []float32, k int) []Hit {
	if k <= 0 || len(ix.vectors) == 0 {
		return nil
	}

	hits := make([]Hit, len(ix.vectors))
	for i, vec := range ix.vectors {
		hits[i] = Hit{BulletIndex: i, Similarity: embedding.Dot(query, vec)}
	}

	sort.Slice(hits, func(a, b int) bool {
		if hits[a].Similarity != hits[b].Similarity {
			return hits[a].Similarity > hits[b].Similarity
		}
		return hits[a].BulletIndex < hits[b].BulletIndex
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// LoadOrBuild returns the persisted index when its manifest still matches
// (source hash, model id, split version); otherwise it rebuilds from the
// resume source. A rebuild failure is fatal to the run.
func LoadOrBuild(ctx context.Context, resumePath, indexDir string, provider *embedding.Provider, logger *zap.Logger) (*Index, error) {
	src, err := LoadSource(resumePath)
	if err != nil {
		return nil, err
	}

	want := manifest{
		SourceHash:         src.Hash,
		ModelID:            provider.ModelID(),
		BulletSplitVersion: BulletSplitVersion,
		Dimensions:         embedding.Dimensions,
	}

	if ix, ok := loadExisting(indexDir, want); ok {
		logger.Info("resume index loaded from cache",
			zap.Int("bullets", ix.Len()),
			zap.String("source_hash", src.Hash[:12]))
		return ix, nil
	}

	logger.Info("building resume index",
		zap.String("source", resumePath),
		zap.String("model", provider.ModelID()))

	bullets := SplitBullets(src.Text)
	if len(bullets) == 0 {
		return nil, fmt.Errorf("no bullet points found in %s", resumePath)
	}

	vectors, err := provider.Encode(ctx, bullets)
	if err != nil {
		return nil, fmt.Errorf("embed %d resume bullets: %w", len(bullets), err)
	}

	ix := &Index{bullets: bullets, vectors: vectors}
	want.Count = len(bullets)
	if err := save(indexDir, want, ix); err != nil {
		return nil, fmt.Errorf("persist resume index: %w", err)
	}

	logger.Info("resume index built", zap.Int("bullets", ix.Len()))
	return ix, nil
}

// BuildInMemory builds an index without touching disk. Used by the rescore
// path in tests and wherever persistence is not wanted.
func BuildInMemory(ctx context.Context, bullets []string, provider *embedding.Provider) (*Index, error) {
	if len(bullets) == 0 {
		return &Index{}, nil
	}
	vectors, err := provider.Encode(ctx, bullets)
	if err != nil {
		return nil, fmt.Errorf("embed %d bullets: %w", len(bullets), err)
	}
	return &Index{bullets: bullets, vectors: vectors}, nil
}

// loadExisting returns the persisted index iff the manifest matches want.
// Any read or decode problem is treated as a miss, not an error.
func loadExisting(dir string, want manifest) (*Index, bool) {
	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		return nil, false
	}
	var have manifest
	if err := json.Unmarshal(data, &have); err != nil {
		return nil, false
	}
	if have.SourceHash != want.SourceHash ||
		have.ModelID != want.ModelID ||
		have.BulletSplitVersion != want.BulletSplitVersion ||
		have.Dimensions != want.Dimensions {
		return nil, false
	}

	// Bullets reload verbatim: re-segmenting stored text could change it and
	// silently detach a bullet from the vector computed for it.
	bdata, err := os.ReadFile(filepath.Join(dir, bulletsFile))
	if err != nil {
		return nil, false
	}
	var bullets []string
	if err := json.Unmarshal(bdata, &bullets); err != nil {
		return nil, false
	}

	vdata, err := os.ReadFile(filepath.Join(dir, vectorsFile))
	if err != nil {
		return nil, false
	}
	var vectors [][]float32
	if err := json.Unmarshal(vdata, &vectors); err != nil {
		return nil, false
	}

	if len(bullets) != have.Count || len(vectors) != have.Count {
		return nil, false
	}
	for _, v := range vectors {
		if len(v) != want.Dimensions {
			return nil, false
		}
	}

	return &Index{bullets: bullets, vectors: vectors}, true
}

func save(dir string, m manifest, ix *Index) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	bdata, err := json.Marshal(ix.bullets)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, bulletsFile), bdata, 0o644); err != nil {
		return err
	}

	vdata, err := json.Marshal(ix.vectors)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, vectorsFile), vdata, 0o644); err != nil {
		return err
	}

	mdata, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	// Manifest last: a crash mid-save leaves no valid manifest, forcing rebuild.
	return os.WriteFile(filepath.Join(dir, manifestFile), mdata, 0o644)
}
