// Package embedding provides vector embedding generation for the resume
// matcher. Backends: Ollama (local) and Google GenAI (cloud). The matcher
// only ever sees the Provider wrapper, which pins the dimensionality and
// L2-normalizes every vector so that cosine similarity reduces to an inner
// product.
package embedding

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"
)

// Dimensions is the pinned embedding width for the resume index.
const Dimensions = 384

// Engine generates vector embeddings for text.
type Engine interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, order-preserving.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the dimensionality of embeddings.
	Dimensions() int

	// Name returns the engine name.
	Name() string
}

// Config holds embedding engine configuration.
type Config struct {
	// Provider: "ollama" or "genai"
	Provider string

	OllamaEndpoint string
	OllamaModel    string

	GenAIAPIKey string
	GenAIModel  string
}

// NewEngine creates an embedding engine based on configuration. Failures here
// are model-load failures: fatal at startup, never during a run.
func NewEngine(cfg Config, logger *zap.Logger) (Engine, error) {
	var engine Engine
	var err error

	switch cfg.Provider {
	case "ollama":
		engine, err = NewOllamaEngine(cfg.OllamaEndpoint, cfg.OllamaModel)
	case "genai":
		engine, err = NewGenAIEngine(cfg.GenAIAPIKey, cfg.GenAIModel)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s (use 'ollama' or 'genai')", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s embedding engine: %w", cfg.Provider, err)
	}

	logger.Info("embedding engine ready",
		zap.String("name", engine.Name()),
		zap.Int("dimensions", engine.Dimensions()))
	return engine, nil
}

// CosineSimilarity calculates the cosine similarity between two vectors.
// Returns a value in [-1,1]; zero-magnitude vectors score 0.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector dimension mismatch: %d != %d", len(a), len(b))
	}

	var dot, magA, magB float64
	for i := 0; i < len(a); i++ {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}

	if magA == 0 || magB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB)), nil
}

// Normalize scales v to unit length in place. A zero vector is left as-is.
func Normalize(v []float32) {
	var mag float64
	for _, x := range v {
		mag += float64(x) * float64(x)
	}
	if mag == 0 {
		return
	}
	inv := 1.0 / math.Sqrt(mag)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
}

// Dot returns the inner product of two equal-length vectors. For unit vectors
// this equals cosine similarity.
func Dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
