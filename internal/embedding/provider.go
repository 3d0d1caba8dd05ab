package embedding

import (
	"context"
	"fmt"
	"math"
)

// Provider wraps an Engine and enforces the contract the matcher depends on:
// every vector is exactly Dimensions wide, unit-norm and finite. Backends
// with a wider native width (Matryoshka-style models) are truncated before
// renormalization; a narrower backend is a configuration error.
type Provider struct {
	engine  Engine
	modelID string
}

// NewProvider validates the backend width and returns the wrapped provider.
func NewProvider(engine Engine, modelID string) (*Provider, error) {
	if engine.Dimensions() < Dimensions {
		return nil, fmt.Errorf("engine %s produces %d-dim vectors, need at least %d",
			engine.Name(), engine.Dimensions(), Dimensions)
	}
	return &Provider{engine: engine, modelID: modelID}, nil
}

// ModelID returns the pinned model identifier included in the engine version
// hash.
func (p *Provider) ModelID() string {
	return p.modelID
}

// Name returns the backend name.
func (p *Provider) Name() string {
	return p.engine.Name()
}

// Encode embeds texts in order and returns unit-norm Dimensions-wide vectors.
// Empty input yields an empty result, not an error.
func (p *Provider) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	raw, err := p.engine.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("encode batch of %d: %w", len(texts), err)
	}
	if len(raw) != len(texts) {
		return nil, fmt.Errorf("engine returned %d vectors for %d texts", len(raw), len(texts))
	}

	out := make([][]float32, len(raw))
	for i, vec := range raw {
		normed, err := p.conform(vec)
		if err != nil {
			return nil, fmt.Errorf("vector %d: %w", i, err)
		}
		out[i] = normed
	}
	return out, nil
}

// EncodeOne is a convenience for single-text queries.
func (p *Provider) EncodeOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.Encode(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (p *Provider) conform(vec []float32) ([]float32, error) {
	if len(vec) < Dimensions {
		return nil, fmt.Errorf("got %d dims, need %d", len(vec), Dimensions)
	}
	out := make([]float32, Dimensions)
	copy(out, vec[:Dimensions])

	for i, x := range out {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return nil, fmt.Errorf("non-finite component at index %d", i)
		}
	}

	Normalize(out)
	return out, nil
}
