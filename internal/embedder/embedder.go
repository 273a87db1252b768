// Package embedder defines the embedding capability consumed by the vector
// store and its production implementation bridging Genkit's ai.Embedder.
package embedder

import (
	"context"
	"errors"
	"fmt"

	"github.com/firebase/genkit/go/ai"
)

var (
	// ErrEmptyEmbedding indicates the backend returned no vector for the text.
	ErrEmptyEmbedding = errors.New("empty embedding")

	// ErrDimensionMismatch indicates the returned vector length does not
	// match the declared dimensionality.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Embedder converts text into a fixed-dimension float vector plus optional
// usage stats (token counts and the like, backend dependent).
//
// Implementations must be safe for concurrent use; the store shares one
// instance across all calls.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, map[string]any, error)
	Dimensions() int
}

// Genkit adapts a Genkit ai.Embedder to the Embedder interface.
type Genkit struct {
	embedder ai.Embedder
	dims     int
}

// NewGenkit wraps a Genkit embedder declared to produce dims-length vectors.
func NewGenkit(e ai.Embedder, dims int) *Genkit {
	return &Genkit{embedder: e, dims: dims}
}

// Embed generates an embedding for the given text. A vector whose length
// disagrees with the declared dimensionality is an error, never silently
// stored.
func (g *Genkit) Embed(ctx context.Context, text string) ([]float32, map[string]any, error) {
	resp, err := g.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{
			ai.DocumentFromText(text, nil),
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("embed failed: %w", err)
	}

	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, nil, ErrEmptyEmbedding
	}

	vec := resp.Embeddings[0].Embedding
	if len(vec) != g.dims {
		return nil, nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), g.dims)
	}

	return vec, nil, nil
}

// Dimensions returns the declared vector dimensionality.
func (g *Genkit) Dimensions() int {
	return g.dims
}
