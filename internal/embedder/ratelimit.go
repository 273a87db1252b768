package embedder

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimited wraps an Embedder with a token-bucket limiter so bulk ingests
// don't hammer the embedding API. The zero rate disables limiting.
type RateLimited struct {
	inner   Embedder
	limiter *rate.Limiter
}

// NewRateLimited creates a rate-limited embedder allowing rps requests per
// second with the given burst.
func NewRateLimited(inner Embedder, rps float64, burst int) *RateLimited {
	var l *rate.Limiter
	if rps > 0 {
		l = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return &RateLimited{inner: inner, limiter: l}
}

// Embed waits for limiter capacity, then delegates.
func (r *RateLimited) Embed(ctx context.Context, text string) ([]float32, map[string]any, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, nil, fmt.Errorf("embedding rate limit wait: %w", err)
		}
	}
	return r.inner.Embed(ctx, text)
}

// Dimensions returns the wrapped embedder's dimensionality.
func (r *RateLimited) Dimensions() int {
	return r.inner.Dimensions()
}
