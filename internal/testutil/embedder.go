package testutil

import (
	"context"
	"errors"
	"sync"
)

// ErrStubEmbed is returned for texts matching StubEmbedder.FailOn.
var ErrStubEmbed = errors.New("stub embedder failure")

// StubEmbedder is a deterministic in-memory embedder for tests. Texts with
// an entry in Vectors get that vector; everything else gets Fallback. A
// non-nil Err fails every call, and FailOn fails only the matching text.
//
// Safe for concurrent use; calls are counted for assertions.
type StubEmbedder struct {
	Dims     int
	Vectors  map[string][]float32
	Fallback []float32
	Err      error
	FailOn   string

	mu    sync.Mutex
	calls int
}

// Embed returns the configured vector for the text.
func (s *StubEmbedder) Embed(_ context.Context, text string) ([]float32, map[string]any, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if s.Err != nil {
		return nil, nil, s.Err
	}
	if s.FailOn != "" && text == s.FailOn {
		return nil, nil, ErrStubEmbed
	}
	if vec, ok := s.Vectors[text]; ok {
		return vec, map[string]any{"total_tokens": len(text)}, nil
	}
	return s.Fallback, map[string]any{"total_tokens": len(text)}, nil
}

// Dimensions returns the declared vector dimensionality.
func (s *StubEmbedder) Dimensions() int {
	return s.Dims
}

// Calls reports how many times Embed was invoked.
func (s *StubEmbedder) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
