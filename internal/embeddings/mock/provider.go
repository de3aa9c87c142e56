// Package mock provides a models.EmbeddingProvider for tests.
package mock

import (
	"context"

	"github.com/troykelly/openclaw-projects/pkg/models"
)

// MockProvider satisfies models.EmbeddingProvider for testing.
type MockProvider struct {
	Name_      string
	Configured bool
	EmbedFunc  func(ctx context.Context, text string) (*models.Embedding, error)
}

func (m *MockProvider) Name() string { return m.Name_ }

func (m *MockProvider) IsConfigured() bool { return m.Configured }

func (m *MockProvider) Embed(ctx context.Context, text string) (*models.Embedding, error) {
	if m.EmbedFunc != nil {
		return m.EmbedFunc(ctx, text)
	}
	return &models.Embedding{Vector: []float32{0.1, 0.2, 0.3}, Model: "mock-v1"}, nil
}

// NewProvider returns a configured MockProvider with a fixed vector response.
func NewProvider() *MockProvider {
	return &MockProvider{Name_: "mock", Configured: true}
}

// NewFailingProvider returns a MockProvider whose Embed always returns err.
func NewFailingProvider(err error) *MockProvider {
	return &MockProvider{
		Name_:      "mock-failing",
		Configured: true,
		EmbedFunc: func(_ context.Context, _ string) (*models.Embedding, error) {
			return nil, err
		},
	}
}

// NewUnconfiguredProvider returns a MockProvider that reports not configured.
func NewUnconfiguredProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock-unconfigured",
		EmbedFunc: func(_ context.Context, _ string) (*models.Embedding, error) {
			return nil, models.ErrEmbeddingNotConfigured
		},
	}
}

// Compile-time check that MockProvider implements EmbeddingProvider.
var _ models.EmbeddingProvider = (*MockProvider)(nil)
