// Package embeddings generates and tracks semantic embeddings for skill-store
// items: the provider factory, the embedding-generation job handler, and the
// administrative backfill/stats service.
package embeddings

import (
	"context"

	"github.com/troykelly/openclaw-projects/pkg/models"
)

// None is the provider used when no embedding backend is configured. Embed
// always fails with models.ErrEmbeddingNotConfigured; items stay pending.
type None struct{}

func (None) Name() string       { return "none" }
func (None) IsConfigured() bool { return false }

func (None) Embed(_ context.Context, _ string) (*models.Embedding, error) {
	return nil, models.ErrEmbeddingNotConfigured
}

var _ models.EmbeddingProvider = None{}
