package models

import (
	"context"
	"errors"
)

// Embedding provider failure taxonomy.
//
// Not-configured means no backend exists yet; items stay pending and a later
// backfill picks them up. Rejected means the provider was reached and refused
// the input; the item is marked failed. Unavailable is transient.
var (
	ErrEmbeddingNotConfigured = errors.New("no embedding provider configured")
	ErrEmbeddingRejected      = errors.New("embedding provider rejected input")
	ErrEmbeddingUnavailable   = errors.New("embedding provider unavailable")
)

// Embedding is a generated vector together with the model that produced it.
type Embedding struct {
	Vector []float32
	Model  string
}

// EmbeddingProvider generates semantic embeddings. Callers depend on this
// interface, never on a concrete provider.
type EmbeddingProvider interface {
	// Name returns the provider identifier (e.g. "openai", "ollama").
	Name() string
	// IsConfigured reports whether the provider can actually serve requests.
	IsConfigured() bool
	// Embed generates an embedding for text.
	Embed(ctx context.Context, text string) (*Embedding, error)
}
