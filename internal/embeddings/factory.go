package embeddings

import (
	"fmt"

	"github.com/troykelly/openclaw-projects/internal/config"
	"github.com/troykelly/openclaw-projects/internal/embeddings/ollama"
	"github.com/troykelly/openclaw-projects/internal/embeddings/openai"
	"github.com/troykelly/openclaw-projects/pkg/models"
)

// NewProvider constructs the embedding provider selected by config.
// Called once at server startup. An empty provider name is valid and yields
// the None provider: embedding jobs stay pending until a backfill runs with
// a real provider configured.
func NewProvider(cfg config.EmbeddingsConfig) (models.EmbeddingProvider, error) {
	switch cfg.Provider {
	case "":
		return None{}, nil
	case "openai":
		return openai.NewProvider(cfg.OpenAI, cfg.Timeout), nil
	case "ollama":
		return ollama.NewProvider(cfg.Ollama, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q: must be one of openai, ollama, or unset", cfg.Provider)
	}
}
