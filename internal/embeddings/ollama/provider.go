// Package ollama implements models.EmbeddingProvider using a local Ollama
// instance.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/troykelly/openclaw-projects/internal/config"
	"github.com/troykelly/openclaw-projects/pkg/models"
)

// Provider implements models.EmbeddingProvider using Ollama.
type Provider struct {
	cfg    config.OllamaConfig
	client *http.Client
}

// NewProvider creates an Ollama provider with the given request timeout.
func NewProvider(cfg config.OllamaConfig, timeout time.Duration) *Provider {
	return &Provider{cfg: cfg, client: &http.Client{Timeout: timeout}}
}

func (p *Provider) Name() string { return "ollama" }

func (p *Provider) IsConfigured() bool { return p.cfg.BaseURL != "" && p.cfg.Model != "" }

func (p *Provider) Embed(ctx context.Context, text string) (*models.Embedding, error) {
	if !p.IsConfigured() {
		return nil, models.ErrEmbeddingNotConfigured
	}

	body, err := json.Marshal(map[string]string{
		"model":  p.cfg.Model,
		"prompt": text,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.cfg.BaseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrEmbeddingUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, fmt.Errorf("%w: status %d", models.ErrEmbeddingRejected, resp.StatusCode)
	default:
		return nil, fmt.Errorf("%w: status %d", models.ErrEmbeddingUnavailable, resp.StatusCode)
	}

	var parsed struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding embedding response: %w", err)
	}
	if len(parsed.Embedding) == 0 {
		return nil, fmt.Errorf("%w: empty embedding in response", models.ErrEmbeddingRejected)
	}

	return &models.Embedding{Vector: parsed.Embedding, Model: p.cfg.Model}, nil
}

var _ models.EmbeddingProvider = (*Provider)(nil)
