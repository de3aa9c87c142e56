// Package openai implements models.EmbeddingProvider using the OpenAI
// embeddings API.
package openai

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

const defaultBaseURL = "https://api.openai.com"

// Provider implements models.EmbeddingProvider using OpenAI.
type Provider struct {
	cfg     config.OpenAIConfig
	baseURL string
	client  *http.Client
}

// NewProvider creates an OpenAI provider with the given request timeout.
func NewProvider(cfg config.OpenAIConfig, timeout time.Duration) *Provider {
	return &Provider{cfg: cfg, baseURL: defaultBaseURL, client: &http.Client{Timeout: timeout}}
}

func (p *Provider) Name() string { return "openai" }

func (p *Provider) IsConfigured() bool { return p.cfg.APIKey != "" }

func (p *Provider) Embed(ctx context.Context, text string) (*models.Embedding, error) {
	if !p.IsConfigured() {
		return nil, models.ErrEmbeddingNotConfigured
	}

	body, err := json.Marshal(map[string]any{
		"model": p.cfg.Model,
		"input": text,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrEmbeddingUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		// Client errors mean the provider saw and refused the input.
		return nil, fmt.Errorf("%w: status %d", models.ErrEmbeddingRejected, resp.StatusCode)
	default:
		return nil, fmt.Errorf("%w: status %d", models.ErrEmbeddingUnavailable, resp.StatusCode)
	}

	var parsed struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
		Model string `json:"model"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding embedding response: %w", err)
	}
	if len(parsed.Data) == 0 || len(parsed.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("%w: empty embedding in response", models.ErrEmbeddingRejected)
	}

	model := parsed.Model
	if model == "" {
		model = p.cfg.Model
	}
	return &models.Embedding{Vector: parsed.Data[0].Embedding, Model: model}, nil
}

var _ models.EmbeddingProvider = (*Provider)(nil)
