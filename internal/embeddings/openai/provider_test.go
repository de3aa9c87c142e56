package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/troykelly/openclaw-projects/internal/config"
	"github.com/troykelly/openclaw-projects/pkg/models"
)

func testProvider(t *testing.T, handler http.HandlerFunc) (*Provider, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	p := NewProvider(config.OpenAIConfig{APIKey: "sk-test", Model: "text-embedding-3-small"}, 5*time.Second)
	p.baseURL = srv.URL
	return p, srv
}

func TestEmbed_Success(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	p, _ := testProvider(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]any{
			"data":  []map[string]any{{"embedding": []float32{0.1, 0.2, 0.3}}},
			"model": "text-embedding-3-small-v2",
		})
	})

	emb, err := p.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("expected bearer auth, got %q", gotAuth)
	}
	if gotBody["input"] != "hello world" {
		t.Errorf("expected input in request body, got %v", gotBody["input"])
	}
	if gotBody["model"] != "text-embedding-3-small" {
		t.Errorf("expected model in request body, got %v", gotBody["model"])
	}
	if len(emb.Vector) != 3 {
		t.Errorf("expected 3-dim vector, got %d", len(emb.Vector))
	}
	if emb.Model != "text-embedding-3-small-v2" {
		t.Errorf("expected model from response, got %s", emb.Model)
	}
}

func TestEmbed_NotConfigured(t *testing.T) {
	p := NewProvider(config.OpenAIConfig{}, 5*time.Second)
	_, err := p.Embed(context.Background(), "text")
	if !errors.Is(err, models.ErrEmbeddingNotConfigured) {
		t.Errorf("expected ErrEmbeddingNotConfigured, got %v", err)
	}
}

func TestEmbed_TimeoutIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"embedding": []float32{0.1}}},
		})
	}))
	defer srv.Close()

	p := NewProvider(config.OpenAIConfig{APIKey: "sk-test", Model: "text-embedding-3-small"}, 20*time.Millisecond)
	p.baseURL = srv.URL

	start := time.Now()
	_, err := p.Embed(context.Background(), "text")
	if !errors.Is(err, models.ErrEmbeddingUnavailable) {
		t.Errorf("expected ErrEmbeddingUnavailable on timeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 150*time.Millisecond {
		t.Errorf("expected request cut off by client timeout, took %s", elapsed)
	}
}

func TestEmbed_ClientErrorIsRejected(t *testing.T) {
	p, _ := testProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"invalid input"}`, http.StatusBadRequest)
	})

	_, err := p.Embed(context.Background(), "text")
	if !errors.Is(err, models.ErrEmbeddingRejected) {
		t.Errorf("expected ErrEmbeddingRejected for 4xx, got %v", err)
	}
}

func TestEmbed_ServerErrorIsUnavailable(t *testing.T) {
	p, _ := testProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream down", http.StatusServiceUnavailable)
	})

	_, err := p.Embed(context.Background(), "text")
	if !errors.Is(err, models.ErrEmbeddingUnavailable) {
		t.Errorf("expected ErrEmbeddingUnavailable for 5xx, got %v", err)
	}
}

func TestEmbed_EmptyResponseIsRejected(t *testing.T) {
	p, _ := testProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": []any{}})
	})

	_, err := p.Embed(context.Background(), "text")
	if !errors.Is(err, models.ErrEmbeddingRejected) {
		t.Errorf("expected ErrEmbeddingRejected for empty data, got %v", err)
	}
}

func TestEmbed_FallsBackToConfiguredModelName(t *testing.T) {
	p, _ := testProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"embedding": []float32{0.5}}},
		})
	})

	emb, err := p.Embed(context.Background(), "text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if emb.Model != "text-embedding-3-small" {
		t.Errorf("expected configured model name fallback, got %s", emb.Model)
	}
}
