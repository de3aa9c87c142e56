// Package contacts implements contact synchronization for external-account
// connections: the client for the provider-facing sync gateway and the job
// handler that drives a sync and maintains the connection's status ledger.
package contacts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors for sync-gateway failures.
var (
	ErrSourceUnreachable = errors.New("contact source unreachable")
	ErrSourceTimeout     = errors.New("contact source timeout")
	ErrSourceError       = errors.New("contact source error")
)

// Source performs one synchronization round against the external provider.
// Token acquisition and refresh happen behind the gateway; callers only pass
// the connection identity and the resumption cursor from the previous round.
type Source interface {
	Sync(ctx context.Context, req SyncRequest) (*SyncResult, error)
}

// SyncRequest identifies the connection to sync and where to resume.
type SyncRequest struct {
	ConnectionID uuid.UUID
	Feature      string
	Cursor       *string
}

// SyncResult summarizes a completed synchronization round.
type SyncResult struct {
	Synced     int     `json:"synced"`
	NextCursor *string `json:"next_cursor,omitempty"`
}

// HTTPSource implements Source against the sync gateway's HTTP API.
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

// NewHTTPSource creates a gateway client with the given request timeout.
func NewHTTPSource(baseURL string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *HTTPSource) Sync(ctx context.Context, req SyncRequest) (*SyncResult, error) {
	body, err := json.Marshal(map[string]any{
		"connection_id": req.ConnectionID,
		"feature":       req.Feature,
		"cursor":        req.Cursor,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding sync request: %w", err)
	}

	u := fmt.Sprintf("%s/internal/v1/sync", s.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrSourceError, resp.StatusCode)
	}

	var result SyncResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding sync response: %w", err)
	}
	return &result, nil
}

func classifyError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrSourceTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrSourceTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrSourceUnreachable, err)
}
