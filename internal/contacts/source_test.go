package contacts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestHTTPSource_Sync_Success(t *testing.T) {
	connID := uuid.New()
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/internal/v1/sync" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type: %s", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(SyncResult{Synced: 17, NextCursor: strPtr("next")})
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL, 5*time.Second)
	cursor := "prev"
	result, err := src.Sync(context.Background(), SyncRequest{
		ConnectionID: connID,
		Feature:      "contacts",
		Cursor:       &cursor,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Synced != 17 {
		t.Errorf("expected 17 synced, got %d", result.Synced)
	}
	if result.NextCursor == nil || *result.NextCursor != "next" {
		t.Errorf("expected next cursor, got %v", result.NextCursor)
	}
	if gotBody["connection_id"] != connID.String() {
		t.Errorf("expected connection_id %s in body, got %v", connID, gotBody["connection_id"])
	}
	if gotBody["cursor"] != "prev" {
		t.Errorf("expected cursor prev in body, got %v", gotBody["cursor"])
	}
}

func TestHTTPSource_Sync_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL, 5*time.Second)
	_, err := src.Sync(context.Background(), SyncRequest{ConnectionID: uuid.New(), Feature: "contacts"})
	if !errors.Is(err, ErrSourceError) {
		t.Errorf("expected ErrSourceError, got %v", err)
	}
}

func TestHTTPSource_Sync_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL, 20*time.Millisecond)
	_, err := src.Sync(context.Background(), SyncRequest{ConnectionID: uuid.New(), Feature: "contacts"})
	if !errors.Is(err, ErrSourceTimeout) {
		t.Errorf("expected ErrSourceTimeout, got %v", err)
	}
}

func TestHTTPSource_Sync_Unreachable(t *testing.T) {
	// A closed server refuses connections.
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	src := NewHTTPSource(srv.URL, time.Second)
	_, err := src.Sync(context.Background(), SyncRequest{ConnectionID: uuid.New(), Feature: "contacts"})
	if !errors.Is(err, ErrSourceUnreachable) {
		t.Errorf("expected ErrSourceUnreachable, got %v", err)
	}
}

func TestHTTPSource_Sync_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL, 5*time.Second)
	_, err := src.Sync(context.Background(), SyncRequest{ConnectionID: uuid.New(), Feature: "contacts"})
	if err == nil {
		t.Fatal("expected decode error")
	}
}
