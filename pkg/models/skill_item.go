package models

import (
	"time"

	"github.com/google/uuid"
)

// Embedding statuses for skill-store items.
//
// pending:  not yet embedded; eligible for backfill.
// complete: vector stored; terminal unless the content changes.
// failed:   embedding attempted and rejected, or the item has no embeddable
//           text; still eligible for backfill (the provider or content may
//           change).
const (
	EmbeddingStatusPending  = "pending"
	EmbeddingStatusComplete = "complete"
	EmbeddingStatusFailed   = "failed"
)

// SkillItem is a stored knowledge item (memory, note, reference) that gets a
// semantic embedding for retrieval. Title, summary and content are all
// optional; embedding input is derived from whichever are present.
type SkillItem struct {
	ID              uuid.UUID  `db:"id"               json:"id"`
	TenantID        uuid.UUID  `db:"tenant_id"        json:"tenant_id"`
	Title           *string    `db:"title"            json:"title,omitempty"`
	Summary         *string    `db:"summary"          json:"summary,omitempty"`
	Content         *string    `db:"content"          json:"content,omitempty"`
	Embedding       []float32  `db:"embedding"        json:"-"`
	EmbeddingStatus string     `db:"embedding_status" json:"embedding_status"`
	EmbeddingModel  *string    `db:"embedding_model"  json:"embedding_model,omitempty"`
	DeletedAt       *time.Time `db:"deleted_at"       json:"-"`
	CreatedAt       time.Time  `db:"created_at"       json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"       json:"updated_at"`
}

// EmbeddingStats summarizes embedding progress across a tenant's skill store,
// excluding soft-deleted items.
type EmbeddingStats struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"by_status"`
}
