package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Job kinds understood by the dispatcher.
const (
	JobKindContactSync       = "contact-sync"
	JobKindEmbeddingGenerate = "embedding-generate"
)

// Job is a persisted unit of scheduled asynchronous work. Workers claim due,
// unlocked jobs, run the handler registered for Kind, and either complete or
// reschedule the row. A job is immutable once CompletedAt is set; re-running
// the same work requires a fresh row.
type Job struct {
	ID             uuid.UUID       `db:"id"              json:"id"`
	Kind           string          `db:"kind"            json:"kind"`
	Payload        json.RawMessage `db:"payload"         json:"payload"`
	RunAt          time.Time       `db:"run_at"          json:"run_at"`
	Attempts       int             `db:"attempts"        json:"attempts"`
	LastError      *string         `db:"last_error"      json:"last_error,omitempty"`
	LockedAt       *time.Time      `db:"locked_at"       json:"locked_at,omitempty"`
	LockedBy       *string         `db:"locked_by"       json:"locked_by,omitempty"`
	CompletedAt    *time.Time      `db:"completed_at"    json:"completed_at,omitempty"`
	IdempotencyKey string          `db:"idempotency_key" json:"idempotency_key"`
	CreatedAt      time.Time       `db:"created_at"      json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"      json:"updated_at"`
}

// Locked reports whether the job is currently claimed by a worker.
func (j *Job) Locked() bool {
	return j.LockedAt != nil
}

// Completed reports whether the job has reached a terminal state.
func (j *Job) Completed() bool {
	return j.CompletedAt != nil
}

// ContactSyncPayload is the payload for JobKindContactSync jobs.
type ContactSyncPayload struct {
	ConnectionID uuid.UUID `json:"connection_id"`
	Feature      string    `json:"feature"`
}

// EmbeddingPayload is the payload for JobKindEmbeddingGenerate jobs.
type EmbeddingPayload struct {
	ItemID uuid.UUID `json:"item_id"`
}
