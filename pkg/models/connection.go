// Package models contains shared data models used across the openclaw-projects codebase.
package models

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Connection statuses.
const (
	ConnectionStatusActive  = "active"
	ConnectionStatusRevoked = "revoked"
)

// Feature names that can be enabled per connection.
const (
	FeatureContacts = "contacts"
)

// Connection represents a linked external account (e.g. a Google account)
// from which features such as contact sync pull data.
type Connection struct {
	ID         uuid.UUID  `db:"id"          json:"id"`
	TenantID   uuid.UUID  `db:"tenant_id"   json:"tenant_id"`
	Provider   string     `db:"provider"    json:"provider"`
	Status     string     `db:"status"      json:"status"`
	Features   []string   `db:"features"    json:"features"`
	SyncStatus SyncStatus `db:"sync_status" json:"sync_status"`
	DeletedAt  *time.Time `db:"deleted_at"  json:"-"`
	CreatedAt  time.Time  `db:"created_at"  json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at"  json:"updated_at"`
}

// Active reports whether the connection is usable for sync work.
func (c *Connection) Active() bool {
	return c.Status == ConnectionStatusActive && c.DeletedAt == nil
}

// FeatureEnabled reports whether the named feature is enabled for this connection.
func (c *Connection) FeatureEnabled(feature string) bool {
	return slices.Contains(c.Features, feature)
}

// SyncStatus is the per-connection status ledger: a map of feature name to
// that feature's sync health. The ledger is merge-updated one feature at a
// time; writing one feature's record never disturbs its siblings.
type SyncStatus map[string]FeatureSyncStatus

// FeatureSyncStatus records the sync health of a single feature.
type FeatureSyncStatus struct {
	LastSync            *time.Time `json:"last_sync,omitempty"`
	LastSuccess         *time.Time `json:"last_success,omitempty"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	Cursor              *string    `json:"cursor,omitempty"`
	LastError           *string    `json:"last_error,omitempty"`
}

// Staleness returns the elapsed time since the feature last synced
// successfully. A feature that has never succeeded is infinitely stale,
// reported as the zero time's distance (ok=false).
func (f FeatureSyncStatus) Staleness(now time.Time) (time.Duration, bool) {
	if f.LastSuccess == nil {
		return 0, false
	}
	return now.Sub(*f.LastSuccess), true
}
