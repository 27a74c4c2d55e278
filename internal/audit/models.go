// Package audit records every mutating issuance operation. Events are
// appended to a store (the Postgres implementation is a transactional outbox)
// and relayed to Kafka by a background worker.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Action names the issuance operation an event describes.
type Action string

const (
	ActionSettingsUpdated Action = "settings_updated"
	ActionRendererUpdated Action = "renderer_updated"
	ActionSignerUpdated   Action = "signer_updated"
	ActionCostUnitUpdated Action = "cost_unit_updated"
	ActionIssuanceStarted Action = "issuance_started"
	ActionRecordMinted    Action = "record_minted"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID        uuid.UUID `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Action    Action    `json:"action"`
	// Actor is whoever triggered the operation: the owner for admin
	// operations, the claimant for mints.
	Actor string `json:"actor,omitempty"`
	// RecordID is set for record_minted events.
	RecordID uint64 `json:"record_id,omitempty"`
	// Detail is a short human-readable summary of what changed.
	Detail string `json:"detail,omitempty"`
}
