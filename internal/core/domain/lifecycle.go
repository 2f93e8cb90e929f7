package domain

import "time"

type LifecycleEventType string

const (
	EventDocumentCommitted LifecycleEventType = "document_committed"
	EventLinkCreated       LifecycleEventType = "link_created"
	EventLinkRemoved       LifecycleEventType = "link_removed"
	EventVersionSet        LifecycleEventType = "version_set"
	EventVersionMoved      LifecycleEventType = "version_moved"
)

// LifecycleEvent notifies other replicas that cached views of a document are stale.
type LifecycleEvent struct {
	Type       LifecycleEventType `json:"type"`
	OrgID      string             `json:"org_id"`
	DocumentID string             `json:"document_id"`
	TargetID   string             `json:"target_id,omitempty"`
	Actor      string             `json:"actor,omitempty"`
	At         time.Time          `json:"at"`
}

type LedgerState string

const (
	LedgerInFlight       LedgerState = "in_flight"
	LedgerFinalized      LedgerState = "finalized"
	LedgerFinalizeFailed LedgerState = "finalize_failed"
)

// LedgerEntry tracks a pending record between creation and finalize.
type LedgerEntry struct {
	DocumentID string      `json:"document_id"`
	OrgID      string      `json:"org_id"`
	StorageKey string      `json:"storage_key"`
	Filename   string      `json:"filename"`
	State      LedgerState `json:"state"`
	Error      string      `json:"error,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}
