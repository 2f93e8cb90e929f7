package domain

import "time"

type AuditEventType string

const (
	AuditLogin      AuditEventType = "login"
	AuditCreate     AuditEventType = "create"
	AuditEdit       AuditEventType = "edit"
	AuditDelete     AuditEventType = "delete"
	AuditMove       AuditEventType = "move"
	AuditLink       AuditEventType = "link"
	AuditUnlink     AuditEventType = "unlink"
	AuditVersionSet AuditEventType = "versionSet"
)

var AuditEventTypes = []AuditEventType{
	AuditLogin, AuditCreate, AuditEdit, AuditDelete, AuditMove, AuditLink, AuditUnlink, AuditVersionSet,
}

func (t AuditEventType) Known() bool {
	for _, known := range AuditEventTypes {
		if t == known {
			return true
		}
	}
	return false
}

const UnknownActorRole = "unknown"

// AuditEvent is an immutable backend record. Role is the correlated display role.
type AuditEvent struct {
	ID            string         `json:"id"`
	TimestampMs   int64          `json:"timestamp_ms"`
	ActorIdentity string         `json:"actor"`
	Type          AuditEventType `json:"type"`
	DocID         string         `json:"doc_id,omitempty"`
	Title         string         `json:"title,omitempty"`
	Path          string         `json:"path,omitempty"`
	Note          string         `json:"note,omitempty"`
	ActorRole     string         `json:"actor_role,omitempty"`
	Role          string         `json:"role"`
}

func (e AuditEvent) Time() time.Time {
	return time.UnixMilli(e.TimestampMs)
}

type KnownUser struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// AuditQuery holds the server-side parameters; changing any of them requires a refetch.
type AuditQuery struct {
	Limit       int
	Coalesce    bool
	IncludeSelf bool
}

// AuditFilter holds the client-side predicates, combined with logical AND.
// From and To are calendar days; only their date part in Location is used.
type AuditFilter struct {
	Text     string
	Types    []AuditEventType
	Actors   []string
	From     *time.Time
	To       *time.Time
	Location *time.Location
}

const AuditPageSize = 15

type AuditPage struct {
	Events     []AuditEvent `json:"events"`
	Page       int          `json:"page"`
	TotalPages int          `json:"total_pages"`
	Total      int          `json:"total"`
	PageSize   int          `json:"page_size"`
}
