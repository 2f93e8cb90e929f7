package backend

import (
	"strings"
	"time"

	"github.com/kirillkom/doc-lifecycle/internal/core/domain"
)

// The backend speaks camelCase JSON; audit records are the exception and
// arrive snake_case.

type documentDTO struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Filename         string     `json:"filename,omitempty"`
	MimeType         string     `json:"mimeType,omitempty"`
	StorageKey       string     `json:"storageKey,omitempty"`
	FileSizeBytes    int64      `json:"fileSizeBytes,omitempty"`
	FolderID         *string    `json:"folderId,omitempty"`
	VersionGroupID   *string    `json:"versionGroupId,omitempty"`
	VersionNumber    int        `json:"versionNumber,omitempty"`
	IsCurrentVersion bool       `json:"isCurrentVersion"`
	Status           string     `json:"status,omitempty"`
	Subject          string     `json:"subject,omitempty"`
	Sender           string     `json:"sender,omitempty"`
	Receiver         string     `json:"receiver,omitempty"`
	Category         string     `json:"category,omitempty"`
	Tags             []string   `json:"tags,omitempty"`
	Keywords         []string   `json:"keywords,omitempty"`
	Summary          string     `json:"summary,omitempty"`
	DocumentDate     string     `json:"documentDate,omitempty"`
	ExtractedText    string     `json:"extractedText,omitempty"`
	CreatedAt        *time.Time `json:"createdAt,omitempty"`
	UpdatedAt        *time.Time `json:"updatedAt,omitempty"`
	DeletedAt        *time.Time `json:"deletedAt,omitempty"`
}

func (d documentDTO) toDomain() *domain.Document {
	doc := &domain.Document{
		ID:               d.ID,
		Title:            d.Title,
		Filename:         d.Filename,
		MimeType:         d.MimeType,
		StorageKey:       d.StorageKey,
		FileSizeBytes:    d.FileSizeBytes,
		FolderID:         d.FolderID,
		VersionGroupID:   d.VersionGroupID,
		VersionNumber:    d.VersionNumber,
		IsCurrentVersion: d.IsCurrentVersion,
		Status:           domain.DocumentStatus(d.Status),
		DeletedAt:        d.DeletedAt,
		Metadata: domain.Metadata{
			Title:         d.Title,
			Subject:       d.Subject,
			Sender:        d.Sender,
			Receiver:      d.Receiver,
			Category:      d.Category,
			Tags:          d.Tags,
			Keywords:      d.Keywords,
			Summary:       d.Summary,
			DocumentDate:  d.DocumentDate,
			ExtractedText: d.ExtractedText,
		},
	}
	if d.CreatedAt != nil {
		doc.CreatedAt = *d.CreatedAt
	}
	if d.UpdatedAt != nil {
		doc.UpdatedAt = *d.UpdatedAt
	}
	return doc
}

func documentsToDomain(in []documentDTO) []domain.Document {
	out := make([]domain.Document, 0, len(in))
	for _, d := range in {
		out = append(out, *d.toDomain())
	}
	return out
}

type signRequest struct {
	Filename string `json:"filename"`
	MimeType string `json:"mimeType"`
}

type signResponse struct {
	SignedURL  string     `json:"signedUrl"`
	StorageKey string     `json:"storageKey"`
	Token      string     `json:"token,omitempty"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
}

type folderUpsertRequest struct {
	Path []string `json:"path"`
}

type folderDTO struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Path    []string `json:"path"`
	Created bool     `json:"created"`
}

type createDocumentRequest struct {
	Filename      string   `json:"filename"`
	MimeType      string   `json:"mimeType"`
	DeclaredType  string   `json:"declaredType,omitempty"`
	FolderID      *string  `json:"folderId,omitempty"`
	Department    string   `json:"department,omitempty"`
	Category      string   `json:"category,omitempty"`
	Title         string   `json:"title"`
	Subject       string   `json:"subject,omitempty"`
	Sender        string   `json:"sender,omitempty"`
	Receiver      string   `json:"receiver,omitempty"`
	Tags          []string `json:"tags"`
	Keywords      []string `json:"keywords,omitempty"`
	Summary       string   `json:"summary,omitempty"`
	DocumentDate  string   `json:"documentDate,omitempty"`
	ExtractedText string   `json:"extractedText,omitempty"`
}

func newCreateDocumentRequest(doc domain.NewDocument) createDocumentRequest {
	category := doc.Category
	if category == "" {
		category = doc.Metadata.Category
	}
	tags := doc.Metadata.Tags
	if tags == nil {
		tags = []string{}
	}
	return createDocumentRequest{
		Filename:      doc.Filename,
		MimeType:      doc.MimeType,
		DeclaredType:  doc.DeclaredType,
		FolderID:      doc.FolderID,
		Department:    doc.Department,
		Category:      category,
		Title:         doc.Metadata.Title,
		Subject:       doc.Metadata.Subject,
		Sender:        doc.Metadata.Sender,
		Receiver:      doc.Metadata.Receiver,
		Tags:          tags,
		Keywords:      doc.Metadata.Keywords,
		Summary:       doc.Metadata.Summary,
		DocumentDate:  doc.Metadata.DocumentDate,
		ExtractedText: doc.Metadata.ExtractedText,
	}
}

type finalizeRequest struct {
	DocumentID    string `json:"documentId"`
	StorageKey    string `json:"storageKey"`
	FileSizeBytes int64  `json:"fileSizeBytes"`
	MimeType      string `json:"mimeType"`
}

type moveVersionRequest struct {
	FromVersion int `json:"fromVersion"`
	ToVersion   int `json:"toVersion"`
}

type linkRequest struct {
	LinkedID string `json:"linkedId"`
	LinkType string `json:"linkType"`
}

type peerDTO struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	LinkType  string `json:"linkType"`
	Direction string `json:"direction,omitempty"`
}

func peersToDomain(in []peerDTO) []domain.LinkedPeer {
	out := make([]domain.LinkedPeer, 0, len(in))
	for _, p := range in {
		out = append(out, domain.LinkedPeer{
			ID:        p.ID,
			Title:     p.Title,
			LinkType:  p.LinkType,
			Direction: domain.LinkDirection(p.Direction),
		})
	}
	return out
}

type relationshipsDTO struct {
	Linked   []peerDTO     `json:"linked"`
	Incoming []peerDTO     `json:"incoming"`
	Outgoing []peerDTO     `json:"outgoing"`
	Versions []documentDTO `json:"versions"`
}

// auditRecordDTO is snake_case on the wire. Older records carry "actor"
// instead of "actor_email".
type auditRecordDTO struct {
	ID          string `json:"id"`
	TimestampMs int64  `json:"timestamp_ms"`
	CreatedAt   string `json:"created_at"`
	ActorEmail  string `json:"actor_email"`
	Actor       string `json:"actor"`
	Type        string `json:"type"`
	DocID       string `json:"doc_id"`
	Title       string `json:"title"`
	Path        string `json:"path"`
	Note        string `json:"note"`
	ActorRole   string `json:"actor_role"`
}

func (r auditRecordDTO) toDomain() domain.AuditEvent {
	actor := r.ActorEmail
	if actor == "" {
		actor = r.Actor
	}
	ts := r.TimestampMs
	if ts == 0 && r.CreatedAt != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, r.CreatedAt); err == nil {
			ts = parsed.UnixMilli()
		}
	}
	return domain.AuditEvent{
		ID:            r.ID,
		TimestampMs:   ts,
		ActorIdentity: strings.TrimSpace(actor),
		Type:          domain.AuditEventType(r.Type),
		DocID:         r.DocID,
		Title:         r.Title,
		Path:          r.Path,
		Note:          r.Note,
		ActorRole:     r.ActorRole,
	}
}

type memberDTO struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}
