package domain

import (
	"strings"
	"time"
)

type DocumentStatus string

const (
	StatusPending   DocumentStatus = "pending"
	StatusCommitted DocumentStatus = "committed"
)

// Scope identifies the organization and caller every backend call runs under.
type Scope struct {
	OrgID      string `json:"org_id"`
	ActorEmail string `json:"actor_email,omitempty"`
	Elevated   bool   `json:"elevated"`
}

func (s Scope) Valid() bool {
	return strings.TrimSpace(s.OrgID) != ""
}

type Document struct {
	ID               string         `json:"id"`
	Title            string         `json:"title"`
	Filename         string         `json:"filename,omitempty"`
	MimeType         string         `json:"mime_type,omitempty"`
	StorageKey       string         `json:"storage_key,omitempty"`
	FileSizeBytes    int64          `json:"file_size_bytes,omitempty"`
	FolderID         *string        `json:"folder_id,omitempty"`
	VersionGroupID   *string        `json:"version_group_id,omitempty"`
	VersionNumber    int            `json:"version_number,omitempty"`
	IsCurrentVersion bool           `json:"is_current_version"`
	Status           DocumentStatus `json:"status"`
	Metadata         Metadata       `json:"metadata"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        *time.Time     `json:"deleted_at,omitempty"`
}

func (d *Document) Versioned() bool {
	return d != nil && d.VersionGroupID != nil && *d.VersionGroupID != ""
}

// Metadata is the derived-field set produced by extraction.
type Metadata struct {
	Title         string   `json:"title,omitempty"`
	Subject       string   `json:"subject,omitempty"`
	Sender        string   `json:"sender,omitempty"`
	Receiver      string   `json:"receiver,omitempty"`
	Category      string   `json:"category,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	Keywords      []string `json:"keywords,omitempty"`
	Summary       string   `json:"summary,omitempty"`
	DocumentDate  string   `json:"document_date,omitempty"`
	ExtractedText string   `json:"extracted_text,omitempty"`
}

type Folder struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Path    []string `json:"path"`
	Created bool     `json:"created"`
}

// NewDocument is the pending record submitted after extraction and placement.
type NewDocument struct {
	Filename     string   `json:"filename"`
	MimeType     string   `json:"mime_type"`
	DeclaredType string   `json:"declared_type,omitempty"`
	FolderID     *string  `json:"folder_id,omitempty"`
	Department   string   `json:"department,omitempty"`
	Category     string   `json:"category,omitempty"`
	Metadata     Metadata `json:"metadata"`
}

type FinalizeRequest struct {
	DocumentID    string `json:"document_id"`
	StorageKey    string `json:"storage_key"`
	FileSizeBytes int64  `json:"file_size_bytes"`
	MimeType      string `json:"mime_type"`
}
