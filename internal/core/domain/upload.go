package domain

import (
	"io"
	"strings"
	"time"
)

type UploadState string

const (
	UploadIdle       UploadState = "idle"
	UploadUploading  UploadState = "uploading"
	UploadProcessing UploadState = "processing"
	UploadSuccess    UploadState = "success"
	UploadError      UploadState = "error"
)

// FileSource is a re-openable local file. Open is called once per transfer attempt.
type FileSource struct {
	Name     string
	MimeType string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

// Placement selects where the committed document lands.
// FolderID wins over Path; Path wins over Department/Category.
type Placement struct {
	FolderID   *string
	Path       []string
	Department string
	Category   string
}

// Segments returns the folder path to materialize, shortest prefix first.
func (p Placement) Segments() []string {
	if len(p.Path) > 0 {
		return p.Path
	}
	var out []string
	for _, s := range []string{p.Department, p.Category} {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (p Placement) HasDestination() bool {
	if p.FolderID != nil && *p.FolderID != "" {
		return true
	}
	return len(p.Segments()) > 0
}

type UploadRequest struct {
	File         FileSource
	DeclaredType string
	Placement    Placement
}

// SignedDestination is a short-lived, pre-authorized write target.
type SignedDestination struct {
	SignedURL  string     `json:"signed_url"`
	StorageKey string     `json:"storage_key"`
	Token      string     `json:"token,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

// UploadSession is the ephemeral view of one orchestration run.
type UploadSession struct {
	ID              string      `json:"id"`
	Filename        string      `json:"filename"`
	StorageKey      string      `json:"storage_key,omitempty"`
	SignedURL       string      `json:"-"`
	ProgressPercent float64     `json:"progress_percent"`
	State           UploadState `json:"state"`
	Message         string      `json:"message,omitempty"`
	DocumentID      string      `json:"document_id,omitempty"`
}

// ProgressFunc receives transfer progress in percent, 0 to 100.
type ProgressFunc func(percent float64)

// SessionFunc receives a snapshot on every session state or progress change.
type SessionFunc func(UploadSession)
