package httpadapter

import (
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"sync"

	"github.com/kirillkom/doc-lifecycle/internal/core/domain"
)

type uploadResponse struct {
	Document *domain.Document     `json:"document"`
	Session  domain.UploadSession `json:"session"`
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, rt.options.MaxUploadBytes)
	if err := r.ParseMultipartForm(rt.options.MultipartMemory); err != nil {
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "parse multipart form", err))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	_, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "read upload", errors.New("multipart field 'file' is required")))
		return
	}

	req := domain.UploadRequest{
		File:         fileSourceFromHeader(fileHeader),
		DeclaredType: strings.TrimSpace(r.FormValue("declared_type")),
		Placement: domain.Placement{
			Path:       domain.ParseFolderPath(r.FormValue("path")),
			Department: strings.TrimSpace(r.FormValue("department")),
			Category:   strings.TrimSpace(r.FormValue("category")),
		},
	}
	if folderID := strings.TrimSpace(r.FormValue("folder_id")); folderID != "" {
		req.Placement.FolderID = &folderID
	}

	var (
		mu   sync.Mutex
		last domain.UploadSession
	)
	onUpdate := func(session domain.UploadSession) {
		mu.Lock()
		last = session
		mu.Unlock()
	}

	doc, err := rt.uploads.Upload(r.Context(), scopeFromRequest(r), req, onUpdate)
	if err != nil {
		writeError(w, r, err)
		return
	}

	mu.Lock()
	session := last
	mu.Unlock()
	writeJSON(w, http.StatusCreated, uploadResponse{Document: doc, Session: session})
}

// fileSourceFromHeader reopens the multipart part for every transfer attempt.
func fileSourceFromHeader(header *multipart.FileHeader) domain.FileSource {
	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(header.Filename))); byExt != "" {
			mimeType = byExt
		}
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return domain.FileSource{
		Name:     header.Filename,
		MimeType: mimeType,
		Size:     header.Size,
		Open: func() (io.ReadCloser, error) {
			return header.Open()
		},
	}
}

func (rt *Router) listVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := rt.versions.ListVersions(r.Context(), scopeFromRequest(r), r.PathValue("group"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"versions": versions})
}

func (rt *Router) setCurrentVersion(w http.ResponseWriter, r *http.Request) {
	versions, err := rt.versions.SetCurrent(r.Context(), scopeFromRequest(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"versions": versions})
}

func (rt *Router) moveVersion(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FromVersion int `json:"fromVersion"`
		ToVersion   int `json:"toVersion"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	versions, err := rt.versions.MoveVersion(r.Context(), scopeFromRequest(r), r.PathValue("id"), req.FromVersion, req.ToVersion)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"versions": versions})
}

func (rt *Router) relationships(w http.ResponseWriter, r *http.Request) {
	rel, err := rt.links.RelationshipsOf(r.Context(), scopeFromRequest(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rel)
}

func (rt *Router) createLink(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TargetID string `json:"targetId"`
		LinkType string `json:"linkType"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	rel, err := rt.links.Link(r.Context(), scopeFromRequest(r), domain.Link{
		FromID:   r.PathValue("id"),
		ToID:     req.TargetID,
		LinkType: req.LinkType,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rel)
}

func (rt *Router) deleteLink(w http.ResponseWriter, r *http.Request) {
	rel, err := rt.links.Unlink(r.Context(), scopeFromRequest(r), r.PathValue("id"), r.PathValue("target"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rel)
}
