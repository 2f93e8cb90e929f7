package httpadapter

import (
	"context"
	"errors"
	"net/http"

	"github.com/kirillkom/doc-lifecycle/internal/core/domain"
)

// mapErrorToHTTPStatus checks kinds in precedence order. Credentials and
// retryable conditions come first since the caller can act on them. Upload
// stage kinds come next: a backend 400 or 404 inside finalize or folder
// creation is a failed upstream step, not a bad gateway request.
func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrTemporary), domain.IsKind(err, domain.ErrNetwork),
		domain.IsKind(err, domain.ErrUploadAbandoned), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	case isUploadStageError(err):
		return http.StatusBadGateway
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrPlacementRequired), domain.IsKind(err, domain.ErrSelfLink):
		return http.StatusUnprocessableEntity
	case domain.IsKind(err, domain.ErrNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrVersionConflict), domain.IsKind(err, domain.ErrDuplicateLink):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

var uploadStageKinds = []error{
	domain.ErrSigning,
	domain.ErrTransport,
	domain.ErrExtraction,
	domain.ErrFolderCreation,
	domain.ErrRecordCreation,
	domain.ErrFinalize,
}

func isUploadStageError(err error) bool {
	for _, kind := range uploadStageKinds {
		if domain.IsKind(err, kind) {
			return true
		}
	}
	return false
}

type errorResponse struct {
	Error     string `json:"error"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), errorResponse{
		Error:     domain.UserMessage(err),
		Detail:    err.Error(),
		RequestID: requestIDFromContext(r.Context()),
	})
}
