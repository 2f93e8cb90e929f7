package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrTemporary    = errors.New("temporary failure")
	ErrNetwork      = errors.New("network failure")
	ErrNotFound     = errors.New("not found")

	ErrSigning           = errors.New("upload signing failed")
	ErrTransport         = errors.New("file transfer failed")
	ErrExtraction        = errors.New("metadata extraction failed")
	ErrPlacementRequired = errors.New("destination department or category is required")
	ErrFolderCreation    = errors.New("folder creation failed")
	ErrRecordCreation    = errors.New("document record creation failed")
	ErrFinalize          = errors.New("upload finalize failed")
	ErrUploadAbandoned   = errors.New("upload abandoned")

	ErrVersionConflict = errors.New("version conflict")
	ErrDuplicateLink   = errors.New("link already exists")
	ErrSelfLink        = errors.New("document cannot link to itself")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

// EnsureKind wraps err with kind unless the chain already carries it.
func EnsureKind(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, kind) {
		return err
	}
	return WrapError(kind, operation, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// UserMessage returns the short text shown on the upload surface and inline
// relationship/version failures.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled), errors.Is(err, ErrUploadAbandoned):
		return "The upload was cancelled."
	case errors.Is(err, ErrPlacementRequired):
		return "Choose a destination department or category before uploading."
	case errors.Is(err, ErrSigning):
		return "The upload could not be authorized. Check that an organization is selected."
	case errors.Is(err, ErrTransport):
		return "The file could not be transferred to storage. Try again."
	case errors.Is(err, ErrExtraction):
		return "Document details could not be extracted. Try again."
	case errors.Is(err, ErrFolderCreation):
		return "The destination folder could not be created."
	case errors.Is(err, ErrRecordCreation):
		return "The document record could not be created."
	case errors.Is(err, ErrFinalize):
		return "The upload could not be completed. The document may need attention."
	case errors.Is(err, ErrSelfLink):
		return "A document cannot be linked to itself."
	case errors.Is(err, ErrDuplicateLink):
		return "These documents are already linked with that type."
	case errors.Is(err, ErrVersionConflict):
		return "The version history changed in the meantime. Refresh and try again."
	case errors.Is(err, ErrNotFound):
		return "The document was not found or has no version history."
	case errors.Is(err, ErrInvalidInput):
		return "The request is invalid."
	case errors.Is(err, ErrUnauthorized):
		return "You are not allowed to do that."
	case errors.Is(err, ErrNetwork), errors.Is(err, ErrTemporary):
		return "The service is unreachable right now. Try again later."
	default:
		return "Something went wrong."
	}
}
