package domain

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	MaxFilenameLength   = 255
	MaxFolderNameLength = 255
	MaxFolderDepth      = 32
	MaxLinkTypeLength   = 64
)

var folderSegmentRule = validation.By(func(value interface{}) error {
	segment, _ := value.(string)
	switch {
	case segment == "." || segment == "..":
		return errors.New("cannot be '.' or '..'")
	case strings.Contains(segment, "/"):
		return errors.New("cannot contain '/'")
	case strings.TrimSpace(segment) != segment:
		return errors.New("cannot start or end with spaces")
	}
	return nil
})

// Validate checks an upload request before any network call is made.
func (r UploadRequest) Validate() error {
	err := validation.Errors{
		"filename":  validation.Validate(r.File.Name, validation.Required, validation.Length(1, MaxFilenameLength)),
		"mime_type": validation.Validate(r.File.MimeType, validation.Required),
		"size":      validation.Validate(r.File.Size, validation.Required, validation.Min(int64(1))),
		"path": validation.Validate(r.Placement.Path,
			validation.Length(0, MaxFolderDepth),
			validation.Each(validation.Required, validation.Length(1, MaxFolderNameLength), folderSegmentRule),
		),
	}.Filter()
	if err == nil && r.File.Open == nil {
		err = errors.New("file: source cannot be opened")
	}
	return WrapError(ErrInvalidInput, "validate upload", err)
}

// Validate checks the shape of a link before the self/duplicate rules apply.
func (l Link) Validate() error {
	err := validation.Errors{
		"from_id":   validation.Validate(l.FromID, validation.Required),
		"to_id":     validation.Validate(l.ToID, validation.Required),
		"link_type": validation.Validate(l.LinkType, validation.Required, validation.Length(1, MaxLinkTypeLength)),
	}.Filter()
	return WrapError(ErrInvalidInput, "validate link", err)
}

// ParseFolderPath splits "Finance/2025" into segments, dropping empty ones.
func ParseFolderPath(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, "/") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
