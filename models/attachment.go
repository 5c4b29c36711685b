package models

import (
	"strings"

	"threadmail/utils"
)

// Attachment represents a file attached to a message. Identity is the
// opaque ID; the payload itself lives with whatever blob store the caller
// uses and is not part of the domain model.
type Attachment struct {
	ID        string `json:"id"`
	Filename  string `json:"filename"`
	MimeType  string `json:"mime_type"`
	SizeBytes int64  `json:"size_bytes"`
	ContentID string `json:"content_id,omitempty"`
	IsInline  bool   `json:"is_inline"`
}

// NewAttachment validates and builds an Attachment.
func NewAttachment(id, filename, mimeType string, sizeBytes int64, contentID string, isInline bool) (Attachment, error) {
	if strings.TrimSpace(id) == "" {
		return Attachment{}, utils.ValidationError("NewAttachment", "attachment id is empty", nil)
	}
	if strings.TrimSpace(filename) == "" {
		return Attachment{}, utils.ValidationError("NewAttachment", "filename is empty", nil)
	}
	if sizeBytes < 0 {
		return Attachment{}, utils.ValidationError("NewAttachment", "negative size", nil)
	}

	return Attachment{
		ID:        id,
		Filename:  filename,
		MimeType:  mimeType,
		SizeBytes: sizeBytes,
		ContentID: contentID,
		IsInline:  isInline,
	}, nil
}
