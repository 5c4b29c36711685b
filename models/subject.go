package models

import (
	"strings"

	"threadmail/utils"
)

// replyPrefixes are the leading tokens stripped when normalizing a subject
// for threading. Comparison is case-insensitive.
var replyPrefixes = []string{"re:", "fwd:", "fw:"}

// Subject is an immutable email subject line.
type Subject struct {
	Raw string `json:"raw"`
}

// NewSubject validates and builds a Subject.
func NewSubject(raw string) (Subject, error) {
	if strings.TrimSpace(raw) == "" {
		return Subject{}, utils.ValidationError("NewSubject", "subject is empty", nil)
	}
	return Subject{Raw: raw}, nil
}

// IsReply reports whether the subject carries a leading "Re:" token.
func (s Subject) IsReply() bool {
	return hasAnyPrefix(strings.TrimSpace(s.Raw), "re:")
}

// IsForward reports whether the subject carries a leading "Fwd:" or "Fw:" token.
func (s Subject) IsForward() bool {
	return hasAnyPrefix(strings.TrimSpace(s.Raw), "fwd:", "fw:")
}

// Normalized returns the subject with all leading Re:/Fwd:/Fw: tokens
// stripped repeatedly, trimmed, case preserved otherwise.
func (s Subject) Normalized() string {
	subject := strings.TrimSpace(s.Raw)

	for {
		cleaned := false
		for _, prefix := range replyPrefixes {
			if hasAnyPrefix(subject, prefix) {
				subject = strings.TrimSpace(subject[len(prefix):])
				cleaned = true
				break
			}
		}
		if !cleaned {
			break
		}
	}

	return subject
}

// NormalizedKey returns the lowercased normalized subject, used for matching
// and for the storage subject index.
func (s Subject) NormalizedKey() string {
	return strings.ToLower(s.Normalized())
}

// Equal reports whether two subjects normalize to the same conversation key.
func (s Subject) Equal(other Subject) bool {
	return s.NormalizedKey() == other.NormalizedKey()
}

// hasAnyPrefix checks s against each prefix case-insensitively.
func hasAnyPrefix(s string, prefixes ...string) bool {
	lower := strings.ToLower(s)
	for _, p := range prefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}
