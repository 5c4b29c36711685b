package models

import (
	"strings"

	"threadmail/utils"
)

// Content is an immutable email body: plain text plus optional HTML. The
// HTML variant is sanitized at construction so nothing unsafe is ever stored.
type Content struct {
	PlainText string `json:"plain_text"`
	HTML      string `json:"html,omitempty"`
}

// NewContent validates and builds a Content.
func NewContent(plainText, html string) (Content, error) {
	if strings.TrimSpace(plainText) == "" {
		return Content{}, utils.ValidationError("NewContent", "plain text body is empty", nil)
	}

	if html != "" {
		html = utils.SanitizeHTML(html)
	}

	return Content{
		PlainText: plainText,
		HTML:      html,
	}, nil
}

// Preview collapses whitespace and truncates the plain text to maxLen runes,
// appending an ellipsis when truncated.
func (c Content) Preview(maxLen int) string {
	collapsed := strings.Join(strings.Fields(c.PlainText), " ")
	if maxLen <= 0 {
		return ""
	}

	runes := []rune(collapsed)
	if len(runes) <= maxLen {
		return collapsed
	}
	return strings.TrimSpace(string(runes[:maxLen])) + "…"
}

// WordCount returns the number of whitespace-separated words in the plain text.
func (c Content) WordCount() int {
	return len(strings.Fields(c.PlainText))
}
