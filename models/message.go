package models

import (
	"sort"
	"strings"
	"time"

	"threadmail/utils"
)

// Message is a single email owned by exactly one Thread. The envelope fields
// never change after construction; the read/flagged/label state is replaced
// copy-on-write through Thread operations only.
type Message struct {
	ID                string         `json:"id"`
	ExternalMessageID string         `json:"external_message_id"`
	Subject           Subject        `json:"subject"`
	From              EmailAddress   `json:"from"`
	To                []EmailAddress `json:"to"`
	Cc                []EmailAddress `json:"cc,omitempty"`
	Bcc               []EmailAddress `json:"bcc,omitempty"`
	Content           Content        `json:"content"`
	SentAt            time.Time      `json:"sent_at"`
	Attachments       []Attachment   `json:"attachments,omitempty"`
	InReplyTo         string         `json:"in_reply_to,omitempty"`
	References        []string       `json:"references,omitempty"`

	IsRead    bool     `json:"is_read"`
	IsFlagged bool     `json:"is_flagged"`
	Labels    []string `json:"labels,omitempty"`
}

// MessageParams carries the envelope fields for NewMessage.
type MessageParams struct {
	ID                string
	ExternalMessageID string
	Subject           Subject
	From              EmailAddress
	To                []EmailAddress
	Cc                []EmailAddress
	Bcc               []EmailAddress
	Content           Content
	SentAt            time.Time
	Attachments       []Attachment
	InReplyTo         string
	References        []string
}

// NewMessage validates and builds a Message. New messages start unread,
// unflagged and unlabeled.
func NewMessage(p MessageParams) (Message, error) {
	if strings.TrimSpace(p.ID) == "" {
		return Message{}, utils.ValidationError("NewMessage", "message id is empty", nil)
	}
	if strings.TrimSpace(p.ExternalMessageID) == "" {
		return Message{}, utils.ValidationError("NewMessage", "external message id is empty", nil)
	}
	if len(p.To) == 0 {
		return Message{}, utils.ValidationError("NewMessage", "message has no recipients", nil)
	}

	// An empty References header carries no threading information; treat it
	// the same as an absent one.
	refs := make([]string, 0, len(p.References))
	for _, ref := range p.References {
		if strings.TrimSpace(ref) != "" {
			refs = append(refs, ref)
		}
	}
	if len(refs) == 0 {
		refs = nil
	}

	return Message{
		ID:                p.ID,
		ExternalMessageID: p.ExternalMessageID,
		Subject:           p.Subject,
		From:              p.From,
		To:                p.To,
		Cc:                p.Cc,
		Bcc:               p.Bcc,
		Content:           p.Content,
		SentAt:            p.SentAt,
		Attachments:       p.Attachments,
		InReplyTo:         p.InReplyTo,
		References:        refs,
	}, nil
}

// Recipients returns to + cc + bcc.
func (m Message) Recipients() []EmailAddress {
	out := make([]EmailAddress, 0, len(m.To)+len(m.Cc)+len(m.Bcc))
	out = append(out, m.To...)
	out = append(out, m.Cc...)
	out = append(out, m.Bcc...)
	return out
}

// HasLabel reports whether the message carries the given label.
func (m Message) HasLabel(label string) bool {
	for _, l := range m.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// withRead returns a copy with the read flag set.
func (m Message) withRead(read bool) Message {
	m.IsRead = read
	return m
}

// withFlagged returns a copy with the flagged flag set.
func (m Message) withFlagged(flagged bool) Message {
	m.IsFlagged = flagged
	return m
}

// withLabel returns a copy with the label added. Labels stay sorted so that
// snapshots and replayed state serialize identically.
func (m Message) withLabel(label string) Message {
	labels := make([]string, 0, len(m.Labels)+1)
	labels = append(labels, m.Labels...)
	labels = append(labels, label)
	sort.Strings(labels)
	m.Labels = labels
	return m
}

// withoutLabel returns a copy with the label removed.
func (m Message) withoutLabel(label string) Message {
	labels := make([]string, 0, len(m.Labels))
	for _, l := range m.Labels {
		if l != label {
			labels = append(labels, l)
		}
	}
	if len(labels) == 0 {
		labels = nil
	}
	m.Labels = labels
	return m
}
