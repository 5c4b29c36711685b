package models

import (
	"sort"
	"strings"
	"time"

	"threadmail/utils"
)

// Thread is the aggregate root for one email conversation. It exclusively
// owns its messages and is the only place thread or message state changes.
// Every successful mutation increments Version exactly once and buffers
// exactly one domain event; every failed mutation leaves the thread
// untouched and buffers nothing.
//
// A thread instance is not safe for concurrent mutation; callers serialize
// access per thread id (the storage layer's version check catches races
// between separately loaded copies).
type Thread struct {
	ID             string             `json:"id"`
	Subject        Subject            `json:"subject"`
	Messages       map[string]Message `json:"messages"`
	Participants   []string           `json:"participants"`
	IsArchived     bool               `json:"is_archived"`
	IsMuted        bool               `json:"is_muted"`
	LastActivityAt time.Time          `json:"last_activity_at"`
	Version        int                `json:"version"`

	pending []Event
}

// NewThread creates a thread from its founding message. The thread takes the
// founding message's subject and starts at version 1 with a ThreadCreated
// event buffered.
func NewThread(id string, founding Message) (*Thread, error) {
	const op = "NewThread"

	if strings.TrimSpace(id) == "" {
		return nil, utils.ValidationError(op, "thread id is empty", nil)
	}

	t := &Thread{
		ID:       id,
		Subject:  founding.Subject,
		Messages: map[string]Message{founding.ID: founding},
	}
	t.recomputeDerived()
	t.commit(EventThreadCreated, ThreadCreatedData{Message: founding})
	return t, nil
}

// AddMessage admits a message into the thread. The message must not already
// be present and must satisfy the threading matcher against the thread's
// current contents.
func (t *Thread) AddMessage(msg Message) error {
	const op = "Thread.AddMessage"

	if _, exists := t.Messages[msg.ID]; exists {
		return utils.InvariantError(op, "duplicate message "+msg.ID)
	}
	if !Matches(t, msg) {
		return utils.InvariantError(op, "message "+msg.ID+" is not part of thread "+t.ID)
	}

	t.Messages[msg.ID] = msg
	t.recomputeDerived()
	t.commit(EventMessageAdded, MessageAddedData{Message: msg})
	return nil
}

// RemoveMessage deletes a message from the thread. Removing the last
// remaining message is rejected; a thread never outlives its messages.
func (t *Thread) RemoveMessage(id string) error {
	const op = "Thread.RemoveMessage"

	if _, exists := t.Messages[id]; !exists {
		return utils.NotFoundError(op, "message "+id+" not in thread "+t.ID)
	}
	if len(t.Messages) == 1 {
		return utils.InvariantError(op, "cannot remove the last message of thread "+t.ID)
	}

	delete(t.Messages, id)
	t.recomputeDerived()
	t.commit(EventMessageRemoved, MessageRemovedData{MessageID: id})
	return nil
}

// MarkAllRead marks every unread message read. When nothing is unread it is
// a benign no-op: no error, no event, no version change.
func (t *Thread) MarkAllRead() error {
	var affected []string
	for id, msg := range t.Messages {
		if !msg.IsRead {
			affected = append(affected, id)
		}
	}
	if len(affected) == 0 {
		return nil
	}
	sort.Strings(affected)

	for _, id := range affected {
		t.Messages[id] = t.Messages[id].withRead(true)
	}
	t.commit(EventThreadMarkedRead, ThreadMarkedReadData{MessageIDs: affected})
	return nil
}

// Archive moves the thread out of the active view.
func (t *Thread) Archive() error {
	if t.IsArchived {
		return utils.InvariantError("Thread.Archive", "thread "+t.ID+" is already archived")
	}
	t.IsArchived = true
	t.commit(EventThreadArchived, nil)
	return nil
}

// Unarchive restores an archived thread.
func (t *Thread) Unarchive() error {
	if !t.IsArchived {
		return utils.InvariantError("Thread.Unarchive", "thread "+t.ID+" is not archived")
	}
	t.IsArchived = false
	t.commit(EventThreadUnarchived, nil)
	return nil
}

// Mute silences notifications for the thread.
func (t *Thread) Mute() error {
	if t.IsMuted {
		return utils.InvariantError("Thread.Mute", "thread "+t.ID+" is already muted")
	}
	t.IsMuted = true
	t.commit(EventThreadMuted, nil)
	return nil
}

// Unmute re-enables notifications for the thread.
func (t *Thread) Unmute() error {
	if !t.IsMuted {
		return utils.InvariantError("Thread.Unmute", "thread "+t.ID+" is not muted")
	}
	t.IsMuted = false
	t.commit(EventThreadUnmuted, nil)
	return nil
}

// MarkMessageRead marks a single message read.
func (t *Thread) MarkMessageRead(id string) error {
	const op = "Thread.MarkMessageRead"

	msg, exists := t.Messages[id]
	if !exists {
		return utils.NotFoundError(op, "message "+id+" not in thread "+t.ID)
	}
	if msg.IsRead {
		return utils.InvariantError(op, "message "+id+" is already read")
	}

	t.Messages[id] = msg.withRead(true)
	t.commit(EventMessageFlagRead, MessageFlagData{MessageID: id})
	return nil
}

// MarkMessageUnread marks a single message unread again.
func (t *Thread) MarkMessageUnread(id string) error {
	const op = "Thread.MarkMessageUnread"

	msg, exists := t.Messages[id]
	if !exists {
		return utils.NotFoundError(op, "message "+id+" not in thread "+t.ID)
	}
	if !msg.IsRead {
		return utils.InvariantError(op, "message "+id+" is already unread")
	}

	t.Messages[id] = msg.withRead(false)
	t.commit(EventMessageFlagUnread, MessageFlagData{MessageID: id})
	return nil
}

// FlagMessage flags a message for follow-up.
func (t *Thread) FlagMessage(id string) error {
	const op = "Thread.FlagMessage"

	msg, exists := t.Messages[id]
	if !exists {
		return utils.NotFoundError(op, "message "+id+" not in thread "+t.ID)
	}
	if msg.IsFlagged {
		return utils.InvariantError(op, "message "+id+" is already flagged")
	}

	t.Messages[id] = msg.withFlagged(true)
	t.commit(EventMessageFlagged, MessageFlagData{MessageID: id})
	return nil
}

// UnflagMessage clears a message's follow-up flag.
func (t *Thread) UnflagMessage(id string) error {
	const op = "Thread.UnflagMessage"

	msg, exists := t.Messages[id]
	if !exists {
		return utils.NotFoundError(op, "message "+id+" not in thread "+t.ID)
	}
	if !msg.IsFlagged {
		return utils.InvariantError(op, "message "+id+" is not flagged")
	}

	t.Messages[id] = msg.withFlagged(false)
	t.commit(EventMessageUnflagged, MessageFlagData{MessageID: id})
	return nil
}

// LabelMessage attaches a label to a message.
func (t *Thread) LabelMessage(id, label string) error {
	const op = "Thread.LabelMessage"

	if strings.TrimSpace(label) == "" {
		return utils.ValidationError(op, "label is empty", nil)
	}
	msg, exists := t.Messages[id]
	if !exists {
		return utils.NotFoundError(op, "message "+id+" not in thread "+t.ID)
	}
	if msg.HasLabel(label) {
		return utils.InvariantError(op, "message "+id+" already has label "+label)
	}

	t.Messages[id] = msg.withLabel(label)
	t.commit(EventMessageLabeled, MessageLabelData{MessageID: id, Label: label})
	return nil
}

// UnlabelMessage removes a label from a message.
func (t *Thread) UnlabelMessage(id, label string) error {
	const op = "Thread.UnlabelMessage"

	msg, exists := t.Messages[id]
	if !exists {
		return utils.NotFoundError(op, "message "+id+" not in thread "+t.ID)
	}
	if !msg.HasLabel(label) {
		return utils.InvariantError(op, "message "+id+" does not have label "+label)
	}

	t.Messages[id] = msg.withoutLabel(label)
	t.commit(EventMessageUnlabeled, MessageLabelData{MessageID: id, Label: label})
	return nil
}

// PendingEvents returns the events buffered since the last clear, in commit
// order. The storage layer appends them and clears the buffer on save.
func (t *Thread) PendingEvents() []Event {
	out := make([]Event, len(t.pending))
	copy(out, t.pending)
	return out
}

// ClearPendingEvents drops the buffered events after a successful save.
func (t *Thread) ClearPendingEvents() {
	t.pending = nil
}

// UnreadCount returns the number of unread messages.
func (t *Thread) UnreadCount() int {
	count := 0
	for _, msg := range t.Messages {
		if !msg.IsRead {
			count++
		}
	}
	return count
}

// HasAttachments reports whether any message carries an attachment.
func (t *Thread) HasAttachments() bool {
	for _, msg := range t.Messages {
		if len(msg.Attachments) > 0 {
			return true
		}
	}
	return false
}

// MessagesByDate returns the messages ordered by sent time, id as tie-break.
func (t *Thread) MessagesByDate() []Message {
	out := make([]Message, 0, len(t.Messages))
	for _, msg := range t.Messages {
		out = append(out, msg)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SentAt.Equal(out[j].SentAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].SentAt.Before(out[j].SentAt)
	})
	return out
}

// ExternalMessageIDs returns the external ids currently in the thread.
func (t *Thread) ExternalMessageIDs() []string {
	ids := make([]string, 0, len(t.Messages))
	for id := range t.externalIDs() {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// commit bumps the version and buffers the event for this mutation. Callers
// finish all checks and state changes before committing.
func (t *Thread) commit(name string, payload interface{}) {
	t.Version++
	t.pending = append(t.pending, newEvent(t.ID, t.Version, name, payload))
}

// recomputeDerived rebuilds participants and last activity from the message
// set. Participants are the union of sender and recipients across all
// messages; last activity is the newest sent time, so replayed threads land
// on identical values.
func (t *Thread) recomputeDerived() {
	seen := make(map[string]struct{})
	var last time.Time

	for _, msg := range t.Messages {
		seen[msg.From.Key()] = struct{}{}
		for _, addr := range msg.Recipients() {
			seen[addr.Key()] = struct{}{}
		}
		if msg.SentAt.After(last) {
			last = msg.SentAt
		}
	}

	participants := make([]string, 0, len(seen))
	for key := range seen {
		participants = append(participants, key)
	}
	sort.Strings(participants)

	t.Participants = participants
	t.LastActivityAt = last
}

// externalIDs returns the set of external message ids in the thread.
func (t *Thread) externalIDs() map[string]struct{} {
	out := make(map[string]struct{}, len(t.Messages))
	for _, msg := range t.Messages {
		out[msg.ExternalMessageID] = struct{}{}
	}
	return out
}
