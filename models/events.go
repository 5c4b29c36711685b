package models

import (
	"encoding/json"
	"time"

	"threadmail/utils"
)

// Event names, one per aggregate mutation.
const (
	EventThreadCreated     = "ThreadCreated"
	EventMessageAdded      = "MessageAdded"
	EventMessageRemoved    = "MessageRemoved"
	EventThreadMarkedRead  = "ThreadMarkedRead"
	EventThreadArchived    = "ThreadArchived"
	EventThreadUnarchived  = "ThreadUnarchived"
	EventThreadMuted       = "ThreadMuted"
	EventThreadUnmuted     = "ThreadUnmuted"
	EventMessageFlagRead   = "MessageFlagRead"
	EventMessageFlagUnread = "MessageFlagUnread"
	EventMessageFlagged    = "MessageFlagged"
	EventMessageUnflagged  = "MessageUnflagged"
	EventMessageLabeled    = "MessageLabeled"
	EventMessageUnlabeled  = "MessageUnlabeled"
)

// Event is one immutable entry in a thread's event log, keyed by
// (AggregateID, Version). Version matches the aggregate's post-mutation
// version, so the log for one thread is dense from 1 upward.
type Event struct {
	AggregateID string          `json:"aggregate_id"`
	Version     int             `json:"version"`
	Name        string          `json:"name"`
	OccurredAt  time.Time       `json:"occurred_at"`
	Data        json.RawMessage `json:"data,omitempty"`
}

// Event payloads. ThreadCreated and MessageAdded carry full message
// snapshots so the log alone can rebuild the aggregate.
type (
	ThreadCreatedData struct {
		Message Message `json:"message"`
	}

	MessageAddedData struct {
		Message Message `json:"message"`
	}

	MessageRemovedData struct {
		MessageID string `json:"message_id"`
	}

	ThreadMarkedReadData struct {
		MessageIDs []string `json:"message_ids"`
	}

	MessageFlagData struct {
		MessageID string `json:"message_id"`
	}

	MessageLabelData struct {
		MessageID string `json:"message_id"`
		Label     string `json:"label"`
	}
)

// newEvent builds an event envelope around a payload. Payloads are plain
// structs, so marshaling cannot fail.
func newEvent(aggregateID string, version int, name string, payload interface{}) Event {
	var data json.RawMessage
	if payload != nil {
		data, _ = json.Marshal(payload)
	}
	return Event{
		AggregateID: aggregateID,
		Version:     version,
		Name:        name,
		OccurredAt:  time.Now().UTC(),
		Data:        data,
	}
}

// ReplayThread rebuilds a thread by applying its ordered event log from
// version 1. The result carries the same observable state as the original
// sequence of mutations; the pending-event buffer comes back empty.
func ReplayThread(events []Event) (*Thread, error) {
	const op = "ReplayThread"

	if len(events) == 0 {
		return nil, utils.ValidationError(op, "empty event log", nil)
	}
	if events[0].Name != EventThreadCreated || events[0].Version != 1 {
		return nil, utils.ValidationError(op, "log does not start with ThreadCreated at version 1", nil)
	}

	var created ThreadCreatedData
	if err := json.Unmarshal(events[0].Data, &created); err != nil {
		return nil, utils.ValidationError(op, "bad ThreadCreated payload", err)
	}

	thread, err := NewThread(events[0].AggregateID, created.Message)
	if err != nil {
		return nil, err
	}

	for _, evt := range events[1:] {
		if evt.Version != thread.Version+1 {
			return nil, utils.ValidationError(op, "event log has a version gap", nil)
		}
		if err := applyEvent(thread, evt); err != nil {
			return nil, err
		}
	}

	thread.ClearPendingEvents()
	return thread, nil
}

// applyEvent replays one event through the corresponding mutation, so the
// aggregate's own rules stay the single source of state transitions.
func applyEvent(t *Thread, evt Event) error {
	const op = "ReplayThread"

	switch evt.Name {
	case EventMessageAdded:
		var d MessageAddedData
		if err := json.Unmarshal(evt.Data, &d); err != nil {
			return utils.ValidationError(op, "bad MessageAdded payload", err)
		}
		return t.AddMessage(d.Message)

	case EventMessageRemoved:
		var d MessageRemovedData
		if err := json.Unmarshal(evt.Data, &d); err != nil {
			return utils.ValidationError(op, "bad MessageRemoved payload", err)
		}
		return t.RemoveMessage(d.MessageID)

	case EventThreadMarkedRead:
		return t.MarkAllRead()

	case EventThreadArchived:
		return t.Archive()
	case EventThreadUnarchived:
		return t.Unarchive()
	case EventThreadMuted:
		return t.Mute()
	case EventThreadUnmuted:
		return t.Unmute()

	case EventMessageFlagRead, EventMessageFlagUnread, EventMessageFlagged, EventMessageUnflagged:
		var d MessageFlagData
		if err := json.Unmarshal(evt.Data, &d); err != nil {
			return utils.ValidationError(op, "bad message flag payload", err)
		}
		switch evt.Name {
		case EventMessageFlagRead:
			return t.MarkMessageRead(d.MessageID)
		case EventMessageFlagUnread:
			return t.MarkMessageUnread(d.MessageID)
		case EventMessageFlagged:
			return t.FlagMessage(d.MessageID)
		default:
			return t.UnflagMessage(d.MessageID)
		}

	case EventMessageLabeled, EventMessageUnlabeled:
		var d MessageLabelData
		if err := json.Unmarshal(evt.Data, &d); err != nil {
			return utils.ValidationError(op, "bad message label payload", err)
		}
		if evt.Name == EventMessageLabeled {
			return t.LabelMessage(d.MessageID, d.Label)
		}
		return t.UnlabelMessage(d.MessageID, d.Label)

	default:
		return utils.ValidationError(op, "unknown event "+evt.Name, nil)
	}
}
