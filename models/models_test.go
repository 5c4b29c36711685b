package models

import (
	"testing"
	"time"
)

// Shared test fixtures for the models package.

var testBase = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func testAddress(t *testing.T, address string) EmailAddress {
	t.Helper()
	addr, err := NewEmailAddress(address, "")
	if err != nil {
		t.Fatalf("NewEmailAddress(%q): %v", address, err)
	}
	return addr
}

func testSubject(t *testing.T, raw string) Subject {
	t.Helper()
	subject, err := NewSubject(raw)
	if err != nil {
		t.Fatalf("NewSubject(%q): %v", raw, err)
	}
	return subject
}

func testContent(t *testing.T, plain string) Content {
	t.Helper()
	content, err := NewContent(plain, "")
	if err != nil {
		t.Fatalf("NewContent(%q): %v", plain, err)
	}
	return content
}

type msgOpt func(*MessageParams)

func withInReplyTo(ext string) msgOpt {
	return func(p *MessageParams) { p.InReplyTo = ext }
}

func withReferences(refs ...string) msgOpt {
	return func(p *MessageParams) { p.References = refs }
}

func withSentAt(at time.Time) msgOpt {
	return func(p *MessageParams) { p.SentAt = at }
}

func withRecipients(to ...string) msgOpt {
	return func(p *MessageParams) {
		p.To = nil
		for _, addr := range to {
			p.To = append(p.To, EmailAddress{Address: addr})
		}
	}
}

func testMessage(t *testing.T, id, subjectRaw string, opts ...msgOpt) Message {
	t.Helper()

	params := MessageParams{
		ID:                id,
		ExternalMessageID: "<" + id + "@example.com>",
		Subject:           testSubject(t, subjectRaw),
		From:              testAddress(t, "alice@example.com"),
		To:                []EmailAddress{testAddress(t, "bob@example.com")},
		Content:           testContent(t, "body of "+id),
		SentAt:            testBase,
	}
	for _, opt := range opts {
		opt(&params)
	}

	msg, err := NewMessage(params)
	if err != nil {
		t.Fatalf("NewMessage(%s): %v", id, err)
	}
	return msg
}

func testThread(t *testing.T, subjectRaw string) *Thread {
	t.Helper()
	thread, err := NewThread("thread-1", testMessage(t, "m1", subjectRaw))
	if err != nil {
		t.Fatalf("NewThread: %v", err)
	}
	return thread
}
