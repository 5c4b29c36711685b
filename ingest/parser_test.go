package ingest

import (
	"strings"
	"testing"
	"time"

	"threadmail/utils"
)

const simpleRaw = "From: Alice <alice@example.com>\r\n" +
	"To: Bob <bob@example.com>\r\n" +
	"Cc: carol@example.com\r\n" +
	"Subject: Project Kickoff\r\n" +
	"Message-Id: <m1@example.com>\r\n" +
	"Date: Sat, 14 Mar 2026 09:30:00 +0000\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Let's get started.\r\n"

const replyRaw = "From: Bob <bob@example.com>\r\n" +
	"To: Alice <alice@example.com>\r\n" +
	"Subject: Re: Project Kickoff\r\n" +
	"Message-Id: <m2@example.com>\r\n" +
	"In-Reply-To: <m1@example.com>\r\n" +
	"References: <m1@example.com>\r\n" +
	"Date: Sat, 14 Mar 2026 10:30:00 +0000\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"On it.\r\n"

const multipartRaw = "From: Alice <alice@example.com>\r\n" +
	"To: Bob <bob@example.com>\r\n" +
	"Subject: Specs attached\r\n" +
	"Message-Id: <m3@example.com>\r\n" +
	"Date: Sat, 14 Mar 2026 11:00:00 +0000\r\n" +
	"Content-Type: multipart/mixed; boundary=BOUNDARY\r\n" +
	"\r\n" +
	"--BOUNDARY\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"See attachment.\r\n" +
	"--BOUNDARY\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<p>See <strong>attachment</strong>.</p>\r\n" +
	"--BOUNDARY\r\n" +
	"Content-Type: application/pdf\r\n" +
	"Content-Disposition: attachment; filename=\"specs.pdf\"\r\n" +
	"\r\n" +
	"%PDF-1.4 fake\r\n" +
	"--BOUNDARY--\r\n"

func TestParseSimpleMessage(t *testing.T) {
	msg, err := ParseMessage([]byte(simpleRaw))
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}

	if msg.ExternalMessageID != "m1@example.com" {
		t.Errorf("external id = %q", msg.ExternalMessageID)
	}
	if msg.Subject.Raw != "Project Kickoff" {
		t.Errorf("subject = %q", msg.Subject.Raw)
	}
	if msg.From.Address != "alice@example.com" || msg.From.DisplayName != "Alice" {
		t.Errorf("from = %+v", msg.From)
	}
	if len(msg.To) != 1 || msg.To[0].Address != "bob@example.com" {
		t.Errorf("to = %+v", msg.To)
	}
	if len(msg.Cc) != 1 || msg.Cc[0].Address != "carol@example.com" {
		t.Errorf("cc = %+v", msg.Cc)
	}
	if !strings.Contains(msg.Content.PlainText, "Let's get started.") {
		t.Errorf("plain text = %q", msg.Content.PlainText)
	}
	want := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	if !msg.SentAt.Equal(want) {
		t.Errorf("sent at = %v, want %v", msg.SentAt, want)
	}
	if msg.ID == "" {
		t.Error("parser must assign an internal id")
	}
	if msg.IsRead || msg.IsFlagged || len(msg.Labels) != 0 {
		t.Error("parsed message must start with clean flags")
	}
}

func TestParseReplyHeaders(t *testing.T) {
	msg, err := ParseMessage([]byte(replyRaw))
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}

	if msg.InReplyTo != "m1@example.com" {
		t.Errorf("in-reply-to = %q", msg.InReplyTo)
	}
	if len(msg.References) != 1 || msg.References[0] != "m1@example.com" {
		t.Errorf("references = %v", msg.References)
	}
	if !msg.Subject.IsReply() {
		t.Error("subject should read as a reply")
	}
}

func TestParseMultipartWithAttachment(t *testing.T) {
	msg, err := ParseMessage([]byte(multipartRaw))
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}

	if !strings.Contains(msg.Content.PlainText, "See attachment.") {
		t.Errorf("plain text = %q", msg.Content.PlainText)
	}
	if !strings.Contains(msg.Content.HTML, "<strong>attachment</strong>") {
		t.Errorf("html = %q", msg.Content.HTML)
	}
	if len(msg.Attachments) != 1 {
		t.Fatalf("attachment count = %d", len(msg.Attachments))
	}
	att := msg.Attachments[0]
	if att.Filename != "specs.pdf" || att.IsInline {
		t.Errorf("attachment = %+v", att)
	}
	if att.SizeBytes <= 0 {
		t.Errorf("attachment size = %d", att.SizeBytes)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	tests := []string{
		"",
		"From: broken\r\n\r\nno valid headers",
		// Missing To header.
		"From: alice@example.com\r\nSubject: Hi\r\n\r\nbody\r\n",
	}
	for _, raw := range tests {
		if _, err := ParseMessage([]byte(raw)); !utils.IsKind(err, utils.KindValidation) {
			t.Errorf("ParseMessage(%q): expected validation error, got %v", raw, err)
		}
	}
}
