package storage

import (
	"testing"
	"time"

	bolt "go.etcd.io/bbolt"

	"threadmail/models"
	"threadmail/utils"
)

var testBase = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func testStore(t *testing.T) (*ThreadStore, *bolt.DB) {
	t.Helper()
	db, err := InitDB(t.TempDir())
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewThreadStore(db), db
}

func testMessage(t *testing.T, id, subjectRaw string, sentAt time.Time) models.Message {
	t.Helper()

	subject, err := models.NewSubject(subjectRaw)
	if err != nil {
		t.Fatalf("NewSubject: %v", err)
	}
	from, err := models.NewEmailAddress("alice@example.com", "Alice")
	if err != nil {
		t.Fatalf("NewEmailAddress: %v", err)
	}
	to, err := models.NewEmailAddress("bob@example.com", "")
	if err != nil {
		t.Fatalf("NewEmailAddress: %v", err)
	}
	content, err := models.NewContent("body of "+id, "")
	if err != nil {
		t.Fatalf("NewContent: %v", err)
	}

	msg, err := models.NewMessage(models.MessageParams{
		ID:                id,
		ExternalMessageID: "<" + id + "@example.com>",
		Subject:           subject,
		From:              from,
		To:                []models.EmailAddress{to},
		Content:           content,
		SentAt:            sentAt,
	})
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	return msg
}

func testThread(t *testing.T, id, subjectRaw string) *models.Thread {
	t.Helper()
	thread, err := models.NewThread(id, testMessage(t, id+"-m1", subjectRaw, testBase))
	if err != nil {
		t.Fatalf("NewThread: %v", err)
	}
	return thread
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	store, _ := testStore(t)

	thread := testThread(t, "t1", "Project Kickoff")
	if err := store.Save(thread, 0); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(thread.PendingEvents()) != 0 {
		t.Error("save must clear the pending buffer")
	}

	loaded, err := store.Load("t1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Version != 1 || len(loaded.Messages) != 1 {
		t.Errorf("loaded version=%d messages=%d", loaded.Version, len(loaded.Messages))
	}
	if loaded.Subject.Raw != "Project Kickoff" {
		t.Errorf("loaded subject = %q", loaded.Subject.Raw)
	}

	if _, err := store.Load("missing"); !utils.IsKind(err, utils.KindNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestSaveDetectsConcurrentWriter(t *testing.T) {
	store, _ := testStore(t)

	thread := testThread(t, "t1", "Project Kickoff")
	if err := store.Save(thread, 0); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Two readers load version 1 and mutate independently.
	first, err := store.Load("t1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	second, err := store.Load("t1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if err := first.Archive(); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if err := store.Save(first, 1); err != nil {
		t.Fatalf("first save: %v", err)
	}

	if err := second.Mute(); err != nil {
		t.Fatalf("Mute: %v", err)
	}
	if err := store.Save(second, 1); !utils.IsKind(err, utils.KindConflict) {
		t.Fatalf("expected conflict error, got %v", err)
	}

	// A brand-new thread save races an existing id the same way.
	dup := testThread(t, "t1", "Project Kickoff")
	if err := store.Save(dup, 0); !utils.IsKind(err, utils.KindConflict) {
		t.Fatalf("expected conflict error for reused id, got %v", err)
	}
}

func TestEventsAreOrderedAndAppendOnly(t *testing.T) {
	store, _ := testStore(t)

	thread := testThread(t, "t1", "Project Kickoff")
	if err := store.Save(thread, 0); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, _ := store.Load("t1")
	if err := loaded.Archive(); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if err := loaded.Mute(); err != nil {
		t.Fatalf("Mute: %v", err)
	}
	if err := store.Save(loaded, 1); err != nil {
		t.Fatalf("Save: %v", err)
	}

	events, err := store.Events("t1")
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("event count = %d, want 3", len(events))
	}
	for i, evt := range events {
		if evt.Version != i+1 {
			t.Errorf("event %d has version %d", i, evt.Version)
		}
	}

	// The stored log replays back into the saved state.
	replayed, err := models.ReplayThread(events)
	if err != nil {
		t.Fatalf("ReplayThread: %v", err)
	}
	if !replayed.IsArchived || !replayed.IsMuted || replayed.Version != 3 {
		t.Errorf("replayed state archived=%v muted=%v version=%d",
			replayed.IsArchived, replayed.IsMuted, replayed.Version)
	}
}

func TestCandidates(t *testing.T) {
	store, _ := testStore(t)

	kickoff := testThread(t, "t1", "Project Kickoff")
	lunch := testThread(t, "t2", "Lunch plans")
	if err := store.Save(kickoff, 0); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Save(lunch, 0); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Subject index hit.
	ids, err := store.Candidates("project kickoff", nil, "")
	if err != nil {
		t.Fatalf("Candidates: %v", err)
	}
	if len(ids) != 1 || ids[0] != "t1" {
		t.Errorf("subject candidates = %v", ids)
	}

	// Message-id index hit via references.
	ids, err = store.Candidates("", []string{"<t2-m1@example.com>"}, "")
	if err != nil {
		t.Fatalf("Candidates: %v", err)
	}
	if len(ids) != 1 || ids[0] != "t2" {
		t.Errorf("reference candidates = %v", ids)
	}

	// In-reply-to and subject hits on different threads merge, sorted.
	ids, err = store.Candidates("lunch plans", nil, "<t1-m1@example.com>")
	if err != nil {
		t.Fatalf("Candidates: %v", err)
	}
	if len(ids) != 2 || ids[0] != "t1" || ids[1] != "t2" {
		t.Errorf("merged candidates = %v", ids)
	}

	ids, err = store.Candidates("no such subject", []string{"<nobody@example.com>"}, "")
	if err != nil {
		t.Fatalf("Candidates: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("expected no candidates, got %v", ids)
	}
}

func TestIndexFollowsMessageRemoval(t *testing.T) {
	store, _ := testStore(t)

	thread := testThread(t, "t1", "Project Kickoff")
	reply := testMessage(t, "m2", "Re: Project Kickoff", testBase.Add(time.Hour))
	if err := thread.AddMessage(reply); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	if err := store.Save(thread, 0); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, _ := store.Load("t1")
	if err := loaded.RemoveMessage("m2"); err != nil {
		t.Fatalf("RemoveMessage: %v", err)
	}
	if err := store.Save(loaded, 2); err != nil {
		t.Fatalf("Save: %v", err)
	}

	ids, err := store.Candidates("", []string{"<m2@example.com>"}, "")
	if err != nil {
		t.Fatalf("Candidates: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("stale index entry survived removal: %v", ids)
	}
}

func TestDeleteRemovesEverything(t *testing.T) {
	store, _ := testStore(t)

	thread := testThread(t, "t1", "Project Kickoff")
	if err := store.Save(thread, 0); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := store.Delete("t1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := store.Load("t1"); !utils.IsKind(err, utils.KindNotFound) {
		t.Fatalf("expected not-found after delete, got %v", err)
	}
	events, err := store.Events("t1")
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("event log survived delete: %d entries", len(events))
	}
	ids, _ := store.Candidates("project kickoff", []string{"<t1-m1@example.com>"}, "")
	if len(ids) != 0 {
		t.Errorf("index entries survived delete: %v", ids)
	}

	if err := store.Delete("t1"); !utils.IsKind(err, utils.KindNotFound) {
		t.Fatalf("expected not-found for second delete, got %v", err)
	}
}

func TestPurgeInactiveBefore(t *testing.T) {
	store, _ := testStore(t)

	// Archived and idle: purged.
	old := testThread(t, "t1", "Project Kickoff")
	if err := old.Archive(); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if err := store.Save(old, 0); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Active threads stay regardless of age.
	active := testThread(t, "t2", "Lunch plans")
	if err := store.Save(active, 0); err != nil {
		t.Fatalf("Save: %v", err)
	}

	purged, err := store.PurgeInactiveBefore(testBase.Add(24 * time.Hour))
	if err != nil {
		t.Fatalf("PurgeInactiveBefore: %v", err)
	}
	if purged != 1 {
		t.Errorf("purged = %d, want 1", purged)
	}

	if _, err := store.Load("t1"); !utils.IsKind(err, utils.KindNotFound) {
		t.Error("archived idle thread should be gone")
	}
	if _, err := store.Load("t2"); err != nil {
		t.Errorf("active thread should survive: %v", err)
	}
}
