package models

import "testing"

func TestMatchesOnNormalizedSubject(t *testing.T) {
	thread := testThread(t, "Project Kickoff")

	reply := testMessage(t, "m2", "Re: Project Kickoff")
	if !Matches(thread, reply) {
		t.Error("expected subject match for Re: variant")
	}

	retitled := testMessage(t, "m3", "Lunch plans")
	if Matches(thread, retitled) {
		t.Error("unrelated subject with no header links must not match")
	}
}

func TestMatchesOnReferences(t *testing.T) {
	thread := testThread(t, "Project Kickoff")

	linked := testMessage(t, "m2", "Completely different title",
		withReferences("<unrelated@example.com>", "<m1@example.com>"))
	if !Matches(thread, linked) {
		t.Error("expected references match against contained external id")
	}

	unlinked := testMessage(t, "m3", "Completely different title",
		withReferences("<unrelated@example.com>"))
	if Matches(thread, unlinked) {
		t.Error("references pointing elsewhere must not match")
	}
}

func TestMatchesOnInReplyTo(t *testing.T) {
	thread := testThread(t, "Project Kickoff")

	reply := testMessage(t, "m2", "totally retitled", withInReplyTo("<m1@example.com>"))
	if !Matches(thread, reply) {
		t.Error("expected in-reply-to match")
	}

	stranger := testMessage(t, "m3", "totally retitled", withInReplyTo("<nobody@example.com>"))
	if Matches(thread, stranger) {
		t.Error("in-reply-to pointing elsewhere must not match")
	}
}

func TestMatchesIsPure(t *testing.T) {
	thread := testThread(t, "Project Kickoff")
	candidate := testMessage(t, "m2", "Re: Project Kickoff")

	first := Matches(thread, candidate)
	for i := 0; i < 10; i++ {
		if Matches(thread, candidate) != first {
			t.Fatal("Matches changed its answer for identical inputs")
		}
	}
	if len(thread.PendingEvents()) != 1 {
		t.Error("Matches must not touch the thread")
	}
}
