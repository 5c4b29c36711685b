package models

import "testing"

func TestNewSubjectRejectsBlank(t *testing.T) {
	for _, raw := range []string{"", "   ", "\t\n"} {
		if _, err := NewSubject(raw); err == nil {
			t.Errorf("NewSubject(%q): expected error", raw)
		}
	}
}

func TestSubjectNormalized(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"Project Kickoff", "Project Kickoff"},
		{"Re: Project Kickoff", "Project Kickoff"},
		{"RE: re: Project Kickoff", "Project Kickoff"},
		{"Fwd: Re: Project Kickoff", "Project Kickoff"},
		{"FW: budget", "budget"},
		{"  Re:   spaced out  ", "spaced out"},
		{"Regarding the launch", "Regarding the launch"}, // no token, just a prefix-looking word
	}

	for _, tt := range tests {
		subject, err := NewSubject(tt.raw)
		if err != nil {
			t.Fatalf("NewSubject(%q): %v", tt.raw, err)
		}
		if got := subject.Normalized(); got != tt.want {
			t.Errorf("Normalized(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestSubjectIsReplyIsForward(t *testing.T) {
	tests := []struct {
		raw       string
		isReply   bool
		isForward bool
	}{
		{"Project Kickoff", false, false},
		{"Re: Project Kickoff", true, false},
		{"re: lowercase", true, false},
		{"Fwd: minutes", false, true},
		{"FW: minutes", false, true},
		{"Reminder", false, false},
	}

	for _, tt := range tests {
		subject, err := NewSubject(tt.raw)
		if err != nil {
			t.Fatalf("NewSubject(%q): %v", tt.raw, err)
		}
		if got := subject.IsReply(); got != tt.isReply {
			t.Errorf("IsReply(%q) = %v, want %v", tt.raw, got, tt.isReply)
		}
		if got := subject.IsForward(); got != tt.isForward {
			t.Errorf("IsForward(%q) = %v, want %v", tt.raw, got, tt.isForward)
		}
	}
}

func TestSubjectEqualIgnoresCaseAndPrefixes(t *testing.T) {
	a, _ := NewSubject("Re: Project Kickoff")
	b, _ := NewSubject("project kickoff")
	if !a.Equal(b) {
		t.Errorf("expected %q to equal %q after normalization", a.Raw, b.Raw)
	}

	c, _ := NewSubject("Lunch plans")
	if a.Equal(c) {
		t.Errorf("expected %q not to equal %q", a.Raw, c.Raw)
	}
}
