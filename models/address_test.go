package models

import "testing"

func TestNewEmailAddressValidation(t *testing.T) {
	tests := []struct {
		address string
		wantErr bool
	}{
		{"alice@example.com", false},
		{"Alice.Surname+tag@sub.example.co", false},
		{"", true},
		{"   ", true},
		{"not-an-address", true},
		{"missing@", true},
	}

	for _, tt := range tests {
		_, err := NewEmailAddress(tt.address, "")
		if (err != nil) != tt.wantErr {
			t.Errorf("NewEmailAddress(%q) error = %v, wantErr %v", tt.address, err, tt.wantErr)
		}
	}
}

func TestEmailAddressEqualIsCaseInsensitive(t *testing.T) {
	a, _ := NewEmailAddress("Alice@Example.com", "Alice")
	b, _ := NewEmailAddress("alice@example.com", "Someone Else Entirely")

	if !a.Equal(b) {
		t.Errorf("expected %q to equal %q", a.Address, b.Address)
	}

	c, _ := NewEmailAddress("carol@example.com", "Alice")
	if a.Equal(c) {
		t.Errorf("display name must not make %q equal %q", a.Address, c.Address)
	}
}

func TestEmailAddressString(t *testing.T) {
	plain, _ := NewEmailAddress("alice@example.com", "")
	if got := plain.String(); got != "alice@example.com" {
		t.Errorf("String() = %q", got)
	}

	named, _ := NewEmailAddress("alice@example.com", "Alice")
	if got := named.String(); got != "Alice <alice@example.com>" {
		t.Errorf("String() = %q", got)
	}
}
