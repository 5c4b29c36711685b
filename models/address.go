package models

import (
	"net/mail"
	"strings"

	"threadmail/utils"
)

// EmailAddress is an immutable email address with an optional display name.
// Two addresses are equal when their address parts match case-insensitively;
// the display name never participates in equality.
type EmailAddress struct {
	Address     string `json:"address"`
	DisplayName string `json:"display_name,omitempty"`
}

// NewEmailAddress validates and builds an EmailAddress.
func NewEmailAddress(address, displayName string) (EmailAddress, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return EmailAddress{}, utils.ValidationError("NewEmailAddress", "address is empty", nil)
	}

	parsed, err := mail.ParseAddress(address)
	if err != nil {
		return EmailAddress{}, utils.ValidationError("NewEmailAddress", "invalid email syntax: "+address, err)
	}

	return EmailAddress{
		Address:     parsed.Address,
		DisplayName: strings.TrimSpace(displayName),
	}, nil
}

// Equal reports whether two addresses refer to the same mailbox.
func (a EmailAddress) Equal(other EmailAddress) bool {
	return a.Key() == other.Key()
}

// Key returns the canonical lowercased address, used for participant sets.
func (a EmailAddress) Key() string {
	return strings.ToLower(a.Address)
}

// String renders the address in RFC 5322 style.
func (a EmailAddress) String() string {
	if a.DisplayName == "" {
		return a.Address
	}
	return a.DisplayName + " <" + a.Address + ">"
}
