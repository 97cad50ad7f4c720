// Package model defines the core domain types for gowhisper.
package model

import (
	"errors"
	"fmt"
	"sort"
)

const MaxUsernameLength = 32

var ErrUsernameEmpty = errors.New("username must not be empty")
var ErrUsernameTooLong = fmt.Errorf("username must not exceed %d characters", MaxUsernameLength)
var ErrUsernameInvalidChars = errors.New("username must contain only alphanumeric characters, underscores, or hyphens")

// User represents a registered account.
type User struct {
	Username string          `yaml:"username"`
	Secret   string          `yaml:"-"` // password verbatim or a sealed hash, see directory.CredentialVerifier
	Contacts map[string]bool `yaml:"-"`
}

// NewUser returns a user with an empty contact set.
func NewUser(username, secret string) *User {
	return &User{
		Username: username,
		Secret:   secret,
		Contacts: make(map[string]bool),
	}
}

// AddContact inserts contact and reports whether it was new.
func (u *User) AddContact(contact string) bool {
	if u.Contacts == nil {
		u.Contacts = make(map[string]bool)
	}
	if u.Contacts[contact] {
		return false
	}
	u.Contacts[contact] = true
	return true
}

// ContactList returns the contacts sorted by name.
func (u *User) ContactList() []string {
	out := make([]string, 0, len(u.Contacts))
	for c := range u.Contacts {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Clone returns a deep copy so callers never share the contact map.
func (u *User) Clone() *User {
	c := NewUser(u.Username, u.Secret)
	for k := range u.Contacts {
		c.Contacts[k] = true
	}
	return c
}

// ValidateUsername checks that a username is 1-32 ASCII alphanumeric, underscore,
// or hyphen characters. Returns nil on success or a descriptive error.
func ValidateUsername(name string) error {
	if len(name) == 0 {
		return ErrUsernameEmpty
	}
	if len(name) > MaxUsernameLength {
		return ErrUsernameTooLong
	}
	for _, r := range name {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '_' && r != '-' {
			return ErrUsernameInvalidChars
		}
	}
	return nil
}
