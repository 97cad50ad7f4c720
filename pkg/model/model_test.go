package model

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"valid simple", "alice", nil},
		{"valid with numbers", "user123", nil},
		{"valid with underscore", "my_user", nil},
		{"valid with hyphen", "my-user", nil},
		{"valid max length", strings.Repeat("a", MaxUsernameLength), nil},
		{"empty", "", ErrUsernameEmpty},
		{"too long", strings.Repeat("a", MaxUsernameLength+1), ErrUsernameTooLong},
		{"contains space", "has space", ErrUsernameInvalidChars},
		{"contains dot", "user.name", ErrUsernameInvalidChars},
		{"unicode letter", "ñoño", ErrUsernameInvalidChars},
		{"newline", "user\nname", ErrUsernameInvalidChars},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.input)
			if err != tt.wantErr {
				t.Errorf("ValidateUsername(%q) = %v, want %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateGroupName(t *testing.T) {
	tests := []struct {
		input   string
		wantErr error
	}{
		{"friends", nil},
		{"team rocket", nil},
		{"", ErrGroupNameEmpty},
		{"   ", ErrGroupNameEmpty},
		{strings.Repeat("g", MaxGroupNameLength+1), ErrGroupNameTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if err := ValidateGroupName(tt.input); err != tt.wantErr {
				t.Errorf("ValidateGroupName(%q) = %v, want %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestStatusCodeValues(t *testing.T) {
	tests := []struct {
		code StatusCode
		want int32
		name string
		cat  Category
	}{
		{StatusSuccess, 0, "SUCCESS", CategorySuccess},
		{StatusIdentityNotConnected, 0xFF, "IDENTITY_NOT_CONNECTED", CategoryIdentity},
		{StatusIdentityAlreadyConnected, 0x100, "IDENTITY_ALREADY_CONNECTED", CategoryIdentity},
		{StatusUserAlreadyConnected, 0x1FF, "USER_ALREADY_CONNECTED", CategoryUser},
		{StatusUserNotConnected, 0x200, "USER_NOT_CONNECTED", CategoryUser},
		{StatusUserIncorrectToken, 0x205, "USER_INCORRECT_TOKEN", CategoryUser},
		{StatusGroupAlreadyExist, 0x2FF, "GROUP_ALREADY_EXIST", CategoryGroup},
		{StatusGroupMemberDoesNotExist, 0x302, "GROUP_MEMBER_DOES_NOT_EXIST", CategoryGroup},
		{StatusUnsupportedAction, 0x3FF, "UNSUPPORTED_ACTION", CategoryRequest},
		{StatusInternalError, 0x401, "INTERNAL_ERROR", CategoryRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if int32(tt.code) != tt.want {
				t.Errorf("%s = %#x, want %#x", tt.name, int32(tt.code), tt.want)
			}
			if got := tt.code.String(); got != tt.name {
				t.Errorf("String() = %q, want %q", got, tt.name)
			}
			if got := tt.code.Category(); got != tt.cat {
				t.Errorf("Category() = %d, want %d", got, tt.cat)
			}
		})
	}

	if StatusCode(42).Valid() {
		t.Errorf("StatusCode(42) should not be valid")
	}
	if StatusCode(42).String() != "UNKNOWN" {
		t.Errorf("StatusCode(42).String() = %q", StatusCode(42).String())
	}
}

func TestGroupMembership(t *testing.T) {
	g := NewGroup("g", "alice")
	if !g.IsMember("alice") {
		t.Fatalf("owner should be a member")
	}
	if !g.AddMember("bob") {
		t.Fatalf("AddMember(bob) should report a new member")
	}
	if g.AddMember("bob") {
		t.Fatalf("AddMember(bob) twice should report existing member")
	}
	if diff := cmp.Diff([]string{"alice", "bob"}, g.MemberList()); diff != "" {
		t.Errorf("MemberList mismatch (-want +got):\n%s", diff)
	}

	c := g.Clone()
	c.AddMember("carol")
	if g.IsMember("carol") {
		t.Errorf("Clone shares the member map")
	}
}

func TestSessionRemove(t *testing.T) {
	s := &Session{Username: "alice", Token: "t", Identities: []Identity{"a", "b", "c"}}
	if !s.Remove("b") {
		t.Fatalf("Remove(b) = false")
	}
	if s.Remove("b") {
		t.Fatalf("Remove(b) twice = true")
	}
	if diff := cmp.Diff([]Identity{"a", "c"}, s.Identities); diff != "" {
		t.Errorf("Identities mismatch (-want +got):\n%s", diff)
	}
	if !s.Has("c") || s.Has("b") {
		t.Errorf("Has reports wrong membership")
	}
}

func TestUserContacts(t *testing.T) {
	u := NewUser("alice", "pw")
	if !u.AddContact("bob") || u.AddContact("bob") {
		t.Fatalf("AddContact should insert once")
	}
	u.AddContact("aaron")
	if diff := cmp.Diff([]string{"aaron", "bob"}, u.ContactList()); diff != "" {
		t.Errorf("ContactList mismatch (-want +got):\n%s", diff)
	}
}
