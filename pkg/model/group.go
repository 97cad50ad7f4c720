package model

import (
	"errors"
	"sort"
	"strings"
	"unicode/utf8"
)

const MaxGroupNameLength = 64

var ErrGroupNameEmpty = errors.New("group name must not be empty")
var ErrGroupNameTooLong = errors.New("group name too long")

// Group is a named set of members. The owner is recorded at creation and
// carries no extra rights.
type Group struct {
	Name    string
	Owner   string
	Members map[string]bool
}

// NewGroup creates a group with the owner as its first member.
func NewGroup(name, owner string) *Group {
	g := &Group{
		Name:    name,
		Owner:   owner,
		Members: make(map[string]bool),
	}
	g.Members[owner] = true
	return g
}

// AddMember inserts username and reports whether it was new.
func (g *Group) AddMember(username string) bool {
	if g.Members == nil {
		g.Members = make(map[string]bool)
	}
	if g.Members[username] {
		return false
	}
	g.Members[username] = true
	return true
}

// IsMember reports whether username belongs to the group.
func (g *Group) IsMember(username string) bool {
	return g.Members[username]
}

// MemberList returns the members sorted by name.
func (g *Group) MemberList() []string {
	out := make([]string, 0, len(g.Members))
	for m := range g.Members {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Clone returns a deep copy of the group.
func (g *Group) Clone() *Group {
	c := &Group{Name: g.Name, Owner: g.Owner, Members: make(map[string]bool, len(g.Members))}
	for m := range g.Members {
		c.Members[m] = true
	}
	return c
}

// ValidateGroupName rejects blank names and names over MaxGroupNameLength runes.
func ValidateGroupName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrGroupNameEmpty
	} else if utf8.RuneCountInString(name) > MaxGroupNameLength {
		return ErrGroupNameTooLong
	}
	return nil
}
