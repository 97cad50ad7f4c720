package model

import "slices"

// Identity is the transport-assigned address of one live connection.
type Identity string

// Session ties one or more identities to a logged-in user and a shared token
// (in-memory only).
type Session struct {
	Username   string
	Token      string
	Identities []Identity // login order, never empty while the session exists
}

// Has reports whether id belongs to the session.
func (s *Session) Has(id Identity) bool {
	return slices.Contains(s.Identities, id)
}

// Remove drops id and reports whether it was present.
func (s *Session) Remove(id Identity) bool {
	i := slices.Index(s.Identities, id)
	if i < 0 {
		return false
	}
	s.Identities = slices.Delete(s.Identities, i, i+1)
	return true
}
