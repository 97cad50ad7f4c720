package server

import (
	"crypto/subtle"
	"fmt"
	"slices"
	"sync"

	"github.com/NicolasHaas/gowhisper/pkg/crypto"
	"github.com/NicolasHaas/gowhisper/pkg/model"
)

// Authenticator checks login credentials. *directory.Directory satisfies it.
type Authenticator interface {
	Authenticate(username, password string) (model.StatusCode, error)
}

// Registry maps connection identities to logged-in users and owns their
// sessions. Only the dispatch loop mutates it; the lock lets metric readers
// take counts concurrently.
type Registry struct {
	mu       sync.RWMutex
	auth     Authenticator
	sessions map[string]*model.Session // username -> session
	users    map[model.Identity]string // identity -> username
	newToken func() (string, error)
}

// NewRegistry creates an empty registry that authenticates against auth.
func NewRegistry(auth Authenticator) *Registry {
	return &Registry{
		auth:     auth,
		sessions: make(map[string]*model.Session),
		users:    make(map[model.Identity]string),
		newToken: crypto.GenerateToken,
	}
}

// Login authenticates username on identity id. The first identity of a user
// creates a session with a fresh token; later identities join it and share
// the token.
func (r *Registry) Login(id model.Identity, username, password string) (model.StatusCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[id]; ok {
		return model.StatusIdentityAlreadyConnected, nil
	}
	status, err := r.auth.Authenticate(username, password)
	if err != nil || !status.OK() {
		return status, err
	}

	if sess, ok := r.sessions[username]; ok {
		sess.Identities = append(sess.Identities, id)
	} else {
		token, err := r.newToken()
		if err != nil {
			return model.StatusInternalError, fmt.Errorf("registry: login: %w", err)
		}
		r.sessions[username] = &model.Session{
			Username:   username,
			Token:      token,
			Identities: []model.Identity{id},
		}
	}
	r.users[id] = username
	return model.StatusSuccess, nil
}

// Logout removes identity id from username's session, destroying the session
// when id was its last identity.
func (r *Registry) Logout(id model.Identity, username string) model.StatusCode {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[id]; !ok {
		return model.StatusIdentityNotConnected
	}
	sess, ok := r.sessions[username]
	if !ok {
		return model.StatusUserNotConnected
	}
	if !sess.Has(id) {
		return model.StatusUserIncorrectIdentity
	}
	r.detach(sess, id)
	return model.StatusSuccess
}

// Drop forgets identity id after its connection closed. It returns the
// username id was logged in as, or "" if it had no session.
func (r *Registry) Drop(id model.Identity) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	username, ok := r.users[id]
	if !ok {
		return ""
	}
	if sess, ok := r.sessions[username]; ok {
		r.detach(sess, id)
	} else {
		delete(r.users, id)
	}
	return username
}

func (r *Registry) detach(sess *model.Session, id model.Identity) {
	sess.Remove(id)
	delete(r.users, id)
	if len(sess.Identities) == 0 {
		delete(r.sessions, sess.Username)
	}
}

// ValidateToken reports whether token is the live session token for username.
func (r *Registry) ValidateToken(username, token string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[username]
	return ok && subtle.ConstantTimeCompare([]byte(sess.Token), []byte(token)) == 1
}

// Authorize checks that username is connected and that token is its session
// token, in that order.
func (r *Registry) Authorize(username, token string) model.StatusCode {
	if !r.IsConnected(username) {
		return model.StatusUserNotConnected
	}
	if !r.ValidateToken(username, token) {
		return model.StatusUserIncorrectToken
	}
	return model.StatusSuccess
}

// IsConnected reports whether username has a session.
func (r *Registry) IsConnected(username string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[username]
	return ok
}

// IdentitiesOf returns a copy of username's identities in login order.
func (r *Registry) IdentitiesOf(username string) []model.Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if sess, ok := r.sessions[username]; ok {
		return slices.Clone(sess.Identities)
	}
	return nil
}

// Token returns username's session token, or "" if it has no session.
func (r *Registry) Token(username string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if sess, ok := r.sessions[username]; ok {
		return sess.Token
	}
	return ""
}

// UserOf returns the username identity id is logged in as.
func (r *Registry) UserOf(id model.Identity) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	return u, ok
}

// SessionCount returns the number of live sessions.
func (r *Registry) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// IdentityCount returns the number of logged-in identities.
func (r *Registry) IdentityCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}
