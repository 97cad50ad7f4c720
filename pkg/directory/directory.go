// Package directory is the registry of known users and groups. Every
// operation reports a model.StatusCode; the error return is reserved for
// storage failures.
package directory

import (
	"errors"
	"fmt"

	"github.com/NicolasHaas/gowhisper/pkg/model"
)

// Directory applies the user and group rules on top of a Store.
type Directory struct {
	store    Store
	verifier CredentialVerifier
}

// New returns a Directory over store. A nil verifier means Plaintext.
func New(store Store, verifier CredentialVerifier) *Directory {
	if verifier == nil {
		verifier = Plaintext{}
	}
	return &Directory{store: store, verifier: verifier}
}

// Close closes the backing store.
func (d *Directory) Close() error { return d.store.Close() }

// ---- Users ----

// Register creates a user.
func (d *Directory) Register(username, password string) (model.StatusCode, error) {
	if err := model.ValidateUsername(username); err != nil {
		return model.StatusUserInvalidName, nil
	}
	existing, err := d.store.GetUser(username)
	if err != nil {
		return model.StatusInternalError, err
	}
	if existing != nil {
		return model.StatusUserAlreadyExist, nil
	}

	secret, err := d.verifier.Seal(password)
	if err != nil {
		return model.StatusInternalError, fmt.Errorf("directory: seal password: %w", err)
	}
	if err := d.store.CreateUser(model.NewUser(username, secret)); err != nil {
		if errors.Is(err, ErrExists) {
			return model.StatusUserAlreadyExist, nil
		}
		return model.StatusInternalError, err
	}
	return model.StatusSuccess, nil
}

// Authenticate checks a username and password pair.
func (d *Directory) Authenticate(username, password string) (model.StatusCode, error) {
	u, err := d.store.GetUser(username)
	if err != nil {
		return model.StatusInternalError, err
	}
	if u == nil {
		return model.StatusUserDoesNotExist, nil
	}
	if !d.verifier.Verify(u.Secret, password) {
		return model.StatusUserWrongPassword, nil
	}
	return model.StatusSuccess, nil
}

// UserExists reports whether username is registered.
func (d *Directory) UserExists(username string) (bool, error) {
	u, err := d.store.GetUser(username)
	return u != nil, err
}

// AddContact adds contact to username's contact set. Adding a contact twice
// succeeds.
func (d *Directory) AddContact(username, contact string) (model.StatusCode, error) {
	for _, name := range []string{username, contact} {
		ok, err := d.UserExists(name)
		if err != nil {
			return model.StatusInternalError, err
		}
		if !ok {
			return model.StatusUserDoesNotExist, nil
		}
	}
	if _, err := d.store.AddContact(username, contact); err != nil {
		return model.StatusInternalError, err
	}
	return model.StatusSuccess, nil
}

// Contacts returns username's contacts sorted by name, or nil for an unknown user.
func (d *Directory) Contacts(username string) ([]string, error) {
	u, err := d.store.GetUser(username)
	if err != nil || u == nil {
		return nil, err
	}
	return u.ContactList(), nil
}

// ---- Groups ----

// CreateGroup creates a group with owner as its first member.
func (d *Directory) CreateGroup(name, owner string) (model.StatusCode, error) {
	if err := model.ValidateGroupName(name); err != nil {
		return model.StatusGroupInvalidName, nil
	}
	existing, err := d.store.GetGroup(name)
	if err != nil {
		return model.StatusInternalError, err
	}
	if existing != nil {
		return model.StatusGroupAlreadyExist, nil
	}
	if err := d.store.CreateGroup(model.NewGroup(name, owner)); err != nil {
		if errors.Is(err, ErrExists) {
			return model.StatusGroupAlreadyExist, nil
		}
		return model.StatusInternalError, err
	}
	return model.StatusSuccess, nil
}

// JoinGroup adds username to an existing group.
func (d *Directory) JoinGroup(name, username string) (model.StatusCode, error) {
	g, err := d.store.GetGroup(name)
	if err != nil {
		return model.StatusInternalError, err
	}
	if g == nil {
		return model.StatusGroupDoesNotExist, nil
	}
	if g.IsMember(username) {
		return model.StatusGroupMemberAlreadyExist, nil
	}
	if _, err := d.store.AddMember(name, username); err != nil {
		return model.StatusInternalError, err
	}
	return model.StatusSuccess, nil
}

// Group returns the named group, or nil if it does not exist.
func (d *Directory) Group(name string) (*model.Group, error) {
	return d.store.GetGroup(name)
}

// IsMember reports whether username belongs to the named group.
func (d *Directory) IsMember(name, username string) (bool, error) {
	g, err := d.store.GetGroup(name)
	if err != nil || g == nil {
		return false, err
	}
	return g.IsMember(username), nil
}
