package directory

import (
	"errors"

	"github.com/NicolasHaas/gowhisper/pkg/model"
)

// ErrExists is returned by Store when a user or group key is taken.
var ErrExists = errors.New("directory: already exists")

// Store holds users and groups. Implementations include the in-memory map
// store and an SQLite store opened on ":memory:"; neither outlives the
// process.
type Store interface {
	// Close releases the underlying storage.
	Close() error

	// ---- Users ----

	// CreateUser inserts u without contacts. Returns ErrExists if the username is taken.
	CreateUser(u *model.User) error

	// GetUser retrieves a user with its contacts. Returns (nil, nil) if not found.
	GetUser(username string) (*model.User, error)

	// ListUsers returns all users sorted by username.
	ListUsers() ([]model.User, error)

	// AddContact records contact in username's contact set and reports
	// whether it was new. Both users must exist.
	AddContact(username, contact string) (bool, error)

	// ---- Groups ----

	// CreateGroup inserts g with its members, who must all exist. Returns
	// ErrExists if the name is taken.
	CreateGroup(g *model.Group) error

	// GetGroup retrieves a group with its members. Returns (nil, nil) if not found.
	GetGroup(name string) (*model.Group, error)

	// ListGroups returns all groups sorted by name.
	ListGroups() ([]model.Group, error)

	// AddMember adds username to the group and reports whether it was new.
	AddMember(group, username string) (bool, error)
}
