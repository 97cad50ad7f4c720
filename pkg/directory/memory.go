package directory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/samber/lo"

	"github.com/NicolasHaas/gowhisper/pkg/model"
)

// MemoryStore keeps users and groups in maps. It mirrors SQLStore behavior
// for validation and error handling.
type MemoryStore struct {
	mu sync.RWMutex

	users  map[string]*model.User
	groups map[string]*model.Group
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:  make(map[string]*model.User),
		groups: make(map[string]*model.Group),
	}
}

// Close is a no-op for MemoryStore.
func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) CreateUser(u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.Username]; ok {
		return fmt.Errorf("store: create user %q: %w", u.Username, ErrExists)
	}
	s.users[u.Username] = model.NewUser(u.Username, u.Secret)
	return nil
}

func (s *MemoryStore) GetUser(username string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[username]
	if !ok {
		return nil, nil
	}
	return u.Clone(), nil
}

func (s *MemoryStore) ListUsers() ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := lo.MapToSlice(s.users, func(_ string, u *model.User) model.User {
		return *u.Clone()
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *MemoryStore) AddContact(username, contact string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok {
		return false, fmt.Errorf("store: add contact: unknown user %q", username)
	}
	if _, ok := s.users[contact]; !ok {
		return false, fmt.Errorf("store: add contact: unknown user %q", contact)
	}
	return u.AddContact(contact), nil
}

func (s *MemoryStore) CreateGroup(g *model.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[g.Name]; ok {
		return fmt.Errorf("store: create group %q: %w", g.Name, ErrExists)
	}
	for m := range g.Members {
		if _, ok := s.users[m]; !ok {
			return fmt.Errorf("store: create group %q: unknown member %q", g.Name, m)
		}
	}
	s.groups[g.Name] = g.Clone()
	return nil
}

func (s *MemoryStore) GetGroup(name string) (*model.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[name]
	if !ok {
		return nil, nil
	}
	return g.Clone(), nil
}

func (s *MemoryStore) ListGroups() ([]model.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := lo.MapToSlice(s.groups, func(_ string, g *model.Group) model.Group {
		return *g.Clone()
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) AddMember(group, username string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[group]
	if !ok {
		return false, fmt.Errorf("store: add member: unknown group %q", group)
	}
	if _, ok := s.users[username]; !ok {
		return false, fmt.Errorf("store: add member: unknown user %q", username)
	}
	return g.AddMember(username), nil
}
