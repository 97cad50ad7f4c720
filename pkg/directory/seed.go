package directory

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/NicolasHaas/gowhisper/pkg/model"
)

// SeedUser is a user entry in a seed file.
type SeedUser struct {
	Username string   `yaml:"username"`
	Password string   `yaml:"password,omitempty"`
	Contacts []string `yaml:"contacts,omitempty"`
}

// SeedGroup is a group entry in a seed file.
type SeedGroup struct {
	Name    string   `yaml:"name"`
	Owner   string   `yaml:"owner"`
	Members []string `yaml:"members,omitempty"`
}

// Seed is the top-level YAML document used to preload a directory at startup
// and produced by ExportYAML.
type Seed struct {
	Users  []SeedUser  `yaml:"users"`
	Groups []SeedGroup `yaml:"groups,omitempty"`
}

// DemoSeed returns the two demo accounts the server ships with.
func DemoSeed() *Seed {
	return &Seed{Users: []SeedUser{
		{Username: "edoren", Password: "123"},
		{Username: "pepe", Password: "123"},
	}}
}

// LoadSeed reads a seed YAML file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path from user-provided CLI config
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed parses seed YAML.
func ParseSeed(data []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	return &seed, nil
}

// Import registers the seed's users, then their contacts, then groups and
// members. Entries that already exist or break a rule are logged and skipped.
func (d *Directory) Import(seed *Seed) error {
	imported := 0
	for _, u := range seed.Users {
		status, err := d.Register(u.Username, u.Password)
		if err != nil {
			return fmt.Errorf("seed user %q: %w", u.Username, err)
		}
		if !status.OK() {
			slog.Warn("skipped seed user", "username", u.Username, "status", status)
			continue
		}
		imported++
	}

	for _, u := range seed.Users {
		for _, c := range u.Contacts {
			status, err := d.AddContact(u.Username, c)
			if err != nil {
				return fmt.Errorf("seed contact %q -> %q: %w", u.Username, c, err)
			}
			if !status.OK() {
				slog.Warn("skipped seed contact", "username", u.Username, "contact", c, "status", status)
			}
		}
	}

	groups := 0
	for _, g := range seed.Groups {
		ok, err := d.UserExists(g.Owner)
		if err != nil {
			return fmt.Errorf("seed group %q: %w", g.Name, err)
		}
		if !ok {
			slog.Warn("skipped seed group", "group", g.Name, "owner", g.Owner, "status", model.StatusUserDoesNotExist)
			continue
		}
		status, err := d.CreateGroup(g.Name, g.Owner)
		if err != nil {
			return fmt.Errorf("seed group %q: %w", g.Name, err)
		}
		if !status.OK() {
			slog.Warn("skipped seed group", "group", g.Name, "status", status)
			continue
		}
		for _, m := range lo.Without(lo.Uniq(g.Members), g.Owner) {
			ok, err := d.UserExists(m)
			if err != nil {
				return fmt.Errorf("seed member %q: %w", m, err)
			}
			if !ok {
				slog.Warn("skipped seed member", "group", g.Name, "username", m, "status", model.StatusUserDoesNotExist)
				continue
			}
			if _, err := d.JoinGroup(g.Name, m); err != nil {
				return fmt.Errorf("seed member %q: %w", m, err)
			}
		}
		groups++
	}

	slog.Info("imported seed", "users", imported, "groups", groups)
	return nil
}

// ExportYAML dumps users (without secrets) and groups as a seed document.
func (d *Directory) ExportYAML() ([]byte, error) {
	users, err := d.store.ListUsers()
	if err != nil {
		return nil, err
	}
	groups, err := d.store.ListGroups()
	if err != nil {
		return nil, err
	}

	seed := Seed{
		Users: lo.Map(users, func(u model.User, _ int) SeedUser {
			return SeedUser{Username: u.Username, Contacts: u.ContactList()}
		}),
		Groups: lo.Map(groups, func(g model.Group, _ int) SeedGroup {
			return SeedGroup{Name: g.Name, Owner: g.Owner, Members: g.MemberList()}
		}),
	}
	return yaml.Marshal(&seed)
}
