package directory

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/NicolasHaas/gowhisper/pkg/model"
)

// SQLStore keeps users and groups in an SQLite database opened on ":memory:".
// The pool is pinned to one connection because every SQLite connection to
// ":memory:" sees its own database.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore opens a fresh in-memory database and runs migrations.
func NewSQLStore() (*SQLStore, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: enable FK: %w", err)
	}

	s := &SQLStore{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return s, nil
}

// Close closes the database; its contents are gone afterwards.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) migrate(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS users (
		username TEXT PRIMARY KEY CHECK(length(username) > 0 AND length(username) <= 32),
		secret   TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS contacts (
		username TEXT NOT NULL REFERENCES users(username),
		contact  TEXT NOT NULL REFERENCES users(username),
		PRIMARY KEY (username, contact)
	);

	CREATE TABLE IF NOT EXISTS chat_groups (
		name  TEXT PRIMARY KEY CHECK(length(name) > 0),
		owner TEXT NOT NULL REFERENCES users(username)
	);

	CREATE TABLE IF NOT EXISTS group_members (
		group_name TEXT NOT NULL REFERENCES chat_groups(name),
		username   TEXT NOT NULL REFERENCES users(username),
		PRIMARY KEY (group_name, username)
	);
	`
	if _, err := s.db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER NOT NULL)"); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	var version int
	err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_migrations LIMIT 1").Scan(&version)
	switch {
	case err == sql.ErrNoRows:
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (0)"); err != nil {
			return fmt.Errorf("init schema_migrations: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read schema version: %w", err)
	}

	migrations := []struct {
		version    int
		statements []string
	}{
		{version: 1, statements: []string{schema}},
	}
	for _, m := range migrations {
		if m.version <= version {
			continue
		}
		for _, stmt := range m.statements {
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("migration %d: %w", m.version, err)
			}
		}
		if _, err := s.db.ExecContext(ctx, "UPDATE schema_migrations SET version = ?", m.version); err != nil {
			return fmt.Errorf("update schema version: %w", err)
		}
	}
	return nil
}

// ---- Users ----

func (s *SQLStore) CreateUser(u *model.User) error {
	res, err := s.db.ExecContext(context.Background(),
		"INSERT INTO users (username, secret) VALUES (?, ?) ON CONFLICT(username) DO NOTHING",
		u.Username, u.Secret)
	if err != nil {
		return fmt.Errorf("store: create user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("store: create user %q: %w", u.Username, ErrExists)
	}
	return nil
}

func (s *SQLStore) GetUser(username string) (*model.User, error) {
	ctx := context.Background()
	var secret string
	err := s.db.QueryRowContext(ctx, "SELECT secret FROM users WHERE username = ?", username).Scan(&secret)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get user: %w", err)
	}

	u := model.NewUser(username, secret)
	contacts, err := s.column(ctx, "SELECT contact FROM contacts WHERE username = ?", username)
	if err != nil {
		return nil, fmt.Errorf("store: get contacts: %w", err)
	}
	for _, c := range contacts {
		u.Contacts[c] = true
	}
	return u, nil
}

func (s *SQLStore) ListUsers() ([]model.User, error) {
	names, err := s.column(context.Background(), "SELECT username FROM users ORDER BY username")
	if err != nil {
		return nil, fmt.Errorf("store: list users: %w", err)
	}
	out := make([]model.User, 0, len(names))
	for _, name := range names {
		u, err := s.GetUser(name)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, nil
}

func (s *SQLStore) AddContact(username, contact string) (bool, error) {
	res, err := s.db.ExecContext(context.Background(),
		"INSERT OR IGNORE INTO contacts (username, contact) VALUES (?, ?)", username, contact)
	if err != nil {
		return false, fmt.Errorf("store: add contact: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ---- Groups ----

func (s *SQLStore) CreateGroup(g *model.Group) error {
	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: create group: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO chat_groups (name, owner) VALUES (?, ?) ON CONFLICT(name) DO NOTHING",
		g.Name, g.Owner)
	if err != nil {
		return fmt.Errorf("store: create group: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("store: create group %q: %w", g.Name, ErrExists)
	}
	for m := range g.Members {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO group_members (group_name, username) VALUES (?, ?)", g.Name, m); err != nil {
			return fmt.Errorf("store: create group %q: member %q: %w", g.Name, m, err)
		}
	}
	return tx.Commit()
}

func (s *SQLStore) GetGroup(name string) (*model.Group, error) {
	ctx := context.Background()
	var owner string
	err := s.db.QueryRowContext(ctx, "SELECT owner FROM chat_groups WHERE name = ?", name).Scan(&owner)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get group: %w", err)
	}

	g := &model.Group{Name: name, Owner: owner, Members: make(map[string]bool)}
	members, err := s.column(ctx, "SELECT username FROM group_members WHERE group_name = ?", name)
	if err != nil {
		return nil, fmt.Errorf("store: get members: %w", err)
	}
	for _, m := range members {
		g.Members[m] = true
	}
	return g, nil
}

func (s *SQLStore) ListGroups() ([]model.Group, error) {
	names, err := s.column(context.Background(), "SELECT name FROM chat_groups ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("store: list groups: %w", err)
	}
	out := make([]model.Group, 0, len(names))
	for _, name := range names {
		g, err := s.GetGroup(name)
		if err != nil {
			return nil, err
		}
		out = append(out, *g)
	}
	return out, nil
}

func (s *SQLStore) AddMember(group, username string) (bool, error) {
	res, err := s.db.ExecContext(context.Background(),
		"INSERT OR IGNORE INTO group_members (group_name, username) VALUES (?, ?)", group, username)
	if err != nil {
		return false, fmt.Errorf("store: add member: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// column runs a single-column string query.
func (s *SQLStore) column(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
