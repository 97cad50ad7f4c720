package directory

import (
	"log/slog"

	"github.com/NicolasHaas/gowhisper/pkg/crypto"
)

// CredentialVerifier turns a password into the secret stored for a user and
// checks later login attempts against it.
type CredentialVerifier interface {
	Seal(password string) (string, error)
	Verify(secret, password string) bool
}

// Plaintext stores passwords verbatim and compares them exactly.
type Plaintext struct{}

func (Plaintext) Seal(password string) (string, error) { return password, nil }

func (Plaintext) Verify(secret, password string) bool { return secret == password }

// Argon2id stores an Argon2id hash of each password.
type Argon2id struct{}

func (Argon2id) Seal(password string) (string, error) {
	return crypto.HashPassword(password)
}

func (Argon2id) Verify(secret, password string) bool {
	ok, err := crypto.ComparePassword(password, secret)
	if err != nil {
		slog.Warn("stored secret is not an argon2id hash", "err", err)
		return false
	}
	return ok
}
