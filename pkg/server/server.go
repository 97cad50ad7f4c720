// Package server implements the gowhisper server: the session registry, the
// request dispatcher and the single-threaded receive loop that drives them.
package server

import (
	"fmt"
	"log/slog"

	"github.com/NicolasHaas/gowhisper/pkg/directory"
	"github.com/NicolasHaas/gowhisper/pkg/transport"
)

// Directory backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Config holds server configuration.
type Config struct {
	ListenAddr    string // transport bind address (e.g. ":4242")
	Transport     string // "tls" or "ws"
	CertFile      string // TLS certificate file path
	KeyFile       string // TLS private key file path
	DataDir       string // directory for generated certs
	Backend       string // directory store: "memory" or "sqlite" (both in-memory)
	HashPasswords bool   // store argon2id hashes instead of plaintext passwords
	Strict        bool   // answer unknown or undecodable requests instead of dropping them
	SeedFile      string // YAML users and groups loaded on startup
	SeedDemo      bool   // register the demo accounts when no seed file is given
	MetricsAddr   string // HTTP bind address for /metrics endpoint (empty = disabled)

	// CLI-only action (run and exit)
	Export bool // print the seeded directory as YAML and exit
}

// Dependencies holds optional pre-built components. Zero fields are built
// from Config.
type Dependencies struct {
	Directory *directory.Directory
	Transport transport.Server
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ListenAddr:  ":4242",
		Transport:   transport.KindTLS,
		DataDir:     ".",
		Backend:     BackendMemory,
		SeedDemo:    true,
		MetricsAddr: ":4243",
	}
}

// Server owns the directory, registry and transport for one run.
type Server struct {
	cfg        Config
	dir        *directory.Directory
	registry   *Registry
	metrics    *Metrics
	tr         transport.Server
	dispatcher *Dispatcher
}

// New builds a server and seeds its directory.
func New(cfg Config, deps Dependencies) (*Server, error) {
	dir := deps.Directory
	if dir == nil {
		var err error
		if dir, err = OpenDirectory(cfg); err != nil {
			return nil, err
		}
		if err := Seed(dir, cfg); err != nil {
			_ = dir.Close()
			return nil, err
		}
	}

	reg := NewRegistry(dir)
	return &Server{
		cfg:      cfg,
		dir:      dir,
		registry: reg,
		metrics:  NewMetrics(reg),
		tr:       deps.Transport,
	}, nil
}

// OpenDirectory builds the directory selected by cfg.
func OpenDirectory(cfg Config) (*directory.Directory, error) {
	var verifier directory.CredentialVerifier = directory.Plaintext{}
	if cfg.HashPasswords {
		verifier = directory.Argon2id{}
	}

	switch cfg.Backend {
	case BackendMemory, "":
		return directory.New(directory.NewMemoryStore(), verifier), nil
	case BackendSQLite:
		st, err := directory.NewSQLStore()
		if err != nil {
			return nil, fmt.Errorf("server: open directory: %w", err)
		}
		return directory.New(st, verifier), nil
	}
	return nil, fmt.Errorf("server: unknown directory backend %q", cfg.Backend)
}

// Seed loads cfg.SeedFile, or the demo accounts when SeedDemo is set.
func Seed(dir *directory.Directory, cfg Config) error {
	var seed *directory.Seed
	switch {
	case cfg.SeedFile != "":
		var err error
		if seed, err = directory.LoadSeed(cfg.SeedFile); err != nil {
			return fmt.Errorf("server: %w", err)
		}
	case cfg.SeedDemo:
		seed = directory.DemoSeed()
		slog.Info("registering demo accounts")
	default:
		return nil
	}
	if err := dir.Import(seed); err != nil {
		return fmt.Errorf("server: import seed: %w", err)
	}
	return nil
}

// Directory returns the user and group directory.
func (s *Server) Directory() *directory.Directory {
	return s.dir
}

// Registry returns the session registry.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Metrics returns the server metrics.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}
