package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/NicolasHaas/gowhisper/pkg/logging"
	"github.com/NicolasHaas/gowhisper/pkg/server"
	"github.com/NicolasHaas/gowhisper/pkg/version"
)

func main() {
	cfg := server.DefaultConfig()
	logOpts := logging.FromEnv("GOWHISPER")

	flag.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "Bind address for client connections")
	flag.StringVar(&cfg.Transport, "transport", cfg.Transport, "Client transport: tls or ws")
	flag.StringVar(&cfg.CertFile, "cert", "", "TLS certificate file (auto-generated if empty)")
	flag.StringVar(&cfg.KeyFile, "key", "", "TLS private key file (auto-generated if empty)")
	flag.StringVar(&cfg.DataDir, "data", cfg.DataDir, "Data directory for generated files")
	flag.StringVar(&cfg.Backend, "directory", cfg.Backend, "Directory store: memory or sqlite (both in-memory)")
	flag.BoolVar(&cfg.HashPasswords, "hash-passwords", false, "Store argon2id password hashes instead of plaintext")
	flag.BoolVar(&cfg.Strict, "strict", false, "Answer unknown or undecodable requests with a status instead of dropping them")
	flag.StringVar(&cfg.SeedFile, "seed", "", "YAML file of users and groups to create on startup")
	flag.BoolVar(&cfg.SeedDemo, "demo", cfg.SeedDemo, "Register the demo accounts when no seed file is given")
	flag.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "HTTP bind address for Prometheus /metrics (empty to disable)")
	flag.BoolVar(&cfg.Export, "export", false, "Print the seeded directory as YAML and exit")

	logLevel := flag.String("log-level", logOpts.Level, "Log level: "+logging.LevelNames())
	logFormat := flag.String("log-format", logOpts.Format, "Log format: text or json")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("gowhisper-server", version.Full())
		return
	}

	// Configure structured logging
	if err := logging.Setup(logging.Options{
		Level:  *logLevel,
		Format: *logFormat,
		Output: os.Stdout,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "invalid logging config: %v\n", err)
		os.Exit(1)
	}

	// Handle export (run and exit)
	if cfg.Export {
		dir, err := server.OpenDirectory(cfg)
		if err != nil {
			slog.Error("open directory", "err", err)
			os.Exit(1)
		}
		defer dir.Close()
		if err := server.Seed(dir, cfg); err != nil {
			slog.Error("seed directory", "err", err)
			os.Exit(1)
		}
		data, err := dir.ExportYAML()
		if err != nil {
			slog.Error("export directory", "err", err)
			os.Exit(1)
		}
		fmt.Print(string(data))
		return
	}

	srv, err := server.New(cfg, server.Dependencies{})
	if err != nil {
		slog.Error("init server", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("starting gowhisper server", "version", version.String())
	if err := srv.Run(ctx); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
	srv.Metrics().LogSummary()
}
