package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/NicolasHaas/gowhisper/pkg/transport"
)

// Run opens the transport if none was injected and processes packets one at
// a time until ctx is cancelled or the transport closes.
func (s *Server) Run(ctx context.Context) error {
	defer func() { _ = s.dir.Close() }()

	if s.tr == nil {
		tr, err := s.listen()
		if err != nil {
			return err
		}
		s.tr = tr
	}
	defer func() { _ = s.tr.Close() }()

	s.dispatcher = NewDispatcher(s.dir, s.registry, s.tr, s.metrics, s.cfg.Strict)

	slog.Info("gowhisper server running",
		"addr", s.tr.Addr(),
		"transport", s.cfg.Transport,
		"backend", s.cfg.Backend,
		"strict", s.cfg.Strict,
	)

	// Start Prometheus metrics HTTP endpoint
	s.StartMetricsHTTP(ctx)

	// Start periodic metrics logging (every 60s)
	s.metrics.StartPeriodicLog(60*time.Second, ctx.Done())

	for {
		p, err := s.tr.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				slog.Info("shutting down...")
				return nil
			}
			if errors.Is(err, transport.ErrClosed) {
				return nil
			}
			slog.Error("receive failed", "err", err)
			continue
		}
		s.dispatcher.Handle(p)
	}
}

func (s *Server) listen() (transport.Server, error) {
	switch s.cfg.Transport {
	case transport.KindTLS, "":
		cert, err := transport.LoadOrGenerateCert(s.cfg.CertFile, s.cfg.KeyFile, s.cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("server: tls: %w", err)
		}
		tr, err := transport.ListenTLS(s.cfg.ListenAddr, cert)
		if err != nil {
			return nil, fmt.Errorf("server: %w", err)
		}
		return tr, nil
	case transport.KindWS:
		tr, err := transport.ListenWS(s.cfg.ListenAddr)
		if err != nil {
			return nil, fmt.Errorf("server: %w", err)
		}
		return tr, nil
	}
	return nil, fmt.Errorf("server: unknown transport %q", s.cfg.Transport)
}
