package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// StartMetricsHTTP starts a lightweight HTTP server that exposes /metrics
// in Prometheus text exposition format and /healthz. It runs in the
// background and shuts down when ctx is cancelled.
//
// Bind address is :4243 by default, configurable via Config.MetricsAddr.
func (s *Server) StartMetricsHTTP(ctx context.Context) {
	addr := s.cfg.MetricsAddr
	if addr == "" {
		return // metrics endpoint disabled
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("metrics HTTP listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics HTTP error", "err", err)
		}
	}()

	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
}

// handleMetrics writes all metrics in Prometheus text exposition format.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	snap := s.metrics.Snapshot()
	uptime := time.Since(s.metrics.startTime).Seconds()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	// Write errors to http.ResponseWriter are non-actionable; suppress errcheck.
	write := func(name, help, mtype string, value int64) {
		_, _ = fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		_, _ = fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
		_, _ = fmt.Fprintf(w, "%s %d\n", name, value)
	}

	_, _ = fmt.Fprintf(w, "# HELP gowhisper_uptime_seconds Server uptime in seconds.\n")
	_, _ = fmt.Fprintf(w, "# TYPE gowhisper_uptime_seconds gauge\n")
	_, _ = fmt.Fprintf(w, "gowhisper_uptime_seconds %f\n", uptime)

	write("gowhisper_sessions", "Logged-in users.", "gauge", snap.Sessions)
	write("gowhisper_identities", "Logged-in connection identities.", "gauge", snap.Identities)
	write("gowhisper_disconnects_total", "Connections closed by the transport.", "counter", snap.Disconnects)

	write("gowhisper_requests_total", "Requests received.", "counter", snap.RequestsReceived)
	write("gowhisper_responses_total", "Responses sent.", "counter", snap.ResponsesSent)
	write("gowhisper_dropped_total", "Requests dropped without a response.", "counter", snap.PacketsDropped)
	write("gowhisper_send_failures_total", "Sends refused by the transport.", "counter", snap.SendFailures)

	write("gowhisper_registrations_total", "Users registered.", "counter", snap.Registrations)
	write("gowhisper_login_success_total", "Successful logins.", "counter", snap.SuccessfulLogin)
	write("gowhisper_login_failed_total", "Failed logins.", "counter", snap.FailedLogin)
	write("gowhisper_logouts_total", "Successful logouts.", "counter", snap.Logouts)

	write("gowhisper_updates_total", "Update envelopes delivered.", "counter", snap.UpdatesSent)
	write("gowhisper_chat_messages_total", "Whispers and group messages relayed.", "counter", snap.ChatMessagesSent)
	write("gowhisper_voice_messages_total", "Voice messages relayed.", "counter", snap.VoiceMessages)
	write("gowhisper_call_frames_total", "Call audio blocks relayed.", "counter", snap.CallFrames)

	write("gowhisper_groups_created_total", "Groups created.", "counter", snap.GroupsCreated)
	write("gowhisper_group_joins_total", "Group joins.", "counter", snap.GroupJoins)
}
