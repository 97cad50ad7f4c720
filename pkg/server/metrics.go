package server

import (
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"
)

// Metrics tracks server runtime statistics.
// All counters use atomic operations for lock-free concurrent access.
type Metrics struct {
	startTime time.Time
	registry  *Registry

	// Connection counters
	Disconnects atomic.Int64 // connections reported closed by the transport

	// Request counters
	RequestsReceived atomic.Int64 // data packets taken off the transport
	ResponsesSent    atomic.Int64 // responses written to the requesting identity
	PacketsDropped   atomic.Int64 // undecodable or unknown requests left unanswered
	SendFailures     atomic.Int64 // responses or updates the transport refused

	// Auth counters
	Registrations   atomic.Int64
	SuccessfulLogin atomic.Int64
	FailedLogin     atomic.Int64
	Logouts         atomic.Int64

	// Fan-out counters
	UpdatesSent      atomic.Int64 // update envelopes delivered to identities
	ChatMessagesSent atomic.Int64 // whisper and msg_group requests relayed
	VoiceMessages    atomic.Int64 // voice_msg requests relayed
	CallFrames       atomic.Int64 // call_data requests relayed

	// Group counters
	GroupsCreated atomic.Int64
	GroupJoins    atomic.Int64
}

// NewMetrics creates a Metrics instance whose session gauges read from reg.
func NewMetrics(reg *Registry) *Metrics {
	return &Metrics{
		startTime: time.Now(),
		registry:  reg,
	}
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	Uptime        string `json:"uptime"`
	UptimeSeconds int64  `json:"uptime_seconds"`

	Sessions    int64 `json:"sessions"`
	Identities  int64 `json:"identities"`
	Disconnects int64 `json:"disconnects"`

	RequestsReceived int64 `json:"requests_received"`
	ResponsesSent    int64 `json:"responses_sent"`
	PacketsDropped   int64 `json:"packets_dropped"`
	SendFailures     int64 `json:"send_failures"`

	Registrations   int64 `json:"registrations"`
	SuccessfulLogin int64 `json:"successful_logins"`
	FailedLogin     int64 `json:"failed_logins"`
	Logouts         int64 `json:"logouts"`

	UpdatesSent      int64 `json:"updates_sent"`
	ChatMessagesSent int64 `json:"chat_messages_sent"`
	VoiceMessages    int64 `json:"voice_messages"`
	CallFrames       int64 `json:"call_frames"`

	GroupsCreated int64 `json:"groups_created"`
	GroupJoins    int64 `json:"group_joins"`
}

// Snapshot returns a read-consistent snapshot of all metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	uptime := time.Since(m.startTime)
	s := MetricsSnapshot{
		Uptime:           uptime.Truncate(time.Second).String(),
		UptimeSeconds:    int64(uptime.Seconds()),
		Disconnects:      m.Disconnects.Load(),
		RequestsReceived: m.RequestsReceived.Load(),
		ResponsesSent:    m.ResponsesSent.Load(),
		PacketsDropped:   m.PacketsDropped.Load(),
		SendFailures:     m.SendFailures.Load(),
		Registrations:    m.Registrations.Load(),
		SuccessfulLogin:  m.SuccessfulLogin.Load(),
		FailedLogin:      m.FailedLogin.Load(),
		Logouts:          m.Logouts.Load(),
		UpdatesSent:      m.UpdatesSent.Load(),
		ChatMessagesSent: m.ChatMessagesSent.Load(),
		VoiceMessages:    m.VoiceMessages.Load(),
		CallFrames:       m.CallFrames.Load(),
		GroupsCreated:    m.GroupsCreated.Load(),
		GroupJoins:       m.GroupJoins.Load(),
	}
	if m.registry != nil {
		s.Sessions = int64(m.registry.SessionCount())
		s.Identities = int64(m.registry.IdentityCount())
	}
	return s
}

// JSON returns the metrics snapshot as a JSON string.
func (m *Metrics) JSON() string {
	data, err := json.MarshalIndent(m.Snapshot(), "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// LogSummary writes a periodic metrics summary to the logger.
func (m *Metrics) LogSummary() {
	s := m.Snapshot()
	slog.Info("metrics",
		"uptime", s.Uptime,
		"sessions", s.Sessions,
		"identities", s.Identities,
		"requests", s.RequestsReceived,
		"dropped", s.PacketsDropped,
		"updates", s.UpdatesSent,
		"send_failures", s.SendFailures,
		"call_frames", s.CallFrames,
	)
}

// StartPeriodicLog starts a goroutine that logs metrics every interval.
// It stops when the done channel is closed.
func (m *Metrics) StartPeriodicLog(interval time.Duration, done <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				m.LogSummary()
			}
		}
	}()
}
