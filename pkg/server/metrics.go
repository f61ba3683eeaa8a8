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

	// Connection counters
	TotalConnections  atomic.Int64 // lifetime TCP connections accepted
	ActiveConnections atomic.Int64 // current active connections
	RejectedNames     atomic.Int64 // connections refused for an invalid name
	TotalDisconnects  atomic.Int64 // client disconnects (clean + unclean)

	// Command counters
	CommandsDispatched atomic.Int64 // command lines handled
	ChatMessagesSent   atomic.Int64 // non-command lines relayed

	// Enforcement counters
	DisconnectsScheduled atomic.Int64 // verdicts issued
	DisconnectsExecuted  atomic.Int64 // sessions actually severed
}

// NewMetrics creates a new Metrics instance with the start time set to now.
func NewMetrics() *Metrics {
	return &Metrics{
		startTime: time.Now(),
	}
}

// MetricsSnapshot is a point-in-time view of all metrics as a serializable
// struct.
type MetricsSnapshot struct {
	Uptime        string `json:"uptime"`
	UptimeSeconds int64  `json:"uptime_seconds"`

	ActiveConnections int64 `json:"active_connections"`
	TotalConnections  int64 `json:"total_connections"`
	RejectedNames     int64 `json:"rejected_names"`
	TotalDisconnects  int64 `json:"total_disconnects"`

	CommandsDispatched int64 `json:"commands_dispatched"`
	ChatMessagesSent   int64 `json:"chat_messages_sent"`

	DisconnectsScheduled int64 `json:"disconnects_scheduled"`
	DisconnectsExecuted  int64 `json:"disconnects_executed"`
}

// Snapshot returns a read-consistent snapshot of all metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	uptime := time.Since(m.startTime)
	return MetricsSnapshot{
		Uptime:               uptime.Truncate(time.Second).String(),
		UptimeSeconds:        int64(uptime.Seconds()),
		ActiveConnections:    m.ActiveConnections.Load(),
		TotalConnections:     m.TotalConnections.Load(),
		RejectedNames:        m.RejectedNames.Load(),
		TotalDisconnects:     m.TotalDisconnects.Load(),
		CommandsDispatched:   m.CommandsDispatched.Load(),
		ChatMessagesSent:     m.ChatMessagesSent.Load(),
		DisconnectsScheduled: m.DisconnectsScheduled.Load(),
		DisconnectsExecuted:  m.DisconnectsExecuted.Load(),
	}
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
		"connections", s.ActiveConnections,
		"total_connections", s.TotalConnections,
		"commands", s.CommandsDispatched,
		"disconnects_scheduled", s.DisconnectsScheduled,
		"disconnects_executed", s.DisconnectsExecuted,
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
