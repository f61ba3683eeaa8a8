package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// StartMetricsHTTP starts a lightweight HTTP server that exposes /metrics
// in Prometheus text exposition format. It runs in the background and
// shuts down when the server context is cancelled.
//
// Bind address is :9702 by default — configurable via Config.MetricsAddr.
func (s *Server) StartMetricsHTTP() {
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
		<-s.ctx.Done()
		_ = srv.Close()
	}()
}

// handleMetrics writes all metrics in Prometheus text exposition format.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	m := s.metrics
	mod := s.mgr.Metrics().Snapshot()
	uptime := time.Since(m.startTime).Seconds()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	// Helper for gauge/counter lines.
	// Write errors to http.ResponseWriter are non-actionable; suppress errcheck.
	write := func(name, help, mtype string, value int64) {
		_, _ = fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		_, _ = fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
		_, _ = fmt.Fprintf(w, "%s %d\n", name, value)
	}
	writeFloat := func(name, help, mtype string, value float64) {
		_, _ = fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		_, _ = fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
		_, _ = fmt.Fprintf(w, "%s %f\n", name, value)
	}

	writeFloat("warden_uptime_seconds", "Server uptime in seconds.", "gauge", uptime)

	write("warden_connections_active", "Current active connections.", "gauge",
		m.ActiveConnections.Load())
	write("warden_connections_total", "Lifetime TCP connections accepted.", "counter",
		m.TotalConnections.Load())
	write("warden_rejected_names_total", "Connections refused for an invalid name.", "counter",
		m.RejectedNames.Load())
	write("warden_disconnects_total", "Total client disconnects.", "counter",
		m.TotalDisconnects.Load())

	write("warden_commands_total", "Command lines handled.", "counter",
		m.CommandsDispatched.Load())
	write("warden_chat_messages_total", "Non-command lines relayed.", "counter",
		m.ChatMessagesSent.Load())

	write("warden_enforce_scheduled_total", "Disconnect verdicts issued.", "counter",
		m.DisconnectsScheduled.Load())
	write("warden_enforce_executed_total", "Sessions severed.", "counter",
		m.DisconnectsExecuted.Load())

	write("warden_bans_issued_total", "Bans issued.", "counter", mod.BansIssued)
	write("warden_bans_revoked_total", "Bans revoked.", "counter", mod.BansRevoked)
	write("warden_bans_auto_total", "Automatic bans from warning escalation.", "counter", mod.AutoBans)
	write("warden_warnings_total", "Warnings issued.", "counter", mod.WarningsIssued)
	write("warden_ipbans_total", "IP bans issued.", "counter", mod.IPBansIssued)
	write("warden_connect_checks_total", "Connect-time sanction checks.", "counter", mod.ConnectChecks)
	write("warden_connect_rejections_total", "Connections rejected by a sanction.", "counter", mod.ConnectRejections)
	write("warden_lazy_expiries_total", "Temporary bans expired on sight.", "counter", mod.LazyExpiries)
}
