package server

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Run starts the server and blocks until shutdown signal.
func (s *Server) Run() error {
	if s.store == nil {
		return fmt.Errorf("server: missing store dependency")
	}
	defer func() { _ = s.store.NonTx().Close() }()

	go s.loop.Run(s.ctx)

	if err := s.StartControl(); err != nil {
		return err
	}

	// Policy edits take effect without a restart; the selection menu picks
	// up new reason presets on the loop.
	if err := s.policy.Watch(s.ctx, func() {
		s.loop.Submit(func() {
			s.sel.SetReasons(s.policy.Reasons())
		})
	}); err != nil {
		slog.Error("policy watch disabled", "err", err)
	}

	slog.Info("warden running", "listen", s.cfg.ListenAddr)

	// Start Prometheus metrics HTTP endpoint
	s.StartMetricsHTTP()

	// Start periodic metrics logging (every 60s)
	s.metrics.StartPeriodicLog(60*time.Second, s.ctx.Done())

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down...")
	s.Shutdown()
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() {
	s.cancel()
	if s.ln != nil {
		_ = s.ln.Close()
	}
	for _, sess := range s.sessions.All() {
		_ = sess.Conn.Close()
	}
}
