package server

import (
	"log/slog"

	"warden/pkg/sched"
)

// Enforcer carries out disconnect verdicts. The explanation is delivered
// immediately; the cut itself is delayed a few ticks so the message gets out
// before the connection drops.
type Enforcer struct {
	loop       *sched.Loop
	sessions   *SessionManager
	graceTicks int
	metrics    *Metrics
}

// NewEnforcer creates an Enforcer. graceTicks below zero falls back to the
// default.
func NewEnforcer(loop *sched.Loop, sessions *SessionManager, graceTicks int, metrics *Metrics) *Enforcer {
	if graceTicks < 0 {
		graceTicks = DefaultDisconnectGraceTicks
	}
	return &Enforcer{loop: loop, sessions: sessions, graceTicks: graceTicks, metrics: metrics}
}

// ScheduleDisconnect sends the explanation to the session and severs it
// after the grace delay. A session that vanished in the meantime is a silent
// no-op.
func (e *Enforcer) ScheduleDisconnect(sessionID uint32, explanation string) {
	sess := e.sessions.Get(sessionID)
	if sess == nil {
		return
	}
	if err := sess.Conn.Send(explanation); err != nil {
		slog.Debug("explanation write failed", "session", sessionID, "err", err)
	}
	e.metrics.DisconnectsScheduled.Add(1)

	e.loop.Later(int64(e.graceTicks), func() {
		sess := e.sessions.Get(sessionID)
		if sess == nil {
			return // already gone
		}
		_ = sess.Conn.Close()
		e.sessions.Remove(sessionID)
		e.metrics.DisconnectsExecuted.Add(1)
		slog.Info("session disconnected", "name", sess.Name, "session", sessionID)
	})
}
