package server

import (
	"log/slog"

	"warden/pkg/model"
	"warden/pkg/rbac"
)

// Broadcaster delivers moderation messages over session connections.
// Implements moderation.Notifier.
type Broadcaster struct {
	sessions *SessionManager
}

// NewBroadcaster creates a Broadcaster.
func NewBroadcaster(sessions *SessionManager) *Broadcaster {
	return &Broadcaster{sessions: sessions}
}

// Message sends a line to one connected identity. Offline targets are
// dropped silently.
func (b *Broadcaster) Message(target string, text string) {
	sess := b.sessions.GetByName(target)
	if sess == nil {
		return
	}
	if err := sess.Conn.Send(text); err != nil {
		slog.Debug("message write failed", "target", target, "err", err)
	}
}

// Broadcast sends a line to every connected session whose role holds the
// permission. The line is also written to the server log so console
// operators see it.
func (b *Broadcaster) Broadcast(perm model.Permission, text string) {
	slog.Info("broadcast", "perm", perm, "text", text)
	for _, sess := range b.sessions.All() {
		if !rbac.HasPermission(sess.Role, perm) {
			continue
		}
		if err := sess.Conn.Send(text); err != nil {
			slog.Debug("broadcast write failed", "session", sess.ID, "err", err)
		}
	}
}

// Effect plays a named effect at a connected identity's session.
func (b *Broadcaster) Effect(target string, effect string) {
	sess := b.sessions.GetByName(target)
	if sess == nil {
		return
	}
	if err := sess.Conn.Send("!effect " + effect); err != nil {
		slog.Debug("effect write failed", "target", target, "err", err)
	}
}
