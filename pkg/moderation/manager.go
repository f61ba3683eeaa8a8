// Package moderation implements the sanction engine: ban lifecycle, warning
// escalation, and IP ban cascades.
//
// All Manager methods mutate shared state and must be called from the main
// loop only (see pkg/sched); confinement to that loop is what makes the
// engine lock-free.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"warden/pkg/datastore"
	"warden/pkg/model"
)

// Escalation constants: the third warning (and every warning after it)
// triggers an automatic temporary ban.
const (
	WarnThreshold         = 3
	AutoBanDuration int64 = 7 * 24 * 60 * 60 * 1000 // millis
	AutoBanIssuer         = "System"
	AutoBanReason         = "warning threshold reached"
)

// LiveSession is the manager's view of one connected session.
type LiveSession struct {
	ID        uint32
	Name      string
	SubjectID uuid.UUID
	Address   string // empty when address capture is unavailable
}

// Presence enumerates currently connected sessions.
type Presence interface {
	ByName(name string) (LiveSession, bool)
	ByAddress(address string) []LiveSession
}

// SubjectResolver resolves a display name to a stable subject id.
type SubjectResolver interface {
	Resolve(name string) uuid.UUID
}

// DisconnectScheduler severs a session after a short grace delay so the
// explanation reaches it first. Implementations no-op when the session is
// already gone.
type DisconnectScheduler interface {
	ScheduleDisconnect(sessionID uint32, explanation string)
}

// Notifier delivers moderation messages: direct to one identity, or
// broadcast to everyone holding a permission.
type Notifier interface {
	Message(target string, text string)
	Broadcast(perm model.Permission, text string)
	Effect(target string, effect string)
}

// EffectWarn is played at a warned identity's session.
const EffectWarn = "warden:warn"

// Manager is the sanction engine.
type Manager struct {
	store    datastore.DataProviderFactory
	resolver SubjectResolver
	presence Presence
	enforcer DisconnectScheduler
	notify   Notifier
	now      func() int64 // unix millis
	metrics  Metrics
}

// New creates a Manager with the real clock.
func New(store datastore.DataProviderFactory, resolver SubjectResolver, presence Presence, enforcer DisconnectScheduler, notify Notifier) *Manager {
	return &Manager{
		store:    store,
		resolver: resolver,
		presence: presence,
		enforcer: enforcer,
		notify:   notify,
		now:      func() int64 { return time.Now().UnixMilli() },
	}
}

// SetClock overrides the manager's clock. Tests only.
func (m *Manager) SetClock(now func() int64) {
	m.now = now
}

// Metrics returns the manager's counters.
func (m *Manager) Metrics() *Metrics {
	return &m.metrics
}

// Issue creates a new active ban for a display name. durationMillis is
// ignored when permanent is true. If the target is connected its address is
// captured on the record and a disconnect is scheduled with the formatted
// explanation.
//
// Prior active bans for the same subject are left untouched; reads resolve
// to the newest record.
func (m *Manager) Issue(target, issuer, reason string, durationMillis int64, permanent bool) (*model.Ban, error) {
	now := m.now()

	ban := &model.Ban{
		Name:      target,
		SubjectID: m.resolver.Resolve(target),
		IssuedBy:  issuer,
		Reason:    reason,
		IssuedAt:  now,
		Permanent: permanent,
		Active:    true,
	}
	if !permanent {
		ban.ExpiresAt = now + durationMillis
	}

	live, online := m.presence.ByName(target)
	if online {
		ban.Address = live.Address
	}

	if err := m.store.NonTx().CreateBan(ban); err != nil {
		return nil, fmt.Errorf("moderation: issue: %w", err)
	}

	if online {
		m.enforcer.ScheduleDisconnect(live.ID, FormatBanMessage(ban, now))
	}

	m.notify.Broadcast(model.PermNotify, fmt.Sprintf(
		"[ban] %s banned by %s: %s (%s) #%d",
		ban.Name, ban.IssuedBy, ban.Reason, FormatDuration(ban.Remaining(now)), ban.ID))

	m.metrics.BansIssued.Add(1)
	slog.Info("ban issued", "target", ban.Name, "subject", ban.SubjectID, "by", issuer, "permanent", permanent, "id", ban.ID)
	return ban, nil
}

// Revoke deactivates the newest active ban for a display name. Returns
// model.ErrNotSanctioned when no active record exists. The record itself is
// retained in the history.
func (m *Manager) Revoke(target, revokedBy string) (*model.Ban, error) {
	tx, err := m.store.Tx(context.Background())
	if err != nil {
		return nil, fmt.Errorf("moderation: revoke: %w", err)
	}
	ban, err := tx.RevokeNewestActiveBan(target)
	if err != nil {
		if errors.Is(err, model.ErrNotSanctioned) {
			return nil, model.ErrNotSanctioned
		}
		return nil, fmt.Errorf("moderation: revoke: %w", err)
	}

	m.notify.Broadcast(model.PermNotify, fmt.Sprintf(
		"[unban] %s unbanned by %s #%d", ban.Name, revokedBy, ban.ID))

	m.metrics.BansRevoked.Add(1)
	slog.Info("ban revoked", "target", ban.Name, "by", revokedBy, "id", ban.ID)
	return ban, nil
}

// CheckOnConnect decides whether a freshly connected session may stay. The
// address check runs first and wins outright; otherwise the newest active
// identity ban applies, with expired temporary bans lazily deactivated (the
// connection is then allowed, no disconnect).
func (m *Manager) CheckOnConnect(sess LiveSession) error {
	m.metrics.ConnectChecks.Add(1)

	if sess.Address != "" {
		ipban, err := m.store.NonTx().IPBanByAddress(sess.Address)
		if err != nil {
			return fmt.Errorf("moderation: connect check: %w", err)
		}
		if ipban != nil {
			m.enforcer.ScheduleDisconnect(sess.ID, FormatBanMessage(ipBanView(ipban), m.now()))
			m.metrics.ConnectRejections.Add(1)
			slog.Info("connection rejected by ip ban", "name", sess.Name, "address", sess.Address, "id", ipban.ID)
			return nil
		}
	}

	ban, err := m.store.NonTx().ActiveBanBySubject(sess.SubjectID)
	if err != nil {
		return fmt.Errorf("moderation: connect check: %w", err)
	}
	if ban == nil {
		return nil
	}

	now := m.now()
	if ban.Expired(now) {
		// Lazy expiry: deactivate on sight and let the connection through.
		if err := m.store.NonTx().DeactivateBan(ban.ID); err != nil {
			return fmt.Errorf("moderation: connect check: %w", err)
		}
		m.metrics.LazyExpiries.Add(1)
		slog.Debug("ban lazily expired", "name", sess.Name, "id", ban.ID)
		return nil
	}

	m.enforcer.ScheduleDisconnect(sess.ID, FormatBanMessage(ban, now))
	m.metrics.ConnectRejections.Add(1)
	slog.Info("connection rejected by ban", "name", sess.Name, "id", ban.ID)
	return nil
}

// ListActive returns all active bans, newest-first.
func (m *Manager) ListActive() ([]model.Ban, error) {
	bans, err := m.store.NonTx().ListActiveBans()
	if err != nil {
		return nil, fmt.Errorf("moderation: list active: %w", err)
	}
	return bans, nil
}

// History returns the full ban history for a display name, newest-first,
// inactive records included.
func (m *Manager) History(target string) ([]model.Ban, error) {
	bans, err := m.store.NonTx().BansByName(target)
	if err != nil {
		return nil, fmt.Errorf("moderation: history: %w", err)
	}
	return bans, nil
}

// Info summarises a display name's sanction state.
type Info struct {
	Active  *model.Ban  // newest active ban, nil when none
	History []model.Ban // full history, newest-first
}

// InfoFor returns the sanction summary for a display name.
func (m *Manager) InfoFor(target string) (Info, error) {
	history, err := m.History(target)
	if err != nil {
		return Info{}, err
	}
	info := Info{History: history}
	for i := range history {
		if history[i].Active {
			info.Active = &history[i]
			break
		}
	}
	return info, nil
}

// ipBanView adapts an IP ban record for the shared explanation formatter:
// same fields, same order as an identity ban.
func ipBanView(b *model.IPBan) *model.Ban {
	return &model.Ban{
		ID:        b.ID,
		Reason:    b.Reason,
		IssuedBy:  b.IssuedBy,
		Permanent: true,
	}
}
