package moderation

import (
	"fmt"
	"log/slog"

	"warden/pkg/model"
)

// Warn records a warning against a connected identity and returns the new
// warning count. Warnings require a live session (model.ErrTargetNotConnected
// otherwise) and are immutable once recorded.
//
// When the count reaches WarnThreshold the manager issues an automatic
// temporary ban on the spot. The check re-fires on every warning at or past
// the threshold.
func (m *Manager) Warn(target, issuer, reason string) (int, error) {
	live, online := m.presence.ByName(target)
	if !online {
		return 0, model.ErrTargetNotConnected
	}

	w := &model.Warning{
		Name:      target,
		SubjectID: live.SubjectID,
		IssuedBy:  issuer,
		Reason:    reason,
		IssuedAt:  m.now(),
	}
	if err := m.store.NonTx().CreateWarning(w); err != nil {
		return 0, fmt.Errorf("moderation: warn: %w", err)
	}

	count, err := m.store.NonTx().CountWarningsBySubject(live.SubjectID)
	if err != nil {
		return 0, fmt.Errorf("moderation: warn: %w", err)
	}

	m.notify.Message(target, fmt.Sprintf(
		"You have been warned by %s: %s. You now have %d warning(s).", issuer, reason, count))
	m.notify.Effect(target, EffectWarn)
	m.notify.Broadcast(model.PermNotify, fmt.Sprintf(
		"[warn] %s warned by %s: %s (%d)", target, issuer, reason, count))

	m.metrics.WarningsIssued.Add(1)
	slog.Info("warning issued", "target", target, "by", issuer, "count", count)

	if count >= WarnThreshold {
		if _, err := m.Issue(target, AutoBanIssuer, AutoBanReason, AutoBanDuration, false); err != nil {
			return count, fmt.Errorf("moderation: warn escalation: %w", err)
		}
		m.metrics.AutoBans.Add(1)
	}
	return count, nil
}

// Warnings returns the warning history for a display name, newest-first.
func (m *Manager) Warnings(target string) ([]model.Warning, error) {
	warnings, err := m.store.NonTx().WarningsByName(target)
	if err != nil {
		return nil, fmt.Errorf("moderation: warnings: %w", err)
	}
	return warnings, nil
}
