package moderation

import (
	"fmt"
	"log/slog"

	"warden/pkg/model"
)

// BanAddress records a permanent ban for a network address and cascades it
// to every connected session sharing that address. Duplicate addresses are
// rejected with model.ErrDuplicateAddress. Sessions without a captured
// address are never matched.
func (m *Manager) BanAddress(address, issuer, reason string) (*model.IPBan, error) {
	ipban := &model.IPBan{
		Address:  address,
		IssuedBy: issuer,
		Reason:   reason,
		IssuedAt: m.now(),
	}
	if err := m.store.NonTx().CreateIPBan(ipban); err != nil {
		return nil, fmt.Errorf("moderation: ip ban: %w", err)
	}

	m.notify.Broadcast(model.PermNotify, fmt.Sprintf(
		"[ipban] %s banned by %s: %s #%d", ipban.Address, issuer, reason, ipban.ID))

	explanation := FormatBanMessage(ipBanView(ipban), m.now())
	matched := m.presence.ByAddress(address)
	for _, sess := range matched {
		m.enforcer.ScheduleDisconnect(sess.ID, explanation)
	}

	m.metrics.IPBansIssued.Add(1)
	slog.Info("ip ban issued", "address", address, "by", issuer, "cascaded", len(matched), "id", ipban.ID)
	return ipban, nil
}

// ListAddresses returns all IP bans in insertion order.
func (m *Manager) ListAddresses() ([]model.IPBan, error) {
	bans, err := m.store.NonTx().ListIPBans()
	if err != nil {
		return nil, fmt.Errorf("moderation: list ip bans: %w", err)
	}
	return bans, nil
}
