// Package selection tracks per-moderator ban menu state: a moderator opens
// a session against a target, picks a reason and a duration in either
// order, then confirms or cancels.
//
// Manager state is confined to the main loop and carries no lock.
package selection

import (
	"errors"
	"fmt"

	"warden/pkg/model"
	"warden/pkg/moderation"
)

var (
	// ErrNoSession is returned when a moderator acts without an open session.
	ErrNoSession = errors.New("selection: no open session")
	// ErrIncomplete is returned by Confirm before both choices are made.
	ErrIncomplete = errors.New("selection: reason and duration not both chosen")
	// ErrUnknownDuration is returned for a duration token outside the table.
	ErrUnknownDuration = errors.New("selection: unknown duration")
)

// Issuer is the slice of the moderation engine that Confirm needs.
type Issuer interface {
	Issue(target, issuer, reason string, durationMillis int64, permanent bool) (*model.Ban, error)
}

// Session is one moderator's in-progress ban selection.
type Session struct {
	Moderator string
	Target    string
	Reason    string // empty until chosen
	Duration  string // duration token, empty until chosen
	OpenedAt  int64  // unix millis
}

// CanConfirm reports whether both choices have been made.
func (s *Session) CanConfirm() bool {
	return s.Reason != "" && s.Duration != ""
}

// Manager holds at most one open session per moderator.
type Manager struct {
	issuer   Issuer
	reasons  []string
	now      func() int64
	sessions map[string]*Session // keyed by moderator name
}

// New creates a Manager using the given reason presets, or
// moderation.DefaultReasons when nil.
func New(issuer Issuer, reasons []string, now func() int64) *Manager {
	if reasons == nil {
		reasons = moderation.DefaultReasons
	}
	return &Manager{
		issuer:   issuer,
		reasons:  reasons,
		now:      now,
		sessions: make(map[string]*Session),
	}
}

// Reasons returns the selectable reason presets in menu order.
func (m *Manager) Reasons() []string {
	return m.reasons
}

// SetReasons replaces the reason presets. Open sessions keep any reason
// already chosen.
func (m *Manager) SetReasons(reasons []string) {
	if len(reasons) > 0 {
		m.reasons = reasons
	}
}

// Open starts a selection session for a moderator against a target. A prior
// open session for the same moderator is discarded, choices included.
func (m *Manager) Open(moderator, target string) *Session {
	s := &Session{Moderator: moderator, Target: target, OpenedAt: m.now()}
	m.sessions[moderator] = s
	return s
}

// Get returns the moderator's open session, if any.
func (m *Manager) Get(moderator string) (*Session, bool) {
	s, ok := m.sessions[moderator]
	return s, ok
}

// ChooseReason records the reason choice. Re-choosing overwrites in place.
func (m *Manager) ChooseReason(moderator, reason string) (*Session, error) {
	s, ok := m.sessions[moderator]
	if !ok {
		return nil, ErrNoSession
	}
	s.Reason = reason
	return s, nil
}

// ChooseDuration records the duration choice by token. Re-choosing
// overwrites in place.
func (m *Manager) ChooseDuration(moderator, token string) (*Session, error) {
	s, ok := m.sessions[moderator]
	if !ok {
		return nil, ErrNoSession
	}
	if _, _, ok := moderation.ParseDurationToken(token); !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDuration, token)
	}
	s.Duration = token
	return s, nil
}

// Confirm issues the ban described by the moderator's session and discards
// the session. The session survives an issue failure so the moderator can
// retry.
func (m *Manager) Confirm(moderator string) (*model.Ban, error) {
	s, ok := m.sessions[moderator]
	if !ok {
		return nil, ErrNoSession
	}
	if !s.CanConfirm() {
		return nil, ErrIncomplete
	}
	millis, permanent, ok := moderation.ParseDurationToken(s.Duration)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDuration, s.Duration)
	}
	ban, err := m.issuer.Issue(s.Target, moderator, s.Reason, millis, permanent)
	if err != nil {
		return nil, err
	}
	delete(m.sessions, moderator)
	return ban, nil
}

// Cancel discards the moderator's open session. Returns ErrNoSession when
// there is none.
func (m *Manager) Cancel(moderator string) error {
	if _, ok := m.sessions[moderator]; !ok {
		return ErrNoSession
	}
	delete(m.sessions, moderator)
	return nil
}

// Close discards any open session for a moderator, typically on disconnect.
// Unlike Cancel it is silent about absence.
func (m *Manager) Close(moderator string) {
	delete(m.sessions, moderator)
}
