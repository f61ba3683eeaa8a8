package model

import "errors"

// Sanction error taxonomy. Command handlers report these to the caller as a
// direct message; none of them interrupts other sessions or pending
// scheduled disconnects.
var (
	// ErrTargetNotConnected is returned when a warning is issued against an
	// identity with no live session. Warnings, unlike bans, require one.
	ErrTargetNotConnected = errors.New("target is not connected")

	// ErrNotSanctioned is returned by revoke or queries against an identity
	// with no active ban record.
	ErrNotSanctioned = errors.New("target has no active ban")

	// ErrDuplicateAddress is returned when an address is already IP-banned.
	ErrDuplicateAddress = errors.New("address is already banned")

	// ErrTargetUnresolvable is reserved for resolver configurations with the
	// synthetic fallback disabled; the default resolver never returns it.
	ErrTargetUnresolvable = errors.New("target identity could not be resolved")
)
