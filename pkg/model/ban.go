// Package model defines the core domain types for Warden.
package model

import "github.com/google/uuid"

// Ban is one sanction record for an identity. Records are append-mostly:
// revocation and expiry flip Active to false, rows are never deleted, so the
// full sanction history of a subject is retained.
type Ban struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`       // display name at issuance (mutable over time)
	SubjectID uuid.UUID `json:"subject_id"` // stable identity id
	IssuedBy  string    `json:"issued_by"`
	Reason    string    `json:"reason"`
	IssuedAt  int64     `json:"issued_at"`  // unix millis
	ExpiresAt int64     `json:"expires_at"` // unix millis, 0 = not applicable
	Permanent bool      `json:"permanent"`
	Active    bool      `json:"active"`
	Address   string    `json:"address"` // network address captured at issuance, may be empty
}

// Expired reports whether the ban is logically expired at the given time.
// Permanent bans never expire; ExpiresAt is not evaluated for them.
func (b *Ban) Expired(nowMillis int64) bool {
	if b.Permanent {
		return false
	}
	return nowMillis >= b.ExpiresAt
}

// Remaining returns the milliseconds left until expiry, clamped at zero.
// For permanent bans it returns -1.
func (b *Ban) Remaining(nowMillis int64) int64 {
	if b.Permanent {
		return -1
	}
	if rem := b.ExpiresAt - nowMillis; rem > 0 {
		return rem
	}
	return 0
}
