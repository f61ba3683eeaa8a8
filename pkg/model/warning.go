package model

import "github.com/google/uuid"

// Warning is a single written warning against an identity. Warnings are
// immutable once created and are never deactivated; the count of records for
// a subject id is the escalation counter.
type Warning struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	SubjectID uuid.UUID `json:"subject_id"`
	IssuedBy  string    `json:"issued_by"`
	Reason    string    `json:"reason"`
	IssuedAt  int64     `json:"issued_at"` // unix millis
}
