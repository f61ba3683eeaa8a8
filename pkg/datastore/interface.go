package datastore

import (
	"context"

	"github.com/google/uuid"

	"warden/pkg/model"
)

type DataProviderFactory interface {
	NonTx() DataStore
	Tx(context.Context) (DataStoreTx, error)
}

type DataStoreTx interface {
	DataStore
	BanTransactionProvider
	Rollback() error
	Commit() error
}

// DataStore defines the persistence interface for all Warden sanction
// records. Implementations include the default SQLite store and an in-memory
// store for tests.
type DataStore interface {
	ConfigReadProvider

	BanReadProvider
	BanWriteProvider

	WarningReadProvider
	WarningWriteProvider

	IPBanReadProvider
	IPBanWriteProvider
}

// Compile-time check: ProviderFactory implements DataProviderFactory.
var _ DataProviderFactory = (*ProviderFactory)(nil)

type ConfigReadProvider interface {
	Close() error
}

type BanReadProvider interface {
	// ActiveBanBySubject returns the newest active ban for a subject id, or
	// nil if there is none. Multiple active rows can coexist (records are
	// appended, never rewritten); reads take the newest by id.
	ActiveBanBySubject(subjectID uuid.UUID) (*model.Ban, error)

	// ActiveBanByName returns the newest active ban issued under a display
	// name, or nil.
	ActiveBanByName(name string) (*model.Ban, error)

	// ListActiveBans returns all active bans, newest-first by issue time.
	ListActiveBans() ([]model.Ban, error)

	// BansByName returns the full ban history for a display name,
	// newest-first by issue time, inactive records included.
	BansByName(name string) ([]model.Ban, error)

	// LatestSubjectIDByName returns the subject id stored on the most recent
	// ban record for a display name. ok is false when no record exists.
	LatestSubjectIDByName(name string) (id uuid.UUID, ok bool, err error)
}

type BanWriteProvider interface {
	// CreateBan appends a new ban record and fills in its assigned ID.
	// It does not deactivate prior records for the same subject.
	CreateBan(ban *model.Ban) error

	// DeactivateBan clears the active flag on a ban record.
	DeactivateBan(id int64) error
}

type BanTransactionProvider interface {
	// RevokeNewestActiveBan finds the newest active ban for a display name
	// and deactivates it, returning the record as it was before revocation.
	// Returns model.ErrNotSanctioned when no active record exists.
	RevokeNewestActiveBan(name string) (*model.Ban, error)
}

type WarningReadProvider interface {
	WarningsByName(name string) ([]model.Warning, error)
	CountWarningsBySubject(subjectID uuid.UUID) (int, error)
}

type WarningWriteProvider interface {
	CreateWarning(warning *model.Warning) error
}

type IPBanReadProvider interface {
	// IPBanByAddress returns the ban for an address, or nil if none.
	IPBanByAddress(address string) (*model.IPBan, error)
	ListIPBans() ([]model.IPBan, error)
}

type IPBanWriteProvider interface {
	// CreateIPBan inserts an IP ban. The address is unique; inserting a
	// duplicate returns an error wrapping model.ErrDuplicateAddress.
	CreateIPBan(ban *model.IPBan) error
}
