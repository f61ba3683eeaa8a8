package datastore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"warden/pkg/model"
)

// MemoryStore provides an in-memory DataStore implementation for tests.
// It mirrors SQLite behavior for ordering and error handling, and acts as
// its own provider factory.
type MemoryStore struct {
	mu sync.RWMutex

	nextBanID     int64
	nextWarningID int64
	nextIPBanID   int64

	bans           []*model.Ban
	warnings       []*model.Warning
	ipbansByAddr   map[string]*model.IPBan
	ipbanInsertSeq []string
}

// NewMemory creates an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		nextBanID:     1,
		nextWarningID: 1,
		nextIPBanID:   1,
		ipbansByAddr:  make(map[string]*model.IPBan),
	}
}

// NonTx returns the store itself.
func (s *MemoryStore) NonTx() DataStore {
	return s
}

// Tx returns a transaction view. Memory transactions are not isolated; the
// store's single mutex already serializes access.
func (s *MemoryStore) Tx(_ context.Context) (DataStoreTx, error) {
	return &memoryTx{MemoryStore: s}, nil
}

type memoryTx struct {
	*MemoryStore
}

func (t *memoryTx) Rollback() error { return nil }
func (t *memoryTx) Commit() error   { return nil }

// RevokeNewestActiveBan finds the newest active ban for a name and
// deactivates it.
func (t *memoryTx) RevokeNewestActiveBan(name string) (*model.Ban, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.bans) - 1; i >= 0; i-- {
		b := t.bans[i]
		if b.Name == name && b.Active {
			snapshot := *b
			b.Active = false
			return &snapshot, nil
		}
	}
	return nil, model.ErrNotSanctioned
}

// Close is a no-op for MemoryStore.
func (s *MemoryStore) Close() error {
	return nil
}

// CreateBan appends a new ban record and fills in its assigned ID.
func (s *MemoryStore) CreateBan(ban *model.Ban) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ban.ID = s.nextBanID
	s.nextBanID++
	stored := *ban
	s.bans = append(s.bans, &stored)
	return nil
}

// ActiveBanBySubject returns the newest active ban for a subject id, or nil.
func (s *MemoryStore) ActiveBanBySubject(subjectID uuid.UUID) (*model.Ban, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.bans) - 1; i >= 0; i-- {
		b := s.bans[i]
		if b.SubjectID == subjectID && b.Active {
			snapshot := *b
			return &snapshot, nil
		}
	}
	return nil, nil
}

// ActiveBanByName returns the newest active ban for a display name, or nil.
func (s *MemoryStore) ActiveBanByName(name string) (*model.Ban, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.bans) - 1; i >= 0; i-- {
		b := s.bans[i]
		if b.Name == name && b.Active {
			snapshot := *b
			return &snapshot, nil
		}
	}
	return nil, nil
}

// DeactivateBan clears the active flag on a ban record.
func (s *MemoryStore) DeactivateBan(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bans {
		if b.ID == id {
			b.Active = false
			return nil
		}
	}
	return nil
}

// ListActiveBans returns all active bans, newest-first by issue time.
func (s *MemoryStore) ListActiveBans() ([]model.Ban, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var bans []model.Ban
	for _, b := range s.bans {
		if b.Active {
			bans = append(bans, *b)
		}
	}
	sortBansNewestFirst(bans)
	return bans, nil
}

// BansByName returns the full ban history for a display name, newest-first.
func (s *MemoryStore) BansByName(name string) ([]model.Ban, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var bans []model.Ban
	for _, b := range s.bans {
		if b.Name == name {
			bans = append(bans, *b)
		}
	}
	sortBansNewestFirst(bans)
	return bans, nil
}

func sortBansNewestFirst(bans []model.Ban) {
	sort.Slice(bans, func(i, j int) bool {
		if bans[i].IssuedAt == bans[j].IssuedAt {
			return bans[i].ID > bans[j].ID
		}
		return bans[i].IssuedAt > bans[j].IssuedAt
	})
}

// LatestSubjectIDByName returns the subject id stored on the most recent ban
// record for a display name.
func (s *MemoryStore) LatestSubjectIDByName(name string) (uuid.UUID, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.bans) - 1; i >= 0; i-- {
		if s.bans[i].Name == name {
			return s.bans[i].SubjectID, true, nil
		}
	}
	return uuid.Nil, false, nil
}

// CreateWarning appends a warning record and fills in its assigned ID.
func (s *MemoryStore) CreateWarning(warning *model.Warning) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	warning.ID = s.nextWarningID
	s.nextWarningID++
	stored := *warning
	s.warnings = append(s.warnings, &stored)
	return nil
}

// WarningsByName returns all warnings for a display name, newest-first.
func (s *MemoryStore) WarningsByName(name string) ([]model.Warning, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var warnings []model.Warning
	for _, w := range s.warnings {
		if w.Name == name {
			warnings = append(warnings, *w)
		}
	}
	sort.Slice(warnings, func(i, j int) bool {
		if warnings[i].IssuedAt == warnings[j].IssuedAt {
			return warnings[i].ID > warnings[j].ID
		}
		return warnings[i].IssuedAt > warnings[j].IssuedAt
	})
	return warnings, nil
}

// CountWarningsBySubject returns the escalation counter for a subject id.
func (s *MemoryStore) CountWarningsBySubject(subjectID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, w := range s.warnings {
		if w.SubjectID == subjectID {
			count++
		}
	}
	return count, nil
}

// CreateIPBan inserts an IP ban record, rejecting duplicate addresses.
func (s *MemoryStore) CreateIPBan(ban *model.IPBan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.ipbansByAddr[ban.Address]; exists {
		return fmt.Errorf("memstore: create ip ban: %w", model.ErrDuplicateAddress)
	}
	ban.ID = s.nextIPBanID
	s.nextIPBanID++
	stored := *ban
	s.ipbansByAddr[ban.Address] = &stored
	s.ipbanInsertSeq = append(s.ipbanInsertSeq, ban.Address)
	return nil
}

// IPBanByAddress returns the ban for an address, or nil if none.
func (s *MemoryStore) IPBanByAddress(address string) (*model.IPBan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.ipbansByAddr[address]
	if !ok {
		return nil, nil
	}
	snapshot := *b
	return &snapshot, nil
}

// ListIPBans returns all IP bans, newest-first by issue time.
func (s *MemoryStore) ListIPBans() ([]model.IPBan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bans := make([]model.IPBan, 0, len(s.ipbansByAddr))
	for i := len(s.ipbanInsertSeq) - 1; i >= 0; i-- {
		if b, ok := s.ipbansByAddr[s.ipbanInsertSeq[i]]; ok {
			bans = append(bans, *b)
		}
	}
	return bans, nil
}

// Compile-time checks.
var _ DataStore = (*MemoryStore)(nil)
var _ DataProviderFactory = (*MemoryStore)(nil)
var _ DataStoreTx = (*memoryTx)(nil)
