package datastore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"warden/pkg/model"
)

type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type baseProvider struct {
	DB
}

func (p *baseProvider) Close() error {
	return nil
}

type nonTxProvider struct {
	baseProvider
}

type txProvider struct {
	baseProvider
	tx *sql.Tx
}

func (c *txProvider) Rollback() error {
	return c.tx.Rollback()
}

func (c *txProvider) Commit() error {
	return c.tx.Commit()
}

// ProviderFactory provides database access for all Warden sanction records.
type ProviderFactory struct {
	DB *sql.DB
}

func (sf ProviderFactory) NonTx() DataStore {
	return &nonTxProvider{
		baseProvider: baseProvider{
			DB: sf.DB,
		},
	}
}

func (sf ProviderFactory) Tx(ctx context.Context) (DataStoreTx, error) {
	tx, err := sf.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	return &txProvider{
		baseProvider: baseProvider{
			DB: tx,
		},
		tx: tx,
	}, nil
}

// NewProviderFactory opens (or creates) a SQLite database and runs migrations.
func NewProviderFactory(dbPath string) (*ProviderFactory, error) {
	DB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("datastore: open DB: %w", err)
	}

	ctx := context.Background()

	// Enable WAL mode for better concurrent read performance
	if _, err := DB.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = DB.Close()
		return nil, fmt.Errorf("datastore: set WAL: %w", err)
	}
	if _, err := DB.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		_ = DB.Close()
		return nil, fmt.Errorf("datastore: enable FK: %w", err)
	}
	// Set busy timeout to avoid "database is locked" under concurrency
	if _, err := DB.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = DB.Close()
		return nil, fmt.Errorf("datastore: set busy_timeout: %w", err)
	}

	s := &ProviderFactory{DB: DB}
	if err := s.migrate(); err != nil {
		_ = DB.Close()
		return nil, fmt.Errorf("datastore: migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *ProviderFactory) Close() error {
	return s.DB.Close()
}

func (s *ProviderFactory) migrate() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS bans (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		name       TEXT    NOT NULL,
		subject_id TEXT    NOT NULL,
		issued_by  TEXT    NOT NULL,
		reason     TEXT    NOT NULL DEFAULT '',
		issued_at  INTEGER NOT NULL,
		expires_at INTEGER NOT NULL DEFAULT 0,
		permanent  INTEGER NOT NULL DEFAULT 0,
		active     INTEGER NOT NULL DEFAULT 1,
		address    TEXT    NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_bans_subject ON bans(subject_id, active);
	CREATE INDEX IF NOT EXISTS idx_bans_name ON bans(name);

	CREATE TABLE IF NOT EXISTS warnings (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		name       TEXT    NOT NULL,
		subject_id TEXT    NOT NULL,
		issued_by  TEXT    NOT NULL,
		reason     TEXT    NOT NULL DEFAULT '',
		issued_at  INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_warnings_subject ON warnings(subject_id);

	CREATE TABLE IF NOT EXISTS ipbans (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		address    TEXT    NOT NULL UNIQUE,
		issued_by  TEXT    NOT NULL,
		reason     TEXT    NOT NULL DEFAULT '',
		issued_at  INTEGER NOT NULL
	);
	`
	ctx := context.Background()
	if err := s.ensureSchemaMigrations(ctx); err != nil {
		return err
	}
	currentVersion, err := s.getSchemaVersion(ctx)
	if err != nil {
		return err
	}

	migrations := []struct {
		version    int
		statements []string
	}{
		{
			version:    1,
			statements: []string{schema},
		},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		for _, stmt := range m.statements {
			if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("datastore: migrate: %w", err)
			}
		}
		if err := s.setSchemaVersion(ctx, m.version); err != nil {
			return err
		}
	}
	return nil
}

func (s *ProviderFactory) ensureSchemaMigrations(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER NOT NULL)"); err != nil {
		return fmt.Errorf("datastore: create schema_migrations: %w", err)
	}
	var count int
	if err := s.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		return fmt.Errorf("datastore: check schema_migrations: %w", err)
	}
	if count == 0 {
		if _, err := s.DB.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (0)"); err != nil {
			return fmt.Errorf("datastore: init schema_migrations: %w", err)
		}
	}
	return nil
}

func (s *ProviderFactory) getSchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.DB.QueryRowContext(ctx, "SELECT version FROM schema_migrations LIMIT 1").Scan(&version); err != nil {
		return 0, fmt.Errorf("datastore: read schema version: %w", err)
	}
	return version, nil
}

func (s *ProviderFactory) setSchemaVersion(ctx context.Context, version int) error {
	if _, err := s.DB.ExecContext(ctx, "UPDATE schema_migrations SET version = ?", version); err != nil {
		return fmt.Errorf("datastore: update schema version: %w", err)
	}
	return nil
}

const banColumns = "id, name, subject_id, issued_by, reason, issued_at, expires_at, permanent, active, address"

// scanBan decodes one bans row. A malformed subject id is a store failure,
// not a silent default.
func scanBan(scan func(...any) error) (*model.Ban, error) {
	b := &model.Ban{}
	var subjectID string
	var permanentInt, activeInt int
	if err := scan(&b.ID, &b.Name, &subjectID, &b.IssuedBy, &b.Reason, &b.IssuedAt, &b.ExpiresAt, &permanentInt, &activeInt, &b.Address); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(subjectID)
	if err != nil {
		return nil, fmt.Errorf("decode subject id %q: %w", subjectID, err)
	}
	b.SubjectID = parsed
	b.Permanent = permanentInt != 0
	b.Active = activeInt != 0
	return b, nil
}

// ---- Bans ----

// CreateBan appends a new ban record and fills in its assigned ID. Prior
// records for the same subject are left untouched; reads take the newest.
func (s *baseProvider) CreateBan(ban *model.Ban) error {
	permanentInt := 0
	if ban.Permanent {
		permanentInt = 1
	}
	activeInt := 0
	if ban.Active {
		activeInt = 1
	}
	res, err := s.ExecContext(context.Background(),
		"INSERT INTO bans (name, subject_id, issued_by, reason, issued_at, expires_at, permanent, active, address) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		ban.Name, ban.SubjectID.String(), ban.IssuedBy, ban.Reason, ban.IssuedAt, ban.ExpiresAt, permanentInt, activeInt, ban.Address)
	if err != nil {
		return fmt.Errorf("datastore: create ban: %w", err)
	}
	ban.ID, _ = res.LastInsertId()
	return nil
}

// ActiveBanBySubject returns the newest active ban for a subject id, or nil.
func (s *baseProvider) ActiveBanBySubject(subjectID uuid.UUID) (*model.Ban, error) {
	row := s.QueryRowContext(context.Background(),
		"SELECT "+banColumns+" FROM bans WHERE subject_id = ? AND active = 1 ORDER BY id DESC LIMIT 1",
		subjectID.String())
	ban, err := scanBan(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("datastore: get active ban: %w", err)
	}
	return ban, nil
}

// ActiveBanByName returns the newest active ban for a display name, or nil.
func (s *baseProvider) ActiveBanByName(name string) (*model.Ban, error) {
	row := s.QueryRowContext(context.Background(),
		"SELECT "+banColumns+" FROM bans WHERE name = ? AND active = 1 ORDER BY id DESC LIMIT 1",
		name)
	ban, err := scanBan(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("datastore: get active ban by name: %w", err)
	}
	return ban, nil
}

// DeactivateBan clears the active flag on a ban record.
func (s *baseProvider) DeactivateBan(id int64) error {
	_, err := s.ExecContext(context.Background(), "UPDATE bans SET active = 0 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("datastore: deactivate ban: %w", err)
	}
	return nil
}

// ListActiveBans returns all active bans, newest-first by issue time.
func (s *baseProvider) ListActiveBans() ([]model.Ban, error) {
	return s.queryBans("SELECT " + banColumns + " FROM bans WHERE active = 1 ORDER BY issued_at DESC, id DESC")
}

// BansByName returns the full ban history for a display name, newest-first.
func (s *baseProvider) BansByName(name string) ([]model.Ban, error) {
	return s.queryBans("SELECT "+banColumns+" FROM bans WHERE name = ? ORDER BY issued_at DESC, id DESC", name)
}

func (s *baseProvider) queryBans(query string, args ...any) ([]model.Ban, error) {
	rows, err := s.QueryContext(context.Background(), query, args...)
	if err != nil {
		return nil, fmt.Errorf("datastore: list bans: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var bans []model.Ban
	for rows.Next() {
		ban, err := scanBan(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("datastore: scan ban: %w", err)
		}
		bans = append(bans, *ban)
	}
	return bans, rows.Err()
}

// LatestSubjectIDByName returns the subject id stored on the most recent ban
// record for a display name.
func (s *baseProvider) LatestSubjectIDByName(name string) (uuid.UUID, bool, error) {
	var subjectID string
	err := s.QueryRowContext(context.Background(),
		"SELECT subject_id FROM bans WHERE name = ? ORDER BY id DESC LIMIT 1", name).
		Scan(&subjectID)
	if err == sql.ErrNoRows {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("datastore: get subject id: %w", err)
	}
	parsed, err := uuid.Parse(subjectID)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("datastore: decode subject id %q: %w", subjectID, err)
	}
	return parsed, true, nil
}

// RevokeNewestActiveBan finds the newest active ban for a display name and
// deactivates it. Returns model.ErrNotSanctioned when no active row exists.
func (s *txProvider) RevokeNewestActiveBan(name string) (*model.Ban, error) {
	ctx := context.Background()

	defer func() { _ = s.Rollback() }()

	row := s.QueryRowContext(ctx,
		"SELECT "+banColumns+" FROM bans WHERE name = ? AND active = 1 ORDER BY id DESC LIMIT 1",
		name)
	ban, err := scanBan(row.Scan)
	if err == sql.ErrNoRows {
		return nil, model.ErrNotSanctioned
	}
	if err != nil {
		return nil, fmt.Errorf("datastore: revoke ban: %w", err)
	}

	if _, err := s.ExecContext(ctx, "UPDATE bans SET active = 0 WHERE id = ?", ban.ID); err != nil {
		return nil, fmt.Errorf("datastore: revoke ban: %w", err)
	}

	if err := s.Commit(); err != nil {
		return nil, fmt.Errorf("datastore: commit: %w", err)
	}

	return ban, nil
}

// ---- Warnings ----

// CreateWarning appends a warning record and fills in its assigned ID.
func (s *baseProvider) CreateWarning(warning *model.Warning) error {
	res, err := s.ExecContext(context.Background(),
		"INSERT INTO warnings (name, subject_id, issued_by, reason, issued_at) VALUES (?, ?, ?, ?, ?)",
		warning.Name, warning.SubjectID.String(), warning.IssuedBy, warning.Reason, warning.IssuedAt)
	if err != nil {
		return fmt.Errorf("datastore: create warning: %w", err)
	}
	warning.ID, _ = res.LastInsertId()
	return nil
}

// WarningsByName returns all warnings for a display name, newest-first.
func (s *baseProvider) WarningsByName(name string) ([]model.Warning, error) {
	rows, err := s.QueryContext(context.Background(),
		"SELECT id, name, subject_id, issued_by, reason, issued_at FROM warnings WHERE name = ? ORDER BY issued_at DESC, id DESC",
		name)
	if err != nil {
		return nil, fmt.Errorf("datastore: list warnings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var warnings []model.Warning
	for rows.Next() {
		var w model.Warning
		var subjectID string
		if err := rows.Scan(&w.ID, &w.Name, &subjectID, &w.IssuedBy, &w.Reason, &w.IssuedAt); err != nil {
			return nil, fmt.Errorf("datastore: scan warning: %w", err)
		}
		parsed, err := uuid.Parse(subjectID)
		if err != nil {
			return nil, fmt.Errorf("datastore: scan warning: decode subject id %q: %w", subjectID, err)
		}
		w.SubjectID = parsed
		warnings = append(warnings, w)
	}
	return warnings, rows.Err()
}

// CountWarningsBySubject returns the escalation counter for a subject id.
func (s *baseProvider) CountWarningsBySubject(subjectID uuid.UUID) (int, error) {
	var count int
	err := s.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM warnings WHERE subject_id = ?", subjectID.String()).
		Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("datastore: count warnings: %w", err)
	}
	return count, nil
}

// ---- IP bans ----

// CreateIPBan inserts an IP ban record. The address is the unique key; a
// duplicate insert surfaces as model.ErrDuplicateAddress.
func (s *baseProvider) CreateIPBan(ban *model.IPBan) error {
	res, err := s.ExecContext(context.Background(),
		"INSERT INTO ipbans (address, issued_by, reason, issued_at) VALUES (?, ?, ?, ?)",
		ban.Address, ban.IssuedBy, ban.Reason, ban.IssuedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("datastore: create ip ban: %w", model.ErrDuplicateAddress)
		}
		return fmt.Errorf("datastore: create ip ban: %w", err)
	}
	ban.ID, _ = res.LastInsertId()
	return nil
}

// IPBanByAddress returns the ban for an address, or nil if none.
func (s *baseProvider) IPBanByAddress(address string) (*model.IPBan, error) {
	b := &model.IPBan{}
	err := s.QueryRowContext(context.Background(),
		"SELECT id, address, issued_by, reason, issued_at FROM ipbans WHERE address = ?", address).
		Scan(&b.ID, &b.Address, &b.IssuedBy, &b.Reason, &b.IssuedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("datastore: get ip ban: %w", err)
	}
	return b, nil
}

// ListIPBans returns all IP bans, newest-first by issue time.
func (s *baseProvider) ListIPBans() ([]model.IPBan, error) {
	rows, err := s.QueryContext(context.Background(),
		"SELECT id, address, issued_by, reason, issued_at FROM ipbans ORDER BY issued_at DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("datastore: list ip bans: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var bans []model.IPBan
	for rows.Next() {
		var b model.IPBan
		if err := rows.Scan(&b.ID, &b.Address, &b.IssuedBy, &b.Reason, &b.IssuedAt); err != nil {
			return nil, fmt.Errorf("datastore: scan ip ban: %w", err)
		}
		bans = append(bans, b)
	}
	return bans, rows.Err()
}
