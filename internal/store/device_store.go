package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"omemo/internal/domain"
)

// ownIdentityKey is the identity column value used for the local account's
// own snapshot row.
const ownIdentityKey = ""

// DeviceSQLiteStore keeps device lists in SQLite, namespaced by the local
// account. Each write replaces the whole snapshot for one identity inside a
// single transaction.
type DeviceSQLiteStore struct {
	db      *sql.DB
	account string
	now     func() time.Time
}

// OpenDeviceStore opens (or creates) the database at path for account, which
// must be the bare JID of the local account.
func OpenDeviceStore(path, account string) (*DeviceSQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}
	// One connection gives every read-modify-write sequence the same view and
	// makes ":memory:" databases usable.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=FULL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	s := &DeviceSQLiteStore{db: db, account: account, now: time.Now}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *DeviceSQLiteStore) initSchema() error {
	schema := `
	-- One row per (account, identity) that has ever had a list recorded.
	-- identity is '' for the account's own list.
	CREATE TABLE IF NOT EXISTS device_list_snapshots (
		account TEXT NOT NULL,
		identity TEXT NOT NULL,
		observed_at INTEGER NOT NULL,
		PRIMARY KEY (account, identity)
	);

	CREATE TABLE IF NOT EXISTS own_devices (
		account TEXT NOT NULL,
		device_id INTEGER NOT NULL,
		PRIMARY KEY (account, device_id)
	);

	CREATE TABLE IF NOT EXISTS buddy_devices (
		account TEXT NOT NULL,
		identity TEXT NOT NULL,
		device_id INTEGER NOT NULL,
		PRIMARY KEY (account, identity, device_id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close releases the database.
func (s *DeviceSQLiteStore) Close() error { return s.db.Close() }

// RecordOwnDevices replaces the stored own-device snapshot.
func (s *DeviceSQLiteStore) RecordOwnDevices(ctx context.Context, ids domain.DeviceSet) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM own_devices WHERE account = ?`, s.account); err != nil {
			return err
		}
		for _, id := range ids.Sorted() {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO own_devices (account, device_id) VALUES (?, ?)`,
				s.account, int64(id)); err != nil {
				return err
			}
		}
		return s.touch(ctx, tx, ownIdentityKey)
	})
}

// RecordBuddyDevices replaces the stored snapshot for the bare identity.
func (s *DeviceSQLiteStore) RecordBuddyDevices(ctx context.Context, identity string, ids domain.DeviceSet) error {
	if identity == ownIdentityKey {
		return errors.New("device store: empty identity")
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM buddy_devices WHERE account = ? AND identity = ?`,
			s.account, identity); err != nil {
			return err
		}
		for _, id := range ids.Sorted() {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO buddy_devices (account, identity, device_id) VALUES (?, ?, ?)`,
				s.account, identity, int64(id)); err != nil {
				return err
			}
		}
		return s.touch(ctx, tx, identity)
	})
}

// OwnDevices returns the own-device snapshot; empty if none was recorded.
func (s *DeviceSQLiteStore) OwnDevices(ctx context.Context) (domain.DeviceSet, error) {
	return s.queryIDs(ctx,
		`SELECT device_id FROM own_devices WHERE account = ?`, s.account)
}

// DevicesFor returns the device set for a bare identity; empty if unknown.
// The account's own bare JID reads the own-device snapshot.
func (s *DeviceSQLiteStore) DevicesFor(ctx context.Context, identity string) (domain.DeviceSet, error) {
	if identity == s.account {
		return s.OwnDevices(ctx)
	}
	return s.queryIDs(ctx,
		`SELECT device_id FROM buddy_devices WHERE account = ? AND identity = ?`,
		s.account, identity)
}

// Snapshot returns the snapshot for identity and whether a list was ever
// recorded for it. Pass the account's own bare JID to read the own snapshot.
func (s *DeviceSQLiteStore) Snapshot(ctx context.Context, identity string) (domain.DeviceListSnapshot, bool, error) {
	key := identity
	if identity == s.account {
		key = ownIdentityKey
	}
	var observed int64
	err := s.db.QueryRowContext(ctx,
		`SELECT observed_at FROM device_list_snapshots WHERE account = ? AND identity = ?`,
		s.account, key).Scan(&observed)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DeviceListSnapshot{Identity: identity, Devices: domain.NewDeviceSet()}, false, nil
	}
	if err != nil {
		return domain.DeviceListSnapshot{}, false, err
	}

	var ids domain.DeviceSet
	if ids, err = s.DevicesFor(ctx, identity); err != nil {
		return domain.DeviceListSnapshot{}, false, err
	}
	return domain.DeviceListSnapshot{
		Identity:   identity,
		Devices:    ids,
		ObservedAt: time.UnixMilli(observed),
	}, true, nil
}

func (s *DeviceSQLiteStore) touch(ctx context.Context, tx *sql.Tx, identity string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO device_list_snapshots (account, identity, observed_at) VALUES (?, ?, ?)
		ON CONFLICT (account, identity) DO UPDATE SET observed_at = excluded.observed_at`,
		s.account, identity, s.now().UnixMilli())
	return err
}

func (s *DeviceSQLiteStore) queryIDs(ctx context.Context, query string, args ...any) (domain.DeviceSet, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := domain.NewDeviceSet()
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out.Add(domain.DeviceID(id))
	}
	return out, rows.Err()
}

func (s *DeviceSQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Compile-time assertion that DeviceSQLiteStore implements domain.DeviceStore.
var _ domain.DeviceStore = (*DeviceSQLiteStore)(nil)
