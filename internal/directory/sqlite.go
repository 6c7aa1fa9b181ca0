package directory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS realms (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	share_id TEXT NOT NULL DEFAULT '',
	only_owner INTEGER NOT NULL DEFAULT 0,
	map_data TEXT NOT NULL DEFAULT '{}'
);
CREATE TABLE IF NOT EXISTS profiles (
	id TEXT PRIMARY KEY,
	skin TEXT NOT NULL DEFAULT ''
);
`

// SQLite reads realm and profile rows from a local sqlite database, the same
// tables the surrounding platform writes when realms are created or edited.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (and if needed initializes) the directory database at
// path. Use ":memory:" for an ephemeral database.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open directory db: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init directory schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) LookupRealm(ctx context.Context, realmID string) (Realm, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, share_id, only_owner, map_data FROM realms WHERE id = ?`, realmID)

	var realm Realm
	var onlyOwner int
	var mapData string
	if err := row.Scan(&realm.ID, &realm.OwnerID, &realm.ShareID, &onlyOwner, &mapData); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Realm{}, ErrNotFound
		}
		return Realm{}, fmt.Errorf("lookup realm %s: %w", realmID, err)
	}
	realm.OwnerOnly = onlyOwner != 0
	realm.MapData = json.RawMessage(mapData)
	return realm, nil
}

func (s *SQLite) LookupProfileSkin(ctx context.Context, uid string) (string, error) {
	row := s.db.QueryRowContext(ctx, `SELECT skin FROM profiles WHERE id = ?`, uid)

	var skin string
	if err := row.Scan(&skin); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("lookup profile %s: %w", uid, err)
	}
	if skin == "" {
		return "", ErrNotFound
	}
	return skin, nil
}

// UpsertRealm writes a realm row. The serving path never calls this; it
// exists for seeding standalone deployments and tests.
func (s *SQLite) UpsertRealm(ctx context.Context, realm Realm) error {
	onlyOwner := 0
	if realm.OwnerOnly {
		onlyOwner = 1
	}
	mapData := string(realm.MapData)
	if mapData == "" {
		mapData = "{}"
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO realms (id, owner_id, share_id, only_owner, map_data)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			owner_id = excluded.owner_id,
			share_id = excluded.share_id,
			only_owner = excluded.only_owner,
			map_data = excluded.map_data`,
		realm.ID, realm.OwnerID, realm.ShareID, onlyOwner, mapData)
	if err != nil {
		return fmt.Errorf("upsert realm %s: %w", realm.ID, err)
	}
	return nil
}

// UpsertProfileSkin writes a profile skin row for seeding and tests.
func (s *SQLite) UpsertProfileSkin(ctx context.Context, uid, skin string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (id, skin) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET skin = excluded.skin`,
		uid, skin)
	if err != nil {
		return fmt.Errorf("upsert profile %s: %w", uid, err)
	}
	return nil
}
