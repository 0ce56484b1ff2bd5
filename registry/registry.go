// Package registry is the device-local store for directory grants and
// small per-device flags. Directory handles are opaque host resources,
// not serializable data, so they live here — outside any synced
// storage root — keyed by folder id. Only ids ever cross into the
// JSON-persisted world.
package registry

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const currentVersion = 1

// Folder is one remembered directory grant.
type Folder struct {
	ID   string
	Name string
	Path string
}

// Flag keys for the device-local state that never enters a synced root.
const (
	FlagActiveFolder = "active_folder"
	FlagHasLinked    = "has_linked"
	FlagLastTheme    = "last_theme"
)

// Store is the persistent registry, backed by SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the registry database at dbPath and runs
// migrations.
func Open(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create registry directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate registry: %w", err)
	}
	return s, nil
}

// OpenMemory creates an in-memory registry for testing.
func OpenMemory() (*Store, error) {
	return Open(":memory:")
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	if version >= currentVersion {
		return nil
	}
	if version < 1 {
		if err := s.migrateV1(); err != nil {
			return err
		}
	}
	_, err := s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentVersion))
	return err
}

func (s *Store) migrateV1() error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS folders (
		position INTEGER PRIMARY KEY AUTOINCREMENT,
		id       TEXT NOT NULL UNIQUE,
		name     TEXT NOT NULL,
		path     TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS flags (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(ddl)
	return err
}

// SaveFolders replaces the whole remembered set with the given list.
// The registry is transactional at this clear-then-write granularity,
// matching the small expected cardinality of roots.
func (s *Store) SaveFolders(folders []Folder) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("save folders: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM folders"); err != nil {
		return fmt.Errorf("save folders: %w", err)
	}
	for _, f := range folders {
		if _, err := tx.Exec("INSERT INTO folders (id, name, path) VALUES (?, ?, ?)", f.ID, f.Name, f.Path); err != nil {
			return fmt.Errorf("save folder %q: %w", f.ID, err)
		}
	}
	return tx.Commit()
}

// LoadFolders returns the remembered folders in insertion order.
func (s *Store) LoadFolders() ([]Folder, error) {
	rows, err := s.db.Query("SELECT id, name, path FROM folders ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("load folders: %w", err)
	}
	defer rows.Close()

	var folders []Folder
	for rows.Next() {
		var f Folder
		if err := rows.Scan(&f.ID, &f.Name, &f.Path); err != nil {
			return nil, fmt.Errorf("load folders: %w", err)
		}
		folders = append(folders, f)
	}
	return folders, rows.Err()
}

// ClearFolders forgets every remembered folder.
func (s *Store) ClearFolders() error {
	_, err := s.db.Exec("DELETE FROM folders")
	return err
}

// SetFlag stores a device-local flag value.
func (s *Store) SetFlag(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO flags (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value)
	return err
}

// Flag returns a device-local flag value, or "" when unset.
func (s *Store) Flag(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM flags WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// DefaultPath returns the registry location under the user config dir.
func DefaultPath() (string, error) {
	cfg, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cfg, "chartlog", "registry.db"), nil
}
