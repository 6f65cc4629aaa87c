package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"net/url"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Store is the Local Store shared by every tab of one browser profile.
// WAL lets sibling tabs read while one of them writes; busy_timeout makes
// concurrent writers wait instead of failing.
type Store struct {
	db *sql.DB
}

// dsn adds the connection parameters every handle needs. go-sqlite3 runs
// them on each new connection.
func dsn(path string) string {
	q := url.Values{}
	q.Set("_journal_mode", "WAL")
	q.Set("_synchronous", "NORMAL")
	q.Set("_busy_timeout", "5000")
	return path + "?" + q.Encode()
}

// Open opens the store at path, creating it if needed, and brings the schema
// up to date. ":memory:" gives a private store that vanishes on Close.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}

	// A second connection to ":memory:" would be a different database, and
	// one process never needs more than one writer anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect local store: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// migration upgrades the schema from version-1 to version.
type migration struct {
	version int
	stmt    string
}

// migrations run in order on stores whose user_version is lower.
var migrations = []migration{
	// Lets `cartsync show --slots` list the most recently written slots first.
	{1, `CREATE INDEX IF NOT EXISTS idx_slots_updated_at ON slots(updated_at)`},
}

// SchemaVersion is the user_version of a fully migrated store.
func SchemaVersion() int {
	return migrations[len(migrations)-1].version
}

func migrate(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	var version int
	if err := db.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	for _, m := range migrations {
		if m.version <= version {
			continue
		}
		if _, err := db.Exec(m.stmt); err != nil {
			return fmt.Errorf("migrate to v%d: %w", m.version, err)
		}
		// PRAGMA does not take bound parameters.
		if _, err := db.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, m.version)); err != nil {
			return fmt.Errorf("record schema v%d: %w", m.version, err)
		}
	}
	return nil
}

// pragma reads the current value of a connection setting.
func (s *Store) pragma(ctx context.Context, name string) (string, error) {
	var value string
	if err := s.db.QueryRowContext(ctx, "PRAGMA "+name).Scan(&value); err != nil {
		return "", fmt.Errorf("read pragma %s: %w", name, err)
	}
	return value, nil
}
