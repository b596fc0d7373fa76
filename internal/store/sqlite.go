package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

var sqliteDialect = dialect{
	name: "sqlite",
	schema: `
		CREATE TABLE IF NOT EXISTS buildings (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			type         TEXT    NOT NULL,
			description  TEXT    NOT NULL DEFAULT '',
			x_position   INTEGER NOT NULL,
			y_position   INTEGER NOT NULL,
			created_at   INTEGER NOT NULL
		);
	`,
}

// OpenSQLite opens (creating if absent) the database file at dbPath.
func OpenSQLite(dbPath string) (*SQLStore, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("sqlite: empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create db path: %w", err)
	}

	// DSN notes:
	// - _pragma=busy_timeout sets a lock wait
	// - _pragma=journal_mode(WAL) enables the write-ahead log
	// - _pragma=synchronous(NORMAL) is the recommended pairing with WAL
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", filepath.Clean(dbPath))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// one writer; inserts are serialized here
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxIdleTime(5 * time.Minute)

	s := newSQLStore(db, sqliteDialect)
	if err := s.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}
