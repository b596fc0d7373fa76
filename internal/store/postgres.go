package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

var postgresDialect = dialect{
	name:     "postgres",
	numbered: true,
	schema: `
		CREATE TABLE IF NOT EXISTS buildings (
			id           BIGSERIAL PRIMARY KEY,
			type         TEXT   NOT NULL,
			description  TEXT   NOT NULL DEFAULT '',
			x_position   BIGINT NOT NULL,
			y_position   BIGINT NOT NULL,
			created_at   BIGINT NOT NULL
		);
	`,
}

// OpenPostgres connects with dsn, pings, and creates the table if needed.
func OpenPostgres(dsn string) (*SQLStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres: empty dsn")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := newSQLStore(db, postgresDialect)
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}
