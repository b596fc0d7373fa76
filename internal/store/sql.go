package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/poku-e/invisible-city/internal/city"
)

// dialect carries what differs between the database/sql backends.
type dialect struct {
	name   string
	schema string
	// numbered placeholders ($1, $2, ...) instead of ?
	numbered bool
}

func (d dialect) rebind(q string) string {
	if !d.numbered {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const (
	insertQuery = `
		INSERT INTO buildings (type, description, x_position, y_position, created_at)
		VALUES (?,?,?,?,?)
		RETURNING id`
	listQuery = `
		SELECT id, type, description, x_position, y_position, created_at
		FROM buildings
		ORDER BY id ASC`
	getQuery = `
		SELECT id, type, description, x_position, y_position, created_at
		FROM buildings
		WHERE id = ?`
)

// SQLStore is the database/sql backend shared by SQLite and Postgres.
// created_at is stored as unix seconds.
type SQLStore struct {
	db  *sql.DB
	d   dialect
	now func() time.Time
}

func newSQLStore(db *sql.DB, d dialect) *SQLStore {
	return &SQLStore{db: db, d: d, now: time.Now}
}

func (s *SQLStore) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.d.schema); err != nil {
		return fmt.Errorf("%s: init schema: %w", s.d.name, err)
	}
	return nil
}

func (s *SQLStore) Insert(ctx context.Context, nb city.NewBuilding) (city.Building, error) {
	if s == nil || s.db == nil {
		return city.Building{}, errors.New("store not initialized")
	}

	b := city.Building{
		Type:        nb.Type,
		Description: nb.Description,
		CreatedAt:   stamp(s.now),
		X:           nb.X,
		Y:           nb.Y,
	}
	err := s.db.QueryRowContext(ctx, s.d.rebind(insertQuery),
		b.Type,
		b.Description,
		b.X,
		b.Y,
		b.CreatedAt.Unix(),
	).Scan(&b.ID)
	if err != nil {
		return city.Building{}, fmt.Errorf("%s: insert building: %w", s.d.name, err)
	}
	return b, nil
}

func (s *SQLStore) ListAll(ctx context.Context) ([]city.Building, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store not initialized")
	}

	rows, err := s.db.QueryContext(ctx, listQuery)
	if err != nil {
		return nil, fmt.Errorf("%s: list buildings: %w", s.d.name, err)
	}
	defer rows.Close()

	var out []city.Building
	for rows.Next() {
		b, err := scanBuilding(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan building: %w", s.d.name, err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *SQLStore) GetByID(ctx context.Context, id int64) (city.Building, error) {
	if s == nil || s.db == nil {
		return city.Building{}, errors.New("store not initialized")
	}

	b, err := scanBuilding(s.db.QueryRowContext(ctx, s.d.rebind(getQuery), id))
	if errors.Is(err, sql.ErrNoRows) {
		return city.Building{}, ErrNotFound
	}
	if err != nil {
		return city.Building{}, fmt.Errorf("%s: get building %d: %w", s.d.name, id, err)
	}
	return b, nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBuilding(sc scanner) (city.Building, error) {
	var (
		b           city.Building
		description sql.NullString
		createdUnix int64
	)
	if err := sc.Scan(&b.ID, &b.Type, &description, &b.X, &b.Y, &createdUnix); err != nil {
		return city.Building{}, err
	}
	b.Description = description.String
	b.CreatedAt = time.Unix(createdUnix, 0).UTC()
	return b, nil
}
