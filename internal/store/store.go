// Package store persists building records. Every backend is append-only:
// there is no update or delete path.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/poku-e/invisible-city/internal/city"
)

var ErrNotFound = errors.New("building not found")

type Store interface {
	Insert(ctx context.Context, nb city.NewBuilding) (city.Building, error)
	ListAll(ctx context.Context) ([]city.Building, error)
	GetByID(ctx context.Context, id int64) (city.Building, error)
	Ping(ctx context.Context) error
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	// Driver is one of "sqlite", "postgres", "badger" or "memory".
	Driver string
	// Path is the database file (sqlite) or directory (badger).
	Path string
	// DSN is the Postgres connection string.
	DSN string
}

func Open(opts Options) (Store, error) {
	switch opts.Driver {
	case "", "sqlite":
		return OpenSQLite(opts.Path)
	case "postgres":
		return OpenPostgres(opts.DSN)
	case "badger":
		return OpenBadger(opts.Path)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
}

// stamp is the creation time every backend records: UTC, truncated to
// the second so what Insert returns equals what later reads return.
func stamp(now func() time.Time) time.Time {
	if now == nil {
		now = time.Now
	}
	return now().UTC().Truncate(time.Second)
}
