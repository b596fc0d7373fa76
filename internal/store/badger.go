package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/poku-e/invisible-city/internal/city"
)

var (
	buildingPrefix = []byte("building/")
	sequenceKey    = []byte("seq/building")
)

// sequence lease size; ids skip ahead by at most this much after a crash
const seqBandwidth = 64

// Badger stores each building as JSON under a zero-padded id key so a
// prefix scan returns them in id order.
type Badger struct {
	db  *badger.DB
	seq *badger.Sequence
	now func() time.Time
}

type badgerDoc struct {
	ID          int64  `json:"id"`
	Type        string `json:"type"`
	Description string `json:"description"`
	X           int    `json:"x"`
	Y           int    `json:"y"`
	CreatedAt   int64  `json:"created_at"`
}

// OpenBadger opens the database directory at path. An empty path runs
// in memory.
func OpenBadger(path string) (*Badger, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}
	seq, err := db.GetSequence(sequenceKey, seqBandwidth)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("badger: lease id sequence: %w", err)
	}
	return &Badger{db: db, seq: seq, now: time.Now}, nil
}

func buildingKey(id int64) []byte {
	return []byte(fmt.Sprintf("%s%020d", buildingPrefix, id))
}

func (s *Badger) Insert(ctx context.Context, nb city.NewBuilding) (city.Building, error) {
	if err := ctx.Err(); err != nil {
		return city.Building{}, err
	}
	n, err := s.seq.Next()
	if err != nil {
		return city.Building{}, fmt.Errorf("badger: next id: %w", err)
	}

	b := city.Building{
		// sequences start at 0, ids at 1
		ID:          int64(n) + 1,
		Type:        nb.Type,
		Description: nb.Description,
		CreatedAt:   stamp(s.now),
		X:           nb.X,
		Y:           nb.Y,
	}
	val, err := json.Marshal(badgerDoc{
		ID:          b.ID,
		Type:        b.Type,
		Description: b.Description,
		X:           b.X,
		Y:           b.Y,
		CreatedAt:   b.CreatedAt.Unix(),
	})
	if err != nil {
		return city.Building{}, err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(buildingKey(b.ID), val)
	})
	if err != nil {
		return city.Building{}, fmt.Errorf("badger: insert building: %w", err)
	}
	return b, nil
}

func (s *Badger) ListAll(ctx context.Context) ([]city.Building, error) {
	var out []city.Building
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = buildingPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("copy value: %w", err)
			}
			b, err := decodeBadgerDoc(val)
			if err != nil {
				return err
			}
			out = append(out, b)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger: list buildings: %w", err)
	}
	return out, nil
}

func (s *Badger) GetByID(ctx context.Context, id int64) (city.Building, error) {
	if err := ctx.Err(); err != nil {
		return city.Building{}, err
	}
	var b city.Building
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(buildingKey(id))
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		b, err = decodeBadgerDoc(val)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return city.Building{}, ErrNotFound
	}
	if err != nil {
		return city.Building{}, fmt.Errorf("badger: get building %d: %w", id, err)
	}
	return b, nil
}

func (s *Badger) Ping(ctx context.Context) error {
	if s.db.IsClosed() {
		return errors.New("badger: db closed")
	}
	return ctx.Err()
}

func (s *Badger) Close() error {
	if s.seq != nil {
		_ = s.seq.Release()
	}
	return s.db.Close()
}

func decodeBadgerDoc(val []byte) (city.Building, error) {
	var doc badgerDoc
	if err := json.Unmarshal(val, &doc); err != nil {
		return city.Building{}, fmt.Errorf("decode building: %w", err)
	}
	return city.Building{
		ID:          doc.ID,
		Type:        doc.Type,
		Description: doc.Description,
		CreatedAt:   time.Unix(doc.CreatedAt, 0).UTC(),
		X:           doc.X,
		Y:           doc.Y,
	}, nil
}
