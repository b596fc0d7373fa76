package store

import (
	"context"
	"sync"
	"time"

	"github.com/poku-e/invisible-city/internal/city"
)

// Memory keeps buildings in a slice. Contents are lost on exit.
type Memory struct {
	mu    sync.RWMutex
	items []city.Building
	now   func() time.Time
}

func NewMemory() *Memory {
	return &Memory{now: time.Now}
}

func (m *Memory) Insert(ctx context.Context, nb city.NewBuilding) (city.Building, error) {
	if err := ctx.Err(); err != nil {
		return city.Building{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	b := city.Building{
		ID:          int64(len(m.items)) + 1,
		Type:        nb.Type,
		Description: nb.Description,
		CreatedAt:   stamp(m.now),
		X:           nb.X,
		Y:           nb.Y,
	}
	m.items = append(m.items, b)
	return b, nil
}

func (m *Memory) ListAll(ctx context.Context) ([]city.Building, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]city.Building, len(m.items))
	copy(out, m.items)
	return out, nil
}

func (m *Memory) GetByID(ctx context.Context, id int64) (city.Building, error) {
	if err := ctx.Err(); err != nil {
		return city.Building{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	// ids are dense and start at 1
	if id < 1 || id > int64(len(m.items)) {
		return city.Building{}, ErrNotFound
	}
	return m.items[id-1], nil
}

func (m *Memory) Ping(ctx context.Context) error { return ctx.Err() }

func (m *Memory) Close() error { return nil }
