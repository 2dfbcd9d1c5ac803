package store

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// idAllocator hands out the next id for a table, seeded from the current
// max(id) on first use. The inventory never assigns ids itself (see
// inventory.ID.Unsaved); the store is the single place new ids are minted,
// on first save.
type idAllocator struct {
	mu      sync.Mutex
	seeded  map[string]*atomic.Int32
}

func newIDAllocator() *idAllocator {
	return &idAllocator{seeded: make(map[string]*atomic.Int32)}
}

func (a *idAllocator) next(ctx context.Context, s *Store, table string) (int32, error) {
	a.mu.Lock()
	counter, ok := a.seeded[table]
	if !ok {
		var maxID int32
		row := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT COALESCE(MAX(id), 0) FROM %s`, table))
		if err := row.Scan(&maxID); err != nil {
			a.mu.Unlock()
			return 0, fmt.Errorf("failed to seed id counter for %s: %w", table, err)
		}
		counter = &atomic.Int32{}
		counter.Store(maxID)
		a.seeded[table] = counter
	}
	a.mu.Unlock()
	return counter.Add(1), nil
}
