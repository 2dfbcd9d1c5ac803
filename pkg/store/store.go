// Package store is the Postgres-backed persistent store for the
// inventory: a full load/save pair using the swap-table pattern plus
// incremental per-entity upsert/delete mutators (spec §4.1/§6).
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cmsdynamo/dynamo/pkg/log"
)

var storeLog = log.WithComponent("store")

// Store wraps a pgxpool.Pool and exposes the load/save/mutator surface
// used by the synchronizer and policy engine.
type Store struct {
	pool *pgxpool.Pool
	ids  *idAllocator
}

// Open connects to Postgres at dsn and ensures the schema exists.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	s := &Store{pool: pool, ids: newIDAllocator()}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// CheckConnection returns a boolean without raising, per spec: callers
// that only want a liveness probe should not have to handle an error.
func (s *Store) CheckConnection(ctx context.Context) bool {
	if err := s.pool.Ping(ctx); err != nil {
		storeLog.Warn().Err(err).Msg("connection check failed")
		return false
	}
	return true
}

func (s *Store) ensureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}
