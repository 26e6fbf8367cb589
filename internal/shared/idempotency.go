package shared

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

// ErrIdempotencyConflict indicates the key was already claimed.
var ErrIdempotencyConflict = errors.New("idempotent request already processed")

// IdempotencyStore persists processed keys in ledger_idempotency_keys.
type IdempotencyStore struct {
	pool *pgxpool.Pool
}

// NewIdempotencyStore constructs the store.
func NewIdempotencyStore(pool *pgxpool.Pool) *IdempotencyStore {
	return &IdempotencyStore{pool: pool}
}

// CheckAndInsert claims key for module, failing with ErrIdempotencyConflict when taken.
func (s *IdempotencyStore) CheckAndInsert(ctx context.Context, key, module string) error {
	if s == nil || s.pool == nil {
		return errors.New("idempotency store not initialised")
	}
	if err := checkKey(key, module); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO ledger_idempotency_keys (key, module, created_at) VALUES ($1, $2, $3)`, key, module, time.Now().UTC())
	if db.IsUniqueViolation(err, "") {
		return ErrIdempotencyConflict
	}
	return err
}

// Cleanup removes entries older than retention.
func (s *IdempotencyStore) Cleanup(ctx context.Context, olderThan time.Duration) error {
	if s == nil || s.pool == nil {
		return nil
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM ledger_idempotency_keys WHERE created_at < $1`, time.Now().UTC().Add(-olderThan))
	return err
}

// Delete releases a key so failed processing can be retried.
func (s *IdempotencyStore) Delete(ctx context.Context, key string) error {
	if s == nil || s.pool == nil {
		return nil
	}
	if key == "" {
		return errors.New("idempotency key required")
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM ledger_idempotency_keys WHERE key=$1`, key)
	return err
}

// MemoryIdempotency keeps claimed keys in process.
type MemoryIdempotency struct {
	mu   sync.Mutex
	keys map[string]string
}

// NewMemoryIdempotency returns an empty key set.
func NewMemoryIdempotency() *MemoryIdempotency {
	return &MemoryIdempotency{keys: make(map[string]string)}
}

// CheckAndInsert claims key for module.
func (m *MemoryIdempotency) CheckAndInsert(_ context.Context, key, module string) error {
	if err := checkKey(key, module); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[key]; ok {
		return ErrIdempotencyConflict
	}
	m.keys[key] = module
	return nil
}

// Delete releases key.
func (m *MemoryIdempotency) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

// Claimed reports whether key is held.
func (m *MemoryIdempotency) Claimed(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.keys[key]
	return ok
}

func checkKey(key, module string) error {
	if key == "" {
		return errors.New("idempotency key required")
	}
	if module == "" {
		return errors.New("idempotency module required")
	}
	return nil
}
