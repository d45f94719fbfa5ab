// Package storage persists dashboard collections as JSON documents under
// fixed keys.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"crypto_dash/internal/infra"
)

// Keys of the persisted collections.
const (
	KeyPortfolio  = "crypto-portfolio"
	KeyAlerts     = "crypto-alerts"
	KeyFavorites  = "crypto-favorites"
	KeyPermission = "notification-permission"
)

var (
	// ErrNotFound is returned by Load when nothing was saved under the key.
	ErrNotFound = errors.New("storage: key not found")
	// ErrCorrupt is returned by Repository.Load when the document cannot be decoded.
	ErrCorrupt = errors.New("storage: corrupted document")
)

// Store is a string-keyed document store. Save replaces the whole value.
type Store interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Close() error
}

// Open creates the store selected by the storage section of cfg.
func Open(ctx context.Context, cfg *infra.Config) (Store, error) {
	switch cfg.Storage.Driver {
	case infra.DriverMemory:
		return NewMemoryStore(), nil
	case infra.DriverFile:
		return NewFileStore(infra.DataDir(cfg))
	case infra.DriverSQLite:
		dir := infra.DataDir(cfg)
		if err := infra.EnsureDir(dir); err != nil {
			return nil, fmt.Errorf("failed to create data dir: %w", err)
		}
		return NewSQLiteStore(filepath.Join(dir, "dashboard.db"))
	case infra.DriverRedis:
		r := cfg.Storage.Redis
		return NewRedisStore(ctx, RedisOptions{
			Addr:     r.Addr,
			Password: r.Password,
			DB:       r.DB,
			Prefix:   r.Prefix,
		})
	default:
		return nil, fmt.Errorf("unknown storage driver: %q", cfg.Storage.Driver)
	}
}

// Repository is a typed view of one key.
type Repository[T any] struct {
	store Store
	key   string
}

// NewRepository binds a key of store to type T.
func NewRepository[T any](store Store, key string) *Repository[T] {
	return &Repository[T]{store: store, key: key}
}

// Key returns the storage key.
func (r *Repository[T]) Key() string { return r.key }

// Load decodes the stored value. A missing key yields the zero value and no
// error; an undecodable one yields the zero value and ErrCorrupt.
func (r *Repository[T]) Load(ctx context.Context) (T, error) {
	var v T
	data, err := r.store.Load(ctx, r.key)
	if errors.Is(err, ErrNotFound) {
		return v, nil
	}
	if err != nil {
		return v, fmt.Errorf("load %s: %w", r.key, err)
	}
	if err := json.Unmarshal(data, &v); err != nil {
		var zero T
		return zero, fmt.Errorf("%w: %s: %v", ErrCorrupt, r.key, err)
	}
	return v, nil
}

// Save encodes v and replaces the stored value.
func (r *Repository[T]) Save(ctx context.Context, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", r.key, err)
	}
	if err := r.store.Save(ctx, r.key, data); err != nil {
		return fmt.Errorf("save %s: %w", r.key, err)
	}
	return nil
}

// MemoryStore keeps documents in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string][]byte)}
}

func (m *MemoryStore) Load(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.docs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryStore) Save(ctx context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[key] = append([]byte(nil), data...)
	return nil
}

func (m *MemoryStore) Close() error { return nil }
