package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"crypto_dash/internal/infra"
)

type holding struct {
	ID     string  `json:"id"`
	Amount float64 `json:"amount"`
}

// storeFactories returns every backend available in the test environment.
func storeFactories(t *testing.T) map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
		"file": func(t *testing.T) Store {
			s, err := NewFileStore(t.TempDir())
			if err != nil {
				t.Fatalf("NewFileStore: %v", err)
			}
			return s
		},
		"sqlite": func(t *testing.T) Store {
			s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
			if err != nil {
				t.Fatalf("NewSQLiteStore: %v", err)
			}
			return s
		},
		"redis": func(t *testing.T) Store {
			ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
			defer cancel()
			s, err := NewRedisStore(ctx, RedisOptions{
				Addr:   "localhost:6379",
				Prefix: "crypto-dash-test:" + t.Name() + ":",
			})
			if err != nil {
				t.Skipf("redis not reachable: %v", err)
			}
			// leftovers from an earlier run
			s.client.Del(context.Background(), s.prefix+KeyAlerts, s.prefix+KeyPortfolio)
			return s
		},
	}
}

func TestStores_LoadSave(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()
			ctx := context.Background()

			if _, err := store.Load(ctx, KeyAlerts); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}

			if err := store.Save(ctx, KeyAlerts, []byte(`[1]`)); err != nil {
				t.Fatalf("Save: %v", err)
			}
			if err := store.Save(ctx, KeyAlerts, []byte(`[1,2]`)); err != nil {
				t.Fatalf("Save: %v", err)
			}

			data, err := store.Load(ctx, KeyAlerts)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if string(data) != `[1,2]` {
				t.Errorf("last write should win, got %s", data)
			}

			if _, err := store.Load(ctx, KeyPortfolio); !errors.Is(err, ErrNotFound) {
				t.Errorf("keys should be independent, got %v", err)
			}
		})
	}
}

func TestRepository_RoundTrip(t *testing.T) {
	repo := NewRepository[[]holding](NewMemoryStore(), KeyPortfolio)
	ctx := context.Background()

	empty, err := repo.Load(ctx)
	if err != nil || empty != nil {
		t.Fatalf("missing key should load as empty, got %v, %v", empty, err)
	}

	want := []holding{{ID: "a", Amount: 1.5}, {ID: "b", Amount: 2}}
	if err := repo.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestRepository_Corrupt(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	store.Save(ctx, KeyPortfolio, []byte(`{not json`))

	got, err := NewRepository[[]holding](store, KeyPortfolio).Load(ctx)
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
	if got != nil {
		t.Errorf("corrupted document should load as empty, got %+v", got)
	}

	// other keys are unaffected
	store.Save(ctx, KeyFavorites, []byte(`["bitcoin"]`))
	favs, err := NewRepository[[]string](store, KeyFavorites).Load(ctx)
	if err != nil || len(favs) != 1 {
		t.Errorf("unexpected favorites %v, %v", favs, err)
	}
}

func TestFileStore_AtomicReplace(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()

	if err := store.Save(ctx, KeyFavorites, []byte(`["eth"]`)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 || entries[0].Name() != KeyFavorites+".json" {
		t.Errorf("expected only the target file, got %v", entries)
	}

	if err := store.Save(ctx, "../escape", []byte(`x`)); err == nil {
		t.Error("expected invalid key error")
	}
}

func TestSQLiteStore_UpdatedAt(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "meta.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer store.Close()

	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }
	ctx := context.Background()

	if _, err := store.UpdatedAt(ctx, KeyAlerts); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	store.Save(ctx, KeyAlerts, []byte(`[]`))

	ts, err := store.UpdatedAt(ctx, KeyAlerts)
	if err != nil {
		t.Fatalf("UpdatedAt: %v", err)
	}
	if !ts.Equal(fixed) {
		t.Errorf("updated_at = %s, want %s", ts, fixed)
	}
}

func TestOpen_Drivers(t *testing.T) {
	for _, driver := range []string{infra.DriverMemory, infra.DriverFile, infra.DriverSQLite} {
		t.Run(driver, func(t *testing.T) {
			cfg := infra.DefaultConfig()
			cfg.Storage.Driver = driver
			cfg.Storage.Dir = t.TempDir()

			store, err := Open(context.Background(), cfg)
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			defer store.Close()

			if err := store.Save(context.Background(), KeyPermission, []byte(`"granted"`)); err != nil {
				t.Errorf("Save: %v", err)
			}
		})
	}

	cfg := infra.DefaultConfig()
	cfg.Storage.Driver = "mongo"
	if _, err := Open(context.Background(), cfg); err == nil {
		t.Error("expected unknown driver error")
	}
}
