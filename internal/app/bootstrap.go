package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"crypto_dash/internal/engine"
	"crypto_dash/internal/infra"
	"crypto_dash/internal/infra/coingecko"
	"crypto_dash/internal/infra/feargreed"
	"crypto_dash/internal/market"
	"crypto_dash/internal/notify"
	"crypto_dash/internal/query"
	"crypto_dash/internal/storage"
	"crypto_dash/internal/web"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config      *infra.Config
	Store       storage.Store
	Cache       *query.Client
	Hooks       *market.Hooks
	Permissions *notify.Permissions
	Hub         *web.Hub
	Dashboard   *engine.Dashboard
	Feed        *engine.PriceFeed
	Server      *web.Server

	unlock func()
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize loads configuration, opens storage and wires every component.
// ctx bounds the background work of the request cache.
func (b *Bootstrap) Initialize(ctx context.Context) error {
	// 1. Load Config (Dynamic Path Resolution)
	cfg, err := infra.LoadConfig(infra.ResolveConfigPath())
	if err != nil {
		return err
	}
	return b.InitializeWith(ctx, cfg)
}

// InitializeWith wires the components from an already loaded config.
func (b *Bootstrap) InitializeWith(ctx context.Context, cfg *infra.Config) error {
	b.Config = cfg

	// 2. Setup Logger
	slog.SetDefault(infra.NewLogger(cfg))
	slog.Info("Bootstrapping", slog.String("app", cfg.App.Name), slog.String("version", cfg.App.Version))

	// 3. Local data is single-process
	if cfg.Storage.Driver == infra.DriverFile || cfg.Storage.Driver == infra.DriverSQLite {
		dataDir := infra.DataDir(cfg)
		if err := infra.EnsureDir(dataDir); err != nil {
			return fmt.Errorf("failed to create data dir: %w", err)
		}
		unlock, err := infra.CreateLockFile(dataDir)
		if err != nil {
			return err
		}
		b.unlock = unlock
	}

	// 4. Storage
	store, err := storage.Open(ctx, cfg)
	if err != nil {
		b.release()
		return err
	}
	b.Store = store
	slog.Info("Storage ready", slog.String("driver", cfg.Storage.Driver))

	// 5. Remote sources behind the request cache
	b.Cache = query.NewClient(ctx, query.WithGCTime(time.Duration(cfg.Dashboard.CacheGCMinute)*time.Minute))
	b.Hooks = market.NewHooks(b.Cache, coingecko.NewClient(cfg), feargreed.NewClient(cfg))

	// 6. Notifications
	b.Permissions = notify.NewPermissions(store)
	b.Permissions.Load(ctx)
	b.Hub = web.NewHub(web.HookSources(b.Hooks), cfg.Debounce())
	notifier := notify.Gated{
		Permissions: b.Permissions,
		Next: notify.Multi{
			notify.LogNotifier{Logger: slog.Default()},
			notify.StreamNotifier{Stream: b.Hub},
		},
	}

	// 7. Dashboard loop and its price feed
	b.Dashboard = engine.NewDashboard(store, notifier, b.Hub.Broadcast, engine.Config{
		InboxSize:   1024,
		NoticeLimit: cfg.Dashboard.NoticeLimit,
	})
	b.Dashboard.Load(ctx)
	b.Feed = engine.NewPriceFeed(b.Hooks.TopCryptos(cfg.Dashboard.Page, cfg.Dashboard.PerPage), b.Dashboard)
	watch := web.NewMarketWatch(b.Hooks, b.Hub.Broadcast)
	b.Hub.Presence = watch
	b.Hub.Greeting = web.Greetings(web.DashboardGreeting(b.Dashboard), watch.Frames)

	// 8. HTTP surface
	b.Server = web.NewServer(cfg.Server.Addr, web.Deps{
		Hooks:       b.Hooks,
		Dashboard:   b.Dashboard,
		Permissions: b.Permissions,
		Hub:         b.Hub,
		PerPage:     cfg.Dashboard.PerPage,
		Version:     cfg.App.Version,
	})
	return nil
}

// Run starts every component and blocks until ctx is done or one fails.
func (b *Bootstrap) Run(ctx context.Context) error {
	defer b.release()

	b.Cache.StartGC(time.Minute)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		b.Dashboard.Run(gctx)
		return nil
	})
	g.Go(func() error {
		b.Feed.Run(gctx)
		return nil
	})
	g.Go(func() error {
		if err := b.Server.Start(); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		b.Hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 10*time.Second)
		defer cancel()
		return b.Server.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return err
}

func (b *Bootstrap) release() {
	if b.Cache != nil {
		b.Cache.Close()
		b.Cache = nil
	}
	if b.Store != nil {
		if err := b.Store.Close(); err != nil {
			slog.Warn("Failed to close storage", slog.Any("error", err))
		}
		b.Store = nil
	}
	if b.unlock != nil {
		b.unlock()
		b.unlock = nil
	}
}
