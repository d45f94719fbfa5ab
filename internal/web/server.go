// Package web exposes the dashboard over HTTP and a WebSocket stream.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"crypto_dash/internal/domain"
	"crypto_dash/internal/engine"
	"crypto_dash/internal/market"
	"crypto_dash/internal/notify"
	"crypto_dash/internal/query"
)

// Deps are the components the server routes to.
type Deps struct {
	Hooks       *market.Hooks
	Dashboard   Dashboard
	Permissions *notify.Permissions
	Hub         *Hub
	PerPage     int
	Version     string
	Logger      *slog.Logger
}

// Server represents the HTTP server
type Server struct {
	addr    string
	handler http.Handler
	logger  *slog.Logger
	server  *http.Server
}

// NewServer builds the routes.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	marketHandler := NewMarketHandler(deps.Hooks, deps.PerPage, logger)
	dashboardHandler := NewDashboardHandler(deps.Dashboard, logger)
	notificationHandler := NewNotificationHandler(deps.Permissions)
	healthHandler := NewHealthHandler(deps.Version, deps.Hub)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/coins", marketHandler.Coins)
	mux.HandleFunc("GET /api/coins/{id}", marketHandler.Coin)
	mux.HandleFunc("GET /api/coins/{id}/chart", marketHandler.Chart)
	mux.HandleFunc("GET /api/global", marketHandler.Global)
	mux.HandleFunc("GET /api/overview", marketHandler.Overview)
	mux.HandleFunc("GET /api/dominance", marketHandler.Dominance)
	mux.HandleFunc("GET /api/trending", marketHandler.Trending)
	mux.HandleFunc("GET /api/search", marketHandler.Search)
	mux.HandleFunc("GET /api/fear-greed", marketHandler.FearGreed)

	mux.HandleFunc("GET /api/portfolio", dashboardHandler.Portfolio)
	mux.HandleFunc("POST /api/portfolio", dashboardHandler.AddHolding)
	mux.HandleFunc("PUT /api/portfolio/{id}", dashboardHandler.UpdateHolding)
	mux.HandleFunc("DELETE /api/portfolio/{id}", dashboardHandler.RemoveHolding)

	mux.HandleFunc("GET /api/alerts", dashboardHandler.Alerts)
	mux.HandleFunc("POST /api/alerts", dashboardHandler.AddAlert)
	mux.HandleFunc("DELETE /api/alerts/{id}", dashboardHandler.RemoveAlert)
	mux.HandleFunc("GET /api/alerts/notices", dashboardHandler.Notices)
	mux.HandleFunc("DELETE /api/alerts/notices/{id}", dashboardHandler.DismissNotice)

	mux.HandleFunc("GET /api/favorites", dashboardHandler.Favorites)
	mux.HandleFunc("POST /api/favorites/{id}", dashboardHandler.ToggleFavorite)

	mux.HandleFunc("GET /api/notifications/permission", notificationHandler.Get)
	mux.HandleFunc("POST /api/notifications/permission", notificationHandler.Request)

	mux.Handle("GET /health", healthHandler)
	if deps.Hub != nil {
		mux.Handle("GET /ws", deps.Hub)
	}

	return &Server{
		addr:    addr,
		handler: logRequests(logger, mux),
		logger:  logger,
	}
}

// Handler returns the routed handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves until Shutdown. It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("Starting HTTP server", slog.String("addr", s.addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

func logRequests(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("Request", slog.String("method", r.Method), slog.String("path", r.URL.Path))
		next.ServeHTTP(w, r)
	})
}

// HookSources follows the market hooks. Short queries and empty ids are
// disabled.
func HookSources(hooks *market.Hooks) Sources {
	return Sources{
		Search: func(q string) *query.Query[*domain.SearchResult] { return hooks.SearchCoins(q, true) },
		Coin:   func(id string) *query.Query[*domain.CoinDetail] { return hooks.CoinData(id, true) },
		Chart: func(id string, days int) *query.Query[*domain.ChartData] {
			return hooks.ChartData(id, days, true)
		},
	}
}

// Greetings concatenates the frames of several greetings.
func Greetings(greetings ...func() []Frame) func() []Frame {
	return func() []Frame {
		var frames []Frame
		for _, g := range greetings {
			frames = append(frames, g()...)
		}
		return frames
	}
}

// DashboardGreeting sends the current prices and portfolio to new clients.
func DashboardGreeting(d Dashboard) func() []Frame {
	return func() []Frame {
		snap := d.Snapshot()
		frames := []Frame{{Type: engine.FramePortfolio, Data: engine.PortfolioView{Holdings: snap.Holdings, Summary: snap.Summary}}}
		if len(snap.Coins) > 0 {
			frames = append([]Frame{{Type: engine.FramePrices, Data: snap.Coins}}, frames...)
		}
		return frames
	}
}

// HealthHandler handles health check requests
type HealthHandler struct {
	version string
	hub     *Hub
	started time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version string, hub *Hub) *HealthHandler {
	return &HealthHandler{version: version, hub: hub, started: time.Now()}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"status":    "healthy",
		"version":   h.version,
		"uptime":    time.Since(h.started).Round(time.Second).String(),
		"timestamp": time.Now().UTC(),
	}
	if h.hub != nil {
		response["stream_clients"] = h.hub.Len()
	}
	WriteResponse(w, http.StatusOK, response)
}
