package web

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"crypto_dash/internal/domain"
	"crypto_dash/internal/market"
	"crypto_dash/internal/query"
)

// MarketHandler serves the cached market reads.
type MarketHandler struct {
	hooks       *market.Hooks
	perPage     int
	waitTimeout time.Duration
	logger      *slog.Logger
}

// NewMarketHandler creates a market handler. perPage is the listing default.
func NewMarketHandler(hooks *market.Hooks, perPage int, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		hooks:       hooks,
		perPage:     perPage,
		waitTimeout: 15 * time.Second,
		logger:      logger,
	}
}

// fetchCtx bounds how long a request waits on the shared fetch. The fetch
// itself keeps running and lands in the cache.
func (h *MarketHandler) fetchCtx(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), h.waitTimeout)
}

func intParam(r *http.Request, name string, def, lo, hi int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < lo || v > hi {
		return 0, WrapError(ErrInvalidInput, fmt.Sprintf("%s must be an integer in [%d, %d]", name, lo, hi), http.StatusBadRequest)
	}
	return v, nil
}

func writeEnvelope(w http.ResponseWriter, env Envelope, code int) {
	if env.Status == StatusError {
		slog.Warn("Market read failed", slog.String("error", env.Error))
	}
	WriteResponse(w, code, env)
}

// Coins serves GET /api/coins?page=&per_page=.
func (h *MarketHandler) Coins(w http.ResponseWriter, r *http.Request) {
	page, err := intParam(r, "page", 1, 1, 1<<20)
	if err != nil {
		WriteError(w, err)
		return
	}
	perPage, err := intParam(r, "per_page", h.perPage, 1, 250)
	if err != nil {
		WriteError(w, err)
		return
	}

	ctx, cancel := h.fetchCtx(r)
	defer cancel()
	st, err := h.hooks.TopCryptos(page, perPage).Fetch(ctx)
	env, code := NewEnvelope(st, err)
	writeEnvelope(w, env, code)
}

// Global serves GET /api/global.
func (h *MarketHandler) Global(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.fetchCtx(r)
	defer cancel()
	st, err := h.hooks.GlobalData().Fetch(ctx)
	env, code := NewEnvelope(st, err)
	writeEnvelope(w, env, code)
}

// Overview serves GET /api/overview.
func (h *MarketHandler) Overview(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.fetchCtx(r)
	defer cancel()

	o, err := h.hooks.Overview(ctx)
	st := query.State[market.Overview]{Data: o, HasData: err == nil}
	if err == nil {
		st.UpdatedAt = h.hooks.GlobalData().Peek().UpdatedAt
	}
	env, code := NewEnvelope(st, err)
	writeEnvelope(w, env, code)
}

// Dominance serves GET /api/dominance.
func (h *MarketHandler) Dominance(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.fetchCtx(r)
	defer cancel()
	st, err := h.hooks.GlobalData().Fetch(ctx)
	env, code := mapped(st, err, market.BuildDominance)
	writeEnvelope(w, env, code)
}

// Trending serves GET /api/trending.
func (h *MarketHandler) Trending(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.fetchCtx(r)
	defer cancel()
	st, err := h.hooks.Trending().Fetch(ctx)
	env, code := NewEnvelope(st, err)
	writeEnvelope(w, env, code)
}

// Coin serves GET /api/coins/{id}.
func (h *MarketHandler) Coin(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.fetchCtx(r)
	defer cancel()
	st, err := h.hooks.CoinData(r.PathValue("id"), true).Fetch(ctx)
	env, code := NewEnvelope(st, err)
	writeEnvelope(w, env, code)
}

// Chart serves GET /api/coins/{id}/chart?days=.
func (h *MarketHandler) Chart(w http.ResponseWriter, r *http.Request) {
	days, err := intParam(r, "days", market.DefaultTimeframe, 1, 365)
	if err == nil && !market.ValidTimeframe(days) {
		err = WrapError(ErrInvalidInput, fmt.Sprintf("days must be one of %v", market.Timeframes), http.StatusBadRequest)
	}
	if err != nil {
		WriteError(w, err)
		return
	}

	ctx, cancel := h.fetchCtx(r)
	defer cancel()
	st, err := h.hooks.ChartData(r.PathValue("id"), days, true).Fetch(ctx)
	env, code := mapped(st, err, func(c *domain.ChartData) market.ChartView {
		return market.BuildChartView(days, c)
	})
	writeEnvelope(w, env, code)
}

// Search serves GET /api/search?q=. Short queries report idle.
func (h *MarketHandler) Search(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.fetchCtx(r)
	defer cancel()
	st, err := h.hooks.SearchCoins(r.URL.Query().Get("q"), true).Fetch(ctx)
	env, code := mapped(st, err, market.SearchMatches)
	writeEnvelope(w, env, code)
}

// FearGreed serves GET /api/fear-greed.
func (h *MarketHandler) FearGreed(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.fetchCtx(r)
	defer cancel()
	st, err := h.hooks.FearGreed().Fetch(ctx)
	env, code := NewEnvelope(st, err)
	writeEnvelope(w, env, code)
}
