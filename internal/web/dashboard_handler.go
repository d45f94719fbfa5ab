package web

import (
	"context"
	"log/slog"
	"net/http"

	"crypto_dash/internal/domain"
	"crypto_dash/internal/engine"
	"crypto_dash/internal/notify"
)

// Dashboard is the state owner behind the user collections; *engine.Dashboard
// satisfies it.
type Dashboard interface {
	Snapshot() engine.Snapshot
	AddHolding(ctx context.Context, in domain.HoldingInput) (domain.PortfolioHolding, error)
	UpdateHolding(ctx context.Context, id string, in domain.HoldingInput) (domain.PortfolioHolding, error)
	RemoveHolding(ctx context.Context, id string) error
	AddAlert(ctx context.Context, in domain.AlertInput) (domain.PriceAlert, error)
	RemoveAlert(ctx context.Context, id string) error
	DismissNotice(ctx context.Context, alertID string) error
	ToggleFavorite(ctx context.Context, coinID string) (domain.Favorites, error)
}

// DashboardHandler serves portfolio, alerts and favorites.
type DashboardHandler struct {
	dashboard Dashboard
	logger    *slog.Logger
}

// NewDashboardHandler creates a dashboard handler.
func NewDashboardHandler(d Dashboard, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{dashboard: d, logger: logger}
}

// Portfolio serves GET /api/portfolio.
func (h *DashboardHandler) Portfolio(w http.ResponseWriter, r *http.Request) {
	snap := h.dashboard.Snapshot()
	holdings := snap.Holdings
	if holdings == nil {
		holdings = []domain.PortfolioHolding{}
	}
	WriteResponse(w, http.StatusOK, engine.PortfolioView{Holdings: holdings, Summary: snap.Summary})
}

// AddHolding serves POST /api/portfolio.
func (h *DashboardHandler) AddHolding(w http.ResponseWriter, r *http.Request) {
	var in domain.HoldingInput
	if err := decodeJSON(w, r, &in); err != nil {
		WriteError(w, err)
		return
	}
	holding, err := h.dashboard.AddHolding(r.Context(), in)
	if err != nil {
		WriteError(w, err)
		return
	}
	h.logger.Info("Holding added", slog.String("coin", holding.CoinID), slog.String("id", holding.ID))
	WriteResponse(w, http.StatusCreated, holding)
}

// UpdateHolding serves PUT /api/portfolio/{id}.
func (h *DashboardHandler) UpdateHolding(w http.ResponseWriter, r *http.Request) {
	var in domain.HoldingInput
	if err := decodeJSON(w, r, &in); err != nil {
		WriteError(w, err)
		return
	}
	holding, err := h.dashboard.UpdateHolding(r.Context(), r.PathValue("id"), in)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteResponse(w, http.StatusOK, holding)
}

// RemoveHolding serves DELETE /api/portfolio/{id}.
func (h *DashboardHandler) RemoveHolding(w http.ResponseWriter, r *http.Request) {
	if err := h.dashboard.RemoveHolding(r.Context(), r.PathValue("id")); err != nil {
		WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Alerts serves GET /api/alerts.
func (h *DashboardHandler) Alerts(w http.ResponseWriter, r *http.Request) {
	alerts := h.dashboard.Snapshot().Alerts
	if alerts == nil {
		alerts = []domain.PriceAlert{}
	}
	WriteResponse(w, http.StatusOK, alerts)
}

// AddAlert serves POST /api/alerts.
func (h *DashboardHandler) AddAlert(w http.ResponseWriter, r *http.Request) {
	var in domain.AlertInput
	if err := decodeJSON(w, r, &in); err != nil {
		WriteError(w, err)
		return
	}
	alert, err := h.dashboard.AddAlert(r.Context(), in)
	if err != nil {
		WriteError(w, err)
		return
	}
	h.logger.Info("Alert added",
		slog.String("coin", alert.CoinID),
		slog.String("condition", string(alert.Condition)),
		slog.Float64("target", alert.TargetPrice))
	WriteResponse(w, http.StatusCreated, alert)
}

// RemoveAlert serves DELETE /api/alerts/{id}.
func (h *DashboardHandler) RemoveAlert(w http.ResponseWriter, r *http.Request) {
	if err := h.dashboard.RemoveAlert(r.Context(), r.PathValue("id")); err != nil {
		WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Notices serves GET /api/alerts/notices.
func (h *DashboardHandler) Notices(w http.ResponseWriter, r *http.Request) {
	notices := h.dashboard.Snapshot().Notices
	if notices == nil {
		notices = []domain.AlertNotice{}
	}
	WriteResponse(w, http.StatusOK, notices)
}

// DismissNotice serves DELETE /api/alerts/notices/{id}.
func (h *DashboardHandler) DismissNotice(w http.ResponseWriter, r *http.Request) {
	if err := h.dashboard.DismissNotice(r.Context(), r.PathValue("id")); err != nil {
		WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Favorites serves GET /api/favorites.
func (h *DashboardHandler) Favorites(w http.ResponseWriter, r *http.Request) {
	favorites := h.dashboard.Snapshot().Favorites
	if favorites == nil {
		favorites = domain.Favorites{}
	}
	WriteResponse(w, http.StatusOK, favorites)
}

// ToggleFavorite serves POST /api/favorites/{id}.
func (h *DashboardHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	favorites, err := h.dashboard.ToggleFavorite(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteError(w, err)
		return
	}
	if favorites == nil {
		favorites = domain.Favorites{}
	}
	WriteResponse(w, http.StatusOK, favorites)
}

// NotificationHandler serves the notification permission.
type NotificationHandler struct {
	permissions *notify.Permissions
}

// NewNotificationHandler creates a permission handler.
func NewNotificationHandler(p *notify.Permissions) *NotificationHandler {
	return &NotificationHandler{permissions: p}
}

type permissionBody struct {
	Permission notify.Permission `json:"permission"`
}

type permissionRequest struct {
	Grant *bool `json:"grant"`
}

// Get serves GET /api/notifications/permission.
func (h *NotificationHandler) Get(w http.ResponseWriter, r *http.Request) {
	WriteResponse(w, http.StatusOK, permissionBody{Permission: h.permissions.State()})
}

// Request serves POST /api/notifications/permission with {"grant": bool}.
func (h *NotificationHandler) Request(w http.ResponseWriter, r *http.Request) {
	var req permissionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, err)
		return
	}
	if req.Grant == nil {
		WriteError(w, WrapError(ErrInvalidInput, "grant is required", http.StatusBadRequest))
		return
	}
	p, err := h.permissions.Request(r.Context(), *req.Grant)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteResponse(w, http.StatusOK, permissionBody{Permission: p})
}
