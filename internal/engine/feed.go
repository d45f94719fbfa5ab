package engine

import (
	"context"
	"log/slog"
	"time"

	"crypto_dash/internal/domain"
	"crypto_dash/internal/query"
)

// PriceFeed forwards each new top-coins result into the dashboard. It keeps
// the listing observed, so the cache polls it for as long as the feed runs.
type PriceFeed struct {
	listing   *query.Query[[]domain.CryptoCurrency]
	dashboard *Dashboard
}

// NewPriceFeed pairs a listing query with the dashboard it feeds.
func NewPriceFeed(listing *query.Query[[]domain.CryptoCurrency], d *Dashboard) *PriceFeed {
	return &PriceFeed{listing: listing, dashboard: d}
}

// Run blocks until ctx is done.
func (f *PriceFeed) Run(ctx context.Context) {
	obs := f.listing.Observe()
	defer obs.Close()

	slog.Info("Price feed started", slog.String("key", obs.Key()))

	var last time.Time
	forward := func() {
		st := obs.State()
		if st.Err != nil {
			slog.Warn("Price listing refresh failed", slog.Any("error", st.Err))
		}
		if !st.HasData || !st.UpdatedAt.After(last) {
			return
		}
		last = st.UpdatedAt
		if !f.dashboard.SubmitPrices(st.Data) {
			slog.Warn("Dashboard inbox full, price tick dropped")
		}
	}

	// cached data does not signal a change
	forward()
	for {
		select {
		case <-ctx.Done():
			slog.Info("Price feed stopped")
			return
		case <-obs.Changes():
			forward()
		}
	}
}
