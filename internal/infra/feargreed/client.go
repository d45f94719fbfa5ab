package feargreed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"crypto_dash/internal/domain"
	"crypto_dash/internal/infra"
)

// DefaultURL is the alternative.me sentiment endpoint.
const DefaultURL = "https://api.alternative.me/fng/"

var errEmpty = errors.New("empty fear & greed data")

type response struct {
	Data []domain.FearGreedIndex `json:"data"`
}

// Client reads the fear & greed index. Index never returns an error.
type Client struct {
	url        string
	httpClient *http.Client
	breaker    *infra.CircuitBreaker
	now        func() time.Time
}

// NewClient builds a client from the fear_greed config section.
func NewClient(cfg *infra.Config) *Client {
	c := &Client{
		url: cfg.API.FearGreed.URL,
		httpClient: &http.Client{
			Timeout: cfg.FearGreedTimeout(),
		},
		breaker: infra.NewCircuitBreaker(infra.DefaultCircuitBreakerConfig("fear-greed")),
		now:     time.Now,
	}
	if c.url == "" {
		c.url = DefaultURL
	}
	if c.httpClient.Timeout <= 0 {
		c.httpClient.Timeout = 10 * time.Second
	}
	return c
}

// Index returns the latest reading, or the neutral default when the source
// fails in any way.
func (c *Client) Index(ctx context.Context) domain.FearGreedIndex {
	var idx domain.FearGreedIndex
	err := c.breaker.Do(func() error {
		var err error
		idx, err = c.fetch(ctx)
		return err
	})
	if err != nil {
		slog.Warn("Fear & greed unavailable, using neutral", slog.Any("error", err))
		return domain.NeutralFearGreed(c.now())
	}
	return idx
}

func (c *Client) fetch(ctx context.Context) (domain.FearGreedIndex, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return domain.FearGreedIndex{}, err
	}
	req.Header.Set("User-Agent", infra.DefaultUserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.FearGreedIndex{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.FearGreedIndex{}, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var data response
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return domain.FearGreedIndex{}, fmt.Errorf("decode: %w", err)
	}
	if len(data.Data) == 0 {
		return domain.FearGreedIndex{}, errEmpty
	}
	return data.Data[0], nil
}
