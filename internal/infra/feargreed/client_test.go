package feargreed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"crypto_dash/internal/infra"
)

func newTestClient(url string) *Client {
	cfg := infra.DefaultConfig()
	cfg.API.FearGreed.URL = url
	c := NewClient(cfg)
	c.now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	return c
}

func TestIndex_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":"Fear and Greed Index","data":[
			{"value":"72","value_classification":"Greed","timestamp":"1700000000","time_until_update":"3600"}]}`))
	}))
	defer srv.Close()

	idx := newTestClient(srv.URL).Index(context.Background())
	if idx.Value != "72" || idx.ValueClassification != "Greed" || idx.TimeUntilUpdate != "3600" {
		t.Errorf("unexpected index %+v", idx)
	}
}

func TestIndex_FallsBackToNeutral(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"bad json", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"data":`))
		}},
		{"empty data", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"data":[]}`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			idx := newTestClient(srv.URL).Index(context.Background())
			if idx.Value != "50" || idx.ValueClassification != "Neutral" || idx.TimeUntilUpdate != "0" {
				t.Errorf("expected neutral default, got %+v", idx)
			}
			if idx.Timestamp != "1700000000" {
				t.Errorf("timestamp = %q, want current time", idx.Timestamp)
			}
		})
	}
}

func TestIndex_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	idx := newTestClient(url).Index(context.Background())
	if idx.Value != "50" {
		t.Errorf("expected neutral default, got %+v", idx)
	}
}

func TestIndex_CircuitOpensAfterRepeatedFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	for i := 0; i < 5; i++ {
		if idx := c.Index(context.Background()); idx.Value != "50" {
			t.Fatalf("expected neutral default, got %+v", idx)
		}
	}

	threshold := int32(infra.DefaultCircuitBreakerConfig("").FailureThreshold)
	if got := hits.Load(); got != threshold {
		t.Errorf("expected %d upstream hits before the breaker opened, got %d", threshold, got)
	}
}
