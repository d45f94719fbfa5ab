package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"crypto_dash/internal/query"
)

// Query states reported to clients.
const (
	StatusIdle    = "idle"
	StatusLoading = "loading"
	StatusError   = "error"
	StatusSuccess = "success"
)

// Envelope wraps every cached read. Failed reads carry a retry hint and keep
// the last good data when there is any.
type Envelope struct {
	Status    string     `json:"status"`
	Data      any        `json:"data,omitempty"`
	Error     string     `json:"error,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	Retry     bool       `json:"retry,omitempty"`
}

// NewEnvelope converts the outcome of a Fetch into an envelope and status code.
func NewEnvelope[T any](st query.State[T], err error) (Envelope, int) {
	var env Envelope
	if !st.UpdatedAt.IsZero() {
		at := st.UpdatedAt
		env.UpdatedAt = &at
	}
	if st.HasData {
		env.Data = st.Data
	}

	switch {
	case errors.Is(err, query.ErrDisabled):
		env.Status = StatusIdle
		return env, http.StatusOK
	case errors.Is(err, context.DeadlineExceeded) && st.IsFetching && !st.HasData:
		env.Status = StatusLoading
		return env, http.StatusAccepted
	case err != nil:
		env.Error = err.Error()
		env.Retry = true
		if st.HasData {
			env.Status = StatusSuccess
			return env, http.StatusOK
		}
		env.Status = StatusError
		return env, http.StatusBadGateway
	case !st.HasData:
		env.Status = StatusLoading
		return env, http.StatusAccepted
	default:
		env.Status = StatusSuccess
		return env, http.StatusOK
	}
}

// mapped replaces the data of a successful envelope.
func mapped[T, U any](st query.State[T], err error, fn func(T) U) (Envelope, int) {
	env, code := NewEnvelope(st, err)
	if st.HasData {
		env.Data = fn(st.Data)
	}
	return env, code
}
