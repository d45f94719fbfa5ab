package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"crypto_dash/internal/storage"
)

// Permission is the user's decision about desktop notifications.
type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// ErrAlreadyDecided is returned by Request once the user has answered.
var ErrAlreadyDecided = errors.New("notification permission already decided")

// Valid reports whether p is one of the three states.
func (p Permission) Valid() bool {
	switch p {
	case PermissionDefault, PermissionGranted, PermissionDenied:
		return true
	}
	return false
}

// Permissions holds the persisted permission state.
type Permissions struct {
	mu    sync.RWMutex
	state Permission
	repo  *storage.Repository[Permission]
}

// NewPermissions starts in the default state. Call Load to restore.
func NewPermissions(store storage.Store) *Permissions {
	return &Permissions{
		state: PermissionDefault,
		repo:  storage.NewRepository[Permission](store, storage.KeyPermission),
	}
}

// Load restores the saved state. Unreadable values fall back to default.
func (p *Permissions) Load(ctx context.Context) {
	saved, err := p.repo.Load(ctx)
	if err != nil {
		slog.Warn("Notification permission unreadable, using default", slog.Any("error", err))
		return
	}
	if !saved.Valid() {
		return
	}
	p.mu.Lock()
	p.state = saved
	p.mu.Unlock()
}

// State returns the current permission.
func (p *Permissions) State() Permission {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Granted reports whether notifications may be shown.
func (p *Permissions) Granted() bool {
	return p.State() == PermissionGranted
}

// Request records the user's answer. It only takes effect from the default
// state; afterwards it returns the current state and ErrAlreadyDecided.
func (p *Permissions) Request(ctx context.Context, grant bool) (Permission, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != PermissionDefault {
		return p.state, ErrAlreadyDecided
	}

	next := PermissionDenied
	if grant {
		next = PermissionGranted
	}
	if err := p.repo.Save(ctx, next); err != nil {
		return p.state, fmt.Errorf("persist permission: %w", err)
	}
	p.state = next
	slog.Info("Notification permission decided", slog.String("permission", string(next)))
	return next, nil
}
