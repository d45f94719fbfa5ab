// Package notify delivers alert notifications behind a user permission.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"crypto_dash/internal/domain"
	"crypto_dash/pkg/format"
)

// Notification is a user-facing message.
type Notification struct {
	Title  string    `json:"title"`
	Body   string    `json:"body"`
	Icon   string    `json:"icon,omitempty"`
	CoinID string    `json:"coin_id,omitempty"`
	At     time.Time `json:"at"`
}

// ForAlert renders the notification of a triggered alert.
func ForAlert(n domain.AlertNotice) Notification {
	return Notification{
		Title:  "Price Alert: " + n.Alert.CoinName,
		Body:   fmt.Sprintf("%s has reached %s", strings.ToUpper(n.Alert.CoinSymbol), format.Currency(n.Price)),
		Icon:   n.Alert.CoinImage,
		CoinID: n.Alert.CoinID,
		At:     n.At,
	}
}

// Notifier delivers notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to a slog logger.
type LogNotifier struct {
	Logger *slog.Logger
}

func (l LogNotifier) Notify(ctx context.Context, n Notification) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, n.Title, slog.String("body", n.Body), slog.String("coin", n.CoinID))
	return nil
}

// Broadcaster pushes a typed frame to every connected stream client.
type Broadcaster interface {
	Broadcast(frameType string, payload any)
}

// StreamNotifier forwards notifications as "notification" frames.
type StreamNotifier struct {
	Stream Broadcaster
}

func (s StreamNotifier) Notify(ctx context.Context, n Notification) error {
	s.Stream.Broadcast("notification", n)
	return nil
}

// Multi fans out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, notifier := range m {
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Gated drops notifications unless permission is granted.
type Gated struct {
	Permissions *Permissions
	Next        Notifier
}

func (g Gated) Notify(ctx context.Context, n Notification) error {
	if !g.Permissions.Granted() {
		return nil
	}
	return g.Next.Notify(ctx, n)
}
