// Package notify appends notification records for a recipient. Delivery to
// devices is an external system's job; this side is best-effort and never
// transactional with the write that triggered it.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/joao-fontenele/dishpatch/internal/store"
)

type Type string

const (
	TypeOrderPlaced    Type = "order_placed"
	TypeOrderScheduled Type = "order_scheduled"
	TypeOrderPromoted  Type = "order_promoted"
	TypeOrderExpired   Type = "order_expired"
	TypeDriverAssigned Type = "driver_assigned"
	TypeStatusChanged  Type = "status_changed"
)

type Notification struct {
	Type    Type
	OrderID string
	Message string
}

type Dispatcher struct {
	store  store.Store
	logger *slog.Logger
}

func NewDispatcher(st store.Store, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{store: st, logger: logger}
}

// Send appends a notification record keyed by recipient. Callers whose
// primary write already succeeded log the returned error instead of
// rolling back.
func (d *Dispatcher) Send(ctx context.Context, recipientID string, n Notification) error {
	id := uuid.New().String()
	record := map[string]any{
		"id":        id,
		"type":      string(n.Type),
		"orderId":   n.OrderID,
		"message":   n.Message,
		"isRead":    false,
		"createdAt": store.ServerTimestamp,
	}

	path := store.NotificationsPath(recipientID) + "/" + id
	if err := d.store.Set(ctx, path, record); err != nil {
		return fmt.Errorf("append notification for %s: %w", recipientID, err)
	}

	d.logger.Debug("notification appended", "recipient_id", recipientID, "type", n.Type, "order_id", n.OrderID)
	return nil
}
