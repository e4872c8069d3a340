// Package scheduler promotes scheduled orders into the live collection once
// their time has come and the restaurant has opened.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joao-fontenele/dishpatch/internal/domain"
	"github.com/joao-fontenele/dishpatch/internal/notify"
	"github.com/joao-fontenele/dishpatch/internal/store"
)

const (
	// DefaultInterval matches the legacy client's promoter tick.
	DefaultInterval = 300 * time.Second

	// DefaultExpireAfter bounds how long a missed schedule keeps retrying
	// before it expires unpromoted.
	DefaultExpireAfter = 24 * time.Hour
)

// EventPublisher pushes promotion events to the stream. Satisfied by
// messaging.Producer.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}

type Config struct {
	Interval    time.Duration
	ExpireAfter time.Duration
}

type Promoter struct {
	store       store.Store
	notifier    *notify.Dispatcher
	publisher   EventPublisher
	logger      *slog.Logger
	interval    time.Duration
	expireAfter time.Duration
	now         func() time.Time
}

func NewPromoter(st store.Store, notifier *notify.Dispatcher, publisher EventPublisher, logger *slog.Logger, cfg Config) *Promoter {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.ExpireAfter <= 0 {
		cfg.ExpireAfter = DefaultExpireAfter
	}
	return &Promoter{
		store:       st,
		notifier:    notifier,
		publisher:   publisher,
		logger:      logger,
		interval:    cfg.Interval,
		expireAfter: cfg.ExpireAfter,
		now:         time.Now,
	}
}

// Run ticks until the context is cancelled.
func (p *Promoter) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("promoter started", "interval", p.interval, "expire_after", p.expireAfter)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("promoter stopped")
			return nil
		case <-ticker.C:
			if err := p.Tick(ctx); err != nil {
				p.logger.Error("promoter tick failed", "error", err)
			}
		}
	}
}

// Tick evaluates every scheduled order once. The correctness bar is
// "processed no earlier than scheduledFor", not exact timing: an order due
// while its restaurant is still closed simply waits for a later tick,
// until ExpireAfter is exceeded and it expires unpromoted. Per-order
// failures are logged and left for the next tick.
func (p *Promoter) Tick(ctx context.Context) error {
	snap, err := p.store.Get(ctx, store.ScheduledOrdersRoot)
	if err != nil {
		return fmt.Errorf("list scheduled orders: %w", err)
	}

	now := p.now().UTC()
	for id, record := range snap.Children() {
		order := domain.DecodeOrder(id, record)
		if order.ScheduledFor.IsZero() || now.Before(order.ScheduledFor) {
			continue
		}

		open, err := p.restaurantOpen(ctx, order.RestaurantID)
		if err != nil {
			p.logger.Error("restaurant check failed", "order_id", id, "error", err)
			continue
		}

		switch {
		case open:
			if err := p.promote(ctx, order, record); err != nil {
				p.logger.Error("promotion failed", "order_id", id, "error", err)
			}
		case now.Sub(order.ScheduledFor) > p.expireAfter:
			if err := p.expire(ctx, order, record); err != nil {
				p.logger.Error("expiry failed", "order_id", id, "error", err)
			}
		}
	}

	return nil
}

func (p *Promoter) restaurantOpen(ctx context.Context, restaurantID string) (bool, error) {
	snap, err := p.store.Get(ctx, store.RestaurantPath(restaurantID))
	if err != nil || !snap.Exists {
		return false, err
	}
	return domain.DecodeRestaurant(restaurantID, snap.Map()).Open, nil
}

// promote copies the record into the live collection with its lifecycle
// reset, then deletes the source. Copy-then-delete: a crash between the
// two writes leaves a duplicate to clean up, never a lost order.
func (p *Promoter) promote(ctx context.Context, order domain.Order, record map[string]any) error {
	live := make(map[string]any, len(record))
	for key, value := range record {
		live[key] = value
	}
	live["status"] = domain.StatusPending.Coarse()
	delete(live, "orderStatus")
	live["isScheduled"] = false
	live["updatedAt"] = store.ServerTimestamp

	if err := p.store.Set(ctx, store.OrderPath(order.ID), live); err != nil {
		return fmt.Errorf("copy to live collection: %w", err)
	}
	if err := p.store.Delete(ctx, store.ScheduledOrderPath(order.ID)); err != nil {
		return fmt.Errorf("remove scheduled source: %w", err)
	}

	p.logger.Info("scheduled order promoted", "order_id", order.ID, "restaurant_id", order.RestaurantID)

	p.emit(ctx, order, false)
	if err := p.notifier.Send(ctx, order.CustomerID, notify.Notification{
		Type:    notify.TypeOrderPromoted,
		OrderID: order.ID,
		Message: "Your scheduled order has been sent to the restaurant",
	}); err != nil {
		p.logger.Error("promotion notification failed", "order_id", order.ID, "error", err)
	}
	return nil
}

// expire moves a long-missed schedule into history as rejected. History is
// never deleted, so the receipt survives in the live collection.
func (p *Promoter) expire(ctx context.Context, order domain.Order, record map[string]any) error {
	dead := make(map[string]any, len(record))
	for key, value := range record {
		dead[key] = value
	}
	dead["status"] = domain.StatusRejected.Coarse()
	delete(dead, "orderStatus")
	dead["isScheduled"] = false
	dead["updatedAt"] = store.ServerTimestamp

	if err := p.store.Set(ctx, store.OrderPath(order.ID), dead); err != nil {
		return fmt.Errorf("copy expired order: %w", err)
	}
	if err := p.store.Delete(ctx, store.ScheduledOrderPath(order.ID)); err != nil {
		return fmt.Errorf("remove expired source: %w", err)
	}

	p.logger.Warn("scheduled order expired unpromoted",
		"order_id", order.ID,
		"scheduled_for", order.ScheduledFor,
	)

	p.emit(ctx, order, true)
	if err := p.notifier.Send(ctx, order.CustomerID, notify.Notification{
		Type:    notify.TypeOrderExpired,
		OrderID: order.ID,
		Message: "Your scheduled order could not be placed and was cancelled",
	}); err != nil {
		p.logger.Error("expiry notification failed", "order_id", order.ID, "error", err)
	}
	return nil
}

func (p *Promoter) emit(ctx context.Context, order domain.Order, expired bool) {
	if p.publisher == nil {
		return
	}
	event := domain.OrderPromotedEvent{
		OrderID:      order.ID,
		CustomerID:   order.CustomerID,
		RestaurantID: order.RestaurantID,
		ScheduledFor: order.ScheduledFor,
		Expired:      expired,
		Timestamp:    p.now().UTC(),
	}
	if err := p.publisher.Publish(ctx, order.ID, event); err != nil {
		p.logger.Error("failed to publish promotion event", "order_id", order.ID, "error", err)
	}
}
