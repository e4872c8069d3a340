// Package store defines the path-addressed document store the marketplace
// runs against: single-shot reads, continuous subscriptions, and atomic
// multi-field updates at a tree path. The production backend is an external
// managed service; MemoryStore implements the same contract for local
// wiring and tests.
package store

import (
	"context"
	"errors"
	"strings"
)

// ErrWrite is wrapped by implementations when a mutation is rejected by the
// backend. Callers surface it to the acting user and leave the operation
// unapplied; there is no automatic retry.
var ErrWrite = errors.New("store: write failed")

// serverTimestamp is the sentinel type behind ServerTimestamp.
type serverTimestamp struct{}

// ServerTimestamp is a field value sentinel resolved to the server's clock
// at write time, as epoch milliseconds.
var ServerTimestamp = serverTimestamp{}

type Store interface {
	// Get returns the value at path. A missing node yields a Snapshot with
	// Exists == false, not an error.
	Get(ctx context.Context, path string) (Snapshot, error)

	// Set replaces the whole subtree at path.
	Set(ctx context.Context, path string, value any) error

	// Update merges fields into the node at path as one atomic write: a
	// concurrent reader sees either none or all of the fields. A nil field
	// value removes the key.
	Update(ctx context.Context, path string, fields map[string]any) error

	// Delete removes the subtree at path.
	Delete(ctx context.Context, path string) error

	// Subscribe registers fn for the current value at path and every
	// subsequent change at or under it. Delivery is ordered per
	// subscription. The returned handle must be released when the observer
	// loses interest; Release is idempotent.
	Subscribe(path string, fn func(Snapshot)) (Subscription, error)
}

type Subscription interface {
	Release()
}

// Snapshot is a point-in-time value at a path. Branch nodes decode as
// map[string]any.
type Snapshot struct {
	Path   string
	Value  any
	Exists bool
}

// Map returns the snapshot value as a field map, or nil for leaves and
// missing nodes.
func (s Snapshot) Map() map[string]any {
	m, _ := s.Value.(map[string]any)
	return m
}

// Children returns the snapshot's child records keyed by id. Non-map
// children are skipped.
func (s Snapshot) Children() map[string]map[string]any {
	out := make(map[string]map[string]any)
	for key, val := range s.Map() {
		if child, ok := val.(map[string]any); ok {
			out[key] = child
		}
	}
	return out
}

const (
	OrdersRoot          = "orders"
	ScheduledOrdersRoot = "scheduled_orders"
	DriversRoot         = "drivers"
	RestaurantsRoot     = "restaurants"
	NotificationsRoot   = "notifications"
)

func OrderPath(orderID string) string          { return OrdersRoot + "/" + orderID }
func ScheduledOrderPath(orderID string) string { return ScheduledOrdersRoot + "/" + orderID }
func DriverPath(driverID string) string        { return DriversRoot + "/" + driverID }
func RestaurantPath(restaurantID string) string {
	return RestaurantsRoot + "/" + restaurantID
}
func NotificationsPath(recipientID string) string {
	return NotificationsRoot + "/" + recipientID
}

func splitPath(path string) []string {
	var segments []string
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	return segments
}
