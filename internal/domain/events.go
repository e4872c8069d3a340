package domain

import "time"

// StatusChangedEvent is emitted after every successful lifecycle transition,
// both on the in-process bus and on the order.status_changed topic. It
// carries the resolved canonical statuses so consumers never re-derive
// state from raw record fields.
type StatusChangedEvent struct {
	OrderID      string    `json:"order_id"`
	CustomerID   string    `json:"customer_id"`
	RestaurantID string    `json:"restaurant_id"`
	DriverID     string    `json:"driver_id,omitempty"`
	OldStatus    Status    `json:"old_status"`
	NewStatus    Status    `json:"new_status"`
	Actor        Role      `json:"actor"`
	Total        float64   `json:"total"`
	Timestamp    time.Time `json:"timestamp"`

	// Record is the full order record, attached only on terminal
	// transitions so out-of-process consumers can archive without a
	// read path back into the store.
	Record map[string]any `json:"record,omitempty"`
}

// OrderPromotedEvent is emitted when a scheduled order enters the live
// collection, or expires unpromoted.
type OrderPromotedEvent struct {
	OrderID      string    `json:"order_id"`
	CustomerID   string    `json:"customer_id"`
	RestaurantID string    `json:"restaurant_id"`
	ScheduledFor time.Time `json:"scheduled_for"`
	Expired      bool      `json:"expired"`
	Timestamp    time.Time `json:"timestamp"`
}
