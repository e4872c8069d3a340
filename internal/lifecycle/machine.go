// Package lifecycle implements the order state machine: guarded, idempotent
// status transitions written as single atomic updates, and a typed event
// stream for everything downstream of a transition.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joao-fontenele/dishpatch/internal/domain"
	"github.com/joao-fontenele/dishpatch/internal/store"
)

var (
	// ErrInvalidTransition means the requested status change is not
	// permitted from the order's current state. Surfaced to the acting
	// user, never retried.
	ErrInvalidTransition = errors.New("invalid transition")

	ErrOrderNotFound = errors.New("order not found")
)

// transitions is the full table of permitted moves. Terminal states have no
// entry and therefore admit nothing.
var transitions = map[domain.Status][]domain.Status{
	domain.StatusPending:        {domain.StatusAccepted, domain.StatusRejected},
	domain.StatusAccepted:       {domain.StatusPreparing},
	domain.StatusPreparing:      {domain.StatusReadyForPickup, domain.StatusPickedUp},
	domain.StatusReadyForPickup: {domain.StatusPickedUp},
	domain.StatusPickedUp:       {domain.StatusDelivered},
}

// Allowed reports whether from permits a transition to target.
func Allowed(from, target domain.Status) bool {
	for _, next := range transitions[from] {
		if next == target {
			return true
		}
	}
	return false
}

type Machine struct {
	store  store.Store
	bus    *Bus
	logger *slog.Logger
	now    func() time.Time
}

func NewMachine(st store.Store, logger *slog.Logger) *Machine {
	return &Machine{
		store:  st,
		bus:    NewBus(),
		logger: logger,
		now:    time.Now,
	}
}

// Events returns the machine's event bus.
func (m *Machine) Events() *Bus {
	return m.bus
}

// Transition moves the order to target on behalf of actor.
//
// There is no central lock on an order, so racing participants are
// expected: a transition to the state the order is already in succeeds
// without rewriting the status, and any other disallowed move fails with
// ErrInvalidTransition and leaves the record untouched. A permitted move
// writes both legacy status fields plus updatedAt in one atomic multi-field
// update, so no observer sees the pair torn apart. Restaurant-triggered
// transitions also re-assert restaurantId against stale records carrying a
// disputed party association.
func (m *Machine) Transition(ctx context.Context, orderID string, target domain.Status, actor domain.Role) (domain.Order, error) {
	return m.TransitionWith(ctx, orderID, target, actor, nil)
}

// TransitionWith is Transition plus extra fields folded into the same
// atomic update. The dispatch manager uses it to attach a driver in the
// write that advances the status, so no observer sees one without the
// other.
func (m *Machine) TransitionWith(ctx context.Context, orderID string, target domain.Status, actor domain.Role, extra map[string]any) (domain.Order, error) {
	snap, err := m.store.Get(ctx, store.OrderPath(orderID))
	if err != nil {
		return domain.Order{}, fmt.Errorf("load order %s: %w", orderID, err)
	}
	if !snap.Exists {
		return domain.Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}

	order := domain.DecodeOrder(orderID, snap.Map())
	current := order.Status

	if current == target {
		// Duplicate attempt from a racing participant; the status pair is
		// already settled. Extra fields still land, otherwise a caller
		// folding a driver attachment into the transition would have it
		// silently dropped.
		if len(extra) > 0 {
			fields := map[string]any{"updatedAt": store.ServerTimestamp}
			for key, value := range extra {
				fields[key] = value
			}
			if err := m.store.Update(ctx, store.OrderPath(orderID), fields); err != nil {
				return order, fmt.Errorf("write fields on settled %s: %w", target, err)
			}
			if driverID, ok := extra["driverId"].(string); ok {
				order.DriverID = driverID
			}
			order.UpdatedAt = m.now().UTC()
		}
		m.logger.Debug("transition already applied", "order_id", orderID, "status", target)
		return order, nil
	}
	if !Allowed(current, target) {
		return order, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, target)
	}

	fields := map[string]any{
		"status":    target.Coarse(),
		"updatedAt": store.ServerTimestamp,
	}
	if fine := target.Fine(); fine != "" {
		fields["orderStatus"] = fine
	} else {
		fields["orderStatus"] = nil
	}
	if actor == domain.RoleRestaurant && order.RestaurantID != "" {
		fields["restaurantId"] = order.RestaurantID
	}
	for key, value := range extra {
		fields[key] = value
	}

	if err := m.store.Update(ctx, store.OrderPath(orderID), fields); err != nil {
		return order, fmt.Errorf("write transition %s -> %s: %w", current, target, err)
	}

	if driverID, ok := extra["driverId"].(string); ok {
		order.DriverID = driverID
	}
	order.Status = target
	order.UpdatedAt = m.now().UTC()

	m.logger.Info("order transitioned",
		"order_id", orderID,
		"from", current,
		"to", target,
		"actor", actor,
	)

	event := domain.StatusChangedEvent{
		OrderID:      order.ID,
		CustomerID:   order.CustomerID,
		RestaurantID: order.RestaurantID,
		DriverID:     order.DriverID,
		OldStatus:    current,
		NewStatus:    target,
		Actor:        actor,
		Total:        order.Total,
		Timestamp:    order.UpdatedAt,
	}
	if target.Terminal() {
		if snap, err := m.store.Get(ctx, store.OrderPath(orderID)); err == nil && snap.Exists {
			event.Record = snap.Map()
		}
	}
	m.bus.Publish(event)

	return order, nil
}

func (m *Machine) Accept(ctx context.Context, orderID string) (domain.Order, error) {
	return m.Transition(ctx, orderID, domain.StatusAccepted, domain.RoleRestaurant)
}

func (m *Machine) Reject(ctx context.Context, orderID string) (domain.Order, error) {
	return m.Transition(ctx, orderID, domain.StatusRejected, domain.RoleRestaurant)
}

func (m *Machine) MarkReady(ctx context.Context, orderID string) (domain.Order, error) {
	return m.Transition(ctx, orderID, domain.StatusReadyForPickup, domain.RoleRestaurant)
}

func (m *Machine) MarkPickedUp(ctx context.Context, orderID string) (domain.Order, error) {
	return m.Transition(ctx, orderID, domain.StatusPickedUp, domain.RoleDriver)
}

func (m *Machine) MarkDelivered(ctx context.Context, orderID string) (domain.Order, error) {
	return m.Transition(ctx, orderID, domain.StatusDelivered, domain.RoleDriver)
}
