// Package dashboard builds the per-role projections of the order book.
// These are pure read models over the canonical status: no lifecycle logic
// lives here, and nothing is inferred from raw field presence.
package dashboard

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/joao-fontenele/dishpatch/internal/domain"
	"github.com/joao-fontenele/dishpatch/internal/store"
)

type Views struct {
	store store.Store
}

func NewViews(st store.Store) *Views {
	return &Views{store: st}
}

// RestaurantQueue is the restaurant dashboard. Incoming holds orders the
// restaurant has not acted on yet — which includes legacy bare in_progress
// records, since those resolve to pending rather than to an actionable
// in-progress state.
type RestaurantQueue struct {
	Incoming   []domain.Order
	InProgress []domain.Order
	Completed  []domain.Order
}

func (v *Views) RestaurantQueue(ctx context.Context, restaurantID string) (RestaurantQueue, error) {
	orders, err := v.listOrders(ctx)
	if err != nil {
		return RestaurantQueue{}, err
	}

	return partitionQueue(restaurantID, orders), nil
}

func partitionQueue(restaurantID string, orders []domain.Order) RestaurantQueue {
	var queue RestaurantQueue
	for _, order := range orders {
		if order.RestaurantID != restaurantID {
			continue
		}
		switch order.Status {
		case domain.StatusPending:
			queue.Incoming = append(queue.Incoming, order)
		case domain.StatusAccepted, domain.StatusPreparing, domain.StatusReadyForPickup, domain.StatusPickedUp:
			queue.InProgress = append(queue.InProgress, order)
		case domain.StatusDelivered, domain.StatusRejected:
			queue.Completed = append(queue.Completed, order)
		}
	}
	return queue
}

// CustomerOrders splits a customer's orders into live and historical.
type CustomerOrders struct {
	Active []domain.Order
	Past   []domain.Order
}

func (v *Views) CustomerOrders(ctx context.Context, customerID string) (CustomerOrders, error) {
	orders, err := v.listOrders(ctx)
	if err != nil {
		return CustomerOrders{}, err
	}

	var out CustomerOrders
	for _, order := range orders {
		if order.CustomerID != customerID {
			continue
		}
		if order.Status.Terminal() {
			out.Past = append(out.Past, order)
		} else {
			out.Active = append(out.Active, order)
		}
	}
	return out, nil
}

// DriverTasks is the driver dashboard: the order in hand plus completed
// history.
type DriverTasks struct {
	Current *domain.Order
	History []domain.Order
}

func (v *Views) DriverTasks(ctx context.Context, driverID string) (DriverTasks, error) {
	orders, err := v.listOrders(ctx)
	if err != nil {
		return DriverTasks{}, err
	}

	var tasks DriverTasks
	for _, order := range orders {
		if order.DriverID != driverID {
			continue
		}
		if order.Status == domain.StatusDelivered {
			tasks.History = append(tasks.History, order)
		} else if !order.Status.Terminal() && tasks.Current == nil {
			current := order
			tasks.Current = &current
		}
	}
	return tasks, nil
}

func (v *Views) listOrders(ctx context.Context) ([]domain.Order, error) {
	snap, err := v.store.Get(ctx, store.OrdersRoot)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	children := snap.Children()
	orders := make([]domain.Order, 0, len(children))
	for id, record := range children {
		orders = append(orders, domain.DecodeOrder(id, record))
	}
	sort.Slice(orders, func(i, j int) bool {
		if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].CreatedAt.After(orders[j].CreatedAt)
		}
		return orders[i].ID < orders[j].ID
	})
	return orders, nil
}

// WatchRestaurantQueue pushes a fresh queue projection on every change to
// the order book.
func (v *Views) WatchRestaurantQueue(restaurantID string, fn func(RestaurantQueue)) *Watch {
	return newWatch(v.store, store.OrdersRoot, func(snap store.Snapshot) {
		children := snap.Children()
		orders := make([]domain.Order, 0, len(children))
		for id, record := range children {
			orders = append(orders, domain.DecodeOrder(id, record))
		}
		fn(partitionQueue(restaurantID, orders))
	})
}

// Watch is a live subscription with idempotent teardown and safe re-setup,
// so a view re-entered from the UI never stacks listeners.
type Watch struct {
	store store.Store
	path  string
	fn    func(store.Snapshot)

	mu  sync.Mutex
	sub store.Subscription
}

func newWatch(st store.Store, path string, fn func(store.Snapshot)) *Watch {
	return &Watch{store: st, path: path, fn: fn}
}

// Start subscribes, tearing down any previous subscription first.
func (w *Watch) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.sub != nil {
		w.sub.Release()
		w.sub = nil
	}

	sub, err := w.store.Subscribe(w.path, w.fn)
	if err != nil {
		return fmt.Errorf("watch %s: %w", w.path, err)
	}
	w.sub = sub
	return nil
}

// Stop releases the subscription; repeated calls are no-ops. Writes already
// issued from the handler are not cancelled.
func (w *Watch) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.sub != nil {
		w.sub.Release()
		w.sub = nil
	}
}
