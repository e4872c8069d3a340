// Package dispatch selects, locks, and releases driver capacity and keeps
// the driver/order back-references consistent.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/joao-fontenele/dishpatch/internal/domain"
	"github.com/joao-fontenele/dishpatch/internal/lifecycle"
	"github.com/joao-fontenele/dishpatch/internal/notify"
	"github.com/joao-fontenele/dishpatch/internal/store"
)

var (
	// ErrDriverBusy means the target driver already holds an order. The
	// caller confirms with the dispatcher and re-invokes with force.
	ErrDriverBusy = errors.New("driver busy")

	// ErrOrderAssigned means the order already references a different
	// driver. Same recovery as ErrDriverBusy: confirm, then force.
	ErrOrderAssigned = errors.New("order already assigned")

	ErrDriverNotFound = errors.New("driver not found")
)

type Manager struct {
	store    store.Store
	machine  *lifecycle.Machine
	notifier *notify.Dispatcher
	logger   *slog.Logger
}

func NewManager(st store.Store, machine *lifecycle.Machine, notifier *notify.Dispatcher, logger *slog.Logger) *Manager {
	return &Manager{store: st, machine: machine, notifier: notifier, logger: logger}
}

// DriverList partitions the fleet for the dispatcher view, both halves
// sorted by rating descending.
type DriverList struct {
	Available []domain.Driver
	Busy      []domain.Driver
}

// ListDrivers loads the fleet, dropping unapproved drivers and self-healing
// stale assignment references along the way.
func (m *Manager) ListDrivers(ctx context.Context) (DriverList, error) {
	snap, err := m.store.Get(ctx, store.DriversRoot)
	if err != nil {
		return DriverList{}, fmt.Errorf("load drivers: %w", err)
	}

	var list DriverList
	for id, record := range snap.Children() {
		driver := domain.DecodeDriver(id, record)
		if !driver.Approved {
			continue
		}

		if driver.CurrentOrderID != "" {
			repaired, err := m.repairIfStale(ctx, &driver)
			if err != nil {
				return DriverList{}, err
			}
			if repaired {
				list.Available = append(list.Available, driver)
				continue
			}
			list.Busy = append(list.Busy, driver)
			continue
		}

		if driver.Available {
			list.Available = append(list.Available, driver)
		} else {
			list.Busy = append(list.Busy, driver)
		}
	}

	byRating := func(drivers []domain.Driver) {
		sort.Slice(drivers, func(i, j int) bool {
			if drivers[i].Rating != drivers[j].Rating {
				return drivers[i].Rating > drivers[j].Rating
			}
			return drivers[i].ID < drivers[j].ID
		})
	}
	byRating(list.Available)
	byRating(list.Busy)

	return list, nil
}

// repairIfStale clears a currentOrderId that no longer resolves to an order
// referencing this driver. This is self-healing of recoverable corruption,
// logged but never surfaced.
func (m *Manager) repairIfStale(ctx context.Context, driver *domain.Driver) (bool, error) {
	snap, err := m.store.Get(ctx, store.OrderPath(driver.CurrentOrderID))
	if err != nil {
		return false, fmt.Errorf("check driver %s assignment: %w", driver.ID, err)
	}
	if snap.Exists {
		order := domain.DecodeOrder(driver.CurrentOrderID, snap.Map())
		if order.DriverID == driver.ID {
			return false, nil
		}
	}

	m.logger.Warn("repairing stale driver assignment",
		"driver_id", driver.ID,
		"order_id", driver.CurrentOrderID,
	)
	err = m.store.Update(ctx, store.DriverPath(driver.ID), map[string]any{
		"currentOrderId": nil,
		"isAvailable":    true,
	})
	if err != nil {
		return false, fmt.Errorf("repair driver %s: %w", driver.ID, err)
	}

	driver.CurrentOrderID = ""
	driver.Available = true
	return true, nil
}

// Assign locks driverID onto orderID. Contention on either side fails
// without force: a busy driver with ErrDriverBusy, an order already held
// by another driver with ErrOrderAssigned. With force the prior linkage
// on both sides is detached first; detach and attach are sequential so
// two orders never reference the same driver and the order never keeps a
// driver it was taken from. The driver notification at the end is
// fire-and-forget.
func (m *Manager) Assign(ctx context.Context, orderID, driverID string, force bool) error {
	orderSnap, err := m.store.Get(ctx, store.OrderPath(orderID))
	if err != nil {
		return fmt.Errorf("load order %s: %w", orderID, err)
	}
	if !orderSnap.Exists {
		return fmt.Errorf("%w: %s", lifecycle.ErrOrderNotFound, orderID)
	}
	order := domain.DecodeOrder(orderID, orderSnap.Map())

	if order.DriverID != "" && order.DriverID != driverID {
		if !force {
			return fmt.Errorf("%w: order %s is held by driver %s", ErrOrderAssigned, orderID, order.DriverID)
		}
		if err := m.unassign(ctx, order); err != nil {
			return err
		}
	}

	snap, err := m.store.Get(ctx, store.DriverPath(driverID))
	if err != nil {
		return fmt.Errorf("load driver %s: %w", driverID, err)
	}
	if !snap.Exists {
		return fmt.Errorf("%w: %s", ErrDriverNotFound, driverID)
	}
	driver := domain.DecodeDriver(driverID, snap.Map())

	if driver.CurrentOrderID != "" {
		repaired, err := m.repairIfStale(ctx, &driver)
		if err != nil {
			return err
		}
		if !repaired {
			if !force {
				return fmt.Errorf("%w: %s is on order %s", ErrDriverBusy, driverID, driver.CurrentOrderID)
			}
			if err := m.detach(ctx, driver); err != nil {
				return err
			}
		}
	}

	_, err = m.machine.TransitionWith(ctx, orderID, domain.StatusPreparing, domain.RoleAdmin, map[string]any{
		"driverId": driverID,
	})
	if err != nil {
		return fmt.Errorf("assign order %s to driver %s: %w", orderID, driverID, err)
	}

	err = m.store.Update(ctx, store.DriverPath(driverID), map[string]any{
		"isAvailable":    false,
		"currentOrderId": orderID,
	})
	if err != nil {
		return fmt.Errorf("lock driver %s: %w", driverID, err)
	}

	m.logger.Info("driver assigned", "driver_id", driverID, "order_id", orderID, "forced", force)

	err = m.notifier.Send(ctx, driverID, notify.Notification{
		Type:    notify.TypeDriverAssigned,
		OrderID: orderID,
		Message: "You have a new delivery",
	})
	if err != nil {
		// Assignment stands; the driver dashboard still shows the order.
		m.logger.Error("driver notification failed", "driver_id", driverID, "order_id", orderID, "error", err)
	}

	return nil
}

// unassign strips the order's current driver before a force-assign hands
// it to a new one. The order side is cleared first; if freeing the prior
// driver fails afterwards, the leftover reference is stale and the next
// listing repairs it.
func (m *Manager) unassign(ctx context.Context, order domain.Order) error {
	err := m.store.Update(ctx, store.OrderPath(order.ID), map[string]any{
		"driverId":  nil,
		"updatedAt": store.ServerTimestamp,
	})
	if err != nil {
		return fmt.Errorf("unlink order %s from driver %s: %w", order.ID, order.DriverID, err)
	}

	snap, err := m.store.Get(ctx, store.DriverPath(order.DriverID))
	if err != nil {
		return fmt.Errorf("load prior driver %s: %w", order.DriverID, err)
	}
	if snap.Exists {
		prior := domain.DecodeDriver(order.DriverID, snap.Map())
		if prior.CurrentOrderID == order.ID {
			err = m.store.Update(ctx, store.DriverPath(prior.ID), map[string]any{
				"isAvailable":    true,
				"currentOrderId": nil,
			})
			if err != nil {
				return fmt.Errorf("free prior driver %s: %w", prior.ID, err)
			}
		}
	}

	m.logger.Info("order unassigned for handover", "order_id", order.ID, "prior_driver_id", order.DriverID)
	return nil
}

// detach clears the driver's prior order before a force-assign. A failure
// here aborts the whole assignment; the prior linkage stays intact. After
// the detach the driver record is re-read, and an assignment that changed
// underneath us (another dispatcher won the race) aborts as busy.
func (m *Manager) detach(ctx context.Context, driver domain.Driver) error {
	priorOrderID := driver.CurrentOrderID

	err := m.store.Update(ctx, store.OrderPath(priorOrderID), map[string]any{
		"driverId":  nil,
		"updatedAt": store.ServerTimestamp,
	})
	if err != nil {
		return fmt.Errorf("detach driver %s from order %s: %w", driver.ID, priorOrderID, err)
	}

	snap, err := m.store.Get(ctx, store.DriverPath(driver.ID))
	if err != nil {
		return fmt.Errorf("recheck driver %s: %w", driver.ID, err)
	}
	current := domain.DecodeDriver(driver.ID, snap.Map())
	if current.CurrentOrderID != "" && current.CurrentOrderID != priorOrderID {
		return fmt.Errorf("%w: %s reassigned concurrently to order %s", ErrDriverBusy, driver.ID, current.CurrentOrderID)
	}

	m.logger.Info("driver detached from prior order", "driver_id", driver.ID, "order_id", priorOrderID)
	return nil
}

// Release frees the driver, used both on delivery completion and manual
// reset. If the driver's linked order still references them the order side
// is cleared too, restoring the bidirectional invariant.
func (m *Manager) Release(ctx context.Context, driverID string) error {
	snap, err := m.store.Get(ctx, store.DriverPath(driverID))
	if err != nil {
		return fmt.Errorf("load driver %s: %w", driverID, err)
	}
	if !snap.Exists {
		return fmt.Errorf("%w: %s", ErrDriverNotFound, driverID)
	}
	driver := domain.DecodeDriver(driverID, snap.Map())

	if driver.CurrentOrderID != "" {
		orderSnap, err := m.store.Get(ctx, store.OrderPath(driver.CurrentOrderID))
		if err != nil {
			return fmt.Errorf("load order %s: %w", driver.CurrentOrderID, err)
		}
		if orderSnap.Exists {
			order := domain.DecodeOrder(driver.CurrentOrderID, orderSnap.Map())
			if order.DriverID == driverID {
				err = m.store.Update(ctx, store.OrderPath(order.ID), map[string]any{
					"driverId":  nil,
					"updatedAt": store.ServerTimestamp,
				})
				if err != nil {
					return fmt.Errorf("unlink order %s: %w", order.ID, err)
				}
			}
		}
	}

	err = m.store.Update(ctx, store.DriverPath(driverID), map[string]any{
		"isAvailable":    true,
		"currentOrderId": nil,
	})
	if err != nil {
		return fmt.Errorf("release driver %s: %w", driverID, err)
	}

	m.logger.Info("driver released", "driver_id", driverID)
	return nil
}

// MarkPickedUp advances the order; pure delegation to the state machine.
func (m *Manager) MarkPickedUp(ctx context.Context, orderID string) (domain.Order, error) {
	return m.machine.MarkPickedUp(ctx, orderID)
}

// MarkDelivered completes the order and releases its driver, bumping the
// driver's completed-delivery count.
func (m *Manager) MarkDelivered(ctx context.Context, orderID string) (domain.Order, error) {
	order, err := m.machine.MarkDelivered(ctx, orderID)
	if err != nil {
		return order, err
	}

	if order.DriverID != "" {
		if err := m.Release(ctx, order.DriverID); err != nil {
			return order, fmt.Errorf("release after delivery: %w", err)
		}

		snap, err := m.store.Get(ctx, store.DriverPath(order.DriverID))
		if err == nil && snap.Exists {
			driver := domain.DecodeDriver(order.DriverID, snap.Map())
			err = m.store.Update(ctx, store.DriverPath(order.DriverID), map[string]any{
				"totalDeliveries": driver.TotalDeliveries + 1,
			})
			if err != nil {
				m.logger.Error("failed to bump delivery count", "driver_id", order.DriverID, "error", err)
			}
		}
	}

	return order, nil
}
