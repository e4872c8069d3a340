package checkout

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/joao-fontenele/dishpatch/internal/domain"
	"github.com/joao-fontenele/dishpatch/internal/notify"
	"github.com/joao-fontenele/dishpatch/internal/pricing"
	"github.com/joao-fontenele/dishpatch/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type paymentsFunc func(ctx context.Context, amount float64) (string, error)

func (f paymentsFunc) Charge(ctx context.Context, amount float64) (string, error) {
	return f(ctx, amount)
}

func decliningPayments() PaymentService {
	return paymentsFunc(func(context.Context, float64) (string, error) {
		return "", errors.New("card declined")
	})
}

func seedRestaurant(t *testing.T, st store.Store, id string, open bool, discount int) {
	t.Helper()
	restaurant := domain.Restaurant{
		ID:                 id,
		Name:               "Test Kitchen",
		Address:            "1 Kitchen Way",
		Open:               open,
		DiscountPercentage: discount,
		Location:           &domain.Coord{Latitude: 0, Longitude: 0},
	}
	if err := st.Set(context.Background(), store.RestaurantPath(id), restaurant.Record()); err != nil {
		t.Fatalf("seed restaurant: %v", err)
	}
}

func newTestService(st store.Store, payments PaymentService) *Service {
	logger := testLogger()
	engine := pricing.NewEngine(pricing.NewPseudoGeocoder(), logger)
	notifier := notify.NewDispatcher(st, logger)
	return NewService(st, engine, payments, notifier, logger)
}

func validRequest() PlaceOrderRequest {
	return PlaceOrderRequest{
		CustomerID:   "c1",
		RestaurantID: "r1",
		Items: []domain.LineItem{
			{ID: "i1", Name: "Burger", Price: 20, Quantity: 2},
		},
		TipPercentage:  15,
		DeliveryOption: domain.DeliveryOptionDelivery,
		Address: &domain.Address{
			Street:    "5 Main St",
			Latitude:  0.02698,
			Longitude: 0,
		},
	}
}

func TestService_PlaceOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("writes a pending order with a frozen receipt", func(t *testing.T) {
		st := store.NewMemoryStore()
		seedRestaurant(t, st, "r1", true, 10)
		svc := newTestService(st, NewSimulatedPayments())

		result, err := svc.PlaceOrder(ctx, validRequest())
		if err != nil {
			t.Fatalf("place order failed: %v", err)
		}
		if result.Scheduled {
			t.Error("expected a live order")
		}

		order := result.Order
		if order.Status != domain.StatusPending {
			t.Errorf("expected pending, got %q", order.Status)
		}
		if order.Subtotal != 40.00 || order.DiscountAmount != 4.00 || order.TipAmount != 5.40 {
			t.Errorf("receipt wrong: %+v", order)
		}
		if order.PaymentIntentID == "" {
			t.Error("expected a payment intent id")
		}

		snap, _ := st.Get(ctx, store.OrderPath(order.ID))
		if !snap.Exists {
			t.Fatal("expected order record in the live collection")
		}
		record := snap.Map()
		if record["status"] != "pending" {
			t.Errorf("expected pending record, got %v", record["status"])
		}
		if _, ok := record["createdAt"].(int64); !ok {
			t.Errorf("expected createdAt millis, got %T", record["createdAt"])
		}

		// Later discount changes must not touch the stored receipt.
		seedRestaurant(t, st, "r1", true, 50)
		snap, _ = st.Get(ctx, store.OrderPath(order.ID))
		if got := domain.DecodeOrder(order.ID, snap.Map()).DiscountAmount; got != 4.00 {
			t.Errorf("receipt repriced to %v", got)
		}
	})

	t.Run("sends an order placed notification", func(t *testing.T) {
		st := store.NewMemoryStore()
		seedRestaurant(t, st, "r1", true, 0)
		svc := newTestService(st, NewSimulatedPayments())

		if _, err := svc.PlaceOrder(ctx, validRequest()); err != nil {
			t.Fatalf("place order failed: %v", err)
		}

		snap, _ := st.Get(ctx, store.NotificationsPath("c1"))
		if len(snap.Children()) != 1 {
			t.Fatalf("expected 1 notification, got %d", len(snap.Children()))
		}
	})

	t.Run("declined payment leaves no order behind", func(t *testing.T) {
		st := store.NewMemoryStore()
		seedRestaurant(t, st, "r1", true, 0)
		svc := newTestService(st, decliningPayments())

		_, err := svc.PlaceOrder(ctx, validRequest())
		if !errors.Is(err, ErrPaymentDeclined) {
			t.Fatalf("expected ErrPaymentDeclined, got %v", err)
		}

		orders, _ := st.Get(ctx, store.OrdersRoot)
		if len(orders.Children()) != 0 {
			t.Errorf("expected no orders, found %d", len(orders.Children()))
		}
		scheduled, _ := st.Get(ctx, store.ScheduledOrdersRoot)
		if len(scheduled.Children()) != 0 {
			t.Errorf("expected no scheduled orders, found %d", len(scheduled.Children()))
		}
	})

	t.Run("closed restaurant requires a schedule time", func(t *testing.T) {
		st := store.NewMemoryStore()
		seedRestaurant(t, st, "r1", false, 0)
		svc := newTestService(st, NewSimulatedPayments())

		_, err := svc.PlaceOrder(ctx, validRequest())
		if !errors.Is(err, ErrScheduleRequired) {
			t.Fatalf("expected ErrScheduleRequired, got %v", err)
		}
	})

	t.Run("closed restaurant with schedule lands in scheduled collection", func(t *testing.T) {
		st := store.NewMemoryStore()
		seedRestaurant(t, st, "r1", false, 0)
		svc := newTestService(st, NewSimulatedPayments())

		req := validRequest()
		req.ScheduledFor = time.Now().Add(3 * time.Hour).UTC()

		result, err := svc.PlaceOrder(ctx, req)
		if err != nil {
			t.Fatalf("place order failed: %v", err)
		}
		if !result.Scheduled {
			t.Error("expected a scheduled order")
		}

		snap, _ := st.Get(ctx, store.ScheduledOrderPath(result.Order.ID))
		if !snap.Exists {
			t.Fatal("expected record in scheduled collection")
		}
		record := snap.Map()
		if record["isScheduled"] != true {
			t.Error("expected isScheduled true")
		}
		if _, ok := record["scheduledFor"].(int64); !ok {
			t.Errorf("expected scheduledFor millis, got %T", record["scheduledFor"])
		}

		live, _ := st.Get(ctx, store.OrderPath(result.Order.ID))
		if live.Exists {
			t.Error("scheduled order must not appear in the live collection")
		}
	})

	t.Run("empty cart", func(t *testing.T) {
		st := store.NewMemoryStore()
		svc := newTestService(st, NewSimulatedPayments())

		req := validRequest()
		req.Items = nil
		if _, err := svc.PlaceOrder(ctx, req); !errors.Is(err, ErrEmptyCart) {
			t.Fatalf("expected ErrEmptyCart, got %v", err)
		}
	})

	t.Run("delivery without address", func(t *testing.T) {
		st := store.NewMemoryStore()
		svc := newTestService(st, NewSimulatedPayments())

		req := validRequest()
		req.Address = nil
		if _, err := svc.PlaceOrder(ctx, req); !errors.Is(err, ErrMissingAddress) {
			t.Fatalf("expected ErrMissingAddress, got %v", err)
		}
	})

	t.Run("unknown restaurant", func(t *testing.T) {
		st := store.NewMemoryStore()
		svc := newTestService(st, NewSimulatedPayments())

		if _, err := svc.PlaceOrder(ctx, validRequest()); !errors.Is(err, ErrRestaurantNotFound) {
			t.Fatalf("expected ErrRestaurantNotFound, got %v", err)
		}
	})
}

func TestSimulatedPayments(t *testing.T) {
	p := NewSimulatedPayments()

	intentID, err := p.Charge(context.Background(), 45.90)
	if err != nil {
		t.Fatalf("charge failed: %v", err)
	}
	if intentID == "" {
		t.Error("expected an intent id")
	}

	if _, err := p.Charge(context.Background(), 0); !errors.Is(err, ErrPaymentDeclined) {
		t.Fatalf("expected ErrPaymentDeclined for zero amount, got %v", err)
	}
}
