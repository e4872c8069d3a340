package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/joao-fontenele/dishpatch/internal/checkout"
	"github.com/joao-fontenele/dishpatch/internal/dashboard"
	"github.com/joao-fontenele/dishpatch/internal/dispatch"
	"github.com/joao-fontenele/dishpatch/internal/domain"
	"github.com/joao-fontenele/dishpatch/internal/lifecycle"
	"github.com/joao-fontenele/dishpatch/internal/notify"
	"github.com/joao-fontenele/dishpatch/internal/pricing"
	"github.com/joao-fontenele/dishpatch/internal/store"
)

func newTestMux(t *testing.T, st store.Store) *http.ServeMux {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := pricing.NewEngine(pricing.NewPseudoGeocoder(), logger)
	notifier := notify.NewDispatcher(st, logger)
	machine := lifecycle.NewMachine(st, logger)
	dispatcher := dispatch.NewManager(st, machine, notifier, logger)
	checkoutSvc := checkout.NewService(st, engine, checkout.NewSimulatedPayments(), notifier, logger)
	views := dashboard.NewViews(st)

	handler := NewHandler(st, checkoutSvc, machine, dispatcher, views, logger)
	mux := http.NewServeMux()
	handler.Register(mux)
	return mux
}

func seedRestaurant(t *testing.T, st store.Store, id string, open bool) {
	t.Helper()
	restaurant := domain.Restaurant{ID: id, Name: "Test Kitchen", Address: "1 Kitchen Way", Open: open}
	if err := st.Set(context.Background(), store.RestaurantPath(id), restaurant.Record()); err != nil {
		t.Fatalf("seed restaurant: %v", err)
	}
}

func seedOrder(t *testing.T, st store.Store, id string, status domain.Status, driverID string) {
	t.Helper()
	order := domain.Order{
		ID:           id,
		CustomerID:   "c1",
		RestaurantID: "r1",
		DriverID:     driverID,
		Status:       status,
		Total:        45.9,
	}
	if err := st.Set(context.Background(), store.OrderPath(id), order.Record()); err != nil {
		t.Fatalf("seed order: %v", err)
	}
}

func seedDriver(t *testing.T, st store.Store, driver domain.Driver) {
	t.Helper()
	if err := st.Set(context.Background(), store.DriverPath(driver.ID), driver.Record()); err != nil {
		t.Fatalf("seed driver: %v", err)
	}
}

func doJSON(t *testing.T, mux *http.ServeMux, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHandler_PlaceOrder(t *testing.T) {
	t.Run("creates a pending order", func(t *testing.T) {
		st := store.NewMemoryStore()
		seedRestaurant(t, st, "r1", true)
		mux := newTestMux(t, st)

		body := `{
			"customer_id": "c1",
			"restaurant_id": "r1",
			"items": [{"id": "i1", "name": "Burger", "price": 20, "quantity": 2}],
			"tip_percentage": 15,
			"delivery_option": "delivery",
			"address": {"street": "5 Main St", "latitude": 40.71, "longitude": -74.0}
		}`
		rec := doJSON(t, mux, http.MethodPost, "/orders", body)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}

		var resp placeOrderResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.Order.Status != "pending" {
			t.Errorf("expected pending, got %q", resp.Order.Status)
		}
		if resp.Order.Subtotal != 40.00 {
			t.Errorf("subtotal = %v, want 40.00", resp.Order.Subtotal)
		}
		if resp.Scheduled {
			t.Error("expected a live order")
		}
	})

	t.Run("rejects malformed body", func(t *testing.T) {
		st := store.NewMemoryStore()
		mux := newTestMux(t, st)

		rec := doJSON(t, mux, http.MethodPost, "/orders", "{not json")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("empty cart maps to 400", func(t *testing.T) {
		st := store.NewMemoryStore()
		seedRestaurant(t, st, "r1", true)
		mux := newTestMux(t, st)

		rec := doJSON(t, mux, http.MethodPost, "/orders", `{"customer_id":"c1","restaurant_id":"r1","items":[]}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("unknown restaurant maps to 404", func(t *testing.T) {
		st := store.NewMemoryStore()
		mux := newTestMux(t, st)

		body := `{
			"customer_id": "c1",
			"restaurant_id": "ghost",
			"items": [{"id": "i1", "price": 20, "quantity": 1}],
			"address": {"street": "5 Main St"}
		}`
		rec := doJSON(t, mux, http.MethodPost, "/orders", body)
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("closed restaurant without schedule maps to 400", func(t *testing.T) {
		st := store.NewMemoryStore()
		seedRestaurant(t, st, "r1", false)
		mux := newTestMux(t, st)

		body := `{
			"customer_id": "c1",
			"restaurant_id": "r1",
			"items": [{"id": "i1", "price": 20, "quantity": 1}],
			"address": {"street": "5 Main St"}
		}`
		rec := doJSON(t, mux, http.MethodPost, "/orders", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d: %s", rec.Code, rec.Body.String())
		}
	})
}

func TestHandler_GetOrder(t *testing.T) {
	t.Run("returns the order", func(t *testing.T) {
		st := store.NewMemoryStore()
		seedOrder(t, st, "o1", domain.StatusAccepted, "")
		mux := newTestMux(t, st)

		rec := doJSON(t, mux, http.MethodGet, "/orders/o1", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}

		var resp orderResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.ID != "o1" || resp.Status != "accepted" {
			t.Errorf("unexpected order: %+v", resp)
		}
	})

	t.Run("falls back to the scheduled collection", func(t *testing.T) {
		st := store.NewMemoryStore()
		order := domain.Order{ID: "o1", CustomerID: "c1", RestaurantID: "r1", Status: domain.StatusPending, Scheduled: true}
		if err := st.Set(context.Background(), store.ScheduledOrderPath("o1"), order.Record()); err != nil {
			t.Fatalf("seed scheduled order: %v", err)
		}
		mux := newTestMux(t, st)

		rec := doJSON(t, mux, http.MethodGet, "/orders/o1", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("missing order", func(t *testing.T) {
		mux := newTestMux(t, store.NewMemoryStore())
		rec := doJSON(t, mux, http.MethodGet, "/orders/ghost", "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})
}

func TestHandler_Transitions(t *testing.T) {
	t.Run("accept", func(t *testing.T) {
		st := store.NewMemoryStore()
		seedOrder(t, st, "o1", domain.StatusPending, "")
		mux := newTestMux(t, st)

		rec := doJSON(t, mux, http.MethodPost, "/orders/o1/accept", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var resp orderResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.Status != "accepted" {
			t.Errorf("expected accepted, got %q", resp.Status)
		}
	})

	t.Run("invalid transition maps to 409", func(t *testing.T) {
		st := store.NewMemoryStore()
		seedOrder(t, st, "o1", domain.StatusDelivered, "")
		mux := newTestMux(t, st)

		rec := doJSON(t, mux, http.MethodPost, "/orders/o1/accept", "")
		if rec.Code != http.StatusConflict {
			t.Errorf("expected 409, got %d", rec.Code)
		}
	})

	t.Run("missing order maps to 404", func(t *testing.T) {
		mux := newTestMux(t, store.NewMemoryStore())
		rec := doJSON(t, mux, http.MethodPost, "/orders/ghost/reject", "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("deliver releases the driver", func(t *testing.T) {
		st := store.NewMemoryStore()
		seedOrder(t, st, "o1", domain.StatusPickedUp, "d1")
		seedDriver(t, st, domain.Driver{ID: "d1", Approved: true, Available: false, CurrentOrderID: "o1"})
		mux := newTestMux(t, st)

		rec := doJSON(t, mux, http.MethodPost, "/orders/o1/deliver", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		snap, _ := st.Get(context.Background(), store.DriverPath("d1"))
		driver := domain.DecodeDriver("d1", snap.Map())
		if !driver.Available || driver.CurrentOrderID != "" {
			t.Errorf("driver not released: %+v", driver)
		}
	})
}

func TestHandler_AssignDriver(t *testing.T) {
	t.Run("assigns", func(t *testing.T) {
		st := store.NewMemoryStore()
		seedOrder(t, st, "o1", domain.StatusAccepted, "")
		seedDriver(t, st, domain.Driver{ID: "d1", Approved: true, Available: true})
		mux := newTestMux(t, st)

		rec := doJSON(t, mux, http.MethodPost, "/orders/o1/assign", `{"driver_id":"d1"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("busy driver maps to 409", func(t *testing.T) {
		st := store.NewMemoryStore()
		seedOrder(t, st, "o1", domain.StatusPreparing, "d1")
		seedOrder(t, st, "o2", domain.StatusAccepted, "")
		seedDriver(t, st, domain.Driver{ID: "d1", Approved: true, Available: false, CurrentOrderID: "o1"})
		mux := newTestMux(t, st)

		rec := doJSON(t, mux, http.MethodPost, "/orders/o2/assign", `{"driver_id":"d1"}`)
		if rec.Code != http.StatusConflict {
			t.Errorf("expected 409, got %d", rec.Code)
		}

		// Same request with force goes through.
		rec = doJSON(t, mux, http.MethodPost, "/orders/o2/assign", `{"driver_id":"d1","force":true}`)
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200 with force, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("missing driver_id maps to 400", func(t *testing.T) {
		mux := newTestMux(t, store.NewMemoryStore())
		rec := doJSON(t, mux, http.MethodPost, "/orders/o1/assign", `{}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})
}

func TestHandler_Drivers(t *testing.T) {
	t.Run("lists partitioned fleet", func(t *testing.T) {
		st := store.NewMemoryStore()
		seedDriver(t, st, domain.Driver{ID: "d1", Rating: 4.9, Approved: true, Available: true})
		seedDriver(t, st, domain.Driver{ID: "d2", Rating: 4.1, Approved: true, Available: false})
		mux := newTestMux(t, st)

		rec := doJSON(t, mux, http.MethodGet, "/drivers", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}

		var resp driverListResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if len(resp.Available) != 1 || len(resp.Busy) != 1 {
			t.Errorf("partition wrong: %+v", resp)
		}
	})

	t.Run("release", func(t *testing.T) {
		st := store.NewMemoryStore()
		seedOrder(t, st, "o1", domain.StatusPreparing, "d1")
		seedDriver(t, st, domain.Driver{ID: "d1", Approved: true, Available: false, CurrentOrderID: "o1"})
		mux := newTestMux(t, st)

		rec := doJSON(t, mux, http.MethodPost, "/drivers/d1/release", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("release of unknown driver maps to 404", func(t *testing.T) {
		mux := newTestMux(t, store.NewMemoryStore())
		rec := doJSON(t, mux, http.MethodPost, "/drivers/ghost/release", "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})
}

func TestHandler_Dashboards(t *testing.T) {
	st := store.NewMemoryStore()
	seedOrder(t, st, "o1", domain.StatusPending, "")
	seedOrder(t, st, "o2", domain.StatusDelivered, "d1")
	mux := newTestMux(t, st)

	t.Run("restaurant queue", func(t *testing.T) {
		rec := doJSON(t, mux, http.MethodGet, "/restaurants/r1/queue", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var resp restaurantQueueResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if len(resp.Incoming) != 1 || len(resp.Completed) != 1 {
			t.Errorf("queue wrong: %+v", resp)
		}
	})

	t.Run("customer orders", func(t *testing.T) {
		rec := doJSON(t, mux, http.MethodGet, "/customers/c1/orders", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var resp customerOrdersResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if len(resp.Active) != 1 || len(resp.Past) != 1 {
			t.Errorf("orders wrong: %+v", resp)
		}
	})

	t.Run("driver tasks", func(t *testing.T) {
		rec := doJSON(t, mux, http.MethodGet, "/drivers/d1/tasks", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var resp driverTasksResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.Current != nil {
			t.Errorf("expected no current task, got %+v", resp.Current)
		}
		if len(resp.History) != 1 {
			t.Errorf("expected 1 in history, got %d", len(resp.History))
		}
	})
}
