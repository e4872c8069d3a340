package domain

import (
	"testing"
	"time"
)

func TestDecodeOrder(t *testing.T) {
	t.Run("decodes a full record", func(t *testing.T) {
		record := map[string]any{
			"customerId":         "c1",
			"restaurantId":       "r1",
			"driverId":           "d1",
			"status":             "assigned_driver",
			"orderStatus":        "preparing",
			"subtotal":           40.0,
			"discountPercentage": 10,
			"discountAmount":     4.0,
			"tipPercentage":      15,
			"tipAmount":          5.4,
			"deliveryFee":        4.5,
			"total":              45.9,
			"deliveryOption":     "delivery",
			"isScheduled":        false,
			"paymentIntentId":    "pi_123",
			"createdAt":          int64(1717243200000),
			"address": map[string]any{
				"street":    "5 Main St",
				"unit":      "2B",
				"latitude":  40.7,
				"longitude": -74.0,
			},
			"items": []any{
				map[string]any{
					"id":       "i1",
					"name":     "Burger",
					"price":    20.0,
					"quantity": 2,
					"customizations": map[string]any{
						"opt-cheese": []any{"cheddar"},
					},
				},
			},
		}

		order := DecodeOrder("o1", record)

		if order.ID != "o1" || order.CustomerID != "c1" || order.RestaurantID != "r1" || order.DriverID != "d1" {
			t.Errorf("ids wrong: %+v", order)
		}
		if order.Status != StatusPreparing {
			t.Errorf("expected preparing, got %q", order.Status)
		}
		if order.Total != 45.9 || order.TipAmount != 5.4 {
			t.Errorf("financials wrong: %+v", order)
		}
		if order.Address == nil || order.Address.Street != "5 Main St" {
			t.Errorf("address wrong: %+v", order.Address)
		}
		if len(order.Items) != 1 {
			t.Fatalf("expected 1 item, got %d", len(order.Items))
		}
		item := order.Items[0]
		if item.LineTotal() != 40.0 {
			t.Errorf("expected line total 40, got %v", item.LineTotal())
		}
		if got := item.Customizations["opt-cheese"]; len(got) != 1 || got[0] != "cheddar" {
			t.Errorf("customizations wrong: %v", item.Customizations)
		}
		want := time.UnixMilli(1717243200000)
		if !order.CreatedAt.Equal(want) {
			t.Errorf("createdAt wrong: %v", order.CreatedAt)
		}
	})

	t.Run("tolerates a sparse record", func(t *testing.T) {
		order := DecodeOrder("o1", map[string]any{"customerId": "c1"})

		if order.Status != StatusUnknown {
			t.Errorf("expected unknown status, got %q", order.Status)
		}
		if order.DeliveryOption != DeliveryOptionDelivery {
			t.Errorf("expected delivery default, got %q", order.DeliveryOption)
		}
		if order.Address != nil {
			t.Error("expected nil address")
		}
	})

	t.Run("nil record yields only the id", func(t *testing.T) {
		order := DecodeOrder("o1", nil)
		if order.ID != "o1" {
			t.Errorf("expected id o1, got %q", order.ID)
		}
	})

	t.Run("items stored as index-keyed map", func(t *testing.T) {
		order := DecodeOrder("o1", map[string]any{
			"items": map[string]any{
				"1": map[string]any{"id": "i2", "price": 3.0},
				"0": map[string]any{"id": "i1", "price": 5.0},
			},
		})

		if len(order.Items) != 2 {
			t.Fatalf("expected 2 items, got %d", len(order.Items))
		}
		if order.Items[0].ID != "i1" || order.Items[1].ID != "i2" {
			t.Errorf("items out of order: %+v", order.Items)
		}
		// Missing quantity defaults to one.
		if order.Items[0].Quantity != 1 {
			t.Errorf("expected quantity 1, got %d", order.Items[0].Quantity)
		}
	})

	t.Run("numeric fields tolerate float and string encodings", func(t *testing.T) {
		order := DecodeOrder("o1", map[string]any{
			"subtotal":           "40.5",
			"discountPercentage": 10.0,
			"createdAt":          1717243200000.0,
		})
		if order.Subtotal != 40.5 {
			t.Errorf("expected 40.5, got %v", order.Subtotal)
		}
		if order.DiscountPercentage != 10 {
			t.Errorf("expected 10, got %v", order.DiscountPercentage)
		}
		if order.CreatedAt.IsZero() {
			t.Error("expected createdAt to decode from float millis")
		}
	})

	t.Run("line totals are recomputed, never trusted", func(t *testing.T) {
		order := DecodeOrder("o1", map[string]any{
			"items": []any{
				map[string]any{"id": "i1", "price": 10.0, "quantity": 2, "lineTotal": 999.0},
			},
		})
		if got := order.Items[0].LineTotal(); got != 20.0 {
			t.Errorf("expected 20, got %v", got)
		}
	})
}

func TestOrder_Record(t *testing.T) {
	order := Order{
		ID:           "o1",
		CustomerID:   "c1",
		RestaurantID: "r1",
		Status:       StatusAccepted,
		Subtotal:     40,
		Total:        45.9,
		Items: []LineItem{
			{ID: "i1", Name: "Burger", Price: 20, Quantity: 2},
		},
		DeliveryOption: DeliveryOptionDelivery,
	}

	record := order.Record()

	t.Run("emits both legacy status fields", func(t *testing.T) {
		if record["status"] != "in_progress" {
			t.Errorf("expected in_progress, got %v", record["status"])
		}
		if record["orderStatus"] != "accepted" {
			t.Errorf("expected accepted, got %v", record["orderStatus"])
		}
	})

	t.Run("round trips through decode", func(t *testing.T) {
		decoded := DecodeOrder("o1", record)
		if decoded.Status != StatusAccepted {
			t.Errorf("expected accepted, got %q", decoded.Status)
		}
		if decoded.Total != 45.9 {
			t.Errorf("expected 45.9, got %v", decoded.Total)
		}
		if len(decoded.Items) != 1 || decoded.Items[0].LineTotal() != 40 {
			t.Errorf("items wrong: %+v", decoded.Items)
		}
	})

	t.Run("omits absent optional fields", func(t *testing.T) {
		for _, key := range []string{"driverId", "address", "scheduledFor", "paymentIntentId", "createdAt"} {
			if _, ok := record[key]; ok {
				t.Errorf("expected %s to be omitted", key)
			}
		}
	})
}
