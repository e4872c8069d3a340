package notify

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/joao-fontenele/dishpatch/internal/store"
)

func TestDispatcher_Send(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	dispatcher := NewDispatcher(st, slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := dispatcher.Send(ctx, "c1", Notification{
		Type:    TypeOrderPlaced,
		OrderID: "o1",
		Message: "Your order has been placed",
	})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if err := dispatcher.Send(ctx, "c1", Notification{Type: TypeDriverAssigned, OrderID: "o2"}); err != nil {
		t.Fatalf("second send failed: %v", err)
	}

	snap, err := st.Get(ctx, store.NotificationsPath("c1"))
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}

	children := snap.Children()
	if len(children) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(children))
	}
	for id, record := range children {
		if record["id"] != id {
			t.Errorf("record id %v does not match key %s", record["id"], id)
		}
		if record["isRead"] != false {
			t.Error("expected unread notification")
		}
		if _, ok := record["createdAt"].(int64); !ok {
			t.Errorf("expected createdAt millis, got %T", record["createdAt"])
		}
	}
}
