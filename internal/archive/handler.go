package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/joao-fontenele/dishpatch/internal/domain"
	"github.com/joao-fontenele/dishpatch/internal/store"
)

// Handler consumes the status event stream and archives orders as they
// reach a terminal state.
type Handler struct {
	repo   *Repository
	store  store.Store
	logger *slog.Logger
}

func NewHandler(repo *Repository, st store.Store, logger *slog.Logger) *Handler {
	return &Handler{repo: repo, store: st, logger: logger}
}

func (h *Handler) Handle(ctx context.Context, payload []byte) error {
	var event domain.StatusChangedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal status event: %w", err)
	}

	if !event.NewStatus.Terminal() {
		return nil
	}

	record := event.Record
	if record == nil {
		// Older producers did not attach the record; fall back to the
		// store when the handler shares a process with it.
		snap, err := h.store.Get(ctx, store.OrderPath(event.OrderID))
		if err != nil {
			return fmt.Errorf("load order %s: %w", event.OrderID, err)
		}
		if !snap.Exists {
			// Nothing to archive and a retry will not help.
			h.logger.Warn("terminal order missing from store", "order_id", event.OrderID)
			return nil
		}
		record = snap.Map()
	}

	order := domain.DecodeOrder(event.OrderID, record)
	if err := h.repo.Insert(ctx, order); err != nil {
		return fmt.Errorf("archive order %s: %w", event.OrderID, err)
	}

	h.logger.Info("order archived", "order_id", event.OrderID, "status", event.NewStatus)
	return nil
}
