// Package api exposes the marketplace over HTTP. Handlers translate
// request payloads into service calls and map sentinel errors onto
// status codes; all business rules live in the services themselves.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/joao-fontenele/dishpatch/internal/checkout"
	"github.com/joao-fontenele/dishpatch/internal/dashboard"
	"github.com/joao-fontenele/dishpatch/internal/dispatch"
	"github.com/joao-fontenele/dishpatch/internal/domain"
	"github.com/joao-fontenele/dishpatch/internal/lifecycle"
	"github.com/joao-fontenele/dishpatch/internal/pricing"
	"github.com/joao-fontenele/dishpatch/internal/store"
	"github.com/joao-fontenele/dishpatch/internal/telemetry"
)

type Handler struct {
	store      store.Store
	checkout   *checkout.Service
	machine    *lifecycle.Machine
	dispatcher *dispatch.Manager
	views      *dashboard.Views
	logger     *slog.Logger
}

func NewHandler(st store.Store, svc *checkout.Service, machine *lifecycle.Machine, dispatcher *dispatch.Manager, views *dashboard.Views, logger *slog.Logger) *Handler {
	return &Handler{
		store:      st,
		checkout:   svc,
		machine:    machine,
		dispatcher: dispatcher,
		views:      views,
		logger:     logger,
	}
}

// Register wires every route onto the mux using Go 1.22 method patterns.
// Handlers are wrapped so the matched pattern lands on the server span.
func (h *Handler) Register(mux *http.ServeMux) {
	handle := func(pattern string, fn http.HandlerFunc) {
		mux.HandleFunc(pattern, telemetry.WithHTTPRoute(fn))
	}

	handle("POST /orders", h.HandlePlaceOrder)
	handle("GET /orders/{id}", h.HandleGetOrder)
	handle("POST /orders/{id}/accept", h.HandleAccept)
	handle("POST /orders/{id}/reject", h.HandleReject)
	handle("POST /orders/{id}/ready", h.HandleMarkReady)
	handle("POST /orders/{id}/pickup", h.HandlePickup)
	handle("POST /orders/{id}/deliver", h.HandleDeliver)
	handle("POST /orders/{id}/assign", h.HandleAssignDriver)

	handle("GET /drivers", h.HandleListDrivers)
	handle("POST /drivers/{id}/release", h.HandleReleaseDriver)
	handle("GET /drivers/{id}/tasks", h.HandleDriverTasks)

	handle("GET /restaurants/{id}/queue", h.HandleRestaurantQueue)
	handle("GET /customers/{id}/orders", h.HandleCustomerOrders)
}

type placeOrderRequest struct {
	CustomerID     string            `json:"customer_id"`
	RestaurantID   string            `json:"restaurant_id"`
	Items          []lineItemPayload `json:"items"`
	TipPercentage  int               `json:"tip_percentage"`
	DeliveryOption string            `json:"delivery_option"`
	Address        *addressPayload   `json:"address"`
	ScheduledFor   *time.Time        `json:"scheduled_for"`
}

type placeOrderResponse struct {
	Order     orderResponse `json:"order"`
	Scheduled bool          `json:"is_scheduled"`
	Warning   string        `json:"warning,omitempty"`
}

func (h *Handler) HandlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CustomerID == "" || req.RestaurantID == "" {
		h.writeError(w, http.StatusBadRequest, "customer_id and restaurant_id are required")
		return
	}

	svcReq := checkout.PlaceOrderRequest{
		CustomerID:     req.CustomerID,
		RestaurantID:   req.RestaurantID,
		TipPercentage:  req.TipPercentage,
		DeliveryOption: domain.DeliveryOption(req.DeliveryOption),
	}
	for _, item := range req.Items {
		svcReq.Items = append(svcReq.Items, domain.LineItem{
			ID:             item.ID,
			Name:           item.Name,
			Price:          item.Price,
			Quantity:       item.Quantity,
			Customizations: item.Customizations,
		})
	}
	if req.Address != nil {
		svcReq.Address = &domain.Address{
			Street:       req.Address.Street,
			Unit:         req.Address.Unit,
			Instructions: req.Address.Instructions,
			Latitude:     req.Address.Latitude,
			Longitude:    req.Address.Longitude,
		}
	}
	if req.ScheduledFor != nil {
		svcReq.ScheduledFor = *req.ScheduledFor
	}

	result, err := h.checkout.PlaceOrder(r.Context(), svcReq)
	if err != nil {
		h.writeServiceError(w, r, err, "failed to place order")
		return
	}

	h.logger.Info("order placed",
		"order_id", result.Order.ID,
		"customer_id", result.Order.CustomerID,
		"scheduled", result.Scheduled,
	)
	h.writeJSON(w, http.StatusCreated, placeOrderResponse{
		Order:     toOrderResponse(result.Order),
		Scheduled: result.Scheduled,
		Warning:   result.Warning,
	})
}

func (h *Handler) HandleGetOrder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	snap, err := h.store.Get(r.Context(), store.OrderPath(id))
	if err != nil {
		h.logger.Error("failed to get order", "error", err, "order_id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !snap.Exists {
		// Fall back to the scheduled collection so a customer can
		// inspect an order that has not been promoted yet.
		snap, err = h.store.Get(r.Context(), store.ScheduledOrderPath(id))
		if err != nil {
			h.logger.Error("failed to get scheduled order", "error", err, "order_id", id)
			h.writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
	}
	if !snap.Exists {
		h.writeError(w, http.StatusNotFound, "order not found")
		return
	}

	h.writeJSON(w, http.StatusOK, toOrderResponse(domain.DecodeOrder(id, snap.Map())))
}

func (h *Handler) HandleAccept(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.machine.Accept)
}

func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.machine.Reject)
}

func (h *Handler) HandleMarkReady(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.machine.MarkReady)
}

func (h *Handler) HandlePickup(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.dispatcher.MarkPickedUp)
}

func (h *Handler) HandleDeliver(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.dispatcher.MarkDelivered)
}

type assignDriverRequest struct {
	DriverID string `json:"driver_id"`
	Force    bool   `json:"force"`
}

func (h *Handler) HandleAssignDriver(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("id")

	var req assignDriverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.DriverID == "" {
		h.writeError(w, http.StatusBadRequest, "driver_id is required")
		return
	}

	if err := h.dispatcher.Assign(r.Context(), orderID, req.DriverID, req.Force); err != nil {
		h.writeServiceError(w, r, err, "failed to assign driver")
		return
	}

	h.logger.Info("driver assigned", "order_id", orderID, "driver_id", req.DriverID, "force", req.Force)
	h.writeJSON(w, http.StatusOK, map[string]string{"order_id": orderID, "driver_id": req.DriverID})
}

type driverListResponse struct {
	Available []driverResponse `json:"available"`
	Busy      []driverResponse `json:"busy"`
}

func (h *Handler) HandleListDrivers(w http.ResponseWriter, r *http.Request) {
	list, err := h.dispatcher.ListDrivers(r.Context())
	if err != nil {
		h.logger.Error("failed to list drivers", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, driverListResponse{
		Available: toDriverResponses(list.Available),
		Busy:      toDriverResponses(list.Busy),
	})
}

func (h *Handler) HandleReleaseDriver(w http.ResponseWriter, r *http.Request) {
	driverID := r.PathValue("id")

	if err := h.dispatcher.Release(r.Context(), driverID); err != nil {
		h.writeServiceError(w, r, err, "failed to release driver")
		return
	}

	h.logger.Info("driver released", "driver_id", driverID)
	h.writeJSON(w, http.StatusOK, map[string]string{"driver_id": driverID})
}

type restaurantQueueResponse struct {
	Incoming   []orderResponse `json:"incoming"`
	InProgress []orderResponse `json:"in_progress"`
	Completed  []orderResponse `json:"completed"`
}

func (h *Handler) HandleRestaurantQueue(w http.ResponseWriter, r *http.Request) {
	queue, err := h.views.RestaurantQueue(r.Context(), r.PathValue("id"))
	if err != nil {
		h.logger.Error("failed to load restaurant queue", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, restaurantQueueResponse{
		Incoming:   toOrderResponses(queue.Incoming),
		InProgress: toOrderResponses(queue.InProgress),
		Completed:  toOrderResponses(queue.Completed),
	})
}

type customerOrdersResponse struct {
	Active []orderResponse `json:"active"`
	Past   []orderResponse `json:"past"`
}

func (h *Handler) HandleCustomerOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.views.CustomerOrders(r.Context(), r.PathValue("id"))
	if err != nil {
		h.logger.Error("failed to load customer orders", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, customerOrdersResponse{
		Active: toOrderResponses(orders.Active),
		Past:   toOrderResponses(orders.Past),
	})
}

type driverTasksResponse struct {
	Current *orderResponse  `json:"current"`
	History []orderResponse `json:"history"`
}

func (h *Handler) HandleDriverTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.views.DriverTasks(r.Context(), r.PathValue("id"))
	if err != nil {
		h.logger.Error("failed to load driver tasks", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := driverTasksResponse{History: toOrderResponses(tasks.History)}
	if tasks.Current != nil {
		current := toOrderResponse(*tasks.Current)
		resp.Current = &current
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn func(context.Context, string) (domain.Order, error)) {
	orderID := r.PathValue("id")

	order, err := fn(r.Context(), orderID)
	if err != nil {
		h.writeServiceError(w, r, err, "failed to transition order")
		return
	}

	h.logger.Info("order transitioned", "order_id", order.ID, "status", order.Status)
	h.writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// writeServiceError maps sentinel errors from the services onto HTTP
// status codes. Anything unrecognized is a 500 and gets logged.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error, logMsg string) {
	switch {
	case errors.Is(err, lifecycle.ErrOrderNotFound),
		errors.Is(err, dispatch.ErrDriverNotFound),
		errors.Is(err, checkout.ErrRestaurantNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, lifecycle.ErrInvalidTransition),
		errors.Is(err, dispatch.ErrDriverBusy),
		errors.Is(err, dispatch.ErrOrderAssigned):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, checkout.ErrEmptyCart),
		errors.Is(err, checkout.ErrMissingAddress),
		errors.Is(err, checkout.ErrScheduleRequired),
		errors.Is(err, pricing.ErrInvalidTip),
		errors.Is(err, pricing.ErrMissingAddress):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, checkout.ErrPaymentDeclined):
		h.writeError(w, http.StatusPaymentRequired, err.Error())
	default:
		h.logger.Error(logMsg, "error", err, "path", r.URL.Path)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
