// Package checkout turns a priced cart into an order record. Payment is
// captured first; a declined charge means no order ever exists. Orders
// placed while the restaurant is closed land in the scheduled collection
// instead of the live one.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joao-fontenele/dishpatch/internal/domain"
	"github.com/joao-fontenele/dishpatch/internal/notify"
	"github.com/joao-fontenele/dishpatch/internal/pricing"
	"github.com/joao-fontenele/dishpatch/internal/store"
)

var (
	ErrEmptyCart          = errors.New("cart is empty")
	ErrMissingAddress     = errors.New("delivery address required")
	ErrPaymentDeclined    = errors.New("payment declined")
	ErrScheduleRequired   = errors.New("restaurant closed, pick a schedule time")
	ErrRestaurantNotFound = errors.New("restaurant not found")
)

// PaymentService captures funds before the order is written. External.
type PaymentService interface {
	Charge(ctx context.Context, amount float64) (paymentIntentID string, err error)
}

type Service struct {
	store    store.Store
	pricing  *pricing.Engine
	payments PaymentService
	notifier *notify.Dispatcher
	logger   *slog.Logger
	newID    func() string
}

func NewService(st store.Store, engine *pricing.Engine, payments PaymentService, notifier *notify.Dispatcher, logger *slog.Logger) *Service {
	return &Service{
		store:    st,
		pricing:  engine,
		payments: payments,
		notifier: notifier,
		logger:   logger,
		newID:    func() string { return uuid.New().String() },
	}
}

type PlaceOrderRequest struct {
	CustomerID   string
	RestaurantID string

	Items          []domain.LineItem
	TipPercentage  int
	DeliveryOption domain.DeliveryOption
	Address        *domain.Address

	// ScheduledFor must be set when the restaurant is closed.
	ScheduledFor time.Time
}

type PlaceOrderResult struct {
	Order     domain.Order
	Scheduled bool
	// Warning surfaces a degraded delivery fee; the order still went
	// through.
	Warning string
}

// PlaceOrder prices the cart, charges the customer, and writes the order
// with its financial snapshot frozen in. The receipt is immutable from
// here on; restaurant discount changes never reprice history.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (PlaceOrderResult, error) {
	if len(req.Items) == 0 {
		return PlaceOrderResult{}, ErrEmptyCart
	}
	if req.DeliveryOption == "" {
		req.DeliveryOption = domain.DeliveryOptionDelivery
	}
	if req.DeliveryOption == domain.DeliveryOptionDelivery && req.Address == nil {
		return PlaceOrderResult{}, ErrMissingAddress
	}

	snap, err := s.store.Get(ctx, store.RestaurantPath(req.RestaurantID))
	if err != nil {
		return PlaceOrderResult{}, fmt.Errorf("load restaurant %s: %w", req.RestaurantID, err)
	}
	if !snap.Exists {
		return PlaceOrderResult{}, fmt.Errorf("%w: %s", ErrRestaurantNotFound, req.RestaurantID)
	}
	restaurant := domain.DecodeRestaurant(req.RestaurantID, snap.Map())

	scheduled := !restaurant.Open
	if scheduled && req.ScheduledFor.IsZero() {
		return PlaceOrderResult{}, ErrScheduleRequired
	}

	quote, err := s.pricing.Quote(ctx, s.quoteRequest(req, restaurant))
	if err != nil {
		return PlaceOrderResult{}, fmt.Errorf("price cart: %w", err)
	}

	paymentIntentID, err := s.payments.Charge(ctx, quote.Total)
	if err != nil {
		return PlaceOrderResult{}, fmt.Errorf("%w: %v", ErrPaymentDeclined, err)
	}

	order := domain.Order{
		ID:                 s.newID(),
		CustomerID:         req.CustomerID,
		RestaurantID:       req.RestaurantID,
		Status:             domain.StatusPending,
		Subtotal:           quote.Subtotal,
		DiscountPercentage: quote.DiscountPercentage,
		DiscountAmount:     quote.DiscountAmount,
		TipPercentage:      quote.TipPercentage,
		TipAmount:          quote.TipAmount,
		DeliveryFee:        quote.DeliveryFee,
		Total:              quote.Total,
		DeliveryOption:     req.DeliveryOption,
		Address:            req.Address,
		Items:              req.Items,
		Scheduled:          scheduled,
		PaymentIntentID:    paymentIntentID,
	}

	record := order.Record()
	record["createdAt"] = store.ServerTimestamp
	record["updatedAt"] = store.ServerTimestamp

	path := store.OrderPath(order.ID)
	notificationType := notify.TypeOrderPlaced
	message := "Your order has been placed"
	if scheduled {
		order.ScheduledFor = req.ScheduledFor
		record["scheduledFor"] = req.ScheduledFor.UnixMilli()
		path = store.ScheduledOrderPath(order.ID)
		notificationType = notify.TypeOrderScheduled
		message = "Your order is scheduled for " + req.ScheduledFor.UTC().Format(time.RFC1123)
	}

	if err := s.store.Set(ctx, path, record); err != nil {
		// The charge went through but the order did not; surface for a
		// manual re-trigger, no automatic retry.
		return PlaceOrderResult{}, fmt.Errorf("write order %s: %w", order.ID, err)
	}

	s.logger.Info("order placed",
		"order_id", order.ID,
		"customer_id", order.CustomerID,
		"restaurant_id", order.RestaurantID,
		"total", order.Total,
		"scheduled", scheduled,
	)

	if err := s.notifier.Send(ctx, req.CustomerID, notify.Notification{
		Type:    notificationType,
		OrderID: order.ID,
		Message: message,
	}); err != nil {
		s.logger.Error("customer notification failed", "order_id", order.ID, "error", err)
	}

	return PlaceOrderResult{Order: order, Scheduled: scheduled, Warning: quote.Warning}, nil
}

func (s *Service) quoteRequest(req PlaceOrderRequest, restaurant domain.Restaurant) pricing.QuoteRequest {
	quoteReq := pricing.QuoteRequest{
		Items:              req.Items,
		DiscountPercentage: restaurant.DiscountPercentage,
		TipPercentage:      req.TipPercentage,
		DeliveryOption:     req.DeliveryOption,
		RestaurantLocation: restaurant.Location,
		RestaurantAddress:  restaurant.Address,
	}
	if req.Address != nil {
		if req.Address.Latitude != 0 || req.Address.Longitude != 0 {
			quoteReq.CustomerLocation = &domain.Coord{
				Latitude:  req.Address.Latitude,
				Longitude: req.Address.Longitude,
			}
		}
		quoteReq.CustomerAddress = req.Address.Street
	}
	return quoteReq
}
