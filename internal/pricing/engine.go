// Package pricing computes the financial snapshot frozen into an order at
// creation: delivery fee from haversine distance, discount, tip, and total.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/joao-fontenele/dishpatch/internal/domain"
)

const (
	// PerKmRate is the delivery fee per kilometre of restaurant-to-customer
	// distance, in currency units.
	PerKmRate = 1.50

	earthRadiusKm = 6371.0
)

// TipOptions are the only tip percentages the client offers.
var TipOptions = []int{0, 10, 15, 20, 25}

var (
	ErrGeocodeFailure = errors.New("geocode failed")
	ErrMissingAddress = errors.New("delivery address missing")
	ErrInvalidTip     = errors.New("tip percentage not offered")
)

// Geocoder resolves a typed address string to coordinates. External service.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (domain.Coord, error)
}

type Engine struct {
	geocoder Geocoder
	logger   *slog.Logger
}

func NewEngine(geocoder Geocoder, logger *slog.Logger) *Engine {
	return &Engine{geocoder: geocoder, logger: logger}
}

type QuoteRequest struct {
	Items              []domain.LineItem
	DiscountPercentage int
	TipPercentage      int
	DeliveryOption     domain.DeliveryOption

	RestaurantLocation *domain.Coord
	RestaurantAddress  string
	CustomerLocation   *domain.Coord
	CustomerAddress    string
}

// Quote is the computed receipt. Warning carries a user-facing note when
// the delivery fee degraded to zero because no coordinates could be
// resolved; checkout proceeds regardless.
type Quote struct {
	Subtotal           float64
	DiscountPercentage int
	DiscountAmount     float64
	TipPercentage      int
	TipAmount          float64
	DeliveryFee        float64
	Total              float64
	Warning            string
}

// Quote prices a cart. Discount applies to the subtotal before the tip is
// computed; the delivery fee is added only for delivery orders. All values
// round to two decimal places.
func (e *Engine) Quote(ctx context.Context, req QuoteRequest) (Quote, error) {
	if !validTip(req.TipPercentage) {
		return Quote{}, fmt.Errorf("%w: %d", ErrInvalidTip, req.TipPercentage)
	}

	var subtotal float64
	for _, item := range req.Items {
		subtotal += item.LineTotal()
	}
	subtotal = Round2(subtotal)

	quote := Quote{
		Subtotal:      subtotal,
		TipPercentage: req.TipPercentage,
	}
	if req.DiscountPercentage > 0 {
		quote.DiscountPercentage = req.DiscountPercentage
		quote.DiscountAmount = Round2(subtotal * float64(req.DiscountPercentage) / 100)
	}

	discounted := Round2(subtotal - quote.DiscountAmount)
	quote.TipAmount = Round2(discounted * float64(req.TipPercentage) / 100)

	if req.DeliveryOption == domain.DeliveryOptionDelivery {
		fee, warning, err := e.deliveryFee(ctx, req)
		if err != nil {
			return Quote{}, err
		}
		quote.DeliveryFee = fee
		quote.Warning = warning
	}

	quote.Total = Round2(discounted + quote.TipAmount + quote.DeliveryFee)
	return quote, nil
}

// deliveryFee resolves both endpoints, falling back to geocoding stored or
// typed address strings. Resolution failure degrades to a zero fee with a
// warning instead of blocking checkout; only an entirely missing delivery
// address is an error.
func (e *Engine) deliveryFee(ctx context.Context, req QuoteRequest) (float64, string, error) {
	if req.CustomerLocation == nil && req.CustomerAddress == "" {
		return 0, "", ErrMissingAddress
	}

	restaurant, err := e.resolve(ctx, req.RestaurantLocation, req.RestaurantAddress)
	if err != nil {
		e.logger.Warn("restaurant location unresolved, delivery fee degraded to zero", "error", err)
		return 0, "delivery fee unavailable for this order", nil
	}

	customer, err := e.resolve(ctx, req.CustomerLocation, req.CustomerAddress)
	if err != nil {
		e.logger.Warn("customer location unresolved, delivery fee degraded to zero", "error", err)
		return 0, "delivery fee unavailable for this order", nil
	}

	distance := Haversine(restaurant, customer)
	return Round2(distance * PerKmRate), "", nil
}

func (e *Engine) resolve(ctx context.Context, coord *domain.Coord, address string) (domain.Coord, error) {
	if coord != nil {
		return *coord, nil
	}
	if address == "" {
		return domain.Coord{}, ErrGeocodeFailure
	}
	if e.geocoder == nil {
		return domain.Coord{}, fmt.Errorf("%w: no geocoder configured", ErrGeocodeFailure)
	}
	resolved, err := e.geocoder.Geocode(ctx, address)
	if err != nil {
		return domain.Coord{}, fmt.Errorf("%w: %v", ErrGeocodeFailure, err)
	}
	return resolved, nil
}

// Haversine returns the great-circle distance between two points in
// kilometres.
func Haversine(a, b domain.Coord) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

// Round2 rounds to two decimal places, the receipt precision.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func validTip(pct int) bool {
	for _, option := range TipOptions {
		if option == pct {
			return true
		}
	}
	return false
}
