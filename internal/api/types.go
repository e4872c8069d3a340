package api

import (
	"time"

	"github.com/joao-fontenele/dishpatch/internal/domain"
)

type addressPayload struct {
	Street       string  `json:"street"`
	Unit         string  `json:"unit,omitempty"`
	Instructions string  `json:"instructions,omitempty"`
	Latitude     float64 `json:"latitude,omitempty"`
	Longitude    float64 `json:"longitude,omitempty"`
}

type lineItemPayload struct {
	ID             string              `json:"id"`
	Name           string              `json:"name"`
	Price          float64             `json:"price"`
	Quantity       int                 `json:"quantity"`
	Customizations map[string][]string `json:"customizations,omitempty"`
	LineTotal      float64             `json:"line_total,omitempty"`
}

type orderResponse struct {
	ID           string `json:"id"`
	CustomerID   string `json:"customer_id"`
	RestaurantID string `json:"restaurant_id"`
	DriverID     string `json:"driver_id,omitempty"`

	Status string `json:"status"`

	Subtotal           float64 `json:"subtotal"`
	DiscountPercentage int     `json:"discount_percentage"`
	DiscountAmount     float64 `json:"discount_amount"`
	TipPercentage      int     `json:"tip_percentage"`
	TipAmount          float64 `json:"tip_amount"`
	DeliveryFee        float64 `json:"delivery_fee"`
	Total              float64 `json:"total"`

	DeliveryOption string          `json:"delivery_option"`
	Address        *addressPayload `json:"address,omitempty"`

	Items []lineItemPayload `json:"items"`

	Scheduled    bool       `json:"is_scheduled"`
	ScheduledFor *time.Time `json:"scheduled_for,omitempty"`

	CreatedAt *time.Time `json:"created_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

func toOrderResponse(order domain.Order) orderResponse {
	resp := orderResponse{
		ID:                 order.ID,
		CustomerID:         order.CustomerID,
		RestaurantID:       order.RestaurantID,
		DriverID:           order.DriverID,
		Status:             string(order.Status),
		Subtotal:           order.Subtotal,
		DiscountPercentage: order.DiscountPercentage,
		DiscountAmount:     order.DiscountAmount,
		TipPercentage:      order.TipPercentage,
		TipAmount:          order.TipAmount,
		DeliveryFee:        order.DeliveryFee,
		Total:              order.Total,
		DeliveryOption:     string(order.DeliveryOption),
		Scheduled:          order.Scheduled,
		Items:              make([]lineItemPayload, 0, len(order.Items)),
	}

	if order.Address != nil {
		resp.Address = &addressPayload{
			Street:       order.Address.Street,
			Unit:         order.Address.Unit,
			Instructions: order.Address.Instructions,
			Latitude:     order.Address.Latitude,
			Longitude:    order.Address.Longitude,
		}
	}
	for _, item := range order.Items {
		resp.Items = append(resp.Items, lineItemPayload{
			ID:             item.ID,
			Name:           item.Name,
			Price:          item.Price,
			Quantity:       item.Quantity,
			Customizations: item.Customizations,
			LineTotal:      item.LineTotal(),
		})
	}
	if !order.ScheduledFor.IsZero() {
		t := order.ScheduledFor
		resp.ScheduledFor = &t
	}
	if !order.CreatedAt.IsZero() {
		t := order.CreatedAt
		resp.CreatedAt = &t
	}
	if !order.UpdatedAt.IsZero() {
		t := order.UpdatedAt
		resp.UpdatedAt = &t
	}

	return resp
}

type driverResponse struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Phone           string  `json:"phone,omitempty"`
	Rating          float64 `json:"rating"`
	TotalDeliveries int     `json:"total_deliveries"`
	Available       bool    `json:"is_available"`
	CurrentOrderID  string  `json:"current_order_id,omitempty"`
}

func toDriverResponses(drivers []domain.Driver) []driverResponse {
	out := make([]driverResponse, 0, len(drivers))
	for _, d := range drivers {
		out = append(out, driverResponse{
			ID:              d.ID,
			Name:            d.Name,
			Phone:           d.Phone,
			Rating:          d.Rating,
			TotalDeliveries: d.TotalDeliveries,
			Available:       d.Available,
			CurrentOrderID:  d.CurrentOrderID,
		})
	}
	return out
}

func toOrderResponses(orders []domain.Order) []orderResponse {
	out := make([]orderResponse, 0, len(orders))
	for _, order := range orders {
		out = append(out, toOrderResponse(order))
	}
	return out
}
