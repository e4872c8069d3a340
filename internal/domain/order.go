package domain

import (
	"sort"
	"time"
)

// DeliveryOption selects how the customer receives the order.
type DeliveryOption string

const (
	DeliveryOptionDelivery DeliveryOption = "delivery"
	DeliveryOptionPickup   DeliveryOption = "pickup"
)

// Address is the delivery destination; absent for pickup orders.
type Address struct {
	Street       string
	Unit         string
	Instructions string
	Latitude     float64
	Longitude    float64
}

// LineItem is one cart line with the customer's option selections frozen
// at order time.
type LineItem struct {
	ID             string
	Name           string
	Price          float64
	Quantity       int
	Customizations map[string][]string
}

// LineTotal is always price times quantity; it is recomputed on decode and
// never trusted from the stored record.
func (li LineItem) LineTotal() float64 {
	return li.Price * float64(li.Quantity)
}

// Order is the central entity. The financial fields are a receipt frozen at
// creation; later menu or discount changes never alter them.
type Order struct {
	ID           string
	CustomerID   string
	RestaurantID string
	DriverID     string

	Status Status

	Subtotal           float64
	DiscountPercentage int
	DiscountAmount     float64
	TipPercentage      int
	TipAmount          float64
	DeliveryFee        float64
	Total              float64

	DeliveryOption DeliveryOption
	Address        *Address

	Items []LineItem

	Scheduled    bool
	ScheduledFor time.Time

	PaymentIntentID string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DecodeOrder builds an Order from a loosely-typed store record, tolerating
// missing and legacy fields. The record's own id field wins over the path
// key only when the key is empty.
func DecodeOrder(id string, record map[string]any) Order {
	if record == nil {
		return Order{ID: id}
	}
	if id == "" {
		id = recordString(record, "id")
	}

	order := Order{
		ID:                 id,
		CustomerID:         recordString(record, "customerId"),
		RestaurantID:       recordString(record, "restaurantId"),
		DriverID:           recordString(record, "driverId"),
		Status:             ResolveStatus(recordString(record, "status"), recordString(record, "orderStatus")),
		Subtotal:           recordFloat(record, "subtotal"),
		DiscountPercentage: recordInt(record, "discountPercentage"),
		DiscountAmount:     recordFloat(record, "discountAmount"),
		TipPercentage:      recordInt(record, "tipPercentage"),
		TipAmount:          recordFloat(record, "tipAmount"),
		DeliveryFee:        recordFloat(record, "deliveryFee"),
		Total:              recordFloat(record, "total"),
		DeliveryOption:     DeliveryOption(recordString(record, "deliveryOption")),
		Items:              decodeItems(record["items"]),
		Scheduled:          recordBool(record, "isScheduled"),
		ScheduledFor:       recordTime(record, "scheduledFor"),
		PaymentIntentID:    recordString(record, "paymentIntentId"),
		CreatedAt:          recordTime(record, "createdAt"),
		UpdatedAt:          recordTime(record, "updatedAt"),
	}

	if addr := recordMap(record, "address"); addr != nil {
		order.Address = &Address{
			Street:       recordString(addr, "street"),
			Unit:         recordString(addr, "unit"),
			Instructions: recordString(addr, "instructions"),
			Latitude:     recordFloat(addr, "latitude"),
			Longitude:    recordFloat(addr, "longitude"),
		}
	}
	if order.DeliveryOption == "" {
		order.DeliveryOption = DeliveryOptionDelivery
	}

	return order
}

// decodeItems accepts both list encodings seen in the store: a plain array,
// or a map keyed by index as some clients persist lists.
func decodeItems(value any) []LineItem {
	var raw []map[string]any
	switch v := value.(type) {
	case []any:
		for _, entry := range v {
			if m, ok := entry.(map[string]any); ok {
				raw = append(raw, m)
			}
		}
	case map[string]any:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if m, ok := v[key].(map[string]any); ok {
				raw = append(raw, m)
			}
		}
	}

	items := make([]LineItem, 0, len(raw))
	for _, m := range raw {
		item := LineItem{
			ID:       recordString(m, "id"),
			Name:     recordString(m, "name"),
			Price:    recordFloat(m, "price"),
			Quantity: recordInt(m, "quantity"),
		}
		if item.Quantity == 0 {
			item.Quantity = 1
		}
		if custom := recordMap(m, "customizations"); custom != nil {
			item.Customizations = decodeCustomizations(custom)
		}
		items = append(items, item)
	}
	return items
}

func decodeCustomizations(raw map[string]any) map[string][]string {
	out := make(map[string][]string, len(raw))
	for optionID, value := range raw {
		switch v := value.(type) {
		case []any:
			for _, sel := range v {
				if s, ok := sel.(string); ok {
					out[optionID] = append(out[optionID], s)
				}
			}
		case []string:
			out[optionID] = append(out[optionID], v...)
		case string:
			out[optionID] = []string{v}
		}
	}
	return out
}

// Record encodes the order for the store, emitting both legacy status
// fields so readers that predate the canonical enum keep working.
func (o Order) Record() map[string]any {
	items := make([]any, 0, len(o.Items))
	for _, item := range o.Items {
		entry := map[string]any{
			"id":        item.ID,
			"name":      item.Name,
			"price":     item.Price,
			"quantity":  item.Quantity,
			"lineTotal": item.LineTotal(),
		}
		if len(item.Customizations) > 0 {
			custom := make(map[string]any, len(item.Customizations))
			for optionID, selections := range item.Customizations {
				values := make([]any, len(selections))
				for i, sel := range selections {
					values[i] = sel
				}
				custom[optionID] = values
			}
			entry["customizations"] = custom
		}
		items = append(items, entry)
	}

	record := map[string]any{
		"id":                 o.ID,
		"customerId":         o.CustomerID,
		"restaurantId":       o.RestaurantID,
		"status":             o.Status.Coarse(),
		"orderStatus":        o.Status.Fine(),
		"subtotal":           o.Subtotal,
		"discountPercentage": o.DiscountPercentage,
		"discountAmount":     o.DiscountAmount,
		"tipPercentage":      o.TipPercentage,
		"tipAmount":          o.TipAmount,
		"deliveryFee":        o.DeliveryFee,
		"total":              o.Total,
		"deliveryOption":     string(o.DeliveryOption),
		"items":              items,
		"isScheduled":        o.Scheduled,
	}

	if o.DriverID != "" {
		record["driverId"] = o.DriverID
	}
	if o.Address != nil {
		record["address"] = map[string]any{
			"street":       o.Address.Street,
			"unit":         o.Address.Unit,
			"instructions": o.Address.Instructions,
			"latitude":     o.Address.Latitude,
			"longitude":    o.Address.Longitude,
		}
	}
	if !o.ScheduledFor.IsZero() {
		record["scheduledFor"] = encodeTime(o.ScheduledFor)
	}
	if o.PaymentIntentID != "" {
		record["paymentIntentId"] = o.PaymentIntentID
	}
	if ts := encodeTime(o.CreatedAt); ts != nil {
		record["createdAt"] = ts
	}
	if ts := encodeTime(o.UpdatedAt); ts != nil {
		record["updatedAt"] = ts
	}

	return record
}
