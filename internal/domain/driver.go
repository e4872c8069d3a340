package domain

// Coord is a WGS84 point.
type Coord struct {
	Latitude  float64
	Longitude float64
}

// Driver capacity record. CurrentOrderID non-empty implies Available is
// false and the referenced order's driverId points back here; a dangling
// reference is recoverable corruption that the dispatch manager repairs.
type Driver struct {
	ID              string
	Name            string
	Phone           string
	Rating          float64
	TotalDeliveries int
	Available       bool
	CurrentOrderID  string
	Approved        bool
}

func DecodeDriver(id string, record map[string]any) Driver {
	if record == nil {
		return Driver{ID: id}
	}
	if id == "" {
		id = recordString(record, "id")
	}
	return Driver{
		ID:              id,
		Name:            recordString(record, "name"),
		Phone:           recordString(record, "phone"),
		Rating:          recordFloat(record, "rating"),
		TotalDeliveries: recordInt(record, "totalDeliveries"),
		Available:       recordBool(record, "isAvailable"),
		CurrentOrderID:  recordString(record, "currentOrderId"),
		Approved:        recordBool(record, "isApproved"),
	}
}

func (d Driver) Record() map[string]any {
	record := map[string]any{
		"id":              d.ID,
		"name":            d.Name,
		"phone":           d.Phone,
		"rating":          d.Rating,
		"totalDeliveries": d.TotalDeliveries,
		"isAvailable":     d.Available,
		"isApproved":      d.Approved,
	}
	if d.CurrentOrderID != "" {
		record["currentOrderId"] = d.CurrentOrderID
	}
	return record
}

// Restaurant as the marketplace sees it. Open is mutable by the restaurant
// actor at any time, independently of the order flow.
type Restaurant struct {
	ID                 string
	Name               string
	Address            string
	Open               bool
	OpensAt            string
	ClosesAt           string
	DiscountPercentage int
	Location           *Coord
}

func DecodeRestaurant(id string, record map[string]any) Restaurant {
	if record == nil {
		return Restaurant{ID: id}
	}
	if id == "" {
		id = recordString(record, "id")
	}
	restaurant := Restaurant{
		ID:                 id,
		Name:               recordString(record, "name"),
		Address:            recordString(record, "address"),
		Open:               recordBool(record, "isOpen"),
		OpensAt:            recordString(record, "opensAt"),
		ClosesAt:           recordString(record, "closesAt"),
		DiscountPercentage: recordInt(record, "discount"),
	}
	if loc := recordMap(record, "location"); loc != nil {
		restaurant.Location = &Coord{
			Latitude:  recordFloat(loc, "latitude"),
			Longitude: recordFloat(loc, "longitude"),
		}
	}
	return restaurant
}

func (r Restaurant) Record() map[string]any {
	record := map[string]any{
		"id":       r.ID,
		"name":     r.Name,
		"address":  r.Address,
		"isOpen":   r.Open,
		"opensAt":  r.OpensAt,
		"closesAt": r.ClosesAt,
		"discount": r.DiscountPercentage,
	}
	if r.Location != nil {
		record["location"] = map[string]any{
			"latitude":  r.Location.Latitude,
			"longitude": r.Location.Longitude,
		}
	}
	return record
}
