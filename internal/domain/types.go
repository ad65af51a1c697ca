package domain

import "time"

type ItemType string

const (
	ItemTypeProduct ItemType = "product"
	ItemTypeService ItemType = "service"
)

// Location is the user's delivery point. Latitude and longitude are
// either both set or both nil; Address may lag behind the coordinates
// while reverse geocoding is still in flight.
type Location struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Address   string   `json:"address,omitempty"`
}

func (l Location) HasCoordinates() bool {
	return l.Latitude != nil && l.Longitude != nil
}

// CartLine is one ledger entry, keyed by item id. A count of zero is
// never stored; the line is removed instead.
type CartLine struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
}

// CartSummary is derived state. Guests get quantities summed from the
// ledger with a zero amount; authenticated users get the backend's
// authoritative figures.
type CartSummary struct {
	TotalQuantity int     `json:"totalQuantity"`
	TotalAmount   float64 `json:"totalAmount"`
}

// CatalogItem is the slice of a catalog entry this core cares about:
// identity plus the ledger count merged in for returning guests.
type CatalogItem struct {
	ID    string  `json:"id"`
	Name  string  `json:"name,omitempty"`
	Price float64 `json:"price,omitempty"`
	Count int     `json:"count,omitempty"`
}

type Topic string

const (
	TopicCartChanged     Topic = "cart.changed"
	TopicLocationChanged Topic = "location.changed"
)

// Event is a broadcast notification. It deliberately carries no state
// beyond the topic: subscribers re-read the source of truth.
type Event struct {
	ID    string    `json:"event_id"`
	Topic Topic     `json:"topic"`
	At    time.Time `json:"at"`
}
