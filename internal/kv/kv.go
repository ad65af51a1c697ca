package kv

import "errors"

var ErrNotFound = errors.New("key not found")

// Keys owned by the sync core. LocationStore is the only writer of the
// location keys, the cart ledger the only writer of the cart key.
const (
	KeyLatitude     = "latitude"
	KeyLongitude    = "longitude"
	KeyAddress      = "address"
	KeyCartItems    = "cartItems"
	KeySessionToken = "sessionToken"
)

// Store is the durable local key/value contract shared by the sync
// core. Implementations must make a completed Set visible to the next
// Get on the same store.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}
