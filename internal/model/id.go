package model

import "github.com/oklog/ulid/v2"

// NewID generates a new ULID string for use as a record identifier. IDs sort
// in creation order.
func NewID() string {
	return ulid.Make().String()
}
