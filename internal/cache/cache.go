// Package cache stores commute lookups for a fixed TTL.
package cache

import (
	"context"
	"fmt"
	"time"

	"dwelligence/internal/geo"
	"dwelligence/internal/model"
)

// DestinationDecimals is the rounding applied to destinations in cache keys,
// about 1.1 m at the equator.
const DestinationDecimals = 5

// Key identifies one commute lookup
type Key struct {
	ListingID   int64
	Destination geo.Point
	Mode        model.TravelMode
}

// NewKey builds a key with the destination rounded to a stable precision.
func NewKey(listingID int64, destination geo.Point, mode model.TravelMode) Key {
	return Key{
		ListingID:   listingID,
		Destination: destination.Round(DestinationDecimals),
		Mode:        mode,
	}
}

// String renders the key as commute:<id>:<lat>,<lng>:<mode>.
func (k Key) String() string {
	return fmt.Sprintf("commute:%d:%.5f,%.5f:%s", k.ListingID, k.Destination.Lat, k.Destination.Lng, k.Mode)
}

// Clock returns the current time. Tests inject a fake.
type Clock func() time.Time

// CommuteCache is a TTL cache of commute records. Expired records are
// reported as absent.
type CommuteCache interface {
	GetMany(ctx context.Context, keys []Key) (map[Key]model.CommuteRecord, error)
	Set(ctx context.Context, key Key, record model.CommuteRecord) error
}
