package service

import (
	"context"

	"dwelligence/internal/geo"
	"dwelligence/internal/maps"
	"dwelligence/internal/model"
	"dwelligence/internal/repository"
)

// ListingStore is the read/write side of listing persistence used here.
type ListingStore interface {
	SearchListings(ctx context.Context, f model.ListingFilter) ([]model.Listing, int, error)
	FindListings(ctx context.Context, f model.ListingFilter) ([]model.Listing, error)
	GetListingByID(ctx context.Context, id int64) (*model.Listing, error)
	CreateListing(ctx context.Context, l *model.Listing) error
}

// AmenityStore is the amenity catalog.
type AmenityStore interface {
	AmenitiesInCell(ctx context.Context, res geo.Resolution, cell string) ([]model.AmenityPoint, error)
	AmenityCountsByCell(ctx context.Context, res geo.Resolution, cells []string) (map[string]model.AmenityCounts, error)
	UpsertAmenities(ctx context.Context, items []model.AmenityPoint) (inserted, duplicates int, errs []string)
}

// SearchLogStore records searches and the feedback on them.
type SearchLogStore interface {
	LogSearch(ctx context.Context, entry repository.SearchLog) error
	LogFeedback(ctx context.Context, searchID string, listingID int64, action string) (bool, error)
}

// DistanceMatrix resolves many origins against one destination in one call.
type DistanceMatrix interface {
	DistanceMatrix(ctx context.Context, origins []geo.Point, destination geo.Point, mode model.TravelMode) ([]maps.Element, error)
}

// RoutePlanner returns route alternatives between two points.
type RoutePlanner interface {
	Routes(ctx context.Context, origin, destination geo.Point, mode model.TravelMode) ([]model.Route, error)
}

// PlacesFinder looks up places around a point.
type PlacesFinder interface {
	NearbyPlaces(ctx context.Context, center geo.Point, keyword string, radiusMeters uint, limit int) ([]model.Place, error)
}

var (
	_ ListingStore   = (*repository.PostgresRepository)(nil)
	_ AmenityStore   = (*repository.PostgresRepository)(nil)
	_ SearchLogStore = (*repository.PostgresRepository)(nil)
	_ DistanceMatrix = (*maps.Client)(nil)
	_ RoutePlanner   = (*maps.Client)(nil)
	_ PlacesFinder   = (*maps.Client)(nil)
)
