package service

import (
	"context"
	"fmt"

	"dwelligence/internal/geo"
	"dwelligence/internal/model"

	"github.com/phuslu/log"
)

// PropertyService serves listing lookups, creation and per-listing amenity
// views.
type PropertyService struct {
	listings     ListingStore
	amenities    *AmenityAggregator
	defaultLimit int
	maxLimit     int
}

// NewPropertyService creates a new property service
func NewPropertyService(listings ListingStore, amenities *AmenityAggregator, defaultLimit, maxLimit int) *PropertyService {
	return &PropertyService{
		listings:     listings,
		amenities:    amenities,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}
}

// GetListing retrieves a single listing by ID
func (s *PropertyService) GetListing(ctx context.Context, id int64) (*model.Listing, error) {
	l, err := s.listings.GetListingByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load listing: %w", err)
	}
	if l == nil {
		return nil, fmt.Errorf("%w: listing %d", ErrNotFound, id)
	}
	return l, nil
}

// ListListings returns a page of listings matching the structured filters.
func (s *PropertyService) ListListings(ctx context.Context, req *model.ListPropertiesRequest) ([]model.Listing, int, error) {
	var f model.ListingFilter
	req.SearchFilters.Apply(&f)

	f.Limit = req.Limit
	if f.Limit <= 0 {
		f.Limit = s.defaultLimit
	}
	if s.maxLimit > 0 && f.Limit > s.maxLimit {
		f.Limit = s.maxLimit
	}
	f.Offset = req.Offset

	listings, total, err := s.listings.SearchListings(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list listings: %w", err)
	}
	return listings, total, nil
}

// CreateListing stores a new listing with its cells derived from the
// coordinates.
func (s *PropertyService) CreateListing(ctx context.Context, req *model.CreateListingRequest) (*model.Listing, error) {
	if p := (geo.Point{Lat: req.Lat, Lng: req.Lng}); !p.Valid() {
		return nil, validationError("coordinate out of range: %s", p)
	}
	if !model.ValidPropertyType(req.PropertyType) {
		return nil, validationError("unknown property type %q", req.PropertyType)
	}
	if !model.ValidListingType(req.ListingType) {
		return nil, validationError("unknown listing type %q", req.ListingType)
	}

	l := req.ToListing()
	if err := s.listings.CreateListing(ctx, l); err != nil {
		return nil, fmt.Errorf("failed to create listing: %w", err)
	}
	log.Info().Int64("listing_id", l.ID).Str("cell", l.Cell(geo.Fine)).Msg("listing created")
	return l, nil
}

// ListingAmenities returns what shares the listing's cell at the mode's
// resolution, plus the cell outline for display.
func (s *PropertyService) ListingAmenities(ctx context.Context, id int64, mode model.TravelMode) (*model.ListingAmenitiesResponse, error) {
	l, err := s.GetListing(ctx, id)
	if err != nil {
		return nil, err
	}

	summary, err := s.amenities.AmenitiesNear(ctx, l, mode)
	if err != nil {
		return nil, err
	}

	res := mode.Resolution()
	boundary := geo.CellBoundary(l.Cell(res))
	if boundary == nil {
		boundary = []geo.Point{}
	}
	return &model.ListingAmenitiesResponse{
		Property:      l,
		CellBoundary:  boundary,
		Nearest:       summary.Nearest,
		Counts:        summary.Counts,
		TransportMode: mode,
		Resolution:    res,
	}, nil
}

// NearbyAmenities is ListingAmenities for an arbitrary point.
func (s *PropertyService) NearbyAmenities(ctx context.Context, p geo.Point, mode model.TravelMode) (*model.NearbyAmenitiesResponse, error) {
	summary, cell, err := s.amenities.AmenitiesAt(ctx, p, mode)
	if err != nil {
		return nil, err
	}
	return &model.NearbyAmenitiesResponse{
		Location:      p,
		Cell:          cell,
		CellBoundary:  geo.CellBoundary(cell),
		Nearest:       summary.Nearest,
		Counts:        summary.Counts,
		TransportMode: mode,
	}, nil
}

// IngestAmenities stores a batch of catalog entries.
func (s *PropertyService) IngestAmenities(ctx context.Context, items []model.AmenityItem) model.AmenityBatchResponse {
	resp := s.amenities.Ingest(ctx, items)
	log.Info().Int("inserted", resp.Inserted).Int("duplicates", resp.Duplicates).
		Int("failed", resp.Failed).Msg("amenity batch ingested")
	return resp
}
