package model

import (
	"time"

	"dwelligence/internal/geo"
)

// Category is an amenity category
type Category string

const (
	CategoryPark            Category = "park"
	CategoryGrocery         Category = "grocery"
	CategoryCafe            Category = "cafe"
	CategoryRestaurant      Category = "restaurant"
	CategoryTransitStation  Category = "transit_station"
	CategoryGym             Category = "gym"
	CategoryPharmacy        Category = "pharmacy"
	CategoryCommunityCenter Category = "community_center"
)

// Categories lists every amenity category in display order.
var Categories = []Category{
	CategoryPark,
	CategoryGrocery,
	CategoryCafe,
	CategoryRestaurant,
	CategoryTransitStation,
	CategoryGym,
	CategoryPharmacy,
	CategoryCommunityCenter,
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// AmenityPoint is a point of interest with precomputed cells
type AmenityPoint struct {
	ID         int64     `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	Category   Category  `json:"type" db:"type"`
	Address    *string   `json:"address,omitempty" db:"address"`
	Lat        float64   `json:"lat" db:"lat"`
	Lng        float64   `json:"lng" db:"lng"`
	CellFine   string    `json:"-" db:"cell_fine"`
	CellMedium string    `json:"-" db:"cell_medium"`
	CellCoarse string    `json:"-" db:"cell_coarse"`
	SourceID   string    `json:"sourceId" db:"source_id"`
	CreatedAt  time.Time `json:"-" db:"created_at"`
}

// Point returns the amenity's coordinate.
func (a *AmenityPoint) Point() geo.Point {
	return geo.Point{Lat: a.Lat, Lng: a.Lng}
}

// AssignCells derives all three cell columns from the coordinates.
func (a *AmenityPoint) AssignCells() {
	cells := geo.Cells(a.Point())
	a.CellFine, a.CellMedium, a.CellCoarse = cells[geo.Fine], cells[geo.Medium], cells[geo.Coarse]
}

// NearestAmenity is the closest amenity of one category
type NearestAmenity struct {
	AmenityPoint
	DistanceMeters float64 `json:"distance"`
}

// AmenityCounts maps every category to its count in a cell
type AmenityCounts map[Category]int

// NewAmenityCounts returns counts with every category present at zero.
func NewAmenityCounts() AmenityCounts {
	counts := make(AmenityCounts, len(Categories))
	for _, c := range Categories {
		counts[c] = 0
	}
	return counts
}

// HasAny reports whether at least one of the given categories is present.
func (ac AmenityCounts) HasAny(categories []Category) bool {
	for _, c := range categories {
		if ac[c] > 0 {
			return true
		}
	}
	return false
}

// AmenitySummary is the aggregation result for one listing
type AmenitySummary struct {
	Counts  AmenityCounts    `json:"amenityCounts"`
	Nearest []NearestAmenity `json:"nearestAmenities"`
}

// ListingAmenitiesResponse is returned by GET /properties/:id/amenities
type ListingAmenitiesResponse struct {
	Property      *Listing         `json:"property"`
	CellBoundary  []geo.Point      `json:"cellBoundary"`
	Nearest       []NearestAmenity `json:"nearestAmenities"`
	Counts        AmenityCounts    `json:"amenityCounts"`
	TransportMode TravelMode       `json:"transportMode"`
	Resolution    geo.Resolution   `json:"resolution"`
}

// NearbyAmenitiesResponse is returned by GET /amenities/nearby
type NearbyAmenitiesResponse struct {
	Location      geo.Point        `json:"location"`
	Cell          string           `json:"cell"`
	CellBoundary  []geo.Point      `json:"cellBoundary"`
	Nearest       []NearestAmenity `json:"nearestAmenities"`
	Counts        AmenityCounts    `json:"amenityCounts"`
	TransportMode TravelMode       `json:"transportMode"`
}

// AmenityBatchRequest is the body of POST /amenities/batch
type AmenityBatchRequest struct {
	Amenities []AmenityItem `json:"amenities" binding:"required,min=1,dive"`
}

// AmenityItem is a single amenity to ingest
type AmenityItem struct {
	Name     string   `json:"name" binding:"required"`
	Category Category `json:"type" binding:"required,amenitycategory"`
	Address  *string  `json:"address,omitempty"`
	Lat      float64  `json:"lat" binding:"latitude"`
	Lng      float64  `json:"lng" binding:"longitude"`
	SourceID string   `json:"sourceId" binding:"required"`
}

// ToAmenity converts the item into an amenity with cells assigned.
func (i *AmenityItem) ToAmenity() AmenityPoint {
	a := AmenityPoint{
		Name:     i.Name,
		Category: i.Category,
		Address:  i.Address,
		Lat:      i.Lat,
		Lng:      i.Lng,
		SourceID: i.SourceID,
	}
	a.AssignCells()
	return a
}

// AmenityBatchResponse reports the outcome of an ingestion batch
type AmenityBatchResponse struct {
	Inserted   int      `json:"inserted"`
	Duplicates int      `json:"duplicates"`
	Failed     int      `json:"failed"`
	Errors     []string `json:"errors,omitempty"`
}
