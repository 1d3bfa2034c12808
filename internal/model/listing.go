package model

import (
	"time"

	"dwelligence/internal/geo"
)

// Listing represents a rental or sale property
type Listing struct {
	ID           int64     `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Address      string    `json:"address" db:"address"`
	Lat          float64   `json:"lat" db:"lat"`
	Lng          float64   `json:"lng" db:"lng"`
	Price        float64   `json:"price" db:"price"`
	Bedrooms     int       `json:"bedrooms" db:"bedrooms"`
	Bathrooms    float64   `json:"bathrooms" db:"bathrooms"`
	SqFt         *int      `json:"sqft,omitempty" db:"sq_ft"`
	PropertyType string    `json:"propertyType" db:"property_type"`
	ListingType  string    `json:"listingType" db:"sale_type"`
	Description  *string   `json:"description,omitempty" db:"description"`
	ImageURL     *string   `json:"imageUrl,omitempty" db:"image_url"`
	CellFine     *string   `json:"cellFine,omitempty" db:"cell_fine"`
	CellMedium   *string   `json:"cellMedium,omitempty" db:"cell_medium"`
	CellCoarse   *string   `json:"cellCoarse,omitempty" db:"cell_coarse"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

// Point returns the listing's coordinate.
func (l *Listing) Point() geo.Point {
	return geo.Point{Lat: l.Lat, Lng: l.Lng}
}

// Cell returns the listing's cell at r, or "" when it has none.
func (l *Listing) Cell(r geo.Resolution) string {
	var c *string
	switch r {
	case geo.Fine:
		c = l.CellFine
	case geo.Medium:
		c = l.CellMedium
	case geo.Coarse:
		c = l.CellCoarse
	}
	if c == nil {
		return ""
	}
	return *c
}

// AssignCells derives all three cell columns from the current coordinates.
// Must be called whenever Lat or Lng changes.
func (l *Listing) AssignCells() {
	cells := geo.Cells(l.Point())
	fine, medium, coarse := cells[geo.Fine], cells[geo.Medium], cells[geo.Coarse]
	l.CellFine, l.CellMedium, l.CellCoarse = &fine, &medium, &coarse
}

// Property types
const (
	PropertyTypeApartment = "apartment"
	PropertyTypeHouse     = "house"
)

// Listing (transaction) types
const (
	ListingTypeRent = "rent"
	ListingTypeSale = "sale"
)

// ValidPropertyType reports whether s is a known property type.
func ValidPropertyType(s string) bool {
	return s == PropertyTypeApartment || s == PropertyTypeHouse
}

// ValidListingType reports whether s is a known listing type.
func ValidListingType(s string) bool {
	return s == ListingTypeRent || s == ListingTypeSale
}

// CreateListingRequest is the body of POST /properties
type CreateListingRequest struct {
	Name         string  `json:"name" binding:"required"`
	Address      string  `json:"address" binding:"required"`
	Lat          float64 `json:"lat" binding:"latitude"`
	Lng          float64 `json:"lng" binding:"longitude"`
	Price        float64 `json:"price" binding:"gte=0"`
	Bedrooms     int     `json:"bedrooms" binding:"gte=0"`
	Bathrooms    float64 `json:"bathrooms" binding:"gte=0"`
	SqFt         *int    `json:"sqft,omitempty"`
	PropertyType string  `json:"propertyType" binding:"required,oneof=apartment house"`
	ListingType  string  `json:"listingType" binding:"required,oneof=rent sale"`
	Description  *string `json:"description,omitempty"`
	ImageURL     *string `json:"imageUrl,omitempty"`
}

// ToListing converts the request into a listing with cells assigned.
func (r *CreateListingRequest) ToListing() *Listing {
	l := &Listing{
		Name:         r.Name,
		Address:      r.Address,
		Lat:          r.Lat,
		Lng:          r.Lng,
		Price:        r.Price,
		Bedrooms:     r.Bedrooms,
		Bathrooms:    r.Bathrooms,
		SqFt:         r.SqFt,
		PropertyType: r.PropertyType,
		ListingType:  r.ListingType,
		Description:  r.Description,
		ImageURL:     r.ImageURL,
	}
	l.AssignCells()
	return l
}
