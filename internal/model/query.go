package model

import (
	"dwelligence/internal/geo"
)

// ListingFilter is the typed set of optional listing constraints.
// Nil fields are not constrained.
type ListingFilter struct {
	MinPrice     *float64
	MaxPrice     *float64
	MinBedrooms  *int
	MaxBedrooms  *int
	MinBathrooms *float64
	MaxBathrooms *float64
	PropertyType *string
	ListingType  *string
	Bounds       *geo.Bounds
	IDs          []int64
	Limit        int
	Offset       int
}

// SearchFilters represents explicit filters sent alongside a query
type SearchFilters struct {
	MinPrice     *float64 `json:"minPrice,omitempty" form:"minPrice" binding:"omitempty,gte=0"`
	MaxPrice     *float64 `json:"maxPrice,omitempty" form:"maxPrice" binding:"omitempty,gte=0"`
	Bedrooms     *int     `json:"bedrooms,omitempty" form:"bedrooms" binding:"omitempty,gte=0"`
	Bathrooms    *float64 `json:"bathrooms,omitempty" form:"bathrooms" binding:"omitempty,gte=0"`
	PropertyType *string  `json:"propertyType,omitempty" form:"propertyType" binding:"omitempty,oneof=apartment house"`
	ListingType  *string  `json:"listingType,omitempty" form:"listingType" binding:"omitempty,oneof=rent sale"`
}

// Apply overrides f with every explicit field that is set.
func (s *SearchFilters) Apply(f *ListingFilter) {
	if s == nil {
		return
	}
	if s.MinPrice != nil {
		f.MinPrice = s.MinPrice
	}
	if s.MaxPrice != nil {
		f.MaxPrice = s.MaxPrice
	}
	if s.Bedrooms != nil {
		f.MinBedrooms = s.Bedrooms
	}
	if s.Bathrooms != nil {
		f.MinBathrooms = s.Bathrooms
	}
	if s.PropertyType != nil {
		f.PropertyType = s.PropertyType
	}
	if s.ListingType != nil {
		f.ListingType = s.ListingType
	}
}

// ListPropertiesRequest is the query of GET /properties
type ListPropertiesRequest struct {
	SearchFilters
	Limit  int `form:"limit" binding:"omitempty,gte=1"`
	Offset int `form:"offset" binding:"omitempty,gte=0"`
}

// ViewportRequest is the query of GET /properties/map-bounds
type ViewportRequest struct {
	SearchFilters
	North         *float64 `form:"north" binding:"required,latitude"`
	South         *float64 `form:"south" binding:"required,latitude"`
	East          *float64 `form:"east" binding:"required,longitude"`
	West          *float64 `form:"west" binding:"required,longitude"`
	TransportMode string   `form:"transportMode" binding:"omitempty,travelmode"`
	Amenities     string   `form:"amenities"` // comma separated categories
	WorkplaceLat  *float64 `form:"workplaceLat" binding:"omitempty,latitude"`
	WorkplaceLng  *float64 `form:"workplaceLng" binding:"omitempty,longitude"`
}

// Bounds returns the viewport rectangle.
func (r *ViewportRequest) Bounds() geo.Bounds {
	var b geo.Bounds
	if r.North != nil && r.South != nil && r.East != nil && r.West != nil {
		b = geo.Bounds{North: *r.North, South: *r.South, East: *r.East, West: *r.West}
	}
	return b
}

// Workplace returns the commute destination, if both coordinates are set.
func (r *ViewportRequest) Workplace() *geo.Point {
	if r.WorkplaceLat == nil || r.WorkplaceLng == nil {
		return nil
	}
	return &geo.Point{Lat: *r.WorkplaceLat, Lng: *r.WorkplaceLng}
}

// ViewportResponse is returned by GET /properties/map-bounds
type ViewportResponse struct {
	Properties    []RankedCandidate `json:"properties"`
	Total         int               `json:"total"`
	TransportMode TravelMode        `json:"transportMode"`
	Resolution    geo.Resolution    `json:"resolution"`
}

// SearchRequest is the body of POST /search/ai
type SearchRequest struct {
	Query         string         `json:"query" binding:"required"`
	Workplace     *geo.Point     `json:"workplace,omitempty"`
	Filters       *SearchFilters `json:"filters,omitempty"`
	MaxResults    int            `json:"maxResults,omitempty" binding:"omitempty,gte=1"`
	TransportMode string         `json:"transportMode,omitempty" binding:"omitempty,travelmode"`
}

// RankedCandidate is a listing annotated for presentation
type RankedCandidate struct {
	Listing
	Commute       *CommuteResult `json:"commute,omitempty"`
	AmenityCounts AmenityCounts  `json:"amenityCounts,omitempty"`
	Reason        string         `json:"aiReason,omitempty"`
	Score         float64        `json:"score"`
}

// Ranking methods reported in SearchResponse.RankedBy
const (
	RankedByAI    = "ai"
	RankedByScore = "score"
)

// SearchResponse is the final envelope of a natural-language search
type SearchResponse struct {
	SearchID              string            `json:"searchId,omitempty"`
	NeedsClarity          bool              `json:"needsClarity"`
	ClarificationQuestion string            `json:"clarificationQuestion,omitempty"`
	DefaultMode           TravelMode        `json:"defaultMode,omitempty"`
	Query                 string            `json:"query"`
	Interpretation        string            `json:"interpretation"`
	Intent                *SearchIntent     `json:"intent,omitempty"`
	Results               []RankedCandidate `json:"results"`
	TotalResults          int               `json:"totalResults"`
	RankedBy              string            `json:"rankedBy,omitempty"`
	Message               string            `json:"message,omitempty"`
	Took                  int64             `json:"tookMs"`
}

// FeedbackRequest represents user feedback/action
type FeedbackRequest struct {
	SearchID  string `json:"searchId" binding:"required,uuid"`
	ListingID int64  `json:"propertyId" binding:"required"`
	Action    string `json:"action" binding:"required,oneof=click contact view_details"`
}

// FeedbackResponse represents feedback response
type FeedbackResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// AskRequest is the body of POST /properties/:id/ask
type AskRequest struct {
	Question string `json:"question" binding:"required"`
}

// Place is a point of interest returned by the places provider
type Place struct {
	PlaceID  string   `json:"placeId"`
	Name     string   `json:"name"`
	Address  string   `json:"address,omitempty"`
	Lat      float64  `json:"lat"`
	Lng      float64  `json:"lng"`
	Rating   float32  `json:"rating,omitempty"`
	Types    []string `json:"types,omitempty"`
	Distance float64  `json:"distance"`
}

// AskResponse is returned by POST /properties/:id/ask
type AskResponse struct {
	Answer     string  `json:"answer"`
	NearbyPOIs []Place `json:"nearbyPOIs"`
}
