package model

import "math"

// Range is an optionally one-sided numeric bound
type Range struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// Empty reports whether neither bound is set.
func (r Range) Empty() bool {
	return r.Min == nil && r.Max == nil
}

// SearchIntent is the structured form of a natural-language query
type SearchIntent struct {
	PriceRange         Range       `json:"priceRange"`
	Bedrooms           Range       `json:"bedrooms"`
	Bathrooms          Range       `json:"bathrooms"`
	PropertyType       *string     `json:"propertyType,omitempty"`
	ListingType        *string     `json:"listingType,omitempty"`
	AmenityPreferences []Category  `json:"amenityPreferences"`
	CommutePreference  *string     `json:"commutePreference,omitempty"`
	TransportMode      *TravelMode `json:"transportMode,omitempty"`
	NeedsClarification bool        `json:"needsTransportModeClarity"`
	Summary            string      `json:"summary"`
}

// Mode returns the travel mode, or fallback when none was expressed.
func (i *SearchIntent) Mode(fallback TravelMode) TravelMode {
	if i.TransportMode != nil && i.TransportMode.Valid() {
		return *i.TransportMode
	}
	return fallback
}

// Filter converts the intent's bounds into a listing filter.
func (i *SearchIntent) Filter() ListingFilter {
	f := ListingFilter{
		MinPrice:     i.PriceRange.Min,
		MaxPrice:     i.PriceRange.Max,
		PropertyType: i.PropertyType,
		ListingType:  i.ListingType,
	}
	// Bedroom counts are whole; fractional bounds round inward.
	if i.Bedrooms.Min != nil {
		v := int(math.Ceil(*i.Bedrooms.Min))
		f.MinBedrooms = &v
	}
	if i.Bedrooms.Max != nil {
		v := int(math.Floor(*i.Bedrooms.Max))
		f.MaxBedrooms = &v
	}
	f.MinBathrooms = i.Bathrooms.Min
	f.MaxBathrooms = i.Bathrooms.Max
	return f
}
