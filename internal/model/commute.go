package model

import (
	"time"

	"dwelligence/internal/geo"
)

// TravelMode is how the user gets around
type TravelMode string

const (
	TravelWalking   TravelMode = "walking"
	TravelTransit   TravelMode = "transit"
	TravelBicycling TravelMode = "bicycling"
	TravelDriving   TravelMode = "driving"
)

// modeResolutions is the only place a travel mode is tied to a grid resolution.
// Transit shares the walking resolution: riders walk to and from stops.
var modeResolutions = map[TravelMode]geo.Resolution{
	TravelWalking:   geo.Fine,
	TravelTransit:   geo.Fine,
	TravelBicycling: geo.Medium,
	TravelDriving:   geo.Coarse,
}

// Valid reports whether m is a known travel mode.
func (m TravelMode) Valid() bool {
	_, ok := modeResolutions[m]
	return ok
}

// Resolution returns the grid resolution matching the mode's typical reach.
// Unknown modes fall back to the walking resolution.
func (m TravelMode) Resolution() geo.Resolution {
	if r, ok := modeResolutions[m]; ok {
		return r
	}
	return geo.Fine
}

// ParseTravelMode returns the mode for s, or fallback when s is empty or unknown.
func ParseTravelMode(s string, fallback TravelMode) TravelMode {
	m := TravelMode(s)
	if m.Valid() {
		return m
	}
	return fallback
}

// Commute status values reported per listing
const (
	CommuteStatusOK       = "OK"
	CommuteStatusNotFound = "NOT_FOUND"
	CommuteUnavailable    = "Commute unavailable"
)

// CommuteRecord is a cached travel time between a listing and a destination
type CommuteRecord struct {
	DurationSeconds int       `json:"duration"`
	DistanceMeters  int       `json:"distance"`
	FetchedAt       time.Time `json:"fetchedAt"`
}

// CommuteResult is the outcome of one listing's lookup. Error is set when
// the upstream had no route for this listing.
type CommuteResult struct {
	PropertyID   int64      `json:"propertyId"`
	Duration     int        `json:"duration,omitempty"`
	DurationText string     `json:"durationText,omitempty"`
	Distance     int        `json:"distance,omitempty"`
	DistanceText string     `json:"distanceText,omitempty"`
	Mode         TravelMode `json:"mode"`
	Cached       bool       `json:"cached,omitempty"`
	Error        string     `json:"error,omitempty"`
	Status       string     `json:"status,omitempty"`
}

// OK reports whether the result carries a duration.
func (r *CommuteResult) OK() bool {
	return r.Error == ""
}

// CommuteRequest is the body of POST /commute/calculate
type CommuteRequest struct {
	Workplace   *geo.Point `json:"workplace" binding:"required"`
	PropertyIDs []int64    `json:"propertyIds" binding:"required,min=1,max=100"`
	Mode        TravelMode `json:"mode" binding:"omitempty,travelmode"`
}

// Route is one alternative returned by the directions provider
type Route struct {
	Summary      string   `json:"summary"`
	Duration     int      `json:"duration"`
	DurationText string   `json:"durationText"`
	Distance     int      `json:"distance"`
	DistanceText string   `json:"distanceText"`
	Polyline     string   `json:"polyline"`
	Warnings     []string `json:"warnings,omitempty"`
}

// RoutesResponse is returned by GET /commute/routes
type RoutesResponse struct {
	Origin      geo.Point  `json:"origin"`
	Destination geo.Point  `json:"destination"`
	Mode        TravelMode `json:"mode"`
	Routes      []Route    `json:"routes"`
}

// CommuteBatchQuery is the query of GET /commute/batch
type CommuteBatchQuery struct {
	WorkplaceLat *float64 `form:"workplaceLat" binding:"required,latitude"`
	WorkplaceLng *float64 `form:"workplaceLng" binding:"required,longitude"`
	Mode         string   `form:"mode" binding:"omitempty,travelmode"`
	North        *float64 `form:"north" binding:"required,latitude"`
	South        *float64 `form:"south" binding:"required,latitude"`
	East         *float64 `form:"east" binding:"required,longitude"`
	West         *float64 `form:"west" binding:"required,longitude"`
}

// Workplace returns the destination.
func (q *CommuteBatchQuery) Workplace() geo.Point {
	return geo.Point{Lat: deref(q.WorkplaceLat), Lng: deref(q.WorkplaceLng)}
}

// Bounds returns the viewport rectangle.
func (q *CommuteBatchQuery) Bounds() geo.Bounds {
	return geo.Bounds{North: deref(q.North), South: deref(q.South), East: deref(q.East), West: deref(q.West)}
}

// RoutesQuery is the query of GET /commute/routes
type RoutesQuery struct {
	OriginLat *float64 `form:"originLat" binding:"required,latitude"`
	OriginLng *float64 `form:"originLng" binding:"required,longitude"`
	DestLat   *float64 `form:"destLat" binding:"required,latitude"`
	DestLng   *float64 `form:"destLng" binding:"required,longitude"`
	Mode      string   `form:"mode" binding:"omitempty,travelmode"`
}

// Origin returns the route start.
func (q *RoutesQuery) Origin() geo.Point {
	return geo.Point{Lat: deref(q.OriginLat), Lng: deref(q.OriginLng)}
}

// Destination returns the route end.
func (q *RoutesQuery) Destination() geo.Point {
	return geo.Point{Lat: deref(q.DestLat), Lng: deref(q.DestLng)}
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
