// Package geo maps coordinates onto a fixed set of grid resolutions so that
// proximity becomes an equality join on cell identifiers.
//
// Cells are geohashes. Precision per resolution:
//
//	fine   6 → ~1.2 km × 0.6 km
//	medium 5 → ~4.9 km × 4.9 km
//	coarse 4 → ~39 km × 19.5 km
package geo

import (
	"fmt"
	"math"

	"github.com/mmcloughlin/geohash"
)

// EarthRadiusMeters is Earth's mean radius.
const EarthRadiusMeters = 6371000.0

// Resolution is one of the supported grid granularities.
type Resolution string

const (
	Fine   Resolution = "fine"
	Medium Resolution = "medium"
	Coarse Resolution = "coarse"
)

// Resolutions lists every supported resolution, finest first.
var Resolutions = []Resolution{Fine, Medium, Coarse}

var precisions = map[Resolution]uint{
	Fine:   6,
	Medium: 5,
	Coarse: 4,
}

// Precision returns the geohash length used for r, or 0 for an unknown resolution.
func (r Resolution) Precision() uint {
	return precisions[r]
}

// Valid reports whether r is a supported resolution.
func (r Resolution) Valid() bool {
	_, ok := precisions[r]
	return ok
}

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat" binding:"latitude"`
	Lng float64 `json:"lng" binding:"longitude"`
}

// Valid reports whether the point lies within [-90,90]×[-180,180].
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180 &&
		!math.IsNaN(p.Lat) && !math.IsNaN(p.Lng)
}

// String formats the point as "lat,lng", the form accepted by the maps APIs.
func (p Point) String() string {
	return fmt.Sprintf("%f,%f", p.Lat, p.Lng)
}

// Round returns p with both coordinates rounded to the given number of decimals.
func (p Point) Round(decimals int) Point {
	f := math.Pow(10, float64(decimals))
	return Point{
		Lat: math.Round(p.Lat*f) / f,
		Lng: math.Round(p.Lng*f) / f,
	}
}

// CellID returns the identifier of the cell containing p at resolution r.
// Callers validate coordinates first; there is no error path.
func CellID(p Point, r Resolution) string {
	return geohash.EncodeWithPrecision(p.Lat, p.Lng, r.Precision())
}

// Cells returns the identifiers of p at every supported resolution.
func Cells(p Point) map[Resolution]string {
	cells := make(map[Resolution]string, len(Resolutions))
	for _, r := range Resolutions {
		cells[r] = CellID(p, r)
	}
	return cells
}

// CellBoundary returns the corners of a cell as a closed ring (first point
// repeated last), counter-clockwise from the south-west corner.
func CellBoundary(cell string) []Point {
	if cell == "" {
		return nil
	}
	box := geohash.BoundingBox(cell)
	return []Point{
		{Lat: box.MinLat, Lng: box.MinLng},
		{Lat: box.MinLat, Lng: box.MaxLng},
		{Lat: box.MaxLat, Lng: box.MaxLng},
		{Lat: box.MaxLat, Lng: box.MinLng},
		{Lat: box.MinLat, Lng: box.MinLng},
	}
}

// Distance returns the great-circle distance in meters between a and b.
func Distance(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return EarthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Bounds is a lat/lng rectangle.
type Bounds struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// Valid reports whether the rectangle is well formed.
func (b Bounds) Valid() bool {
	return Point{Lat: b.North, Lng: b.East}.Valid() &&
		Point{Lat: b.South, Lng: b.West}.Valid() &&
		b.South <= b.North && b.West <= b.East
}

// Contains reports whether p lies inside b, edges included.
func (b Bounds) Contains(p Point) bool {
	return p.Lat >= b.South && p.Lat <= b.North && p.Lng >= b.West && p.Lng <= b.East
}

// Envelope returns the smallest rectangle covering every point.
func Envelope(points []Point) (Bounds, bool) {
	if len(points) == 0 {
		return Bounds{}, false
	}
	b := Bounds{North: points[0].Lat, South: points[0].Lat, East: points[0].Lng, West: points[0].Lng}
	for _, p := range points[1:] {
		b.North = math.Max(b.North, p.Lat)
		b.South = math.Min(b.South, p.Lat)
		b.East = math.Max(b.East, p.Lng)
		b.West = math.Min(b.West, p.Lng)
	}
	return b, true
}
