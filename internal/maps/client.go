// Package maps adapts the Google Maps Platform web services used for
// commute times, route alternatives and nearby places.
package maps

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"dwelligence/internal/config"
	"dwelligence/internal/geo"
	"dwelligence/internal/model"

	"github.com/phuslu/log"
	gmaps "googlemaps.github.io/maps"
)

// StatusOK is the per-element success status.
const StatusOK = "OK"

// Element is one origin's result in a distance matrix
type Element struct {
	Status          string
	DurationSeconds int
	DurationText    string
	DistanceMeters  int
	DistanceText    string
}

// Client wraps the googlemaps client
type Client struct {
	c *gmaps.Client
}

// NewClient creates a client from configuration.
func NewClient(cfg *config.MapsConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("maps API key is not configured")
	}

	opts := []gmaps.ClientOption{
		gmaps.WithAPIKey(cfg.APIKey),
		gmaps.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	}
	if cfg.RateLimit > 0 {
		opts = append(opts, gmaps.WithRateLimit(int(cfg.RateLimit)))
	}

	c, err := gmaps.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &Client{c: c}, nil
}

func travelMode(m model.TravelMode) gmaps.Mode {
	switch m {
	case model.TravelWalking:
		return gmaps.TravelModeWalking
	case model.TravelBicycling:
		return gmaps.TravelModeBicycling
	case model.TravelDriving:
		return gmaps.TravelModeDriving
	default:
		return gmaps.TravelModeTransit
	}
}

// maxOrigins is the provider's per-request origin limit.
const maxOrigins = 25

// StatusRequestFailed marks origins whose chunk request failed while other
// chunks of the same batch succeeded.
const StatusRequestFailed = "REQUEST_FAILED"

// DistanceMatrix resolves every origin against one destination. The result
// is aligned with origins. Batches above the provider's origin limit are
// split into consecutive requests.
func (c *Client) DistanceMatrix(ctx context.Context, origins []geo.Point, destination geo.Point, mode model.TravelMode) ([]Element, error) {
	return inChunks(ctx, origins, maxOrigins, func(ctx context.Context, chunk []geo.Point) ([]Element, error) {
		return c.distanceMatrix(ctx, chunk, destination, mode)
	})
}

// inChunks runs fetch over consecutive slices of at most size origins. A
// failed chunk marks its origins StatusRequestFailed; an error is returned
// only when no chunk succeeded.
func inChunks(ctx context.Context, origins []geo.Point, size int, fetch func(context.Context, []geo.Point) ([]Element, error)) ([]Element, error) {
	elements := make([]Element, 0, len(origins))
	var lastErr error
	succeeded := 0
	for start := 0; start < len(origins); start += size {
		end := min(start+size, len(origins))
		chunk, err := fetch(ctx, origins[start:end])
		if err != nil {
			log.Warn().Err(err).Int("from", start).Int("to", end).Msg("distance matrix chunk failed")
			lastErr = err
			for range origins[start:end] {
				elements = append(elements, Element{Status: StatusRequestFailed})
			}
			continue
		}
		succeeded++
		elements = append(elements, chunk...)
	}
	if succeeded == 0 && lastErr != nil {
		return nil, lastErr
	}
	return elements, nil
}

func (c *Client) distanceMatrix(ctx context.Context, origins []geo.Point, destination geo.Point, mode model.TravelMode) ([]Element, error) {
	req := &gmaps.DistanceMatrixRequest{
		Origins:      make([]string, len(origins)),
		Destinations: []string{destination.String()},
		Mode:         travelMode(mode),
	}
	for i, o := range origins {
		req.Origins[i] = o.String()
	}

	resp, err := c.c.DistanceMatrix(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("distance matrix request failed: %w", err)
	}

	elements := make([]Element, len(origins))
	for i := range origins {
		if i >= len(resp.Rows) || len(resp.Rows[i].Elements) == 0 || resp.Rows[i].Elements[0] == nil {
			elements[i] = Element{Status: "MISSING"}
			continue
		}
		e := resp.Rows[i].Elements[0]
		elements[i] = Element{Status: e.Status}
		if e.Status == StatusOK {
			elements[i].DurationSeconds = int(e.Duration.Seconds())
			elements[i].DurationText = FormatDuration(e.Duration)
			elements[i].DistanceMeters = e.Distance.Meters
			elements[i].DistanceText = FormatDistance(e.Distance.Meters)
		}
	}
	return elements, nil
}

// Routes returns the provider's route alternatives between two points.
func (c *Client) Routes(ctx context.Context, origin, destination geo.Point, mode model.TravelMode) ([]model.Route, error) {
	routes, _, err := c.c.Directions(ctx, &gmaps.DirectionsRequest{
		Origin:       origin.String(),
		Destination:  destination.String(),
		Mode:         travelMode(mode),
		Alternatives: true,
	})
	if err != nil {
		return nil, fmt.Errorf("directions request failed: %w", err)
	}

	out := make([]model.Route, 0, len(routes))
	for _, r := range routes {
		route := model.Route{
			Summary:  r.Summary,
			Polyline: r.OverviewPolyline.Points,
			Warnings: r.Warnings,
		}
		var total time.Duration
		for _, leg := range r.Legs {
			total += leg.Duration
			route.Distance += leg.Distance.Meters
		}
		route.Duration = int(total.Seconds())
		route.DurationText = FormatDuration(total)
		route.DistanceText = FormatDistance(route.Distance)
		out = append(out, route)
	}
	return out, nil
}

// NearbyPlaces searches for places matching keyword around center.
func (c *Client) NearbyPlaces(ctx context.Context, center geo.Point, keyword string, radiusMeters uint, limit int) ([]model.Place, error) {
	resp, err := c.c.NearbySearch(ctx, &gmaps.NearbySearchRequest{
		Location: &gmaps.LatLng{Lat: center.Lat, Lng: center.Lng},
		Radius:   radiusMeters,
		Keyword:  keyword,
	})
	if err != nil {
		return nil, fmt.Errorf("nearby search failed: %w", err)
	}

	places := make([]model.Place, 0, limit)
	for _, r := range resp.Results {
		if len(places) == limit {
			break
		}
		p := model.Place{
			PlaceID: r.PlaceID,
			Name:    r.Name,
			Address: r.Vicinity,
			Lat:     r.Geometry.Location.Lat,
			Lng:     r.Geometry.Location.Lng,
			Rating:  r.Rating,
			Types:   r.Types,
		}
		p.Distance = geo.Distance(center, geo.Point{Lat: p.Lat, Lng: p.Lng})
		places = append(places, p)
	}
	return places, nil
}

// FormatDuration renders d the way the maps web UI does ("1 hour 5 mins").
func FormatDuration(d time.Duration) string {
	mins := int((d + 30*time.Second) / time.Minute)
	if mins < 1 {
		mins = 1
	}
	hours, mins := mins/60, mins%60

	plural := func(n int, unit string) string {
		if n == 1 {
			return fmt.Sprintf("%d %s", n, unit)
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}

	switch {
	case hours == 0:
		return plural(mins, "min")
	case mins == 0:
		return plural(hours, "hour")
	default:
		return plural(hours, "hour") + " " + plural(mins, "min")
	}
}

// FormatDistance renders meters as "850 m" or "1.2 km".
func FormatDistance(meters int) string {
	if meters < 1000 {
		return fmt.Sprintf("%d m", meters)
	}
	return fmt.Sprintf("%.1f km", float64(meters)/1000)
}
