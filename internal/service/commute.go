package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"dwelligence/internal/cache"
	"dwelligence/internal/geo"
	"dwelligence/internal/maps"
	"dwelligence/internal/model"

	"github.com/phuslu/log"
	"golang.org/x/sync/singleflight"
)

// CommuteService computes listing-to-destination travel times through a
// TTL cache, sending at most one upstream request per batch.
type CommuteService struct {
	listings ListingStore
	matrix   DistanceMatrix
	routes   RoutePlanner
	cache    cache.CommuteCache
	now      cache.Clock
	group    singleflight.Group
}

// NewCommuteService creates a commute service. routes may be nil.
func NewCommuteService(listings ListingStore, matrix DistanceMatrix, routes RoutePlanner, c cache.CommuteCache, now cache.Clock) *CommuteService {
	if now == nil {
		now = time.Now
	}
	return &CommuteService{
		listings: listings,
		matrix:   matrix,
		routes:   routes,
		cache:    c,
		now:      now,
	}
}

// BatchCommutes resolves commutes for listing ids in request order. Unknown
// ids get a NOT_FOUND result instead of failing the batch.
func (s *CommuteService) BatchCommutes(ctx context.Context, ids []int64, destination geo.Point, mode model.TravelMode) ([]model.CommuteResult, error) {
	if len(ids) == 0 {
		return nil, validationError("propertyIds must not be empty")
	}
	if !destination.Valid() {
		return nil, validationError("workplace coordinates out of range: %s", destination)
	}

	listings, err := s.listings.FindListings(ctx, model.ListingFilter{IDs: ids})
	if err != nil {
		return nil, fmt.Errorf("failed to load listings: %w", err)
	}
	byID := make(map[int64]model.Listing, len(listings))
	for _, l := range listings {
		byID[l.ID] = l
	}

	known := make([]model.Listing, 0, len(ids))
	for _, id := range ids {
		if l, ok := byID[id]; ok {
			known = append(known, l)
		}
	}

	resolved, err := s.CommutesFor(ctx, known, destination, mode)
	if err != nil {
		return nil, err
	}

	out := make([]model.CommuteResult, 0, len(ids))
	next := 0
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			out = append(out, model.CommuteResult{
				PropertyID: id,
				Mode:       mode,
				Error:      model.CommuteUnavailable,
				Status:     model.CommuteStatusNotFound,
			})
			continue
		}
		out = append(out, resolved[next])
		next++
	}
	return out, nil
}

// CommutesFor returns one result per listing, aligned with listings.
// Cached pairs are served locally; the rest go to the provider in a single
// request whose results are written back to the cache. Only a transport
// failure of that request is an error.
func (s *CommuteService) CommutesFor(ctx context.Context, listings []model.Listing, destination geo.Point, mode model.TravelMode) ([]model.CommuteResult, error) {
	if len(listings) == 0 {
		return []model.CommuteResult{}, nil
	}
	if !mode.Valid() {
		mode = model.TravelTransit
	}

	keys := make([]cache.Key, len(listings))
	for i := range listings {
		keys[i] = cache.NewKey(listings[i].ID, destination, mode)
	}

	cached, err := s.cache.GetMany(ctx, keys)
	if err != nil {
		log.Warn().Err(err).Int("keys", len(keys)).Msg("commute cache read failed, treating all as misses")
		cached = nil
	}

	var misses []model.Listing
	queued := make(map[int64]bool)
	for i := range listings {
		if _, ok := cached[keys[i]]; ok || queued[listings[i].ID] {
			continue
		}
		queued[listings[i].ID] = true
		misses = append(misses, listings[i])
	}

	var fresh map[int64]model.CommuteResult
	if len(misses) > 0 {
		fresh, err = s.fetch(ctx, misses, destination, mode)
		if err != nil {
			return nil, err
		}
	}

	results := make([]model.CommuteResult, len(listings))
	for i := range listings {
		if rec, ok := cached[keys[i]]; ok {
			results[i] = fromRecord(listings[i].ID, rec, mode)
			continue
		}
		results[i] = fresh[listings[i].ID]
	}

	log.Debug().Int("listings", len(listings)).Int("cache_hits", len(listings)-len(misses)).
		Str("mode", string(mode)).Msg("commutes resolved")
	return results, nil
}

// fetch issues the single upstream request for misses. Concurrent callers
// asking for the same batch share one request. The request is detached from
// the caller's cancellation so a result paid for is always cached.
func (s *CommuteService) fetch(ctx context.Context, misses []model.Listing, destination geo.Point, mode model.TravelMode) (map[int64]model.CommuteResult, error) {
	v, err, shared := s.group.Do(flightKey(misses, destination, mode), func() (interface{}, error) {
		upstreamCtx := context.WithoutCancel(ctx)

		origins := make([]geo.Point, len(misses))
		for i := range misses {
			origins[i] = misses[i].Point()
		}

		start := s.now()
		elements, err := s.matrix.DistanceMatrix(upstreamCtx, origins, destination, mode)
		if err != nil {
			return nil, upstreamError("distance matrix", err)
		}
		log.Info().Int("origins", len(origins)).Str("mode", string(mode)).
			Dur("took", s.now().Sub(start)).Msg("distance matrix fetched")

		fetchedAt := s.now()
		out := make(map[int64]model.CommuteResult, len(misses))
		for i, l := range misses {
			var e maps.Element
			if i < len(elements) {
				e = elements[i]
			} else {
				e.Status = "MISSING"
			}

			if e.Status != maps.StatusOK {
				out[l.ID] = model.CommuteResult{
					PropertyID: l.ID,
					Mode:       mode,
					Error:      model.CommuteUnavailable,
					Status:     e.Status,
				}
				continue
			}

			out[l.ID] = model.CommuteResult{
				PropertyID:   l.ID,
				Duration:     e.DurationSeconds,
				DurationText: e.DurationText,
				Distance:     e.DistanceMeters,
				DistanceText: e.DistanceText,
				Mode:         mode,
				Status:       model.CommuteStatusOK,
			}
			rec := model.CommuteRecord{DurationSeconds: e.DurationSeconds, DistanceMeters: e.DistanceMeters, FetchedAt: fetchedAt}
			if err := s.cache.Set(upstreamCtx, cache.NewKey(l.ID, destination, mode), rec); err != nil {
				log.Warn().Err(err).Int64("listing_id", l.ID).Msg("failed to cache commute")
			}
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		log.Debug().Int("origins", len(misses)).Msg("joined in-flight distance matrix request")
	}
	return v.(map[int64]model.CommuteResult), nil
}

// CommutesInBounds resolves commutes for every listing inside bounds, capped
// at limit listings.
func (s *CommuteService) CommutesInBounds(ctx context.Context, bounds geo.Bounds, destination geo.Point, mode model.TravelMode, limit int) ([]model.CommuteResult, error) {
	if !bounds.Valid() {
		return nil, validationError("invalid bounds")
	}
	if !destination.Valid() {
		return nil, validationError("workplace coordinates out of range: %s", destination)
	}

	listings, err := s.listings.FindListings(ctx, model.ListingFilter{Bounds: &bounds, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("failed to load listings in bounds: %w", err)
	}
	return s.CommutesFor(ctx, listings, destination, mode)
}

// Routes returns route alternatives between two points. A provider failure
// yields an empty list.
func (s *CommuteService) Routes(ctx context.Context, origin, destination geo.Point, mode model.TravelMode) *model.RoutesResponse {
	resp := &model.RoutesResponse{Origin: origin, Destination: destination, Mode: mode, Routes: []model.Route{}}
	if s.routes == nil {
		return resp
	}
	routes, err := s.routes.Routes(ctx, origin, destination, mode)
	if err != nil {
		log.Warn().Err(err).Str("origin", origin.String()).Msg("route lookup failed")
		return resp
	}
	resp.Routes = routes
	return resp
}

func fromRecord(id int64, rec model.CommuteRecord, mode model.TravelMode) model.CommuteResult {
	return model.CommuteResult{
		PropertyID:   id,
		Duration:     rec.DurationSeconds,
		DurationText: maps.FormatDuration(time.Duration(rec.DurationSeconds) * time.Second),
		Distance:     rec.DistanceMeters,
		DistanceText: maps.FormatDistance(rec.DistanceMeters),
		Mode:         mode,
		Cached:       true,
		Status:       model.CommuteStatusOK,
	}
}

func flightKey(listings []model.Listing, destination geo.Point, mode model.TravelMode) string {
	ids := make([]int64, len(listings))
	for i := range listings {
		ids[i] = listings[i].ID
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var b strings.Builder
	d := destination.Round(cache.DestinationDecimals)
	fmt.Fprintf(&b, "%s|%.5f,%.5f|", mode, d.Lat, d.Lng)
	for i, id := range ids {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatInt(id, 10))
	}
	return b.String()
}
