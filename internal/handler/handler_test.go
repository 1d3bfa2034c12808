package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"dwelligence/internal/cache"
	"dwelligence/internal/config"
	"dwelligence/internal/geo"
	"dwelligence/internal/maps"
	"dwelligence/internal/model"
	"dwelligence/internal/repository"
	"dwelligence/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoBedIntent = `{"priceRange":{"min":null,"max":2500},"bedrooms":{"min":2,"max":2},"bathrooms":{"min":null,"max":null},"propertyType":null,"listingType":null,"amenityPreferences":[],"commutePreference":null,"transportMode":null,"needsTransportModeClarity":false,"summary":"2-bed homes under $2,500"}`

const loggedSearchID = "0b6f3c52-58a4-4c1e-9a0e-2f7c1d9e4a11"

// stubStore is a minimal in-memory backing for every store interface.
type stubStore struct {
	mu        sync.Mutex
	listings  []model.Listing
	amenities []model.AmenityPoint
	searchIDs map[string]bool
}

func (s *stubStore) find(f model.ListingFilter) []model.Listing {
	var out []model.Listing
	for _, l := range s.listings {
		if f.MaxPrice != nil && l.Price > *f.MaxPrice {
			continue
		}
		if f.MinBedrooms != nil && l.Bedrooms < *f.MinBedrooms {
			continue
		}
		if f.Bounds != nil && !f.Bounds.Contains(l.Point()) {
			continue
		}
		if len(f.IDs) > 0 {
			keep := false
			for _, id := range f.IDs {
				keep = keep || id == l.ID
			}
			if !keep {
				continue
			}
		}
		out = append(out, l)
	}
	return out
}

func (s *stubStore) SearchListings(_ context.Context, f model.ListingFilter) ([]model.Listing, int, error) {
	out := s.find(f)
	total := len(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, total, nil
}

func (s *stubStore) FindListings(_ context.Context, f model.ListingFilter) ([]model.Listing, error) {
	return s.find(f), nil
}

func (s *stubStore) GetListingByID(_ context.Context, id int64) (*model.Listing, error) {
	for i := range s.listings {
		if s.listings[i].ID == id {
			l := s.listings[i]
			return &l, nil
		}
	}
	return nil, nil
}

func (s *stubStore) CreateListing(_ context.Context, l *model.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.ID = int64(len(s.listings) + 1)
	s.listings = append(s.listings, *l)
	return nil
}

func (s *stubStore) AmenitiesInCell(_ context.Context, res geo.Resolution, cell string) ([]model.AmenityPoint, error) {
	var out []model.AmenityPoint
	for _, a := range s.amenities {
		if geo.CellID(a.Point(), res) == cell {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *stubStore) AmenityCountsByCell(_ context.Context, res geo.Resolution, cells []string) (map[string]model.AmenityCounts, error) {
	out := make(map[string]model.AmenityCounts)
	for _, c := range cells {
		for _, a := range s.amenities {
			if geo.CellID(a.Point(), res) != c {
				continue
			}
			if out[c] == nil {
				out[c] = model.AmenityCounts{}
			}
			out[c][a.Category]++
		}
	}
	return out, nil
}

func (s *stubStore) UpsertAmenities(_ context.Context, items []model.AmenityPoint) (int, int, []string) {
	inserted, duplicates := 0, 0
	var errs []string
	for _, a := range items {
		switch a.SourceID {
		case "dup":
			duplicates++
		case "bad":
			errs = append(errs, "bad: rejected")
		default:
			inserted++
		}
	}
	return inserted, duplicates, errs
}

func (s *stubStore) LogSearch(context.Context, repository.SearchLog) error { return nil }

func (s *stubStore) LogFeedback(_ context.Context, searchID string, _ int64, _ string) (bool, error) {
	return s.searchIDs[searchID], nil
}

type stubMatrix struct{}

func (stubMatrix) DistanceMatrix(_ context.Context, origins []geo.Point, _ geo.Point, _ model.TravelMode) ([]maps.Element, error) {
	out := make([]maps.Element, len(origins))
	for i := range origins {
		out[i] = maps.Element{Status: maps.StatusOK, DurationSeconds: 900, DurationText: "15 mins", DistanceMeters: 4000, DistanceText: "4.0 km"}
	}
	return out, nil
}

// queueCompleter replays responses in order and repeats the last one.
type queueCompleter struct {
	mu        sync.Mutex
	responses []string
}

func (q *queueCompleter) Complete(context.Context, string, string) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	r := q.responses[0]
	if len(q.responses) > 1 {
		q.responses = q.responses[1:]
	}
	return r, nil
}

func newListing(id int64, lat, lng, price float64, bedrooms int) model.Listing {
	l := model.Listing{
		ID: id, Name: "Listing", Address: "Addr", Lat: lat, Lng: lng, Price: price,
		Bedrooms: bedrooms, Bathrooms: 1,
		PropertyType: model.PropertyTypeApartment, ListingType: model.ListingTypeRent,
	}
	l.AssignCells()
	return l
}

func newTestRouter(t *testing.T, completer service.Completer) (*gin.Engine, *stubStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, RegisterValidators())

	store := &stubStore{
		listings: []model.Listing{
			newListing(1, 49.2800, -123.1200, 2400, 2),
			newListing(2, 49.2600, -123.1000, 2300, 2),
			newListing(3, 49.2700, -123.1100, 3100, 3),
		},
		searchIDs: map[string]bool{loggedSearchID: true},
	}
	park := model.AmenityPoint{ID: 1, Name: "Park", Category: model.CategoryPark, Lat: 49.2801, Lng: -123.1201}
	park.AssignCells()
	store.amenities = append(store.amenities, park)

	amenities := service.NewAmenityAggregator(store)
	commutes := service.NewCommuteService(store, stubMatrix{}, nil, cache.NewMemoryCache(time.Hour, time.Now), time.Now)
	search := service.NewSearchService(
		store, store,
		service.NewIntentParser(completer),
		amenities,
		commutes,
		service.NewRanker(0.5, 0.5, 50, nil),
		config.SearchConfig{DefaultLimit: 20, MaxLimit: 100, CandidateLimit: 200, BoundsLimit: 100},
		model.TravelTransit,
	)
	properties := service.NewPropertyService(store, amenities, 20, 100)

	h := &Handlers{
		Search:   NewSearchHandler(search),
		Feedback: NewFeedbackHandler(search),
		Property: NewPropertyHandler(properties, search, service.NewAskService(store, nil, nil)),
		Commute:  NewCommuteHandler(commutes, model.TravelTransit, 100),
		Amenity:  NewAmenityHandler(properties),
	}
	r := gin.New()
	h.Register(r.Group("/api"))
	return r, store
}

func do(r http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestSearch(t *testing.T) {
	r, _ := newTestRouter(t, &queueCompleter{responses: []string{twoBedIntent}})

	w := do(r, http.MethodPost, "/api/search/ai", gin.H{"query": "2 bed under 2500"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[model.SearchResponse](t, w)
	assert.NotEmpty(t, resp.SearchID)
	assert.Equal(t, model.RankedByScore, resp.RankedBy)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, int64(2), resp.Results[0].ID, "cheapest first without a workplace")
}

func TestSearch_BadRequest(t *testing.T) {
	r, _ := newTestRouter(t, &queueCompleter{responses: []string{twoBedIntent}})

	w := do(r, http.MethodPost, "/api/search/ai", gin.H{"query": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/search/ai", gin.H{"query": "x", "transportMode": "teleport"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/search/ai", gin.H{"query": "x", "workplace": gin.H{"lat": 123, "lng": 0}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSearch_UnparseableIntent(t *testing.T) {
	r, _ := newTestRouter(t, &queueCompleter{responses: []string{"I cannot help with that"}})

	w := do(r, http.MethodPost, "/api/search/ai", gin.H{"query": "2 bed"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Failed to interpret the query")
}

func TestSearchStream(t *testing.T) {
	r, _ := newTestRouter(t, &queueCompleter{responses: []string{twoBedIntent}})

	w := do(r, http.MethodPost, "/api/search/ai/stream", gin.H{"query": "2 bed under 2500"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream; charset=utf-8", w.Header().Get("Content-Type"))

	body := w.Body.String()
	order := []string{"event: start", "event: " + service.StageParsing, "event: " + service.StageIntent, "event: " + service.StageRanking, "event: done"}
	last := -1
	for _, marker := range order {
		idx := strings.Index(body, marker)
		require.GreaterOrEqual(t, idx, 0, "missing %q in %s", marker, body)
		assert.Greater(t, idx, last, "%q out of order", marker)
		last = idx
	}
}

func TestSearchStream_Error(t *testing.T) {
	r, _ := newTestRouter(t, &queueCompleter{responses: []string{"nonsense"}})

	w := do(r, http.MethodPost, "/api/search/ai/stream", gin.H{"query": "2 bed"})
	assert.Contains(t, w.Body.String(), "event: error")
	assert.NotContains(t, w.Body.String(), "event: done")
}

func TestFeedback(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	w := do(r, http.MethodPost, "/api/search/feedback", gin.H{"searchId": loggedSearchID, "propertyId": 1, "action": "click"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, decode[model.FeedbackResponse](t, w).Success)

	w = do(r, http.MethodPost, "/api/search/feedback", gin.H{"searchId": "9a4a2c1e-0000-4000-8000-000000000000", "propertyId": 1, "action": "click"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodPost, "/api/search/feedback", gin.H{"searchId": loggedSearchID, "propertyId": 1, "action": "like"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProperties(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	w := do(r, http.MethodGet, "/api/properties?bedrooms=3", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	list := decode[struct {
		Properties []model.Listing `json:"properties"`
		Total      int             `json:"total"`
	}](t, w)
	assert.Equal(t, 1, list.Total)
	assert.Equal(t, int64(3), list.Properties[0].ID)

	w = do(r, http.MethodGet, "/api/properties/2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2300.0, decode[model.Listing](t, w).Price)

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/properties/99", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/properties/abc", nil).Code)
}

func TestCreateProperty(t *testing.T) {
	r, store := newTestRouter(t, nil)

	w := do(r, http.MethodPost, "/api/properties", gin.H{
		"name": "Loft", "address": "1 Water St", "lat": 49.284, "lng": -123.109,
		"price": 2800, "bedrooms": 1, "bathrooms": 1, "propertyType": "apartment", "listingType": "rent",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, int64(4), decode[model.Listing](t, w).ID)
	assert.Len(t, store.listings, 4)

	w = do(r, http.MethodPost, "/api/properties", gin.H{
		"name": "Loft", "address": "1 Water St", "lat": 49.284, "lng": -123.109, "propertyType": "castle", "listingType": "rent",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMapBounds(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	w := do(r, http.MethodGet, "/api/properties/map-bounds?north=49.29&south=49.275&east=-123.10&west=-123.13", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[model.ViewportResponse](t, w)
	assert.Equal(t, 1, resp.Total)

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/properties/map-bounds?north=49.29", nil).Code)
}

func TestListingAmenities(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	w := do(r, http.MethodGet, "/api/properties/1/amenities", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[model.ListingAmenitiesResponse](t, w)
	assert.Equal(t, model.TravelWalking, resp.TransportMode)
	assert.Equal(t, 1, resp.Counts[model.CategoryPark])
	assert.Len(t, resp.CellBoundary, 5)

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/properties/1/amenities?transportMode=boat", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/properties/42/amenities", nil).Code)
}

func TestAsk(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	w := do(r, http.MethodPost, "/api/properties/1/ask", gin.H{"question": "Any parks nearby?"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[model.AskResponse](t, w)
	assert.NotEmpty(t, resp.Answer)
	assert.Empty(t, resp.NearbyPOIs)

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/properties/1/ask", gin.H{}).Code)
}

func TestCommuteCalculate(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	w := do(r, http.MethodPost, "/api/commute/calculate", gin.H{
		"workplace": gin.H{"lat": 49.2827, "lng": -123.1207}, "propertyIds": []int64{1, 77},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	commutes := decode[[]model.CommuteResult](t, w)
	require.Len(t, commutes, 2)
	assert.True(t, commutes[0].OK())
	assert.Equal(t, model.TravelTransit, commutes[0].Mode)
	assert.False(t, commutes[1].OK())
	assert.Equal(t, model.CommuteStatusNotFound, commutes[1].Status)

	w = do(r, http.MethodPost, "/api/commute/calculate", gin.H{"workplace": gin.H{"lat": 49.28, "lng": -123.12}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCommuteCalculate_MissingWorkplace(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	w := do(r, http.MethodPost, "/api/commute/calculate", gin.H{"propertyIds": []int64{1}})
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "Invalid request")
}

func TestCommuteBatchAndRoutes(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	w := do(r, http.MethodGet, "/api/commute/batch?workplaceLat=49.2827&workplaceLng=-123.1207&mode=driving&north=49.29&south=49.25&east=-123.09&west=-123.13", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	batch := decode[struct {
		Commutes []model.CommuteResult `json:"commutes"`
		Mode     model.TravelMode      `json:"mode"`
		Total    int                   `json:"total"`
	}](t, w)
	assert.Equal(t, model.TravelDriving, batch.Mode)
	assert.Equal(t, 3, batch.Total)

	w = do(r, http.MethodGet, "/api/commute/batch?workplaceLat=49.2827&workplaceLng=-123.1207&north=49.2&south=49.3&east=-123.09&west=-123.13", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, "south above north")

	w = do(r, http.MethodGet, "/api/commute/routes?originLat=49.28&originLng=-123.12&destLat=49.2827&destLng=-123.1207", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	routes := decode[model.RoutesResponse](t, w)
	assert.Empty(t, routes.Routes)
	assert.Equal(t, model.TravelTransit, routes.Mode)
}

func TestAmenities(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	w := do(r, http.MethodGet, "/api/amenities/nearby?lat=49.2800&lng=-123.1200", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	nearby := decode[model.NearbyAmenitiesResponse](t, w)
	assert.Equal(t, "c2b2q7", nearby.Cell)
	assert.Equal(t, 1, nearby.Counts[model.CategoryPark])

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/amenities/nearby?lat=x", nil).Code)

	w = do(r, http.MethodPost, "/api/amenities/batch", gin.H{"amenities": []gin.H{
		{"name": "Cafe", "type": "cafe", "lat": 49.28, "lng": -123.12, "sourceId": "a"},
	}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1, decode[model.AmenityBatchResponse](t, w).Inserted)

	w = do(r, http.MethodPost, "/api/amenities/batch", gin.H{"amenities": []gin.H{
		{"name": "Cafe", "type": "cafe", "lat": 49.28, "lng": -123.12, "sourceId": "a"},
		{"name": "Gym", "type": "gym", "lat": 49.28, "lng": -123.12, "sourceId": "bad"},
	}})
	require.Equal(t, http.StatusPartialContent, w.Code, w.Body.String())
	assert.Equal(t, 1, decode[model.AmenityBatchResponse](t, w).Failed)

	w = do(r, http.MethodPost, "/api/amenities/batch", gin.H{"amenities": []gin.H{
		{"name": "Zoo", "type": "zoo", "lat": 49.28, "lng": -123.12, "sourceId": "z"},
	}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
