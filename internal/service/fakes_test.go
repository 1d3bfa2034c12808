package service

import (
	"context"
	"sort"
	"sync"

	"dwelligence/internal/geo"
	"dwelligence/internal/maps"
	"dwelligence/internal/model"
	"dwelligence/internal/repository"
)

type fakeCompleter struct {
	mu        sync.Mutex
	responses []string
	err       error
	prompts   []string
}

func (f *fakeCompleter) Complete(_ context.Context, _, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	if len(f.responses) == 0 {
		return "", nil
	}
	r := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return r, nil
}

func (f *fakeCompleter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

type streamingCompleter struct {
	fakeCompleter
	chunks []string
}

func (s *streamingCompleter) CompleteStream(ctx context.Context, system, prompt string, onDelta DeltaFunc) (string, error) {
	for _, c := range s.chunks {
		if err := onDelta("", c); err != nil {
			return "", err
		}
	}
	return s.Complete(ctx, system, prompt)
}

// memStore implements ListingStore, AmenityStore and SearchLogStore in
// memory. Listing filters honour prices, bedrooms, bounds and ids.
type memStore struct {
	mu        sync.Mutex
	listings  []model.Listing
	amenities []model.AmenityPoint
	logs      []repository.SearchLog
	feedback  map[string]int
	amenErr   error
	searchErr error
	logged    chan struct{}
}

func newMemStore() *memStore {
	return &memStore{feedback: make(map[string]int), logged: make(chan struct{}, 16)}
}

func (m *memStore) addListing(id int64, lat, lng, price float64, bedrooms int) {
	l := model.Listing{
		ID: id, Name: "Listing", Address: "Addr", Lat: lat, Lng: lng, Price: price,
		Bedrooms: bedrooms, Bathrooms: 1,
		PropertyType: model.PropertyTypeApartment, ListingType: model.ListingTypeRent,
	}
	l.AssignCells()
	m.listings = append(m.listings, l)
}

func (m *memStore) addAmenity(id int64, category model.Category, lat, lng float64) {
	a := model.AmenityPoint{ID: id, Name: string(category), Category: category, Lat: lat, Lng: lng}
	a.AssignCells()
	m.amenities = append(m.amenities, a)
}

func (m *memStore) matches(l *model.Listing, f model.ListingFilter) bool {
	if f.MinPrice != nil && l.Price < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && l.Price > *f.MaxPrice {
		return false
	}
	if f.MinBedrooms != nil && l.Bedrooms < *f.MinBedrooms {
		return false
	}
	if f.MaxBedrooms != nil && l.Bedrooms > *f.MaxBedrooms {
		return false
	}
	if f.Bounds != nil && !f.Bounds.Contains(l.Point()) {
		return false
	}
	if len(f.IDs) > 0 {
		found := false
		for _, id := range f.IDs {
			if id == l.ID {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (m *memStore) SearchListings(ctx context.Context, f model.ListingFilter) ([]model.Listing, int, error) {
	if m.searchErr != nil {
		return nil, 0, m.searchErr
	}
	out, _ := m.FindListings(ctx, model.ListingFilter{
		MinPrice: f.MinPrice, MaxPrice: f.MaxPrice, MinBedrooms: f.MinBedrooms,
		MaxBedrooms: f.MaxBedrooms, Bounds: f.Bounds, IDs: f.IDs,
	})
	total := len(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, total, nil
}

func (m *memStore) FindListings(_ context.Context, f model.ListingFilter) ([]model.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Listing
	for i := range m.listings {
		if m.matches(&m.listings[i], f) {
			out = append(out, m.listings[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Price != out[j].Price {
			return out[i].Price < out[j].Price
		}
		return out[i].ID < out[j].ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *memStore) GetListingByID(_ context.Context, id int64) (*model.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.listings {
		if m.listings[i].ID == id {
			l := m.listings[i]
			return &l, nil
		}
	}
	return nil, nil
}

func (m *memStore) CreateListing(_ context.Context, l *model.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.ID = int64(len(m.listings) + 1)
	m.listings = append(m.listings, *l)
	return nil
}

func (m *memStore) AmenitiesInCell(_ context.Context, res geo.Resolution, cell string) ([]model.AmenityPoint, error) {
	if m.amenErr != nil {
		return nil, m.amenErr
	}
	var out []model.AmenityPoint
	for _, a := range m.amenities {
		if geo.CellID(a.Point(), res) == cell {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) AmenityCountsByCell(_ context.Context, res geo.Resolution, cells []string) (map[string]model.AmenityCounts, error) {
	if m.amenErr != nil {
		return nil, m.amenErr
	}
	want := make(map[string]bool, len(cells))
	for _, c := range cells {
		want[c] = true
	}
	out := make(map[string]model.AmenityCounts)
	for _, a := range m.amenities {
		c := geo.CellID(a.Point(), res)
		if !want[c] {
			continue
		}
		if out[c] == nil {
			out[c] = model.AmenityCounts{}
		}
		out[c][a.Category]++
	}
	return out, nil
}

func (m *memStore) UpsertAmenities(_ context.Context, items []model.AmenityPoint) (int, int, []string) {
	seen := make(map[string]bool)
	for _, a := range m.amenities {
		seen[a.SourceID] = true
	}
	inserted, duplicates := 0, 0
	for _, a := range items {
		if seen[a.SourceID] {
			duplicates++
			continue
		}
		seen[a.SourceID] = true
		a.ID = int64(len(m.amenities) + 1)
		a.AssignCells()
		m.amenities = append(m.amenities, a)
		inserted++
	}
	return inserted, duplicates, nil
}

func (m *memStore) LogSearch(_ context.Context, entry repository.SearchLog) error {
	m.mu.Lock()
	m.logs = append(m.logs, entry)
	m.mu.Unlock()
	m.logged <- struct{}{}
	return nil
}

func (m *memStore) LogFeedback(_ context.Context, searchID string, _ int64, _ string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.logs {
		if l.SearchID == searchID {
			m.feedback[searchID]++
			return true, nil
		}
	}
	return false, nil
}

// fakeMatrix answers with a fixed duration per origin latitude and counts
// upstream calls.
type fakeMatrix struct {
	mu        sync.Mutex
	calls     int
	origins   [][]geo.Point
	durations map[float64]int
	statuses  map[float64]string
	err       error
}

func (f *fakeMatrix) DistanceMatrix(ctx context.Context, origins []geo.Point, _ geo.Point, _ model.TravelMode) ([]maps.Element, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.origins = append(f.origins, origins)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	out := make([]maps.Element, len(origins))
	for i, o := range origins {
		if s, ok := f.statuses[o.Lat]; ok {
			out[i] = maps.Element{Status: s}
			continue
		}
		secs := f.durations[o.Lat]
		if secs == 0 {
			secs = 600
		}
		out[i] = maps.Element{
			Status:          maps.StatusOK,
			DurationSeconds: secs,
			DurationText:    "x mins",
			DistanceMeters:  secs * 10,
			DistanceText:    "x km",
		}
	}
	return out, nil
}

func (f *fakeMatrix) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
