package service

import (
	"context"
	"fmt"

	"dwelligence/internal/geo"
	"dwelligence/internal/model"
)

// AmenityAggregator answers "what is near this listing" with cell joins
type AmenityAggregator struct {
	store AmenityStore
}

// NewAmenityAggregator creates a new aggregator
func NewAmenityAggregator(store AmenityStore) *AmenityAggregator {
	return &AmenityAggregator{store: store}
}

// AmenitiesNear returns per-category counts and the nearest amenity of each
// category sharing the listing's cell at the mode's resolution. A listing
// without a cell at that resolution gets an empty summary.
func (a *AmenityAggregator) AmenitiesNear(ctx context.Context, l *model.Listing, mode model.TravelMode) (*model.AmenitySummary, error) {
	res := mode.Resolution()
	cell := l.Cell(res)
	if cell == "" {
		return emptySummary(), nil
	}
	return a.summarizeCell(ctx, l.Point(), res, cell)
}

// AmenitiesAt is AmenitiesNear for an arbitrary point.
func (a *AmenityAggregator) AmenitiesAt(ctx context.Context, p geo.Point, mode model.TravelMode) (*model.AmenitySummary, string, error) {
	if !p.Valid() {
		return nil, "", validationError("coordinate out of range: %s", p)
	}
	res := mode.Resolution()
	cell := geo.CellID(p, res)
	summary, err := a.summarizeCell(ctx, p, res, cell)
	return summary, cell, err
}

func (a *AmenityAggregator) summarizeCell(ctx context.Context, origin geo.Point, res geo.Resolution, cell string) (*model.AmenitySummary, error) {
	points, err := a.store.AmenitiesInCell(ctx, res, cell)
	if err != nil {
		return nil, fmt.Errorf("failed to load amenities: %w", err)
	}
	return summarize(origin, points), nil
}

// summarize counts every point and keeps the closest of each category.
// points must be in insertion order; on equal distance the earlier wins.
func summarize(origin geo.Point, points []model.AmenityPoint) *model.AmenitySummary {
	counts := model.NewAmenityCounts()
	nearest := make(map[model.Category]model.NearestAmenity)

	for _, p := range points {
		if !p.Category.Valid() {
			continue
		}
		counts[p.Category]++

		d := geo.Distance(origin, p.Point())
		if cur, ok := nearest[p.Category]; !ok || d < cur.DistanceMeters {
			nearest[p.Category] = model.NearestAmenity{AmenityPoint: p, DistanceMeters: d}
		}
	}

	summary := &model.AmenitySummary{Counts: counts, Nearest: []model.NearestAmenity{}}
	for _, c := range model.Categories {
		if n, ok := nearest[c]; ok {
			summary.Nearest = append(summary.Nearest, n)
		}
	}
	return summary
}

func emptySummary() *model.AmenitySummary {
	return &model.AmenitySummary{Counts: model.NewAmenityCounts(), Nearest: []model.NearestAmenity{}}
}

// CountsForListings attaches category counts to many listings with one
// grouped query. Every listing gets an entry, zero-filled when its cell has
// no amenities or it has no cell.
func (a *AmenityAggregator) CountsForListings(ctx context.Context, listings []model.Listing, mode model.TravelMode) (map[int64]model.AmenityCounts, error) {
	res := mode.Resolution()

	seen := make(map[string]bool)
	var cells []string
	for i := range listings {
		if c := listings[i].Cell(res); c != "" && !seen[c] {
			seen[c] = true
			cells = append(cells, c)
		}
	}

	byCell, err := a.store.AmenityCountsByCell(ctx, res, cells)
	if err != nil {
		return nil, fmt.Errorf("failed to count amenities: %w", err)
	}

	out := make(map[int64]model.AmenityCounts, len(listings))
	for i := range listings {
		counts := model.NewAmenityCounts()
		for c, n := range byCell[listings[i].Cell(res)] {
			if c.Valid() {
				counts[c] = n
			}
		}
		out[listings[i].ID] = counts
	}
	return out, nil
}

// Ingest stores a batch of amenities, deduplicated by source id.
func (a *AmenityAggregator) Ingest(ctx context.Context, items []model.AmenityItem) model.AmenityBatchResponse {
	points := make([]model.AmenityPoint, len(items))
	for i := range items {
		points[i] = items[i].ToAmenity()
	}

	inserted, duplicates, errs := a.store.UpsertAmenities(ctx, points)
	return model.AmenityBatchResponse{
		Inserted:   inserted,
		Duplicates: duplicates,
		Failed:     len(items) - inserted - duplicates,
		Errors:     errs,
	}
}
