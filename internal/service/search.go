package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dwelligence/internal/config"
	"dwelligence/internal/geo"
	"dwelligence/internal/model"
	"dwelligence/internal/repository"
	"dwelligence/internal/utils"

	"github.com/google/uuid"
	"github.com/phuslu/log"
)

// Pipeline stages reported through SearchEventCallback
const (
	StageParsing            = "parsing"
	StageThinking           = "thinking"
	StageContent            = "content"
	StageIntent             = "intent"
	StageNeedsClarification = "needs_clarification"
	StageFiltering          = "filtering"
	StageAmenityFiltering   = "amenity_filtering"
	StageCommuteEnriching   = "commute_enriching"
	StageRanking            = "ranking"
	StageDone               = "done"
)

const (
	clarificationQuestion = "How will you get to the places you want to be near? Walking, biking, transit or driving?"
	noMatchesMessage      = "No properties match your criteria"
	noAmenityMessage      = "No properties found near the requested amenities"
	degradedSummary       = "Showing all listings; the query could not be interpreted right now"
)

// SearchEventCallback is called for streaming search events
type SearchEventCallback func(event string, data any) error

// SearchService runs the natural-language search pipeline and the viewport
// query.
type SearchService struct {
	listings    ListingStore
	logs        SearchLogStore
	intent      *IntentParser
	amenities   *AmenityAggregator
	commutes    *CommuteService
	ranker      *Ranker
	cfg         config.SearchConfig
	commuteMode model.TravelMode
}

// NewSearchService creates a new search service
func NewSearchService(
	listings ListingStore,
	logs SearchLogStore,
	intentParser *IntentParser,
	amenities *AmenityAggregator,
	commutes *CommuteService,
	ranker *Ranker,
	cfg config.SearchConfig,
	commuteMode model.TravelMode,
) *SearchService {
	if !commuteMode.Valid() {
		commuteMode = model.TravelTransit
	}
	return &SearchService{
		listings:    listings,
		logs:        logs,
		intent:      intentParser,
		amenities:   amenities,
		commutes:    commutes,
		ranker:      ranker,
		cfg:         cfg,
		commuteMode: commuteMode,
	}
}

// Search performs a complete search with intent parsing, filtering, and ranking
func (s *SearchService) Search(ctx context.Context, req *model.SearchRequest) (*model.SearchResponse, error) {
	return s.SearchStream(ctx, req, nil)
}

// SearchStream is Search with every stage transition reported to callback.
// A callback error aborts the pipeline. The final response is returned, not
// emitted.
func (s *SearchService) SearchStream(ctx context.Context, req *model.SearchRequest, callback SearchEventCallback) (*model.SearchResponse, error) {
	startTime := time.Now()
	emit := func(event string, data any) error {
		if callback == nil {
			return nil
		}
		return callback(event, data)
	}

	if req.Workplace != nil && !req.Workplace.Valid() {
		return nil, validationError("workplace coordinates out of range: %s", *req.Workplace)
	}

	if err := emit(StageParsing, map[string]any{"status": "Parsing your query..."}); err != nil {
		return nil, err
	}

	intent, err := s.intent.ParseStream(ctx, req.Query, func(thinking, content string) error {
		if thinking != "" {
			return emit(StageThinking, map[string]any{"content": thinking})
		}
		if content != "" {
			return emit(StageContent, map[string]any{"content": content})
		}
		return nil
	})
	switch {
	case errors.Is(err, ErrUpstreamUnavailable):
		log.Warn().Err(err).Str("query", req.Query).Msg("intent parsing unavailable, searching without filters")
		intent = &model.SearchIntent{AmenityPreferences: []model.Category{}, Summary: degradedSummary}
	case err != nil:
		return nil, err
	}

	if m := model.TravelMode(req.TransportMode); m.Valid() {
		intent.TransportMode = &m
		intent.NeedsClarification = false
	}
	if err := emit(StageIntent, intent); err != nil {
		return nil, err
	}

	resp := &model.SearchResponse{
		Query:          req.Query,
		Interpretation: intent.Summary,
		Intent:         intent,
		Results:        []model.RankedCandidate{},
	}
	finish := func() (*model.SearchResponse, error) {
		resp.SearchID = uuid.NewString()
		resp.Took = time.Since(startTime).Milliseconds()
		s.logSearch(resp)
		return resp, nil
	}

	if intent.NeedsClarification {
		resp.NeedsClarity = true
		resp.ClarificationQuestion = clarificationQuestion
		resp.DefaultMode = model.TravelWalking
		if err := emit(StageNeedsClarification, map[string]any{"question": clarificationQuestion}); err != nil {
			return nil, err
		}
		resp.Took = time.Since(startTime).Milliseconds()
		return resp, nil
	}

	// Filtering
	if err := emit(StageFiltering, map[string]any{"status": "Searching listings..."}); err != nil {
		return nil, err
	}
	filter := intent.Filter()
	if req.Filters != nil {
		req.Filters.Apply(&filter)
	}
	filter.Limit = s.cfg.CandidateLimit

	listings, total, err := s.listings.SearchListings(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to search listings: %w", err)
	}
	log.Info().Str("query", req.Query).Int("matched", total).Int("candidates", len(listings)).Msg("listings filtered")
	if len(listings) == 0 {
		resp.Message = noMatchesMessage
		return finish()
	}

	cands := make([]model.RankedCandidate, len(listings))
	for i := range listings {
		cands[i] = model.RankedCandidate{Listing: listings[i]}
	}

	// Amenity filtering
	if len(intent.AmenityPreferences) > 0 {
		if err := emit(StageAmenityFiltering, map[string]any{"amenities": intent.AmenityPreferences}); err != nil {
			return nil, err
		}
		cands = s.filterByAmenities(ctx, cands, filter, intent)
		if len(cands) == 0 {
			resp.Message = noAmenityMessage
			return finish()
		}
	}

	// Commute enrichment
	if req.Workplace != nil {
		if err := emit(StageCommuteEnriching, map[string]any{"candidates": len(cands)}); err != nil {
			return nil, err
		}
		s.attachCommutes(ctx, cands, *req.Workplace, intent.Mode(s.commuteMode))
	}

	// Ranking
	if err := emit(StageRanking, map[string]any{"candidates": len(cands)}); err != nil {
		return nil, err
	}
	resp.TotalResults = len(cands)
	resp.Results, resp.RankedBy = s.ranker.Rank(ctx, cands, req.Query, req.Workplace, s.limit(req.MaxResults))

	return finish()
}

// filterByAmenities widens the candidate set to the bounding box of the
// current candidates and keeps those with at least one preferred amenity
// in their cell. A catalog failure leaves the candidates unfiltered.
func (s *SearchService) filterByAmenities(ctx context.Context, cands []model.RankedCandidate, filter model.ListingFilter, intent *model.SearchIntent) []model.RankedCandidate {
	mode := intent.Mode(model.TravelWalking)

	points := make([]geo.Point, len(cands))
	for i := range cands {
		points[i] = cands[i].Point()
	}
	if env, ok := geo.Envelope(points); ok {
		filter.Bounds = &env
		if widened, err := s.listings.FindListings(ctx, filter); err != nil {
			log.Warn().Err(err).Msg("bounding box query failed, keeping filtered candidates")
		} else if len(widened) > 0 {
			cands = make([]model.RankedCandidate, len(widened))
			for i := range widened {
				cands[i] = model.RankedCandidate{Listing: widened[i]}
			}
		}
	}

	listings := make([]model.Listing, len(cands))
	for i := range cands {
		listings[i] = cands[i].Listing
	}
	counts, err := s.amenities.CountsForListings(ctx, listings, mode)
	if err != nil {
		log.Warn().Err(err).Msg("amenity catalog unavailable, skipping amenity filter")
		return cands
	}

	kept := cands[:0]
	for _, c := range cands {
		c.AmenityCounts = counts[c.ID]
		if c.AmenityCounts.HasAny(intent.AmenityPreferences) {
			kept = append(kept, c)
		}
	}
	log.Info().Int("before", len(cands)).Int("after", len(kept)).
		Str("resolution", string(mode.Resolution())).Msg("amenity filter applied")
	return kept
}

// attachCommutes annotates cands in place. Failure leaves them without
// commutes, which sorts them last.
func (s *SearchService) attachCommutes(ctx context.Context, cands []model.RankedCandidate, destination geo.Point, mode model.TravelMode) {
	listings := make([]model.Listing, len(cands))
	for i := range cands {
		listings[i] = cands[i].Listing
	}
	results, err := s.commutes.CommutesFor(ctx, listings, destination, mode)
	if err != nil {
		log.Warn().Err(err).Int("candidates", len(cands)).Msg("commute enrichment failed")
		return
	}
	for i := range cands {
		r := results[i]
		cands[i].Commute = &r
	}
}

func (s *SearchService) limit(requested int) int {
	limit := requested
	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}
	if s.cfg.MaxLimit > 0 && limit > s.cfg.MaxLimit {
		limit = s.cfg.MaxLimit
	}
	return limit
}

// logSearch records the search without blocking the response.
func (s *SearchService) logSearch(resp *model.SearchResponse) {
	if s.logs == nil {
		return
	}
	entry := repository.SearchLog{
		SearchID:       resp.SearchID,
		Query:          resp.Query,
		Intent:         resp.Intent,
		ResultCount:    resp.TotalResults,
		ListingIDs:     make([]int64, len(resp.Results)),
		RankedBy:       resp.RankedBy,
		ResponseTimeMs: int(resp.Took),
	}
	for i, r := range resp.Results {
		entry.ListingIDs[i] = r.ID
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.logs.LogSearch(ctx, entry); err != nil {
			log.Error().Err(err).Str("search_id", entry.SearchID).Msg("failed to log search")
		}
	}()
}

// ListingsInBounds returns listings inside the viewport, annotated with
// amenity counts at the mode's resolution and, when a workplace is given,
// commutes. Ordered by the deterministic score.
func (s *SearchService) ListingsInBounds(ctx context.Context, req *model.ViewportRequest) (*model.ViewportResponse, error) {
	bounds := req.Bounds()
	if !bounds.Valid() {
		return nil, validationError("invalid bounds")
	}
	workplace := req.Workplace()
	if workplace != nil && !workplace.Valid() {
		return nil, validationError("workplace coordinates out of range: %s", *workplace)
	}
	mode := model.ParseTravelMode(req.TransportMode, model.TravelWalking)

	var filter model.ListingFilter
	req.SearchFilters.Apply(&filter)
	filter.Bounds = &bounds
	filter.Limit = s.cfg.BoundsLimit

	listings, err := s.listings.FindListings(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to load listings in bounds: %w", err)
	}

	cands := make([]model.RankedCandidate, len(listings))
	for i := range listings {
		cands[i] = model.RankedCandidate{Listing: listings[i]}
	}

	counts, err := s.amenities.CountsForListings(ctx, listings, mode)
	if err != nil {
		log.Warn().Err(err).Msg("amenity counts unavailable for viewport")
	} else {
		prefs := utils.ParseCategoryList(req.Amenities)
		kept := cands[:0]
		for _, c := range cands {
			c.AmenityCounts = counts[c.ID]
			if len(prefs) == 0 || c.AmenityCounts.HasAny(prefs) {
				kept = append(kept, c)
			}
		}
		cands = kept
	}

	if workplace != nil {
		s.attachCommutes(ctx, cands, *workplace, mode)
	}
	s.ranker.SortByScore(cands, workplace != nil)

	return &model.ViewportResponse{
		Properties:    cands,
		Total:         len(cands),
		TransportMode: mode,
		Resolution:    mode.Resolution(),
	}, nil
}

// LogFeedback logs user feedback/action
func (s *SearchService) LogFeedback(ctx context.Context, req *model.FeedbackRequest) error {
	found, err := s.logs.LogFeedback(ctx, req.SearchID, req.ListingID, req.Action)
	if err != nil {
		return fmt.Errorf("failed to log feedback: %w", err)
	}
	if !found {
		return fmt.Errorf("%w: search %s", ErrNotFound, req.SearchID)
	}
	return nil
}
