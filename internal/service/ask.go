package service

import (
	"context"
	"fmt"
	"strings"

	"dwelligence/internal/model"

	"github.com/phuslu/log"
)

const (
	askRadiusMeters = 1500
	askMaxPlaces    = 10
	askFallback     = "Sorry, I couldn't answer that right now. Please try again later."
)

const askSystemPrompt = `You are a helpful neighbourhood guide for people looking at a home. Answer briefly and only from the places provided. Cite places by their [n] number.`

// AskService answers free-text questions about a listing's surroundings
type AskService struct {
	listings  ListingStore
	places    PlacesFinder
	completer Completer
}

// NewAskService creates a new ask service. places and completer may be nil.
func NewAskService(listings ListingStore, places PlacesFinder, completer Completer) *AskService {
	return &AskService{listings: listings, places: places, completer: completer}
}

// Ask looks up places matching the question around the listing and has the
// completer answer from them. Lookup and completion failures degrade to an
// empty place list and a canned answer respectively.
func (s *AskService) Ask(ctx context.Context, listingID int64, question string) (*model.AskResponse, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, validationError("question is required")
	}

	l, err := s.listings.GetListingByID(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("failed to load listing: %w", err)
	}
	if l == nil {
		return nil, fmt.Errorf("%w: listing %d", ErrNotFound, listingID)
	}

	resp := &model.AskResponse{NearbyPOIs: []model.Place{}}
	if s.places != nil {
		places, err := s.places.NearbyPlaces(ctx, l.Point(), question, askRadiusMeters, askMaxPlaces)
		if err != nil {
			log.Warn().Err(err).Int64("listing_id", listingID).Msg("nearby places lookup failed")
		} else {
			resp.NearbyPOIs = places
		}
	}

	if s.completer == nil {
		resp.Answer = askFallback
		return resp, nil
	}
	answer, err := s.completer.Complete(ctx, askSystemPrompt, askPrompt(l, question, resp.NearbyPOIs))
	if err != nil || strings.TrimSpace(answer) == "" {
		log.Warn().Err(err).Int64("listing_id", listingID).Msg("ask completion failed")
		resp.Answer = askFallback
		return resp, nil
	}
	resp.Answer = strings.TrimSpace(answer)
	return resp, nil
}

func askPrompt(l *model.Listing, question string, places []model.Place) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Home: %s, %s (%d bed, %s)\n\n", l.Name, l.Address, l.Bedrooms, l.PropertyType)
	if len(places) == 0 {
		b.WriteString("No nearby places were found.\n")
	} else {
		b.WriteString("Nearby places:\n")
		for i, p := range places {
			fmt.Fprintf(&b, "[%d] %s, %s (%.0f m away", i+1, p.Name, p.Address, p.Distance)
			if p.Rating > 0 {
				fmt.Fprintf(&b, ", rated %.1f", p.Rating)
			}
			b.WriteString(")\n")
		}
	}
	fmt.Fprintf(&b, "\nQuestion: %s", question)
	return b.String()
}
