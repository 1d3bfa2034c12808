package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"dwelligence/internal/model"
	"dwelligence/internal/utils"

	"github.com/phuslu/log"
)

const intentSystemPrompt = `You are a real estate search assistant. You turn natural language housing queries into structured search parameters and answer with a single JSON object only.`

const intentPromptTemplate = `Parse this natural language query into structured search parameters.

Query: %q

Available listing attributes:
- price (number)
- bedrooms (number)
- bathrooms (number)
- property_type (apartment, house)
- listing_type (rent, sale)
- amenity_types: %s

Return ONLY a JSON object with exactly these fields:
{
  "priceRange": { "min": number or null, "max": number or null },
  "bedrooms": { "min": number or null, "max": number or null },
  "bathrooms": { "min": number or null, "max": number or null },
  "propertyType": "apartment" | "house" | null,
  "listingType": "rent" | "sale" | null,
  "amenityPreferences": [strings from amenity_types],
  "commutePreference": string or null (e.g. "short", "walkable", "transit accessible"),
  "transportMode": "walking" | "bicycling" | "driving" | "transit" | null,
  "needsTransportModeClarity": boolean,
  "summary": "one sentence interpretation of the query"
}

Rules:
- An exact count ("2 bedroom") sets min and max to that number
- A count with "+" ("2+ bedrooms") sets only min
- "under $2000" sets only the max price, "over $1500" sets only the min price
- Only use amenity types from the list
- needsTransportModeClarity is true ONLY when the query mentions proximity but not how the user will travel
- No markdown, no explanations, no extra fields

Example:
Query: "2 bedroom apartment near parks under $2500"
{"priceRange":{"min":null,"max":2500},"bedrooms":{"min":2,"max":2},"bathrooms":{"min":null,"max":null},"propertyType":"apartment","listingType":null,"amenityPreferences":["park"],"commutePreference":null,"transportMode":null,"needsTransportModeClarity":true,"summary":"Looking for 2-bedroom apartments under $2,500 near parks"}`

// proximityPattern matches wording that asks for something "near" without
// saying how the user gets there.
var proximityPattern = regexp.MustCompile(`(?i)\b(near|nearby|close to|next to|walkable|walking distance|steps from|around the corner)\b`)

// wireRange and wireIntent mirror the completion's JSON shape exactly so
// strict decoding rejects anything else.
type wireRange struct {
	Min *float64 `json:"min"`
	Max *float64 `json:"max"`
}

type wireIntent struct {
	PriceRange                *wireRange `json:"priceRange"`
	Bedrooms                  *wireRange `json:"bedrooms"`
	Bathrooms                 *wireRange `json:"bathrooms"`
	PropertyType              *string    `json:"propertyType"`
	ListingType               *string    `json:"listingType"`
	AmenityPreferences        []string   `json:"amenityPreferences"`
	CommutePreference         *string    `json:"commutePreference"`
	TransportMode             *string    `json:"transportMode"`
	NeedsTransportModeClarity bool       `json:"needsTransportModeClarity"`
	Summary                   string     `json:"summary"`
}

// IntentParser turns free-text queries into a SearchIntent using a completer
type IntentParser struct {
	completer Completer
}

// NewIntentParser creates a new intent parser
func NewIntentParser(completer Completer) *IntentParser {
	return &IntentParser{completer: completer}
}

// Parse interprets query. A provider failure is ErrUpstreamUnavailable and
// malformed output is a *ParseError.
func (p *IntentParser) Parse(ctx context.Context, query string) (*model.SearchIntent, error) {
	return p.ParseStream(ctx, query, nil)
}

// ParseStream is Parse with partial completion output forwarded to onDelta
// when the completer supports streaming.
func (p *IntentParser) ParseStream(ctx context.Context, query string, onDelta DeltaFunc) (*model.SearchIntent, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, validationError("query is required")
	}
	if p.completer == nil {
		return nil, upstreamError("intent parsing", fmt.Errorf("no completion provider configured"))
	}

	prompt := fmt.Sprintf(intentPromptTemplate, query, categoryList())

	var raw string
	var err error
	if sc, ok := p.completer.(StreamCompleter); ok && onDelta != nil {
		raw, err = sc.CompleteStream(ctx, intentSystemPrompt, prompt, onDelta)
	} else {
		raw, err = p.completer.Complete(ctx, intentSystemPrompt, prompt)
	}
	if err != nil {
		return nil, upstreamError("intent parsing", err)
	}

	intent, err := decodeIntent(raw, query)
	if err != nil {
		return nil, err
	}

	log.Debug().Str("query", query).
		Int("amenities", len(intent.AmenityPreferences)).
		Bool("needs_clarity", intent.NeedsClarification).
		Msg("query interpreted")
	return intent, nil
}

// decodeIntent validates the completion output and applies the
// clarification rule against the raw query text.
func decodeIntent(raw, query string) (*model.SearchIntent, error) {
	var w wireIntent
	if err := utils.DecodeStrict(raw, &w); err != nil {
		return nil, &ParseError{Content: raw, Err: err}
	}

	intent := &model.SearchIntent{
		AmenityPreferences: utils.ParseCategories(w.AmenityPreferences),
		CommutePreference:  nonEmpty(w.CommutePreference),
		Summary:            strings.TrimSpace(w.Summary),
	}

	var err error
	if intent.PriceRange, err = toRange("priceRange", w.PriceRange); err != nil {
		return nil, &ParseError{Content: raw, Err: err}
	}
	if intent.Bedrooms, err = toRange("bedrooms", w.Bedrooms); err != nil {
		return nil, &ParseError{Content: raw, Err: err}
	}
	if intent.Bathrooms, err = toRange("bathrooms", w.Bathrooms); err != nil {
		return nil, &ParseError{Content: raw, Err: err}
	}

	if v := nonEmpty(w.PropertyType); v != nil {
		t := strings.ToLower(*v)
		if !model.ValidPropertyType(t) {
			return nil, &ParseError{Content: raw, Err: fmt.Errorf("unknown propertyType %q", *v)}
		}
		intent.PropertyType = &t
	}
	if v := nonEmpty(w.ListingType); v != nil {
		t := strings.ToLower(*v)
		if !model.ValidListingType(t) {
			return nil, &ParseError{Content: raw, Err: fmt.Errorf("unknown listingType %q", *v)}
		}
		intent.ListingType = &t
	}
	if v := nonEmpty(w.TransportMode); v != nil {
		m := model.TravelMode(strings.ToLower(*v))
		if !m.Valid() {
			return nil, &ParseError{Content: raw, Err: fmt.Errorf("unknown transportMode %q", *v)}
		}
		intent.TransportMode = &m
	}

	// Proximity wording only matters when it points at an amenity.
	amenityProximity := len(intent.AmenityPreferences) > 0 && proximityPattern.MatchString(query)
	intent.NeedsClarification = intent.TransportMode == nil &&
		(w.NeedsTransportModeClarity || amenityProximity)

	if intent.Summary == "" {
		intent.Summary = "Searching for: " + query
	}
	return intent, nil
}

func toRange(field string, r *wireRange) (model.Range, error) {
	if r == nil {
		return model.Range{}, nil
	}
	if (r.Min != nil && *r.Min < 0) || (r.Max != nil && *r.Max < 0) {
		return model.Range{}, fmt.Errorf("%s must not be negative", field)
	}
	if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
		return model.Range{}, fmt.Errorf("%s min %v exceeds max %v", field, *r.Min, *r.Max)
	}
	return model.Range{Min: r.Min, Max: r.Max}, nil
}

func nonEmpty(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func categoryList() string {
	names := make([]string, len(model.Categories))
	for i, c := range model.Categories {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}
