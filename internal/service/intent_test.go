package service

import (
	"context"
	"errors"
	"testing"

	"dwelligence/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const parksIntent = `{"priceRange":{"min":null,"max":2500},"bedrooms":{"min":2,"max":2},"bathrooms":{"min":null,"max":null},"propertyType":"apartment","listingType":null,"amenityPreferences":["parks"],"commutePreference":null,"transportMode":null,"needsTransportModeClarity":true,"summary":"2-bed apartments near parks"}`

func TestIntentParser_Parse(t *testing.T) {
	c := &fakeCompleter{responses: []string{parksIntent}}
	p := NewIntentParser(c)

	intent, err := p.Parse(context.Background(), "2 bed apartment near parks under $2500")
	require.NoError(t, err)

	require.NotNil(t, intent.PriceRange.Max)
	assert.Equal(t, 2500.0, *intent.PriceRange.Max)
	assert.Nil(t, intent.PriceRange.Min)
	assert.Equal(t, 2.0, *intent.Bedrooms.Min)
	assert.Equal(t, model.PropertyTypeApartment, *intent.PropertyType)
	assert.Nil(t, intent.ListingType)
	assert.Equal(t, []model.Category{model.CategoryPark}, intent.AmenityPreferences)
	assert.True(t, intent.NeedsClarification)
	assert.Contains(t, c.prompts[0], "transit_station")
}

func TestIntentParser_CodeFences(t *testing.T) {
	raw := "```json\n" + `{"priceRange":{"min":null,"max":null},"bedrooms":{"min":null,"max":null},"bathrooms":{"min":null,"max":null},"propertyType":null,"listingType":"rent","amenityPreferences":[],"commutePreference":"short","transportMode":"Transit","needsTransportModeClarity":false,"summary":""}` + "\n```"
	p := NewIntentParser(&fakeCompleter{responses: []string{raw}})

	intent, err := p.Parse(context.Background(), "rentals with a short transit commute")
	require.NoError(t, err)
	require.NotNil(t, intent.TransportMode)
	assert.Equal(t, model.TravelTransit, *intent.TransportMode)
	assert.Equal(t, "rent", *intent.ListingType)
	assert.Equal(t, "short", *intent.CommutePreference)
	assert.False(t, intent.NeedsClarification)
	assert.Equal(t, "Searching for: rentals with a short transit commute", intent.Summary)
}

func TestIntentParser_ClarificationFromWording(t *testing.T) {
	raw := `{"priceRange":null,"bedrooms":null,"bathrooms":null,"propertyType":null,"listingType":null,"amenityPreferences":["cafe"],"commutePreference":null,"transportMode":null,"needsTransportModeClarity":false,"summary":"cafes"}`
	p := NewIntentParser(&fakeCompleter{responses: []string{raw, raw}})

	intent, err := p.Parse(context.Background(), "homes close to cafes")
	require.NoError(t, err)
	assert.True(t, intent.NeedsClarification)

	intent, err = p.Parse(context.Background(), "homes with cafes")
	require.NoError(t, err)
	assert.False(t, intent.NeedsClarification)
}

func TestIntentParser_ProximityWithoutAmenity(t *testing.T) {
	raw := `{"priceRange":{"min":null,"max":3000},"bedrooms":null,"bathrooms":null,"propertyType":"house","listingType":null,"amenityPreferences":[],"commutePreference":null,"transportMode":null,"needsTransportModeClarity":false,"summary":"houses near downtown"}`
	p := NewIntentParser(&fakeCompleter{responses: []string{raw}})

	intent, err := p.Parse(context.Background(), "house near downtown under 3000")
	require.NoError(t, err)
	assert.Empty(t, intent.AmenityPreferences)
	assert.False(t, intent.NeedsClarification)
}

func TestIntentParser_ParseErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "I could not understand that"},
		{"unknown field", `{"summary":"x","confidence":0.9}`},
		{"bad property type", `{"propertyType":"castle","summary":"x"}`},
		{"bad mode", `{"transportMode":"teleport","summary":"x"}`},
		{"inverted range", `{"priceRange":{"min":3000,"max":1000},"summary":"x"}`},
		{"negative", `{"bedrooms":{"min":-1,"max":null},"summary":"x"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewIntentParser(&fakeCompleter{responses: []string{tt.raw}})
			_, err := p.Parse(context.Background(), "anything")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrParse)

			var pe *ParseError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.raw, pe.Content)
		})
	}
}

func TestIntentParser_UpstreamAndValidation(t *testing.T) {
	p := NewIntentParser(&fakeCompleter{err: errors.New("quota exceeded")})
	_, err := p.Parse(context.Background(), "a house")
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)

	_, err = p.Parse(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewIntentParser(nil).Parse(context.Background(), "a house")
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
}

func TestIntentParser_ParseStream(t *testing.T) {
	c := &streamingCompleter{
		fakeCompleter: fakeCompleter{responses: []string{parksIntent}},
		chunks:        []string{`{"priceRange"`, `...}`},
	}
	p := NewIntentParser(c)

	var got []string
	intent, err := p.ParseStream(context.Background(), "near parks", func(_, content string) error {
		got = append(got, content)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, c.chunks, got)
	assert.True(t, intent.NeedsClarification)
}
