package handler

import (
	"net/http"

	"dwelligence/internal/model"
	"dwelligence/internal/service"

	"github.com/gin-gonic/gin"
)

// PropertyHandler handles listing endpoints
type PropertyHandler struct {
	properties *service.PropertyService
	search     *service.SearchService
	ask        *service.AskService
}

// NewPropertyHandler creates a new property handler
func NewPropertyHandler(properties *service.PropertyService, search *service.SearchService, ask *service.AskService) *PropertyHandler {
	return &PropertyHandler{properties: properties, search: search, ask: ask}
}

// List handles GET /api/properties
func (h *PropertyHandler) List(c *gin.Context) {
	var req model.ListPropertiesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, err)
		return
	}

	listings, total, err := h.properties.ListListings(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	if listings == nil {
		listings = []model.Listing{}
	}
	c.JSON(http.StatusOK, gin.H{"properties": listings, "total": total})
}

// Get handles GET /api/properties/:id
func (h *PropertyHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	listing, err := h.properties.GetListing(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, listing)
}

// Create handles POST /api/properties
func (h *PropertyHandler) Create(c *gin.Context) {
	var req model.CreateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	listing, err := h.properties.CreateListing(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, listing)
}

// MapBounds handles GET /api/properties/map-bounds
func (h *PropertyHandler) MapBounds(c *gin.Context) {
	var req model.ViewportRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.search.ListingsInBounds(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Amenities handles GET /api/properties/:id/amenities
func (h *PropertyHandler) Amenities(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	mode, ok := travelModeQuery(c, model.TravelWalking)
	if !ok {
		return
	}

	resp, err := h.properties.ListingAmenities(c.Request.Context(), id, mode)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Ask handles POST /api/properties/:id/ask
func (h *PropertyHandler) Ask(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req model.AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.ask.Ask(c.Request.Context(), id, req.Question)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// travelModeQuery reads ?transportMode=, rejecting unknown values.
func travelModeQuery(c *gin.Context, fallback model.TravelMode) (model.TravelMode, bool) {
	raw := c.Query("transportMode")
	if raw == "" {
		return fallback, true
	}
	m := model.TravelMode(raw)
	if !m.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid transportMode. Must be one of: walking, transit, bicycling, driving"})
		return "", false
	}
	return m, true
}
