package handler

import (
	"net/http"
	"strconv"

	"dwelligence/internal/geo"
	"dwelligence/internal/model"
	"dwelligence/internal/service"

	"github.com/gin-gonic/gin"
)

// AmenityHandler serves the amenity catalog
type AmenityHandler struct {
	properties *service.PropertyService
}

// NewAmenityHandler creates a new amenity handler
func NewAmenityHandler(properties *service.PropertyService) *AmenityHandler {
	return &AmenityHandler{properties: properties}
}

// Nearby handles GET /api/amenities/nearby
func (h *AmenityHandler) Nearby(c *gin.Context) {
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
	if errLat != nil || errLng != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lat and lng are required numbers"})
		return
	}
	mode, ok := travelModeQuery(c, model.TravelWalking)
	if !ok {
		return
	}

	resp, err := h.properties.NearbyAmenities(c.Request.Context(), geo.Point{Lat: lat, Lng: lng}, mode)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// BatchIngest handles POST /api/amenities/batch. Partial success answers
// 206 with the per-item errors.
func (h *AmenityHandler) BatchIngest(c *gin.Context) {
	var req model.AmenityBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp := h.properties.IngestAmenities(c.Request.Context(), req.Amenities)
	status := http.StatusOK
	if resp.Failed > 0 || len(resp.Errors) > 0 {
		status = http.StatusPartialContent
	}
	c.JSON(status, resp)
}
