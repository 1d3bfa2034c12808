package handler

import (
	"github.com/gin-gonic/gin"
)

// Handlers bundles every API handler for registration.
type Handlers struct {
	Search   *SearchHandler
	Feedback *FeedbackHandler
	Property *PropertyHandler
	Commute  *CommuteHandler
	Amenity  *AmenityHandler
}

// Register mounts the API routes on api.
func (h *Handlers) Register(api *gin.RouterGroup) {
	// Search endpoints
	api.POST("/search/ai", h.Search.Search)
	api.POST("/search/ai/stream", h.Search.SearchStream)
	api.POST("/search/feedback", h.Feedback.Submit)

	// Listings
	api.GET("/properties", h.Property.List)
	api.POST("/properties", h.Property.Create)
	api.GET("/properties/map-bounds", h.Property.MapBounds)
	api.GET("/properties/:id", h.Property.Get)
	api.GET("/properties/:id/amenities", h.Property.Amenities)
	api.POST("/properties/:id/ask", h.Property.Ask)

	// Commutes
	api.POST("/commute/calculate", h.Commute.Calculate)
	api.GET("/commute/batch", h.Commute.Batch)
	api.GET("/commute/routes", h.Commute.Routes)

	// Amenity catalog
	api.GET("/amenities/nearby", h.Amenity.Nearby)
	api.POST("/amenities/batch", h.Amenity.BatchIngest)
}
