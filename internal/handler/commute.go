package handler

import (
	"net/http"

	"dwelligence/internal/model"
	"dwelligence/internal/service"

	"github.com/gin-gonic/gin"
)

// CommuteHandler serves travel-time lookups
type CommuteHandler struct {
	commutes    *service.CommuteService
	defaultMode model.TravelMode
	boundsLimit int
}

// NewCommuteHandler creates a new commute handler
func NewCommuteHandler(commutes *service.CommuteService, defaultMode model.TravelMode, boundsLimit int) *CommuteHandler {
	return &CommuteHandler{commutes: commutes, defaultMode: defaultMode, boundsLimit: boundsLimit}
}

// Calculate handles POST /api/commute/calculate
func (h *CommuteHandler) Calculate(c *gin.Context) {
	var req model.CommuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	mode := model.ParseTravelMode(string(req.Mode), h.defaultMode)

	results, err := h.commutes.BatchCommutes(c.Request.Context(), req.PropertyIDs, *req.Workplace, mode)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

// Batch handles GET /api/commute/batch
func (h *CommuteHandler) Batch(c *gin.Context) {
	var q model.CommuteBatchQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	mode := model.ParseTravelMode(q.Mode, h.defaultMode)

	results, err := h.commutes.CommutesInBounds(c.Request.Context(), q.Bounds(), q.Workplace(), mode, h.boundsLimit)
	if err != nil {
		respondError(c, err)
		return
	}
	if results == nil {
		results = []model.CommuteResult{}
	}
	c.JSON(http.StatusOK, gin.H{"commutes": results, "mode": mode, "total": len(results)})
}

// Routes handles GET /api/commute/routes
func (h *CommuteHandler) Routes(c *gin.Context) {
	var q model.RoutesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	mode := model.ParseTravelMode(q.Mode, h.defaultMode)

	c.JSON(http.StatusOK, h.commutes.Routes(c.Request.Context(), q.Origin(), q.Destination(), mode))
}
