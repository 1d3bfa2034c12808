package handler

import (
	"errors"
	"net/http"
	"strconv"

	"dwelligence/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/phuslu/log"
)

// respondError maps service errors onto HTTP statuses. Anything
// unclassified is a 500.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrParse):
		log.Error().Err(err).Str("path", c.FullPath()).Msg("unparseable completion output")
		c.JSON(status, gin.H{"error": "Failed to interpret the query"})
		return
	}

	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid property ID"})
		return 0, false
	}
	return id, true
}
