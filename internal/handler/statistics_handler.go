package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/gradebook-api/internal/dto"
	"github.com/noah-isme/gradebook-api/internal/middleware"
	"github.com/noah-isme/gradebook-api/pkg/response"
)

type statisticsService interface {
	Class(ctx context.Context) (*dto.StatisticsResponse, bool, error)
}

// StatisticsHandler exposes class statistics.
type StatisticsHandler struct {
	statistics statisticsService
}

// NewStatisticsHandler constructs the statistics handler.
func NewStatisticsHandler(statistics statisticsService) *StatisticsHandler {
	return &StatisticsHandler{statistics: statistics}
}

// Class godoc
// @Summary Class statistics
// @Description Class average, grade distribution and per-subject aggregates
// @Tags Statistics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /statistics [get]
func (h *StatisticsHandler) Class(c *gin.Context) {
	start := time.Now()
	stats, cacheHit, err := h.statistics.Class(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = make(map[string]interface{})
	}
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	response.JSON(c, http.StatusOK, stats, meta)
}
