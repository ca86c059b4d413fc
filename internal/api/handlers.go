package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"suburbtrends/server/internal/cache"
	"suburbtrends/server/internal/collector"
	"suburbtrends/server/internal/stats"
)

const (
	defaultCategory = "HOUSES_TO_BUY"
	defaultLimit    = 50
)

type Handler struct {
	stats     *stats.Engine
	collector *collector.Collector
	cache     *cache.ResultCache
	logger    *logrus.Logger
}

func NewHandler(statsEngine *stats.Engine, c *collector.Collector, resultCache *cache.ResultCache, logger *logrus.Logger) *Handler {
	return &Handler{
		stats:     statsEngine,
		collector: c,
		cache:     resultCache,
		logger:    logger,
	}
}

func (h *Handler) category(c *gin.Context) string {
	if code := c.Query("category"); code != "" {
		return code
	}
	return defaultCategory
}

func (h *Handler) limit(c *gin.Context) int {
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return defaultLimit
}

func (h *Handler) GetRegionTotals(c *gin.Context) {
	category := h.category(c)
	limit := h.limit(c)

	key := cache.Key(category, "region-totals", strconv.Itoa(limit))
	if cached, ok := h.cache.Get(key); ok {
		c.JSON(http.StatusOK, cached)
		return
	}

	totals, err := h.stats.RegionTotals(category, limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get region totals")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get region totals"})
		return
	}

	h.cache.Set(key, totals)
	c.JSON(http.StatusOK, totals)
}

func (h *Handler) GetDistrictTotals(c *gin.Context) {
	regionID, err := strconv.ParseInt(c.Param("regionId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid region id"})
		return
	}

	category := h.category(c)
	limit := h.limit(c)

	key := cache.Key(category, "district-totals", c.Param("regionId"), strconv.Itoa(limit))
	if cached, ok := h.cache.Get(key); ok {
		c.JSON(http.StatusOK, cached)
		return
	}

	totals, err := h.stats.DistrictTotals(category, regionID, limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get district totals")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get district totals"})
		return
	}

	h.cache.Set(key, totals)
	c.JSON(http.StatusOK, totals)
}

func (h *Handler) GetSuburbTotals(c *gin.Context) {
	districtID, err := strconv.ParseInt(c.Param("districtId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid district id"})
		return
	}

	category := h.category(c)
	limit := h.limit(c)

	key := cache.Key(category, "suburb-totals", c.Param("districtId"), strconv.Itoa(limit))
	if cached, ok := h.cache.Get(key); ok {
		c.JSON(http.StatusOK, cached)
		return
	}

	totals, err := h.stats.SuburbTotals(category, districtID, limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get suburb totals")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get suburb totals"})
		return
	}

	h.cache.Set(key, totals)
	c.JSON(http.StatusOK, totals)
}

func (h *Handler) GetLocations(c *gin.Context) {
	category := h.category(c)
	limit := h.limit(c)
	level := c.DefaultQuery("level", "region")

	key := cache.Key(category, "locations", level, strconv.Itoa(limit))
	if cached, ok := h.cache.Get(key); ok {
		c.JSON(http.StatusOK, cached)
		return
	}

	totals, err := h.stats.LocationsWithFilters(category, level, limit)
	if errors.Is(err, stats.ErrInvalidLevel) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid level"})
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to get locations")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get locations"})
		return
	}

	h.cache.Set(key, totals)
	c.JSON(http.StatusOK, totals)
}

func (h *Handler) GetSummary(c *gin.Context) {
	category := h.category(c)

	key := cache.Key(category, "summary")
	if cached, ok := h.cache.Get(key); ok {
		c.JSON(http.StatusOK, cached)
		return
	}

	summary, err := h.stats.TotalsSummary(category)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get totals summary")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get totals summary"})
		return
	}

	h.cache.Set(key, summary)
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) GetHistory(c *gin.Context) {
	category := h.category(c)

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	key := cache.Key(category, "history", strconv.Itoa(limit))
	if cached, ok := h.cache.Get(key); ok {
		c.JSON(http.StatusOK, cached)
		return
	}

	points, err := h.stats.HistoricalSeries(category, limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get historical series")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get historical series"})
		return
	}

	h.cache.Set(key, points)
	c.JSON(http.StatusOK, points)
}

// TriggerCollection runs one collection cycle synchronously and returns the
// structured result. Intended for manual/maintenance use; the scheduler is
// the normal trigger.
func (h *Handler) TriggerCollection(c *gin.Context) {
	category := h.category(c)

	result := h.collector.Collect(c.Request.Context(), category)
	if !result.Success {
		c.JSON(http.StatusBadGateway, result)
		return
	}
	c.JSON(http.StatusOK, result)
}
