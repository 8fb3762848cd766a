package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/fableink/fable_api/shared"
)

type AdminHandler struct {
	analyticsSvc ViewAnalyticsServiceInterface
	rateLimitSvc RateLimitServiceInterface
}

func NewAdminHandler(analyticsSvc ViewAnalyticsServiceInterface, rateLimitSvc RateLimitServiceInterface) *AdminHandler {
	return &AdminHandler{
		analyticsSvc: analyticsSvc,
		rateLimitSvc: rateLimitSvc,
	}
}

// @Summary View analytics summary
// @Description Aggregated view attempt statistics for the trailing 24 hours
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} shared.Response{data=dto.ViewAnalyticsSummary}
// @Router /api/v1/admin/views/summary [get]
func (h *AdminHandler) ViewsSummary(c *fiber.Ctx) error {
	return shared.ResponseJSON(c, http.StatusOK, "Success", h.analyticsSvc.Summarize())
}

// @Summary Rate limiter statistics
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} shared.Response{data=[]dto.RateLimiterStats}
// @Router /api/v1/admin/ratelimits [get]
func (h *AdminHandler) RateLimitStats(c *fiber.Ctx) error {
	return shared.ResponseJSON(c, http.StatusOK, "Success", h.rateLimitSvc.Stats())
}

// @Summary Reset rate limit state for a key
// @Description Clears limiter state for an identifier (e.g. an IP) across all limiters
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param key path string true "Identifier to clear"
// @Success 200 {object} shared.Response
// @Router /api/v1/admin/ratelimits/{key} [delete]
func (h *AdminHandler) ResetRateLimit(c *fiber.Ctx) error {
	key := c.Params("key")
	if key == "" {
		return shared.NewBadRequestError(nil, "Key is required")
	}

	h.rateLimitSvc.ResetKey(key)
	return shared.ResponseJSON(c, http.StatusOK, "Rate limit state cleared", nil)
}
