package handlers

import (
	"context"
	"net/http"
	"strconv"

	"lakra-backend/internal/services"

	"github.com/gin-gonic/gin"
)

type AnalyticsHandler struct {
	stats *services.StatsService
}

func NewAnalyticsHandler(stats *services.StatsService) *AnalyticsHandler {
	return &AnalyticsHandler{stats: stats}
}

func serve[T any](c *gin.Context, compute func(ctx context.Context) (T, error)) {
	v, err := compute(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func daysParam(c *gin.Context) int {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))
	return days
}

// UserGrowth godoc
// @Summary      New users per day
// @Tags         analytics
// @Produce      json
// @Security     BearerAuth
// @Param        days query int false "Window in days" default(30)
// @Success      200 {array} services.DayCount
// @Router       /api/admin/analytics/user-growth [get]
func (h *AnalyticsHandler) UserGrowth(c *gin.Context) {
	days := daysParam(c)
	serve(c, func(ctx context.Context) ([]services.DayCount, error) {
		return h.stats.UserGrowth(ctx, days)
	})
}

// DailyActivity godoc
// @Summary      Work done per day
// @Tags         analytics
// @Produce      json
// @Security     BearerAuth
// @Param        days query int false "Window in days" default(30)
// @Success      200 {array} services.DailyActivity
// @Router       /api/admin/analytics/daily-activity [get]
func (h *AnalyticsHandler) DailyActivity(c *gin.Context) {
	days := daysParam(c)
	serve(c, func(ctx context.Context) ([]services.DailyActivity, error) {
		return h.stats.DailyActivity(ctx, days)
	})
}

// ErrorDistribution godoc
// @Summary      Highlight error types
// @Tags         analytics
// @Produce      json
// @Security     BearerAuth
// @Success      200 {array} services.ErrorTypeCount
// @Router       /api/admin/analytics/error-distribution [get]
func (h *AnalyticsHandler) ErrorDistribution(c *gin.Context) {
	serve(c, h.stats.ErrorDistribution)
}

// LanguageActivity godoc
// @Summary      Activity per target language
// @Tags         analytics
// @Produce      json
// @Security     BearerAuth
// @Success      200 {array} services.LanguageActivity
// @Router       /api/admin/analytics/language-activity [get]
func (h *AnalyticsHandler) LanguageActivity(c *gin.Context) {
	serve(c, h.stats.LanguageActivity)
}

// UserRoles godoc
// @Summary      Users per role
// @Tags         analytics
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} services.UserRoles
// @Router       /api/admin/analytics/user-roles [get]
func (h *AnalyticsHandler) UserRoles(c *gin.Context) {
	serve(c, h.stats.UserRoles)
}

// QualityMetrics godoc
// @Summary      Average quality scores
// @Tags         analytics
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} services.QualityMetrics
// @Router       /api/admin/analytics/quality-metrics [get]
func (h *AnalyticsHandler) QualityMetrics(c *gin.Context) {
	serve(c, h.stats.QualityMetrics)
}
