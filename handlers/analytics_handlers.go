// api/handlers/analytics_handlers.go
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"analyticsdash/api/analytics"
	"analyticsdash/api/models"
)

type Aggregator interface {
	Summary(ctx context.Context, q analytics.SummaryQuery) (*models.Summary, error)
	Realtime(ctx context.Context, q analytics.RealtimeQuery) (*models.Realtime, error)
	Apps(ctx context.Context) ([]models.AppInfo, error)
}

type AnalyticsHandlers struct {
	Aggregator Aggregator
	log        *logrus.Logger
}

func NewAnalyticsHandlers(agg Aggregator, logger *logrus.Logger) *AnalyticsHandlers {
	return &AnalyticsHandlers{Aggregator: agg, log: logger}
}

// appName prefers the path segment of /api/analytics/:app_name/... over the query string.
func appName(c *gin.Context) string {
	if name := c.Param("app_name"); name != "" {
		return name
	}
	return c.Query("app_name")
}

func (h *AnalyticsHandlers) GetSummary(c *gin.Context) {
	q := analytics.SummaryQuery{
		StartDate: c.Query("start_date"),
		EndDate:   c.Query("end_date"),
		AppName:   appName(c),
		Domain:    c.Query("domain"),
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	summary, err := h.Aggregator.Summary(ctx, q)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

func (h *AnalyticsHandlers) GetRealtime(c *gin.Context) {
	q := analytics.RealtimeQuery{
		AppName: appName(c),
		Domain:  c.Query("domain"),
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	realtime, err := h.Aggregator.Realtime(ctx, q)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, realtime)
}

func (h *AnalyticsHandlers) GetApps(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	apps, err := h.Aggregator.Apps(ctx)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"apps": apps})
}
