package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"analyticsdash/api/metrics"
	"analyticsdash/api/middleware"
)

const apiVersion = "1.0.0"

// Pinger is a dependency checked by /healthz.
type Pinger func(ctx context.Context) error

type RouterDeps struct {
	Auth         *AuthHandlers
	Events       *EventHandlers
	Analytics    *AnalyticsHandlers
	Tokens       middleware.TokenValidator
	Metrics      *metrics.Metrics
	Registry     *prometheus.Registry
	CORSOrigins  []string
	HealthChecks map[string]Pinger
	Logger       *logrus.Logger
}

func NewRouter(d RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(d.Logger))
	r.Use(middleware.Metrics(d.Metrics))
	r.Use(middleware.CORSMiddleware(d.CORSOrigins))

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Analytics Dashboard API", "version": apiVersion})
	})
	r.GET("/healthz", healthHandler(d.HealthChecks, d.Logger))
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{})))

	api := r.Group("/api")
	{
		api.POST("/auth/login", d.Auth.Login)
		api.POST("/events", d.Events.TrackEvent)

		protected := api.Group("/")
		protected.Use(middleware.AuthRequired(d.Tokens, d.Logger))
		{
			protected.GET("/apps", d.Analytics.GetApps)
			protected.GET("/sessions/:session_id", d.Events.GetSession)

			analyticsGroup := protected.Group("/analytics")
			{
				analyticsGroup.GET("/summary", d.Analytics.GetSummary)
				analyticsGroup.GET("/realtime", d.Analytics.GetRealtime)
				analyticsGroup.GET("/:app_name/summary", d.Analytics.GetSummary)
				analyticsGroup.GET("/:app_name/realtime", d.Analytics.GetRealtime)
			}
		}
	}

	return r
}

// healthHandler reports each dependency as "ok" or "unavailable". Causes are logged only.
func healthHandler(checks map[string]Pinger, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		results := gin.H{}
		for name, ping := range checks {
			if err := ping(ctx); err != nil {
				status = http.StatusServiceUnavailable
				results[name] = "unavailable"
				logger.WithError(err).WithField("dependency", name).Error("Health check failed")
				continue
			}
			results[name] = "ok"
		}
		c.JSON(status, gin.H{"checks": results})
	}
}
