package v1

import (
	"net/http"

	"github.com/clavis-health/clavis/internal/domain"
	"github.com/clavis-health/clavis/pkg/auth"
	"github.com/clavis-health/clavis/pkg/metrics"
	"github.com/gin-gonic/gin"
)

// Handlers bundles everything the v1 router needs.
type Handlers struct {
	Auth       *AuthHandler
	Actions    *ActionHandler
	Patients   *PatientHandler
	Types      *CustomTypeHandler
	Analytics  *AnalyticsHandler
	Streams    *StreamHandler
	JWTManager *auth.JWTManager
	Metrics    *metrics.Collector
}

// RegisterRoutes mounts the full v1 API surface plus the unauthenticated
// health and metrics endpoints.
func RegisterRoutes(engine *gin.Engine, h Handlers) {
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(metrics.MetricsHandler()))

	api := engine.Group("/api/v1")
	api.Use(Instrument(h.Metrics))

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/login", h.Auth.Login)
		authGroup.POST("/refresh", h.Auth.Refresh)
	}

	protected := api.Group("")
	protected.Use(AuthRequired(h.JWTManager))
	{
		actions := protected.Group("/actions")
		{
			actions.POST("", h.Actions.Create)
			actions.GET("", h.Actions.List)
			actions.GET("/escalations", h.Actions.Escalations)
			actions.GET("/:id", h.Actions.Get)
			actions.POST("/:id/transition", h.Actions.Transition)
		}

		patients := protected.Group("/patients")
		{
			patients.POST("", h.Patients.Create)
			patients.GET("", h.Patients.List)
			patients.GET("/:id", h.Patients.Get)
			patients.POST("/:id/notes", h.Patients.CreateNote)
			patients.GET("/:id/notes", h.Patients.ListNotes)
			patients.GET("/:id/timeline", h.Actions.PatientTimeline)
			patients.GET("/:id/stream", h.Streams.PatientStream)
		}

		departments := protected.Group("/departments")
		{
			departments.GET("/:name/queue", h.Actions.DepartmentQueue)
			departments.GET("/:name/stream", h.Streams.DepartmentStream)
		}

		types := protected.Group("/custom-action-types")
		{
			types.POST("", h.Types.Create)
			types.GET("", h.Types.List)
			types.GET("/:id", h.Types.Get)
			types.PUT("/:id", h.Types.Update)
		}

		protected.GET("/status/stream", h.Streams.StatusStream)

		protected.GET("/analytics/report",
			RequireRoles(domain.RoleAdmin, domain.RoleDoctor),
			h.Analytics.Report,
		)
	}
}
