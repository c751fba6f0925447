package main

import (
	"github.com/gin-gonic/gin"
	"github.com/mni-microservices/project-service/internal/config"
	"github.com/mni-microservices/project-service/internal/middleware"
	"github.com/mni-microservices/project-service/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, cfg *config.Config, svc *appServices) {
	// Middleware
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS())

	limit, limiter := middleware.RateLimit(cfg.RateLimit)
	svc.limiter = limiter

	r.GET("/health", svc.healthHandler.CheckHealth)
	r.GET("/metrics", svc.metricsHandler.Metrics)

	api := r.Group("/api", limit)
	{
		// Membership probe used by other services without a token
		api.GET("/projects/:id/members/:userId/exists", svc.memberHandler.Exists)

		// Saga progress for admin dashboards (token checked by the handler)
		api.GET("/events/sagas", svc.sseHandler.StreamSagaEvents)

		protected := api.Group("")
		protected.Use(middleware.AuthRequired(), middleware.AuditLog())
		{
			// Projects
			protected.GET("/projects", svc.projectHandler.List)
			protected.GET("/projects/:id", svc.projectHandler.GetByID)
			protected.POST("/projects", svc.projectHandler.Create)
			protected.PUT("/projects/:id", svc.projectHandler.Rename)
			protected.DELETE("/projects/:id", svc.projectHandler.Delete)
			protected.GET("/users/:userId/projects", svc.projectHandler.ListOfUser)

			// Members
			protected.GET("/projects/:id/members", svc.memberHandler.List)
			protected.GET("/projects/:id/members/:userId", svc.memberHandler.Get)
			protected.POST("/projects/:id/members/:userId", svc.memberHandler.Add)
			protected.PUT("/projects/:id/members/:userId", svc.memberHandler.UpdateRole)
			protected.DELETE("/projects/:id/members/:userId", svc.memberHandler.Delete)
		}

		admin := api.Group("/admin")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired())
		{
			admin.GET("/sagas", svc.sagaHandler.List)
		}
	}
}
