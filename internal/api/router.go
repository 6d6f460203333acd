package api

import (
	"github.com/fableforge/fableforge/internal/api/handlers"
	apimiddleware "github.com/fableforge/fableforge/internal/api/middleware"
	"github.com/fableforge/fableforge/internal/metrics"
	"github.com/gin-gonic/gin"
)

func SetupRouter(runner handlers.Runner, cloudwatch *metrics.Client, version string) *gin.Engine {
	router := gin.New()

	// Recovery middleware (must be first)
	router.Use(apimiddleware.RecoverWithSentry())

	// Sentry middleware for error tracking
	router.Use(apimiddleware.SentryMiddleware())

	// Request tracking and structured logging
	router.Use(apimiddleware.RequestTracking())

	// Health check
	router.GET("/health", handlers.HealthCheck)

	// Metrics endpoint
	metricsHandler := handlers.NewMetricsHandler(version)
	router.GET("/api/metrics", metricsHandler.GetMetrics)

	// Story pipeline
	v1 := router.Group("/api/v1")
	{
		storyHandler := handlers.NewStoryHandler(runner, cloudwatch)
		v1.POST("/stories", storyHandler.CreateStory)
	}

	return router
}
