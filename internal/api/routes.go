package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/irfndi/stockcast/internal/api/handlers"
	"github.com/irfndi/stockcast/internal/metrics"
	"github.com/irfndi/stockcast/internal/middleware"
	"github.com/irfndi/stockcast/internal/services"
)

// Dependencies are the services the HTTP layer is built on.
type Dependencies struct {
	Analysis       *services.AnalysisService
	Checkers       map[string]handlers.HealthChecker
	AllowedOrigins []string
	ServiceName    string
	Version        string
	Logger         *logrus.Logger
}

// NewRouter creates the engine with the middleware chain and every route registered.
func NewRouter(deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		otelgin.Middleware(deps.ServiceName),
		middleware.RequestID(),
		middleware.RequestMetrics(),
		middleware.RequestLogger(deps.Logger),
		cors.New(corsConfig(deps.AllowedOrigins)),
	)
	SetupRoutes(router, deps)
	return router
}

func corsConfig(origins []string) cors.Config {
	config := cors.DefaultConfig()
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = origins
	}
	config.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	config.AllowHeaders = append(config.AllowHeaders, middleware.RequestIDHeader)
	config.ExposeHeaders = []string{middleware.RequestIDHeader}
	config.MaxAge = 12 * time.Hour
	return config
}

func SetupRoutes(router *gin.Engine, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler(deps.Checkers, deps.Analysis.Predictions().Guard(), deps.Analysis.SourceName(), deps.Version)
	analysisHandler := handlers.NewAnalysisHandler(deps.Analysis)
	predictionHandler := handlers.NewPredictionHandler(deps.Analysis)
	barsHandler := handlers.NewBarsHandler(deps.Analysis)

	router.GET("/health", healthHandler.HealthCheck)
	router.GET("/ready", healthHandler.ReadinessCheck)
	router.GET("/live", healthHandler.LivenessCheck)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		v1.GET("/stock/:symbol", analysisHandler.GetStock)
		v1.POST("/analysis", analysisHandler.PostAnalysis)

		v1.GET("/predict/:symbol", predictionHandler.GetPrediction)
		v1.POST("/predict", predictionHandler.PostPrediction)

		v1.PUT("/bars/:symbol", barsHandler.PutBars)
	}
}
