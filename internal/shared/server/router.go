package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"chart-qa-backend/internal/chartqa"
	"chart-qa-backend/internal/documents"
	"chart-qa-backend/internal/extract"
	"chart-qa-backend/internal/services/health"
	"chart-qa-backend/internal/shared/config"
	"chart-qa-backend/internal/shared/metrics"
	"chart-qa-backend/internal/shared/server/middleware"
	"chart-qa-backend/internal/shared/server/respond"
	"chart-qa-backend/internal/uploads"
)

const (
	rateGroupDefault = "DEFAULT"
	rateGroupQA      = "QA"
)

// RouterDeps carries the handlers mounted under /api/v1. Nil handlers are skipped.
type RouterDeps struct {
	Config           config.Config
	Health           *health.Service
	ExtractHandler   *extract.Handler
	DocumentsHandler *documents.Handler
	ChartQAHandler   *chartqa.Handler
	UploadsHandler   *uploads.Handler
	RateLimiter      *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.RateLimit(middleware.RateLimitConfig{
			DefaultGroup: rateGroupDefault,
			GroupFor:     rateGroupFor,
			Limiter:      deps.RateLimiter,
			Rules: map[string]middleware.RateLimitRule{
				rateGroupDefault: {Rate: 20, Burst: 40},
				rateGroupQA:      {Rate: 0.5, Burst: 5},
			},
		}),
	)

	healthSvc := deps.Health
	if healthSvc == nil {
		healthSvc = health.NewService()
	}
	r.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/ready", func(c *gin.Context) {
		rep := healthSvc.Status(c.Request.Context())
		status := http.StatusOK
		if !rep.OK {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, rep)
	})
	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})
	if deps.ExtractHandler != nil {
		deps.ExtractHandler.RegisterRoutes(api)
	}
	if deps.DocumentsHandler != nil {
		deps.DocumentsHandler.RegisterRoutes(api)
	}
	if deps.UploadsHandler != nil {
		deps.UploadsHandler.RegisterRoutes(api)
	}
	if deps.ChartQAHandler != nil {
		deps.ChartQAHandler.RegisterRoutes(api)
	}

	return r
}

// rateGroupFor puts QA runs and extractions in the QA bucket.
func rateGroupFor(c *gin.Context) string {
	if c.Request.Method != http.MethodPost {
		return rateGroupDefault
	}
	path := c.FullPath()
	if strings.HasSuffix(path, "/qa/analyze") || strings.HasSuffix(path, "/extractions") {
		return rateGroupQA
	}
	return rateGroupDefault
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
