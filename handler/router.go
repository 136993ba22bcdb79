package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/filedepot/filedepot/ctxutil"
)

// NewRouter assembles the HTTP routes.
func NewRouter(runMode string, jobs *JobHandler, health *HealthHandler) *gin.Engine {
	if runMode != "" {
		gin.SetMode(runMode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), traceMiddleware())

	r.POST("/uploads", jobs.Upload)
	r.GET("/uploads", jobs.ListUploads)
	r.GET("/jobs/:id", jobs.GetJob)
	r.POST("/jobs/:id/cancel", jobs.CancelJob)
	r.POST("/exports", jobs.CreateExport)
	r.GET("/exports/:id", jobs.FetchExport)
	r.GET("/stats", jobs.GetStats)

	r.GET("/health", health.Live)
	r.GET("/health/ready", health.Ready)

	return r
}

// traceMiddleware ensures every request carries a trace ID for log
// correlation.
func traceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, traceID := ctxutil.EnsureTraceID(c.Request.Context())
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Trace-Id", traceID)
		c.Next()
	}
}
