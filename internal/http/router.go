package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	mcpErrors "github.com/khirotaka/bmi-mcp/pkg/errors"
	"golang.org/x/time/rate"
)

// SetupRouter configures the Gin engine and routes. Every query spawns a
// registry process, so /query and /tools share a limiter of
// rateLimitPerMinute requests; zero or less disables it.
func SetupRouter(handler *Handler, rateLimitPerMinute int) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(func(c *gin.Context) {
		const maxBodySize = 100 * 1024 // 100KB
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodySize)
		c.Next()
	})

	limited := r.Group("/")
	if rateLimitPerMinute > 0 {
		limiter := rate.NewLimiter(rate.Limit(float64(rateLimitPerMinute)/60), rateLimitPerMinute)
		limited.Use(rateLimit(limiter))
	}

	// Routes
	limited.POST("/query", handler.Query)
	limited.GET("/tools", handler.GetTools)
	r.GET("/health", handler.Health)

	return r
}

func rateLimit(limiter *rate.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorBody(mcpErrors.ErrCodeRateLimited, "rate limit exceeded"))
			return
		}
		c.Next()
	}
}
