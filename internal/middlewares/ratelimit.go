package middlewares

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dapoalex/AjoPool/config"
	"github.com/dapoalex/AjoPool/pkg/ratelimit"
)

// RateLimit throttles per client IP. Login gets its own tighter bucket so
// credential stuffing cannot ride on the general API allowance.
func RateLimit(limiter ratelimit.Limiter, cfg config.RateLimitConfig, endpoint string) gin.HandlerFunc {
	limit := cfg.APIPerMinute
	if endpoint == "login" {
		limit = cfg.LoginPerMinute
	}
	if limit <= 0 {
		limit = 100
	}

	return func(c *gin.Context) {
		key := endpoint + ":" + c.ClientIP()
		allowed, err := limiter.Allow(c.Request.Context(), key, limit, time.Minute)
		if err != nil || !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "too many requests, please try again later",
			})
			return
		}
		c.Next()
	}
}

// MaxConcurrency rejects requests outright once maxConcurrent are in flight.
func MaxConcurrency(maxConcurrent int) gin.HandlerFunc {
	sem := make(chan struct{}, maxConcurrent)

	return func(c *gin.Context) {
		select {
		case sem <- struct{}{}:
			defer func() { <-sem }()
			c.Next()
		default:
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error": "too many concurrent requests",
			})
		}
	}
}
