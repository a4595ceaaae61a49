package middleware

import (
	"net/http"

	"arkive/services"

	"github.com/gin-gonic/gin"
)

// RateLimit enforces the per-client quota. It runs before authentication
// so an abusive client is throttled regardless of key validity.
func RateLimit(limiter *services.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limited",
				"message": "too many requests, try again later",
			})
			return
		}
		c.Next()
	}
}
