package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// APIKey rejects requests whose key (X-API-Key header or "key" query
// parameter) does not match the configured key. Empty keys never match.
func APIKey(expected string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader("X-API-Key")
		if key == "" {
			key = c.Query("key")
		}

		if key == "" || expected == "" || key != expected {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "invalid or missing API key",
			})
			return
		}

		c.Next()
	}
}
