package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const userIDKey = "userID"

// identityRequired reads the caller identity placed on the request by the
// upstream identity provider. The header is trusted as-is; this core
// performs no credential verification of its own.
func identityRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

func callerID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
