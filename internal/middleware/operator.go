package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	"github.com/HillCountryCoder/chat-app-backend-sub000/pkg/response"
)

// OperatorKey guards platform-administration endpoints (tenant suspension,
// tenant listing) behind a shared key. With no key configured the surface is
// disabled entirely rather than left open.
func OperatorKey(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			response.Forbidden(c, "operator endpoints disabled")
			c.Abort()
			return
		}
		provided := c.GetHeader("X-Operator-Key")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
			response.Unauthorized(c, "invalid operator key")
			c.Abort()
			return
		}
		c.Next()
	}
}
