package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/HillCountryCoder/chat-app-backend-sub000/internal/auth"
	"github.com/HillCountryCoder/chat-app-backend-sub000/internal/tenantctx"
	"github.com/HillCountryCoder/chat-app-backend-sub000/pkg/metrics"
	"github.com/HillCountryCoder/chat-app-backend-sub000/pkg/response"
)

// Session validates the access token, stores the claims in the gin context
// and binds the tenant onto the request context. Every handler and repository
// downstream sees the tenant without carrying it explicitly.
func Session(jwtService *auth.JWTService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(parts[1])
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}

		ctx, err := tenantctx.Bind(c.Request.Context(), claims.TenantID)
		if err != nil {
			if errors.Is(err, tenantctx.ErrConflict) {
				// A different tenant is already bound to this request.
				// Proceeding would scope queries to the wrong tenant.
				logger.Error("tenant binding conflict",
					zap.String("token_tenant", claims.TenantID))
				response.Internal(c, "request context corrupted")
				c.Abort()
				return
			}
			metrics.TenantContextMissing.Inc()
			response.Internal(c, "could not establish tenant context")
			c.Abort()
			return
		}
		c.Request = c.Request.WithContext(ctx)

		c.Set(auth.ContextUserID, claims.UserID)
		c.Set(auth.ContextTenantID, claims.TenantID)
		c.Set(auth.ContextUserEmail, claims.Email)
		c.Next()
	}
}
