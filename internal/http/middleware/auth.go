package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/rewardcore-backend/internal/http/response"
	"github.com/yungbote/rewardcore-backend/internal/platform/ctxutil"
	"github.com/yungbote/rewardcore-backend/internal/platform/logger"
	"github.com/yungbote/rewardcore-backend/internal/services"
)

type AuthMiddleware struct {
	log         *logger.Logger
	authService services.AuthService
}

func NewAuthMiddleware(baseLog *logger.Logger, authService services.AuthService) *AuthMiddleware {
	return &AuthMiddleware{log: baseLog.With("middleware", "AuthMiddleware"), authService: authService}
}

// RequireAuth verifies the bearer token and attaches the service-account
// principal to the request context.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractBearerToken(c)
		if tokenString == "" {
			response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
			c.Abort()
			return
		}
		principal, err := am.authService.Verify(c.Request.Context(), tokenString)
		if err != nil {
			response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
			c.Abort()
			return
		}
		ctx := ctxutil.WithPrincipal(c.Request.Context(), principal)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireScope gates a route group on one scope. Run after RequireAuth.
func (am *AuthMiddleware) RequireScope(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := ctxutil.GetPrincipal(c.Request.Context())
		if !principal.HasScope(scope) {
			if principal != nil {
				am.log.Warn("scope denied", "account", principal.Name, "scope", scope, "path", c.FullPath())
			}
			response.RespondError(c, http.StatusForbidden, "forbidden", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}

func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}
