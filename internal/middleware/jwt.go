package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/aura-webinar/dispatcher/internal/auth"
	"github.com/aura-webinar/dispatcher/pkg/response"
)

const (
	// ContextAccount is the key for the caller's account id in gin context.
	ContextAccount = "account"
	// ContextAccountLabel is the key for the account label (the originating service).
	ContextAccountLabel = "account_label"
	// ContextAudience is the key for the caller's audience.
	ContextAudience = "audience"
	// ContextRole is the key for the caller's role.
	ContextRole = "role"
)

// JWT returns a middleware that validates JWT and sets account claims in context.
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
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
		c.Set(ContextAccount, claims.Account)
		c.Set(ContextAccountLabel, claims.Label())
		c.Set(ContextAudience, claims.Audience())
		c.Set(ContextRole, claims.Role)
		c.Next()
	}
}
