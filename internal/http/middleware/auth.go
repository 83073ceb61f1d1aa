// README: Auth middleware; verifies Firebase ID tokens and exposes the caller.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Danylo93/projeto-freelas-sub000/internal/infra"
)

const (
	ContextUID   = "auth_uid"
	ContextRole  = "auth_role"
	RoleProvider = "provider"
)

// Auth rejects requests without a valid bearer ID token and stores the
// verified uid and role claim on the gin context.
func Auth(verifier infra.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		token, err := verifier.VerifyIDToken(c.Request.Context(), strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(ContextUID, token.UID)
		if role, ok := token.Claims["role"].(string); ok {
			c.Set(ContextRole, role)
		}
		c.Next()
	}
}

// RequireRole gates a route on the role claim set by Auth.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ContextRole) != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
			return
		}
		c.Next()
	}
}

// UID returns the authenticated caller's uid, empty when unauthenticated.
func UID(c *gin.Context) string {
	return c.GetString(ContextUID)
}
