package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lalith-99/streamgate/internal/auth"
)

// ContextKeyUserID is where the middleware stores the authenticated user
// identity in the gin context. Handlers read it through GetUserID.
const ContextKeyUserID = "user_id"

// AuthMiddleware validates the Bearer token on every request in its group
// and aborts with 401 before any handler runs when the token is missing,
// malformed, or invalid.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing authorization header",
			})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid authorization format, expected: Bearer <token>",
			})
			return
		}

		claims, err := auth.ParseToken(parts[1], secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or expired token",
			})
			return
		}

		c.Set(ContextKeyUserID, claims.UserID)
		c.Next()
	}
}

// GetUserID returns the authenticated user id for the request, or "" if
// the middleware did not run (which any downstream query treats as no
// match, never as a wildcard).
func GetUserID(c *gin.Context) string {
	val, exists := c.Get(ContextKeyUserID)
	if !exists {
		return ""
	}
	id, ok := val.(string)
	if !ok {
		return ""
	}
	return id
}
