package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"telehealth-server/internal/utils"
)

const externalIDKey = "externalID"

// AuthMiddleware validates the identity provider's bearer token and stores
// its subject for downstream handlers. Mapping the subject to a user and
// checking roles happens in the services.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.Unauthorized(c, "Authorization header required")
			c.Abort()
			return
		}

		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			utils.Unauthorized(c, "Invalid authorization header format")
			c.Abort()
			return
		}

		claims, err := utils.ValidateToken(parts[1], secret)
		if err != nil {
			utils.Unauthorized(c, "Invalid token: "+err.Error())
			c.Abort()
			return
		}

		c.Set(externalIDKey, claims.Subject)
		c.Next()
	}
}

// GetExternalIDFromContext returns the authenticated identity-provider
// subject.
func GetExternalIDFromContext(c *gin.Context) (string, bool) {
	value, exists := c.Get(externalIDKey)
	if !exists {
		return "", false
	}
	id, ok := value.(string)
	return id, ok && id != ""
}
