package handlers

import (
	"github.com/gin-gonic/gin"

	"telehealth-server/internal/middleware"
	"telehealth-server/internal/utils"
)

// callerID returns the authenticated subject, writing a 401 when absent.
func callerID(c *gin.Context) (string, bool) {
	id, ok := middleware.GetExternalIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User identity not found in token")
		return "", false
	}
	return id, true
}
