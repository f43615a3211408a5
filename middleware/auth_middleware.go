package middleware

import (
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mayurvchitte/lms-ci-cd/utils"
)

// AuthMiddleware authenticates the request from the session cookie,
// falling back to an Authorization: Bearer header for non-browser
// clients.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, err := c.Cookie(utils.TokenCookieName)
		if err != nil || tokenStr == "" {
			header := c.GetHeader("Authorization")
			if strings.HasPrefix(header, "Bearer ") {
				tokenStr = strings.TrimPrefix(header, "Bearer ")
			}
		}
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		claims, verr := utils.ValidateToken(tokenStr, os.Getenv("JWT_SECRET"))
		if verr != nil {
			c.AbortWithStatusJSON(verr.Status(), gin.H{"error": verr.Message})
			return
		}

		c.Set("userID", claims.UserID)
		c.Set("email", claims.Email)
		c.Set("role", claims.Role)
		c.Next()
	}
}
