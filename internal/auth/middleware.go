package auth

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// RequireAuth is a middleware that ensures the user is authenticated.
// The API surface is JSON/fragment-oriented, so unauthenticated calls get a
// 401 rather than a redirect.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		userID := session.Get(SessionKeyUserID)

		if userID == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "로그인이 필요합니다."})
			return
		}

		// User is authenticated - set context value for downstream handlers
		c.Set("user_id", userID.(string))

		c.Next()
	}
}

// UserID returns the authenticated Discord user id set by RequireAuth.
func UserID(c *gin.Context) string {
	return c.GetString("user_id")
}
