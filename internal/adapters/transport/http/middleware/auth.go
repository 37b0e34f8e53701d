package middleware

import (
	"net/http"
	"strings"

	customErrors "github.com/clipstream/account-service/internal/account/errors"
	"github.com/clipstream/account-service/internal/account/service"

	"github.com/gin-gonic/gin"
)

const CurrentUserKey = "currentUser"

// AccessTokenFrom extracts the access token from the access_token cookie or
// the Authorization bearer header.
func AccessTokenFrom(c *gin.Context) string {
	if tok, err := c.Cookie("access_token"); err == nil && tok != "" {
		return tok
	}
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

// RequireAuth resolves the access token to a user and aborts with 401 when it
// cannot.
func RequireAuth(svc service.AccountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := AccessTokenFrom(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		user, err := svc.Authenticate(c.Request.Context(), token)
		if err != nil {
			msg := "unauthorized"
			if customErrors.IsTokenExpired(err) {
				msg = "token expired"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}

		c.Set(CurrentUserKey, user)
		c.Next()
	}
}

// OptionalAuth resolves the viewer when a valid access token is present and
// stays silent otherwise. Used by public endpoints that personalize output.
func OptionalAuth(svc service.AccountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := AccessTokenFrom(c); token != "" {
			if user, err := svc.Authenticate(c.Request.Context(), token); err == nil {
				c.Set(CurrentUserKey, user)
			}
		}
		c.Next()
	}
}
