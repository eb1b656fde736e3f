// Package middleware holds the gin middleware shared by the API and front routes.
package middleware

import (
	"github.com/distr-app/distr/internal/models"
	"github.com/gin-gonic/gin"
)

const (
	contextUserKey = "distrUser"

	// SessionCookie carries the web session JWT.
	SessionCookie = "distr_session"
)

// SetUser stores the authenticated user on the request context.
func SetUser(c *gin.Context, user models.User) {
	c.Set(contextUserKey, user)
}

// CurrentUser returns the authenticated user, or nil for anonymous requests.
func CurrentUser(c *gin.Context) *models.User {
	value, ok := c.Get(contextUserKey)
	if !ok {
		return nil
	}
	user, ok := value.(models.User)
	if !ok {
		return nil
	}
	return &user
}
