package handlers

import (
	"net/http"

	"github.com/distr-app/distr/internal/auth"
	"github.com/distr-app/distr/internal/http/middleware"
	"github.com/gin-gonic/gin"
)

// UserHandler serves the current user's profile.
type UserHandler struct {
	auth *auth.Service
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(service *auth.Service) *UserHandler {
	return &UserHandler{auth: service}
}

// Me returns the authenticated user.
func (h *UserHandler) Me(c *gin.Context) {
	user := middleware.CurrentUser(c)
	c.JSON(http.StatusOK, gin.H{"user": userView(*user)})
}

// ChangePassword sets a new password for the authenticated user.
func (h *UserHandler) ChangePassword(c *gin.Context) {
	var body struct {
		Password string `json:"password" binding:"required"`
		Confirm  string `json:"confirm" binding:"required"`
	}
	if !bindJSON(c, &body) {
		return
	}
	user := middleware.CurrentUser(c)
	if errChange := h.auth.ChangePassword(c.Request.Context(), *user, body.Password, body.Confirm); errChange != nil {
		fail(c, errChange)
		return
	}
	c.Status(http.StatusNoContent)
}
