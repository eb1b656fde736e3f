package handlers

import (
	"net/http"
	"strings"

	"github.com/distr-app/distr/internal/auth"
	"github.com/distr-app/distr/internal/http/middleware"
	"github.com/gin-gonic/gin"
)

// TokenHandler manages the caller's bearer tokens.
type TokenHandler struct {
	auth *auth.Service
}

// NewTokenHandler constructs a TokenHandler.
func NewTokenHandler(service *auth.Service) *TokenHandler {
	return &TokenHandler{auth: service}
}

// List returns the caller's tokens, masked once the reveal window passed.
func (h *TokenHandler) List(c *gin.Context) {
	tokens, errList := h.auth.ListTokens(c.Request.Context(), *middleware.CurrentUser(c))
	if errList != nil {
		fail(c, errList)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tokens": tokens})
}

// Create issues a token labelled with place.
func (h *TokenHandler) Create(c *gin.Context) {
	var body struct {
		Place string `json:"place"`
	}
	if !bindJSON(c, &body) {
		return
	}
	token, errCreate := h.auth.CreateToken(c.Request.Context(), *middleware.CurrentUser(c), strings.TrimSpace(body.Place))
	if errCreate != nil {
		fail(c, errCreate)
		return
	}
	c.JSON(http.StatusCreated, token)
}

// Revoke deletes one of the caller's tokens.
func (h *TokenHandler) Revoke(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if errRevoke := h.auth.RevokeToken(c.Request.Context(), *middleware.CurrentUser(c), id); errRevoke != nil {
		fail(c, errRevoke)
		return
	}
	c.Status(http.StatusNoContent)
}
