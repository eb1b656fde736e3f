package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/distr-app/distr/internal/apperr"
	"github.com/distr-app/distr/internal/gate"
	"github.com/distr-app/distr/internal/http/middleware"
	"github.com/distr-app/distr/internal/permissions"
	"github.com/distr-app/distr/internal/store"
	"github.com/gin-gonic/gin"
)

// GrantHandler manages project membership.
type GrantHandler struct {
	gate   *gate.Gate
	grants *store.GrantStore
	users  *store.UserStore
}

// NewGrantHandler constructs a GrantHandler.
func NewGrantHandler(accessGate *gate.Gate, grants *store.GrantStore, users *store.UserStore) *GrantHandler {
	return &GrantHandler{gate: accessGate, grants: grants, users: users}
}

// List returns the project's members.
func (h *GrantHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	access, errAccess := h.gate.Require(ctx, middleware.CurrentUser(c), projectParam(c), permissions.CapInvite)
	if errAccess != nil {
		fail(c, errAccess)
		return
	}
	members, errList := h.grants.ListMembers(ctx, access.Project.ID)
	if errList != nil {
		fail(c, errList)
		return
	}
	c.JSON(http.StatusOK, gin.H{"grants": members})
}

// Create invites a user by auth id with a non-owner role.
func (h *GrantHandler) Create(c *gin.Context) {
	var body struct {
		User string `json:"user" binding:"required"`
		Role string `json:"role" binding:"required"`
	}
	if !bindJSON(c, &body) {
		return
	}
	role, errRole := permissions.ParseRole(body.Role)
	if errRole != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role"})
		return
	}
	ctx := c.Request.Context()
	access, errAccess := h.gate.Require(ctx, middleware.CurrentUser(c), projectParam(c), permissions.CapInvite)
	if errAccess != nil {
		fail(c, errAccess)
		return
	}
	user, errUser := h.users.FindByAuthID(ctx, strings.TrimSpace(body.User))
	if errUser != nil {
		fail(c, errUser)
		return
	}
	grant, errCreate := h.grants.CreateInvite(ctx, access.Project.ID, user.ID, role)
	if errCreate != nil {
		fail(c, errCreate)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"user":    user.AuthID,
		"project": access.Project.Name,
		"role":    grant.Role,
	})
}

// Delete removes a user's grant. The last owner cannot be removed.
func (h *GrantHandler) Delete(c *gin.Context) {
	h.remove(c, h.grants.Delete)
}

// RemoveMember removes a non-owner member.
func (h *GrantHandler) RemoveMember(c *gin.Context) {
	h.remove(c, h.grants.RemoveMember)
}

func (h *GrantHandler) remove(c *gin.Context, removeFn func(ctx context.Context, projectID, userID uint64) error) {
	ctx := c.Request.Context()
	caller := middleware.CurrentUser(c)
	access, errAccess := h.gate.Require(ctx, caller, projectParam(c), permissions.CapInvite)
	if errAccess != nil {
		fail(c, errAccess)
		return
	}
	authID := strings.TrimSpace(c.Param("user"))
	if authID == "" {
		fail(c, apperr.BadRequest("missing user"))
		return
	}
	user, errUser := h.users.FindByAuthID(ctx, authID)
	if errUser != nil {
		fail(c, errUser)
		return
	}
	if errRemove := removeFn(ctx, access.Project.ID, user.ID); errRemove != nil {
		fail(c, errRemove)
		return
	}
	c.Status(http.StatusNoContent)
}
