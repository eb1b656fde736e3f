package handlers

import (
	"net/http"

	"github.com/distr-app/distr/internal/permissions"
	"github.com/gin-gonic/gin"
)

// PermissionsHandler exposes the role and capability catalogue.
type PermissionsHandler struct{}

// NewPermissionsHandler constructs a PermissionsHandler.
func NewPermissionsHandler() *PermissionsHandler {
	return &PermissionsHandler{}
}

// List returns every role with its capabilities and the capability labels.
func (h *PermissionsHandler) List(c *gin.Context) {
	roles := make([]gin.H, 0, len(permissions.Roles()))
	for _, role := range permissions.Roles() {
		roles = append(roles, gin.H{
			"role":         role,
			"capabilities": role.Capabilities(),
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"roles":        roles,
		"capabilities": permissions.Definitions(),
	})
}
