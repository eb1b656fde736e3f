package handlers

import (
	"net/http"
	"strings"

	"github.com/distr-app/distr/internal/gate"
	"github.com/distr-app/distr/internal/http/middleware"
	"github.com/distr-app/distr/internal/models"
	"github.com/distr-app/distr/internal/permissions"
	"github.com/distr-app/distr/internal/store"
	"github.com/gin-gonic/gin"
)

// ProjectHandler serves project registry endpoints.
type ProjectHandler struct {
	gate     *gate.Gate
	projects *store.ProjectStore
	grants   *store.GrantStore
}

// NewProjectHandler constructs a ProjectHandler.
func NewProjectHandler(accessGate *gate.Gate, projects *store.ProjectStore, grants *store.GrantStore) *ProjectHandler {
	return &ProjectHandler{gate: accessGate, projects: projects, grants: grants}
}

// integrationsBody is shared by create and update payloads.
type integrationsBody struct {
	TelegramToken *string `json:"telegram_token"`
	TelegramID    *string `json:"telegram_id"`
	MyTeamToken   *string `json:"myteam_token"`
	MyTeamURL     *string `json:"myteam_url"`
	MyTeamID      *string `json:"myteam_id"`
}

// List returns the projects the caller holds a grant on.
func (h *ProjectHandler) List(c *gin.Context) {
	user := middleware.CurrentUser(c)
	rows, errList := h.grants.ListForUser(c.Request.Context(), user.ID)
	if errList != nil {
		fail(c, errList)
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, projectView(row.Project, row.Role))
	}
	c.JSON(http.StatusOK, gin.H{"projects": out})
}

// Create registers a project owned by the caller.
func (h *ProjectHandler) Create(c *gin.Context) {
	var body struct {
		Name        string  `json:"name" binding:"required,segment"`
		Title       string  `json:"title" binding:"required"`
		BundleID    string  `json:"bundle_id" binding:"required"`
		Description *string `json:"description"`
		Icon        *string `json:"icon"`
		integrationsBody
	}
	if !bindJSON(c, &body) {
		return
	}
	user := middleware.CurrentUser(c)
	project, errCreate := h.projects.Create(c.Request.Context(), store.ProjectInput{
		Name:        body.Name,
		Title:       body.Title,
		BundleID:    body.BundleID,
		Description: body.Description,
		Icon:        body.Icon,
		Integrations: models.Integrations{
			TelegramToken: body.TelegramToken,
			TelegramID:    body.TelegramID,
			MyTeamToken:   body.MyTeamToken,
			MyTeamURL:     body.MyTeamURL,
			MyTeamID:      body.MyTeamID,
		},
	}, user.ID)
	if errCreate != nil {
		fail(c, errCreate)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"project": projectView(project, permissions.RoleOwner)})
}

// Get returns one project with the caller's role.
func (h *ProjectHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	access, errAccess := h.gate.Require(ctx, middleware.CurrentUser(c), projectParam(c), permissions.CapView)
	if errAccess != nil {
		fail(c, errAccess)
		return
	}
	count, errCount := h.projects.CountBranches(ctx, access.Project.ID)
	if errCount != nil {
		fail(c, errCount)
		return
	}
	view := accessView(access)
	view["branch_count"] = count
	c.JSON(http.StatusOK, gin.H{"project": view})
}

// Update edits project metadata and integrations.
func (h *ProjectHandler) Update(c *gin.Context) {
	var body struct {
		Title       *string `json:"title"`
		BundleID    *string `json:"bundle_id"`
		Description *string `json:"description"`
		Icon        *string `json:"icon"`
		integrationsBody
	}
	if !bindJSON(c, &body) {
		return
	}
	ctx := c.Request.Context()
	access, errAccess := h.gate.Require(ctx, middleware.CurrentUser(c), projectParam(c), permissions.CapEdit)
	if errAccess != nil {
		fail(c, errAccess)
		return
	}
	project, errUpdate := h.projects.UpdateMetadata(ctx, access.Project, store.ProjectPatch{
		Title:         body.Title,
		BundleID:      body.BundleID,
		Description:   body.Description,
		Icon:          body.Icon,
		TelegramToken: body.TelegramToken,
		TelegramID:    body.TelegramID,
		MyTeamToken:   body.MyTeamToken,
		MyTeamURL:     body.MyTeamURL,
		MyTeamID:      body.MyTeamID,
	})
	if errUpdate != nil {
		fail(c, errUpdate)
		return
	}
	c.JSON(http.StatusOK, gin.H{"project": projectView(project, access.Role)})
}

// Delete removes a project that has no branches left.
func (h *ProjectHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()
	access, errAccess := h.gate.Require(ctx, middleware.CurrentUser(c), projectParam(c), permissions.CapDelete)
	if errAccess != nil {
		fail(c, errAccess)
		return
	}
	if errDelete := h.projects.Delete(ctx, access.Project); errDelete != nil {
		fail(c, errDelete)
		return
	}
	c.Status(http.StatusNoContent)
}

func projectParam(c *gin.Context) string {
	return strings.TrimSpace(c.Param("project"))
}
