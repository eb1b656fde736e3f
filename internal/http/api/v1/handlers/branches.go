package handlers

import (
	"net/http"
	"strings"

	"github.com/distr-app/distr/internal/builds"
	"github.com/distr-app/distr/internal/gate"
	"github.com/distr-app/distr/internal/http/middleware"
	"github.com/distr-app/distr/internal/permissions"
	"github.com/distr-app/distr/internal/store"
	"github.com/gin-gonic/gin"
)

// BranchHandler serves branch ledger and upload endpoints.
type BranchHandler struct {
	gate     *gate.Gate
	branches *store.BranchStore
	pipeline *builds.Pipeline
}

// NewBranchHandler constructs a BranchHandler.
func NewBranchHandler(accessGate *gate.Gate, branches *store.BranchStore, pipeline *builds.Pipeline) *BranchHandler {
	return &BranchHandler{gate: accessGate, branches: branches, pipeline: pipeline}
}

// List returns the project's branches.
func (h *BranchHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	access, errAccess := h.gate.Require(ctx, middleware.CurrentUser(c), projectParam(c), permissions.CapView)
	if errAccess != nil {
		fail(c, errAccess)
		return
	}
	branches, errList := h.branches.List(ctx, access.Project.ID)
	if errList != nil {
		fail(c, errList)
		return
	}
	out := make([]gin.H, 0, len(branches))
	for _, branch := range branches {
		out = append(out, branchView(branch))
	}
	c.JSON(http.StatusOK, gin.H{"branches": out})
}

// Get returns one branch.
func (h *BranchHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	access, errAccess := h.gate.Require(ctx, middleware.CurrentUser(c), projectParam(c), permissions.CapView)
	if errAccess != nil {
		fail(c, errAccess)
		return
	}
	branch, errGet := h.branches.Get(ctx, access.Project.ID, tagParam(c))
	if errGet != nil {
		fail(c, errGet)
		return
	}
	c.JSON(http.StatusOK, gin.H{"branch": branchView(branch)})
}

// Update edits branch flags and notes. Fields the caller's role cannot change are ignored.
func (h *BranchHandler) Update(c *gin.Context) {
	var body struct {
		IsProtected *bool   `json:"is_protected"`
		IsTested    *bool   `json:"is_tested"`
		Description *string `json:"description"`
	}
	if !bindJSON(c, &body) {
		return
	}
	ctx := c.Request.Context()
	access, errAccess := h.gate.Require(ctx, middleware.CurrentUser(c), projectParam(c), permissions.CapView)
	if errAccess != nil {
		fail(c, errAccess)
		return
	}
	branch, errUpdate := h.branches.UpdateMetadata(ctx, access.Project.ID, tagParam(c), store.BranchPatch{
		IsProtected: body.IsProtected,
		IsTested:    body.IsTested,
		Description: body.Description,
	}, access.Role)
	if errUpdate != nil {
		fail(c, errUpdate)
		return
	}
	c.JSON(http.StatusOK, gin.H{"branch": branchView(branch)})
}

// Delete removes the branch and its stored build.
func (h *BranchHandler) Delete(c *gin.Context) {
	if errDelete := h.pipeline.Delete(c.Request.Context(), middleware.CurrentUser(c), projectParam(c), tagParam(c)); errDelete != nil {
		fail(c, errDelete)
		return
	}
	c.Status(http.StatusNoContent)
}

// Upload streams the request body into the branch as its new build.
func (h *BranchHandler) Upload(c *gin.Context) {
	filename := strings.TrimSpace(c.Query("filename"))
	if filename == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing filename"})
		return
	}
	branch, errUpload := h.pipeline.Upload(c.Request.Context(), builds.UploadRequest{
		User:        middleware.CurrentUser(c),
		Project:     projectParam(c),
		Tag:         tagParam(c),
		Filename:    filename,
		Description: optionalQuery(c, "description"),
		Body:        c.Request.Body,
	})
	if errUpload != nil {
		fail(c, errUpload)
		return
	}
	c.JSON(http.StatusOK, gin.H{"branch": branchView(branch)})
}

func tagParam(c *gin.Context) string {
	return strings.TrimSpace(c.Param("tag"))
}
