package handlers

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/distr-app/distr/internal/builds"
	"github.com/distr-app/distr/internal/http/middleware"
	"github.com/distr-app/distr/internal/manifest"
	"github.com/gin-gonic/gin"
)

// InstallHandler serves install links, OTA manifests and build downloads.
// With a legacy project set, routes carry no project segment and resolve to it.
type InstallHandler struct {
	pipeline      *builds.Pipeline
	domain        string
	legacyProject string
}

// NewInstallHandler constructs an InstallHandler. An empty domain falls back to the request host.
func NewInstallHandler(pipeline *builds.Pipeline, domain, legacyProject string) *InstallHandler {
	return &InstallHandler{
		pipeline:      pipeline,
		domain:        strings.TrimSpace(domain),
		legacyProject: strings.TrimSpace(legacyProject),
	}
}

// Install redirects devices to the itms-services link and browsers to the branch page.
func (h *InstallHandler) Install(c *gin.Context) {
	project, branch, errResolve := h.pipeline.Resolve(c.Request.Context(), nil, h.projectName(c), c.Param("tag"))
	if errResolve != nil {
		middleware.AbortWithError(c, errResolve)
		return
	}
	if manifest.IsNativeClient(c.GetHeader("User-Agent")) {
		c.Redirect(http.StatusFound, manifest.InstallURL(h.domainFor(c), h.linkProject(project.Name), branch.Tag))
		return
	}
	c.Redirect(http.StatusFound, manifest.BranchPageURL(project.Name, branch.Tag))
}

// Manifest renders the OTA manifest of the branch's current build.
func (h *InstallHandler) Manifest(c *gin.Context) {
	project, branch, errResolve := h.pipeline.Resolve(c.Request.Context(), nil, h.projectName(c), c.Param("tag"))
	if errResolve != nil {
		middleware.AbortWithError(c, errResolve)
		return
	}
	body := manifest.Render(manifest.Params{
		Domain:             h.domainFor(c),
		ProjectName:        project.Name,
		BranchTag:          branch.Tag,
		FileName:           branch.Filename,
		BundleIdentifier:   project.BundleID,
		ApplicationVersion: manifest.Version(branch.BuildNumber),
		DisplayName:        project.Title,
		Legacy:             h.legacyProject != "",
	})
	c.Data(http.StatusOK, "application/xml; charset=utf-8", []byte(body))
}

// Download streams the branch's current build as an attachment.
func (h *InstallHandler) Download(c *gin.Context) {
	download, errOpen := h.pipeline.Open(c.Request.Context(), nil, h.projectName(c), c.Param("tag"))
	if errOpen != nil {
		middleware.AbortWithError(c, errOpen)
		return
	}
	defer download.Object.Close()

	if filename := c.Param("filename"); filename != "" && filename != download.Branch.Filename {
		c.JSON(http.StatusNotFound, gin.H{"error": "build not found"})
		return
	}
	disposition := fmt.Sprintf("attachment; filename=%q; filename*=UTF-8''%s",
		download.Branch.Filename, url.PathEscape(download.Branch.Filename))
	c.DataFromReader(http.StatusOK, download.Object.Size, "application/octet-stream", download.Object,
		map[string]string{"Content-Disposition": disposition})
}

func (h *InstallHandler) projectName(c *gin.Context) string {
	if h.legacyProject != "" {
		return h.legacyProject
	}
	return c.Param("project")
}

// linkProject is the project segment used in generated links.
func (h *InstallHandler) linkProject(name string) string {
	if h.legacyProject != "" {
		return ""
	}
	return name
}

func (h *InstallHandler) domainFor(c *gin.Context) string {
	if h.domain != "" {
		return h.domain
	}
	return c.Request.Host
}
