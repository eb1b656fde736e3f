// Package front registers the unauthenticated routes that devices and health checks hit directly.
package front

import (
	"github.com/distr-app/distr/internal/builds"
	"github.com/distr-app/distr/internal/http/api/front/handlers"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RegisterFrontRoutes registers health, install and download routes. A non-empty
// legacyProject switches install and download to the single-project paths.
func RegisterFrontRoutes(r *gin.Engine, db *gorm.DB, pipeline *builds.Pipeline, domain, legacyProject string) {
	if r == nil || pipeline == nil {
		return
	}

	if db != nil {
		healthHandler := handlers.NewHealthHandler(db)
		r.GET("/healthz", healthHandler.Healthz)
	}

	installHandler := handlers.NewInstallHandler(pipeline, domain, legacyProject)
	if legacyProject != "" {
		r.GET("/install/:tag", installHandler.Install)
		r.GET("/install/:tag/manifest.plist", installHandler.Manifest)
		r.GET("/download/:tag", installHandler.Download)
		r.GET("/download/:tag/:filename", installHandler.Download)
		return
	}
	r.GET("/install/:project/:tag", installHandler.Install)
	r.GET("/install/:project/:tag/manifest.plist", installHandler.Manifest)
	r.GET("/download/:project/:tag", installHandler.Download)
	r.GET("/download/:project/:tag/:filename", installHandler.Download)
}
