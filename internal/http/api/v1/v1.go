// Package v1 registers the JSON API served under /api/v1.
package v1

import (
	"time"

	"github.com/distr-app/distr/internal/auth"
	"github.com/distr-app/distr/internal/builds"
	"github.com/distr-app/distr/internal/gate"
	"github.com/distr-app/distr/internal/http/api/v1/handlers"
	"github.com/distr-app/distr/internal/http/middleware"
	"github.com/distr-app/distr/internal/store"
	"github.com/gin-gonic/gin"
)

// Deps are the collaborators the API handlers are built from.
type Deps struct {
	Auth          *auth.Service
	Gate          *gate.Gate
	Users         *store.UserStore
	Projects      *store.ProjectStore
	Grants        *store.GrantStore
	Branches      *store.BranchStore
	Pipeline      *builds.Pipeline
	SessionTTL    time.Duration
	SecureCookies bool
}

// RegisterRoutes registers the /api/v1 routes on r.
func RegisterRoutes(r *gin.Engine, deps Deps) error {
	if errValidators := handlers.RegisterValidators(); errValidators != nil {
		return errValidators
	}

	api := r.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(deps.Auth))

	authHandler := handlers.NewAuthHandler(deps.Auth, deps.SessionTTL, deps.SecureCookies)
	api.POST("/auth/getcode", authHandler.GetCode)
	api.POST("/auth/gettoken", authHandler.GetToken)
	api.POST("/auth/signup", authHandler.Signup)
	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/logout", authHandler.Logout)

	api.GET("/permissions", handlers.NewPermissionsHandler().List)

	authed := api.Group("")
	authed.Use(middleware.RequireUser())

	userHandler := handlers.NewUserHandler(deps.Auth)
	authed.GET("/users/me", userHandler.Me)
	authed.PUT("/users/me/password", userHandler.ChangePassword)

	tokenHandler := handlers.NewTokenHandler(deps.Auth)
	authed.GET("/tokens", tokenHandler.List)
	authed.POST("/tokens", tokenHandler.Create)
	authed.DELETE("/tokens/:id", tokenHandler.Revoke)

	projectHandler := handlers.NewProjectHandler(deps.Gate, deps.Projects, deps.Grants)
	authed.GET("/projects", projectHandler.List)
	authed.POST("/projects", projectHandler.Create)
	authed.GET("/projects/:project", projectHandler.Get)
	authed.PUT("/projects/:project", projectHandler.Update)
	authed.DELETE("/projects/:project", projectHandler.Delete)

	grantHandler := handlers.NewGrantHandler(deps.Gate, deps.Grants, deps.Users)
	authed.GET("/projects/:project/grants", grantHandler.List)
	authed.POST("/projects/:project/grants", grantHandler.Create)
	authed.DELETE("/projects/:project/grants/:user", grantHandler.Delete)
	authed.DELETE("/projects/:project/members/:user", grantHandler.RemoveMember)

	branchHandler := handlers.NewBranchHandler(deps.Gate, deps.Branches, deps.Pipeline)
	authed.GET("/projects/:project/branches", branchHandler.List)
	authed.GET("/projects/:project/branches/:tag", branchHandler.Get)
	authed.PUT("/projects/:project/branches/:tag", branchHandler.Update)
	authed.DELETE("/projects/:project/branches/:tag", branchHandler.Delete)
	authed.POST("/projects/:project/branches/:tag/upload", branchHandler.Upload)

	return nil
}
