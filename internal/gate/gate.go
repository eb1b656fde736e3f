// Package gate resolves the caller's role on a named project and enforces capabilities.
package gate

import (
	"context"

	"github.com/distr-app/distr/internal/apperr"
	"github.com/distr-app/distr/internal/models"
	"github.com/distr-app/distr/internal/permissions"
)

// ProjectFinder resolves projects by unique name.
type ProjectFinder interface {
	FindByName(ctx context.Context, name string) (models.Project, error)
}

// GrantFinder resolves a user's role on a project.
type GrantFinder interface {
	Find(ctx context.Context, projectID, userID uint64) (permissions.Role, error)
}

// Access is a resolved project together with the caller's role.
// Role is empty when the caller holds no grant (optional resolution only).
type Access struct {
	Project models.Project
	Role    permissions.Role
}

// HasRole reports whether the caller holds a grant on the project.
func (a Access) HasRole() bool { return a.Role != "" }

// Can reports whether the caller's role grants the capability.
func (a Access) Can(c permissions.Capability) bool { return a.Role.Can(c) }

// Gate composes project and grant lookups into access decisions.
type Gate struct {
	projects ProjectFinder
	grants   GrantFinder
}

// New constructs a Gate.
func New(projects ProjectFinder, grants GrantFinder) *Gate {
	return &Gate{projects: projects, grants: grants}
}

// Resolve returns the project and the caller's role. Anonymous callers are
// unauthorized; callers without a grant get NotFound so the project stays hidden.
func (g *Gate) Resolve(ctx context.Context, user *models.User, projectName string) (Access, error) {
	if user == nil {
		return Access{}, apperr.Unauthorized("authentication required")
	}
	project, errProject := g.projects.FindByName(ctx, projectName)
	if errProject != nil {
		return Access{}, errProject
	}
	role, errGrant := g.grants.Find(ctx, project.ID, user.ID)
	if errGrant != nil {
		if apperr.Is(errGrant, apperr.KindNotFound) {
			return Access{}, apperr.NotFound("project not found")
		}
		return Access{}, errGrant
	}
	return Access{Project: project, Role: role}, nil
}

// Require resolves access and fails with Forbidden unless the role grants c.
// A caller without any grant is also Forbidden here: mutation paths report
// the missing capability instead of hiding the project.
func (g *Gate) Require(ctx context.Context, user *models.User, projectName string, c permissions.Capability) (Access, error) {
	if c == permissions.CapView {
		return g.Resolve(ctx, user, projectName)
	}
	if user == nil {
		return Access{}, apperr.Unauthorized("authentication required")
	}
	access, errResolve := g.ResolveOptional(ctx, user, projectName)
	if errResolve != nil {
		return Access{}, errResolve
	}
	if !access.Can(c) {
		return Access{}, apperr.Forbidden("no permissions to " + string(c))
	}
	return access, nil
}

// ResolveOptional resolves the project for callers that may be anonymous or ungranted.
// Only a missing project is an error.
func (g *Gate) ResolveOptional(ctx context.Context, user *models.User, projectName string) (Access, error) {
	project, errProject := g.projects.FindByName(ctx, projectName)
	if errProject != nil {
		return Access{}, errProject
	}
	if user == nil {
		return Access{Project: project}, nil
	}
	role, errGrant := g.grants.Find(ctx, project.ID, user.ID)
	if errGrant != nil {
		if apperr.Is(errGrant, apperr.KindNotFound) {
			return Access{Project: project}, nil
		}
		return Access{}, errGrant
	}
	return Access{Project: project, Role: role}, nil
}
