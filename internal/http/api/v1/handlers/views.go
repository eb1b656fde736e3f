package handlers

import (
	"github.com/distr-app/distr/internal/gate"
	"github.com/distr-app/distr/internal/models"
	"github.com/distr-app/distr/internal/permissions"
	"github.com/gin-gonic/gin"
)

func userView(user models.User) gin.H {
	return gin.H{
		"id":            user.ID,
		"first_name":    user.FirstName,
		"last_name":     user.LastName,
		"user_pic":      user.UserPic,
		"auth_provider": user.AuthProvider,
		"auth_id":       user.AuthID,
		"has_password":  user.Password != "",
		"created_at":    user.CreatedAt,
	}
}

// projectView renders a project for a caller holding role. Integration secrets
// are exposed only to roles that may edit them.
func projectView(project models.Project, role permissions.Role) gin.H {
	out := gin.H{
		"name":         project.Name,
		"title":        project.Title,
		"bundle_id":    project.BundleID,
		"description":  project.Description,
		"icon":         project.Icon,
		"role":         role,
		"capabilities": role.Capabilities(),
		"created_at":   project.CreatedAt,
		"updated_at":   project.UpdatedAt,
	}
	if role.Can(permissions.CapEdit) {
		out["integrations"] = project.Integrations.Data()
	}
	return out
}

func accessView(access gate.Access) gin.H {
	return projectView(access.Project, access.Role)
}

func branchView(branch models.Branch) gin.H {
	return gin.H{
		"tag":          branch.Tag,
		"filename":     branch.Filename,
		"size":         branch.Size,
		"description":  branch.Description,
		"build_number": branch.BuildNumber,
		"is_tested":    branch.IsTested,
		"is_protected": branch.IsProtected,
		"created_at":   branch.CreatedAt,
		"updated_at":   branch.UpdatedAt,
	}
}
