package store

import (
	"context"
	"time"

	"github.com/distr-app/distr/internal/apperr"
	"github.com/distr-app/distr/internal/models"
	"github.com/distr-app/distr/internal/permissions"
	"gorm.io/gorm"
)

// Member is a grant joined with its user.
type Member struct {
	UserID    uint64           `json:"user_id"`
	FirstName string           `json:"first_name"`
	LastName  string           `json:"last_name"`
	AuthID    string           `json:"auth_id"`
	Role      permissions.Role `json:"role"`
	CreatedAt time.Time        `json:"created_at"`
}

// ProjectWithRole is a project visible to a user together with the user's role.
type ProjectWithRole struct {
	Project models.Project
	Role    permissions.Role
}

// GrantStore persists per-(project, user) roles.
type GrantStore struct {
	db *gorm.DB
}

// NewGrantStore constructs a GrantStore.
func NewGrantStore(db *gorm.DB) *GrantStore {
	return &GrantStore{db: db}
}

// Find returns the user's role on the project.
func (s *GrantStore) Find(ctx context.Context, projectID, userID uint64) (permissions.Role, error) {
	var grant models.Grant
	errFind := s.db.WithContext(ctx).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		First(&grant).Error
	if errFind != nil {
		return "", translate(errFind, "grant not found", "")
	}
	return permissions.Role(grant.Role), nil
}

// CreateInvite grants a non-owner role to a user.
func (s *GrantStore) CreateInvite(ctx context.Context, projectID, userID uint64, role permissions.Role) (models.Grant, error) {
	if !role.Valid() {
		return models.Grant{}, apperr.BadRequest("invalid role")
	}
	if role == permissions.RoleOwner {
		return models.Grant{}, apperr.Conflict("owner role can only be assigned on project creation")
	}
	return createGrant(s.db.WithContext(ctx), projectID, userID, role)
}

func createGrant(tx *gorm.DB, projectID, userID uint64, role permissions.Role) (models.Grant, error) {
	grant := models.Grant{
		ProjectID: projectID,
		UserID:    userID,
		Role:      string(role),
	}
	if errCreate := tx.Create(&grant).Error; errCreate != nil {
		return models.Grant{}, translate(errCreate, "", "user already has access to the project")
	}
	return grant, nil
}

// Delete removes a grant. The last owner of a project cannot be removed.
func (s *GrantStore) Delete(ctx context.Context, projectID, userID uint64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var grant models.Grant
		if errFind := tx.Where("project_id = ? AND user_id = ?", projectID, userID).First(&grant).Error; errFind != nil {
			return translate(errFind, "grant not found", "")
		}
		if grant.Role == string(permissions.RoleOwner) {
			var owners int64
			if errCount := tx.Model(&models.Grant{}).
				Where("project_id = ? AND role = ?", projectID, string(permissions.RoleOwner)).
				Count(&owners).Error; errCount != nil {
				return translate(errCount, "", "")
			}
			if owners <= 1 {
				return apperr.PreconditionFailed("project must keep at least one owner")
			}
		}
		return translate(tx.Delete(&grant).Error, "grant not found", "")
	})
}

// RemoveMember removes a non-owner grant through the membership path.
func (s *GrantStore) RemoveMember(ctx context.Context, projectID, userID uint64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var grant models.Grant
		if errFind := tx.Where("project_id = ? AND user_id = ?", projectID, userID).First(&grant).Error; errFind != nil {
			return translate(errFind, "member not found", "")
		}
		if grant.Role == string(permissions.RoleOwner) {
			return apperr.Forbidden("owners cannot be removed")
		}
		return translate(tx.Delete(&grant).Error, "member not found", "")
	})
}

// ListMembers returns the project's grants joined with their users.
func (s *GrantStore) ListMembers(ctx context.Context, projectID uint64) ([]Member, error) {
	// memberRow receives the joined columns.
	type memberRow struct {
		UserID    uint64
		FirstName string
		LastName  string
		AuthID    string
		Role      string
		CreatedAt time.Time
	}
	var rows []memberRow
	errScan := s.db.WithContext(ctx).
		Table("grants").
		Select("grants.user_id, users.first_name, users.last_name, users.auth_id, grants.role, grants.created_at").
		Joins("JOIN users ON users.id = grants.user_id").
		Where("grants.project_id = ?", projectID).
		Order("grants.created_at ASC, grants.id ASC").
		Scan(&rows).Error
	if errScan != nil {
		return nil, translate(errScan, "", "")
	}
	out := make([]Member, 0, len(rows))
	for _, row := range rows {
		out = append(out, Member{
			UserID:    row.UserID,
			FirstName: row.FirstName,
			LastName:  row.LastName,
			AuthID:    row.AuthID,
			Role:      permissions.Role(row.Role),
			CreatedAt: row.CreatedAt,
		})
	}
	return out, nil
}

// ListForUser returns the projects the user holds a grant on, ordered by name.
func (s *GrantStore) ListForUser(ctx context.Context, userID uint64) ([]ProjectWithRole, error) {
	var grants []models.Grant
	if errFind := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&grants).Error; errFind != nil {
		return nil, translate(errFind, "", "")
	}
	if len(grants) == 0 {
		return []ProjectWithRole{}, nil
	}
	roles := make(map[uint64]permissions.Role, len(grants))
	ids := make([]uint64, 0, len(grants))
	for _, grant := range grants {
		roles[grant.ProjectID] = permissions.Role(grant.Role)
		ids = append(ids, grant.ProjectID)
	}

	var projects []models.Project
	if errFind := s.db.WithContext(ctx).Where("id IN ?", ids).Order("name ASC").Find(&projects).Error; errFind != nil {
		return nil, translate(errFind, "", "")
	}
	out := make([]ProjectWithRole, 0, len(projects))
	for _, project := range projects {
		out = append(out, ProjectWithRole{Project: project, Role: roles[project.ID]})
	}
	return out, nil
}
