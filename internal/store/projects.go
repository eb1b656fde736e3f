package store

import (
	"context"
	"strings"
	"time"

	"github.com/distr-app/distr/internal/apperr"
	"github.com/distr-app/distr/internal/models"
	"github.com/distr-app/distr/internal/permissions"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ProjectInput carries the fields of a new project.
type ProjectInput struct {
	Name         string
	Title        string
	BundleID     string
	Description  *string
	Icon         *string
	Integrations models.Integrations
}

// ProjectPatch is a partial metadata update. Nil or empty fields leave the
// value untouched, except Description which replaces whenever it is non-nil.
type ProjectPatch struct {
	Title       *string
	BundleID    *string
	Description *string
	Icon        *string

	TelegramToken *string
	TelegramID    *string
	MyTeamToken   *string
	MyTeamURL     *string
	MyTeamID      *string
}

// ProjectStore owns project identity and metadata.
type ProjectStore struct {
	db *gorm.DB
}

// NewProjectStore constructs a ProjectStore.
func NewProjectStore(db *gorm.DB) *ProjectStore {
	return &ProjectStore{db: db}
}

// Create inserts the project and the creator's owner grant in one transaction.
func (s *ProjectStore) Create(ctx context.Context, in ProjectInput, ownerID uint64) (models.Project, error) {
	name := strings.TrimSpace(in.Name)
	if errName := ValidateSegment("project name", name); errName != nil {
		return models.Project{}, errName
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return models.Project{}, apperr.BadRequest("project title is required")
	}
	bundleID := strings.TrimSpace(in.BundleID)
	if bundleID == "" {
		return models.Project{}, apperr.BadRequest("bundle id is required")
	}
	if ownerID == 0 {
		return models.Project{}, apperr.Unauthorized("owner is required")
	}

	project := models.Project{
		Name:         name,
		Title:        title,
		BundleID:     bundleID,
		Description:  in.Description,
		Icon:         nonEmpty(in.Icon),
		Integrations: datatypes.NewJSONType(in.Integrations),
	}
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errCreate := tx.Create(&project).Error; errCreate != nil {
			return translate(errCreate, "", "project name already taken")
		}
		_, errGrant := createGrant(tx, project.ID, ownerID, permissions.RoleOwner)
		return errGrant
	})
	if errTx != nil {
		return models.Project{}, errTx
	}
	return project, nil
}

// FindByName resolves a project by its unique name.
func (s *ProjectStore) FindByName(ctx context.Context, name string) (models.Project, error) {
	var project models.Project
	if errFind := s.db.WithContext(ctx).Where("name = ?", strings.TrimSpace(name)).First(&project).Error; errFind != nil {
		return models.Project{}, translate(errFind, "project not found", "")
	}
	return project, nil
}

// UpdateMetadata applies a partial update and returns the stored project.
func (s *ProjectStore) UpdateMetadata(ctx context.Context, project models.Project, patch ProjectPatch) (models.Project, error) {
	updates := map[string]any{}
	if title := trimmed(patch.Title); title != "" {
		updates["title"] = title
	}
	if bundleID := trimmed(patch.BundleID); bundleID != "" {
		updates["bundle_id"] = bundleID
	}
	if icon := trimmed(patch.Icon); icon != "" {
		updates["icon"] = icon
	}
	if patch.Description != nil {
		updates["description"] = *patch.Description
	}

	integrations := project.Integrations.Data()
	integrationsChanged := false
	for _, field := range []struct {
		patch *string
		dst   **string
	}{
		{patch.TelegramToken, &integrations.TelegramToken},
		{patch.TelegramID, &integrations.TelegramID},
		{patch.MyTeamToken, &integrations.MyTeamToken},
		{patch.MyTeamURL, &integrations.MyTeamURL},
		{patch.MyTeamID, &integrations.MyTeamID},
	} {
		if field.patch == nil {
			continue
		}
		value := *field.patch
		*field.dst = &value
		integrationsChanged = true
	}
	if integrationsChanged {
		updates["integrations"] = datatypes.NewJSONType(integrations)
	}

	if len(updates) == 0 {
		return project, nil
	}
	updates["updated_at"] = time.Now().UTC()

	if errUpdate := s.db.WithContext(ctx).Model(&models.Project{}).
		Where("id = ?", project.ID).
		Updates(updates).Error; errUpdate != nil {
		return models.Project{}, translate(errUpdate, "project not found", "")
	}
	var updated models.Project
	if errFind := s.db.WithContext(ctx).First(&updated, project.ID).Error; errFind != nil {
		return models.Project{}, translate(errFind, "project not found", "")
	}
	return updated, nil
}

// Delete removes a project without branches together with all of its grants.
func (s *ProjectStore) Delete(ctx context.Context, project models.Project) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var branches int64
		if errCount := tx.Model(&models.Branch{}).Where("project_id = ?", project.ID).Count(&branches).Error; errCount != nil {
			return translate(errCount, "", "")
		}
		if branches > 0 {
			return apperr.PreconditionFailed("project still has branches")
		}
		if errGrants := tx.Where("project_id = ?", project.ID).Delete(&models.Grant{}).Error; errGrants != nil {
			return translate(errGrants, "", "")
		}
		res := tx.Delete(&models.Project{}, project.ID)
		if res.Error != nil {
			return translate(res.Error, "", "")
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("project not found")
		}
		return nil
	})
}

// CountBranches returns how many branches the project has.
func (s *ProjectStore) CountBranches(ctx context.Context, projectID uint64) (int64, error) {
	var count int64
	if errCount := s.db.WithContext(ctx).Model(&models.Branch{}).Where("project_id = ?", projectID).Count(&count).Error; errCount != nil {
		return 0, translate(errCount, "", "")
	}
	return count, nil
}

func trimmed(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

func nonEmpty(p *string) *string {
	if trimmed(p) == "" {
		return nil
	}
	value := strings.TrimSpace(*p)
	return &value
}
