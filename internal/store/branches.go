package store

import (
	"context"
	"errors"
	"time"

	"github.com/distr-app/distr/internal/db"
	"github.com/distr-app/distr/internal/models"
	"github.com/distr-app/distr/internal/permissions"
	"gorm.io/gorm"
)

// BranchPatch is a metadata edit; each field is applied only when the caller's role allows it.
type BranchPatch struct {
	IsProtected *bool
	IsTested    *bool
	Description *string
}

// BranchStore is the ledger of current builds per (project, tag).
type BranchStore struct {
	db *gorm.DB
}

// NewBranchStore constructs a BranchStore.
func NewBranchStore(db *gorm.DB) *BranchStore {
	return &BranchStore{db: db}
}

// List returns the project's branches, most recently updated first.
func (s *BranchStore) List(ctx context.Context, projectID uint64) ([]models.Branch, error) {
	var rows []models.Branch
	if errFind := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("updated_at DESC, id DESC").
		Find(&rows).Error; errFind != nil {
		return nil, translate(errFind, "", "")
	}
	return rows, nil
}

// Get returns a single branch.
func (s *BranchStore) Get(ctx context.Context, projectID uint64, tag string) (models.Branch, error) {
	var branch models.Branch
	if errFind := s.db.WithContext(ctx).
		Where("project_id = ? AND tag = ?", projectID, tag).
		First(&branch).Error; errFind != nil {
		return models.Branch{}, translate(errFind, "branch not found", "")
	}
	return branch, nil
}

// UpsertOnUpload records a newly stored build. A new tag starts at build 1;
// an existing one gets the new file, an incremented build number and is
// marked untested while keeping its protection flag.
func (s *BranchStore) UpsertOnUpload(ctx context.Context, projectID uint64, tag, filename string, size int64, description *string) (models.Branch, error) {
	if errTag := ValidateSegment("tag", tag); errTag != nil {
		return models.Branch{}, errTag
	}
	if errName := ValidateSegment("filename", filename); errName != nil {
		return models.Branch{}, errName
	}

	var branch models.Branch
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Branch
		errFind := db.ForUpdate(tx).
			Where("project_id = ? AND tag = ?", projectID, tag).
			First(&existing).Error
		switch {
		case errors.Is(errFind, gorm.ErrRecordNotFound):
			branch = models.Branch{
				ProjectID:   projectID,
				Tag:         tag,
				Filename:    filename,
				Size:        size,
				Description: description,
				BuildNumber: 1,
			}
			return translate(tx.Create(&branch).Error, "", "branch is being created concurrently")
		case errFind != nil:
			return translate(errFind, "", "")
		}

		now := time.Now().UTC()
		if errUpdate := tx.Model(&models.Branch{}).
			Where("id = ?", existing.ID).
			Updates(map[string]any{
				"filename":     filename,
				"size":         size,
				"description":  optionalString(description),
				"is_tested":    false,
				"build_number": gorm.Expr("build_number + ?", 1),
				"updated_at":   now,
			}).Error; errUpdate != nil {
			return translate(errUpdate, "", "")
		}
		return translate(tx.First(&branch, existing.ID).Error, "branch not found", "")
	})
	if errTx != nil {
		return models.Branch{}, errTx
	}
	return branch, nil
}

// UpdateMetadata applies the fields of patch the role is allowed to change.
// Unauthorized fields are ignored rather than rejected.
func (s *BranchStore) UpdateMetadata(ctx context.Context, projectID uint64, tag string, patch BranchPatch, role permissions.Role) (models.Branch, error) {
	updates := map[string]any{}
	if patch.IsProtected != nil && role.Can(permissions.CapProtect) {
		updates["is_protected"] = *patch.IsProtected
	}
	if patch.IsTested != nil && role.Can(permissions.CapTest) {
		updates["is_tested"] = *patch.IsTested
	}
	if patch.Description != nil && role.Can(permissions.CapUpload) {
		updates["description"] = *patch.Description
	}

	branch, errGet := s.Get(ctx, projectID, tag)
	if errGet != nil {
		return models.Branch{}, errGet
	}
	if len(updates) == 0 {
		return branch, nil
	}
	updates["updated_at"] = time.Now().UTC()

	if errUpdate := s.db.WithContext(ctx).Model(&models.Branch{}).
		Where("id = ?", branch.ID).
		Updates(updates).Error; errUpdate != nil {
		return models.Branch{}, translate(errUpdate, "branch not found", "")
	}
	return s.Get(ctx, projectID, tag)
}

// Delete removes the ledger row and returns it so the caller can remove the stored file.
func (s *BranchStore) Delete(ctx context.Context, projectID uint64, tag string) (models.Branch, error) {
	var branch models.Branch
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errFind := db.ForUpdate(tx).
			Where("project_id = ? AND tag = ?", projectID, tag).
			First(&branch).Error; errFind != nil {
			return translate(errFind, "branch not found", "")
		}
		return translate(tx.Delete(&models.Branch{}, branch.ID).Error, "branch not found", "")
	})
	if errTx != nil {
		return models.Branch{}, errTx
	}
	return branch, nil
}

// optionalString unwraps p so a nil pointer is written as NULL.
func optionalString(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
