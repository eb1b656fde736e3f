package models

import "time"

// Branch is a named slot holding the current build of a project.
type Branch struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	ProjectID uint64   `gorm:"not null;uniqueIndex:idx_branches_project_tag"`           // Owning project.
	Project   *Project `gorm:"foreignKey:ProjectID"`                                    // Owning project.
	Tag       string   `gorm:"type:text;not null;uniqueIndex:idx_branches_project_tag"` // Branch name, e.g. a ticket key.

	Filename    string  `gorm:"type:text;not null"`     // Current build file name.
	Size        int64   `gorm:"not null;default:0"`     // Current build size in bytes.
	Description *string `gorm:"type:text"`              // Build notes.
	BuildNumber int     `gorm:"not null;default:0"`     // Incremented on every upload.
	IsTested    bool    `gorm:"not null;default:false"` // Marked tested by a tester.
	IsProtected bool    `gorm:"not null;default:false"` // Protected from deletion by non-owners.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
