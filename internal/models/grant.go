package models

import "time"

// Grant is the (project, user, role) permission record.
type Grant struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	ProjectID uint64 `gorm:"not null;uniqueIndex:idx_grants_project_user"`       // Project the grant applies to.
	UserID    uint64 `gorm:"not null;uniqueIndex:idx_grants_project_user;index"` // Grantee.
	Role      string `gorm:"type:text;not null"`                                 // One of view, test, upload, owner.

	Project *Project `gorm:"foreignKey:ProjectID"` // Granted project.
	User    *User    `gorm:"foreignKey:UserID"`    // Granted user.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
