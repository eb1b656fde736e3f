package db

import (
	"fmt"

	"github.com/distr-app/distr/internal/models"
	"gorm.io/gorm"
)

// Migrate runs database migrations for the current dialect.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	switch DialectName(conn) {
	case DialectSQLite, DialectPostgres, "":
	default:
		return fmt.Errorf("db: unsupported dialect: %s", DialectName(conn))
	}

	if errAutoMigrate := conn.AutoMigrate(
		&models.User{},
		&models.Project{},
		&models.Grant{},
		&models.Branch{},
		&models.OneTimeCode{},
		&models.UserToken{},
		&models.BotCursor{},
	); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}

	if errIndex := conn.Exec(`
		CREATE INDEX IF NOT EXISTS idx_branches_project_updated
		ON branches (project_id, updated_at)
	`).Error; errIndex != nil {
		return fmt.Errorf("db: create branches updated index: %w", errIndex)
	}
	return nil
}
