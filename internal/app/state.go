package app

import (
	"fmt"

	"github.com/distr-app/distr/internal/models"
	"gorm.io/gorm"
)

// HasUsers reports whether anyone has signed up or pressed /start yet.
func HasUsers(conn *gorm.DB) (bool, error) {
	if conn == nil {
		return false, fmt.Errorf("nil db")
	}
	if !conn.Migrator().HasTable(&models.User{}) {
		return false, nil
	}
	var count int64
	if errCount := conn.Model(&models.User{}).Count(&count).Error; errCount != nil {
		return false, errCount
	}
	return count > 0, nil
}
