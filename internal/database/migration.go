package database

import (
	"fmt"

	"github.com/shimesaba-type0/openlockey/internal/models"

	"gorm.io/gorm"
)

// AutoMigrate runs database schema migrations for all models.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Session{},
		&models.LoginHistory{},
		&models.ResetRequest{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// Reset drops all tables and recreates them. Development use only.
func Reset(db *gorm.DB) error {
	if err := db.Migrator().DropTable(
		&models.ResetRequest{},
		&models.LoginHistory{},
		&models.Session{},
		&models.User{},
	); err != nil {
		return fmt.Errorf("drop tables: %w", err)
	}
	return AutoMigrate(db)
}
