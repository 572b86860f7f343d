package database

import (
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/leaflog/leaflog/internal/infrastructure/database/models"
)

// NewSQLite opens the on-device store backing local key/value
// documents.
func NewSQLite(path string) (*gorm.DB, error) {
	return gorm.Open(sqlite.Open(path), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
}

func MigrateSQLite(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.LocalEntry{},
	)
}
