package db

import (
	"gorm.io/gorm"

	"github.com/yungbote/rewardcore-backend/internal/domain"
)

// AutoMigrateAll migrates every registered domain model. Models are grouped
// by area in domain.AllModels so new tables only need registering once.
func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(domain.AllModels()...)
}
