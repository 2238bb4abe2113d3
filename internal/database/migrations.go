package database

import (
	"errors"
	"time"

	"github.com/vigintitres/scripta/backend/internal/posts"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationBackfillPostDefaults = "2025-11-02_backfill_post_defaults"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationBackfillPostDefaults, apply: backfillPostDefaults},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// backfillPostDefaults rewrites rows imported without a category or status so
// reads no longer depend on per-request defaulting alone.
func backfillPostDefaults(db *gorm.DB) error {
	if err := db.Model(&posts.Post{}).
		Where("category = '' OR category IS NULL").
		Update("category", string(posts.CategoryJournal)).Error; err != nil {
		return err
	}
	return db.Model(&posts.Post{}).
		Where("status = '' OR status IS NULL").
		Update("status", string(posts.StatusPublished)).Error
}
