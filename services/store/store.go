package store

import (
	"time"

	"sendpool/pkg/config"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("store",
	fx.Invoke(migrate),
)

func migrate(cfg *config.Config, db *gorm.DB) error {
	if !cfg.Database.AutoMigrate {
		return nil
	}
	if err := AutoMigrate(db); err != nil {
		zap.L().Error("[Store] auto migrate failed", zap.Error(err))
		return err
	}
	zap.L().Info("[Store] schema migrated")
	return nil
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}

// StartOfDay returns midnight UTC of t's UTC day. Daily quotas reset there.
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Now is the clock every service uses unless a test swaps it.
func Now() time.Time {
	return time.Now().UTC()
}
