package postgres

import (
	"log"
	"time"

	"github.com/LavaJover/shvark-affiliate-service/internal/config"
	"github.com/LavaJover/shvark-affiliate-service/internal/infrastructure/migrate"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func MustInitDB(cfg *config.AffiliateConfig) *gorm.DB {
	dsn := cfg.AffiliateDB.Dsn
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		log.Fatalf("failed to init db: %v\n", err.Error())
	}

	if err := migrate.RunMigrations(db, cfg.AffiliateDB.MigrationsPath); err != nil {
		log.Fatalf("failed to migrate db: %v\n", err)
	}

	return db
}
