package database

import (
	"log"

	"membership-bot/internal/domain/billing"
	"membership-bot/internal/domain/subscriptions"
	"membership-bot/internal/domain/training"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func Init(dsn string) *gorm.DB {
	if dsn == "" {
		log.Fatal("❌ DATABASE_URL not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("❌ Failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&subscriptions.Subscription{},
		&billing.ProcessedEvent{},
		&billing.Payment{},
		&training.Submission{},
		&training.Completion{},
	); err != nil {
		log.Fatal("❌ AutoMigrate error:", err)
	}

	return db
}
