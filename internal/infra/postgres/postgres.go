package postgres

import (
	"errors"

	"checkout-service/internal/domain"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Open connects to Postgres through pgx and migrates the checkout tables.
func Open(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, errors.New("DATABASE_URL is required for postgres")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(domain.PersistentModels()...); err != nil {
		return nil, err
	}

	return db, nil
}
