package mysql

import (
	"context"
	"errors"
	"time"

	"checkout-service/internal/domain"
	"checkout-service/internal/repository"

	"gorm.io/gorm"
)

type settingsRepo struct {
	db *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) repository.SettingsRepository {
	return &settingsRepo{db: db}
}

func (r *settingsRepo) Get(ctx context.Context) (*domain.AppSettings, error) {
	var s domain.AppSettings
	if err := r.db.WithContext(ctx).First(&s, "id = ?", domain.SettingsID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *settingsRepo) Create(ctx context.Context, settings *domain.AppSettings) error {
	settings.ID = domain.SettingsID
	return r.db.WithContext(ctx).Create(settings).Error
}

func (r *settingsRepo) Update(ctx context.Context, patch domain.SettingsPatch) (*domain.AppSettings, error) {
	var out *domain.AppSettings
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var s domain.AppSettings
		if err := tx.First(&s, "id = ?", domain.SettingsID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		patch.Apply(&s, time.Now().UTC())
		if err := tx.Save(&s).Error; err != nil {
			return err
		}
		out = &s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
