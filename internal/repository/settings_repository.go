package repository

import (
	"context"

	"checkout-service/internal/domain"
)

// SettingsRepository stores the single AppSettings record. Get and Update
// return nil, nil when the record does not exist yet.
type SettingsRepository interface {
	Get(ctx context.Context) (*domain.AppSettings, error)
	Create(ctx context.Context, settings *domain.AppSettings) error
	Update(ctx context.Context, patch domain.SettingsPatch) (*domain.AppSettings, error)
}
