package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"checkout-service/internal/domain"
	"checkout-service/internal/infra/cache"
	"checkout-service/internal/repository"
)

// SettingsService is the gate in front of the AppSettings record. Reads
// fail closed: if the record cannot be loaded, orders are not accepted.
type SettingsService struct {
	repo  repository.SettingsRepository
	cache cache.Cache
	ttl   time.Duration
	now   func() time.Time
}

func NewSettingsService(r repository.SettingsRepository, c cache.Cache, ttl time.Duration) *SettingsService {
	return &SettingsService{
		repo:  r,
		cache: c,
		ttl:   ttl,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Settings returns the stored record, creating the closed default on the
// first read.
func (s *SettingsService) Settings(ctx context.Context) (domain.AppSettings, error) {
	if cached, ok := s.fromCache(ctx); ok {
		return cached, nil
	}

	stored, err := s.repo.Get(ctx)
	if err != nil {
		return domain.AppSettings{}, err
	}
	if stored == nil {
		stored, err = s.createDefaults(ctx)
		if err != nil {
			return domain.AppSettings{}, err
		}
	}

	s.toCache(ctx, *stored)
	return *stored, nil
}

func (s *SettingsService) IsAcceptingOrders(ctx context.Context) bool {
	settings, err := s.Settings(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "settings unavailable, refusing orders", "error", err)
		return false
	}
	return settings.AcceptingOrders
}

func (s *SettingsService) Update(ctx context.Context, patch domain.SettingsPatch) (domain.AppSettings, error) {
	if patch.AcceptingOrders == nil && patch.MaintenanceMode == nil {
		return domain.AppSettings{}, ErrSettingsUnchanged
	}

	updated, err := s.repo.Update(ctx, patch)
	if err != nil {
		return domain.AppSettings{}, err
	}
	if updated == nil {
		if _, err := s.createDefaults(ctx); err != nil {
			return domain.AppSettings{}, err
		}
		if updated, err = s.repo.Update(ctx, patch); err != nil {
			return domain.AppSettings{}, err
		}
		if updated == nil {
			return domain.AppSettings{}, fmt.Errorf("settings record missing after create")
		}
	}

	if s.cache != nil {
		if err := s.cache.Del(ctx, s.cacheKey()); err != nil {
			slog.WarnContext(ctx, "settings cache invalidation failed", "error", err)
		}
	}
	slog.InfoContext(ctx, "settings updated",
		"accepting_orders", updated.AcceptingOrders,
		"maintenance_mode", updated.MaintenanceMode)
	return *updated, nil
}

// Warmup loads the record once so the first checkout does not pay for the
// lazy create.
func (s *SettingsService) Warmup(ctx context.Context) error {
	_, err := s.Settings(ctx)
	return err
}

func (s *SettingsService) createDefaults(ctx context.Context) (*domain.AppSettings, error) {
	defaults := domain.DefaultSettings(s.now())
	if err := s.repo.Create(ctx, &defaults); err != nil {
		// Another instance may have created it first.
		existing, getErr := s.repo.Get(ctx)
		if getErr == nil && existing != nil {
			return existing, nil
		}
		return nil, fmt.Errorf("create default settings: %w", err)
	}
	slog.InfoContext(ctx, "created default settings", "accepting_orders", defaults.AcceptingOrders)
	return &defaults, nil
}

func (s *SettingsService) cacheKey() string {
	return s.cache.GenerateKey("settings", domain.SettingsID)
}

func (s *SettingsService) fromCache(ctx context.Context) (domain.AppSettings, bool) {
	if s.cache == nil {
		return domain.AppSettings{}, false
	}
	cached, err := s.cache.Get(ctx, s.cacheKey())
	if err != nil || cached == "" {
		return domain.AppSettings{}, false
	}
	var settings domain.AppSettings
	if err := json.Unmarshal([]byte(cached), &settings); err != nil {
		return domain.AppSettings{}, false
	}
	return settings, true
}

func (s *SettingsService) toCache(ctx context.Context, settings domain.AppSettings) {
	if s.cache == nil || s.ttl <= 0 {
		return
	}
	data, err := json.Marshal(settings)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, s.cacheKey(), data, s.ttl); err != nil {
		slog.WarnContext(ctx, "settings cache write failed", "error", err)
	}
}
