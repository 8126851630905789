package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"checkout-service/internal/domain"
	"checkout-service/internal/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testSettingsKey = "checkout:settings:" + domain.SettingsID

func boolPtr(b bool) *bool { return &b }

func TestSettingsService_FirstReadCreatesClosedDefaults(t *testing.T) {
	mockRepo := new(mocks.MockSettingsRepository)
	mockRepo.On("Get", mock.Anything).Return(nil, nil).Once()
	mockRepo.On("Create", mock.Anything, mock.MatchedBy(func(s *domain.AppSettings) bool {
		return !s.AcceptingOrders && !s.MaintenanceMode
	})).Return(nil).Once()

	service := NewSettingsService(mockRepo, nil, 0)

	assert.False(t, service.IsAcceptingOrders(context.Background()))
	mockRepo.AssertExpectations(t)
}

func TestSettingsService_IsAcceptingOrders(t *testing.T) {
	tests := []struct {
		name       string
		setupMocks func(*mocks.MockSettingsRepository, *mocks.MockCache)
		want       bool
	}{
		{
			name: "stored open",
			setupMocks: func(mockRepo *mocks.MockSettingsRepository, mockCache *mocks.MockCache) {
				mockCache.On("Get", mock.Anything, testSettingsKey).Return("", nil)
				mockRepo.On("Get", mock.Anything).Return(&domain.AppSettings{ID: domain.SettingsID, AcceptingOrders: true}, nil)
				mockCache.On("Set", mock.Anything, testSettingsKey, mock.Anything, 5*time.Second).Return(nil)
			},
			want: true,
		},
		{
			name: "cached open",
			setupMocks: func(mockRepo *mocks.MockSettingsRepository, mockCache *mocks.MockCache) {
				data, _ := json.Marshal(domain.AppSettings{AcceptingOrders: true})
				mockCache.On("Get", mock.Anything, testSettingsKey).Return(string(data), nil)
			},
			want: true,
		},
		{
			name: "storage error fails closed",
			setupMocks: func(mockRepo *mocks.MockSettingsRepository, mockCache *mocks.MockCache) {
				mockCache.On("Get", mock.Anything, testSettingsKey).Return("", errors.New("redis down"))
				mockRepo.On("Get", mock.Anything).Return(nil, errors.New("database error"))
			},
			want: false,
		},
		{
			name: "create failure fails closed",
			setupMocks: func(mockRepo *mocks.MockSettingsRepository, mockCache *mocks.MockCache) {
				mockCache.On("Get", mock.Anything, testSettingsKey).Return("", nil)
				mockRepo.On("Get", mock.Anything).Return(nil, nil)
				mockRepo.On("Create", mock.Anything, mock.Anything).Return(errors.New("read-only"))
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(mocks.MockSettingsRepository)
			mockCache := new(mocks.MockCache)
			tt.setupMocks(mockRepo, mockCache)

			service := NewSettingsService(mockRepo, mockCache, 5*time.Second)

			assert.Equal(t, tt.want, service.IsAcceptingOrders(context.Background()))
			mockRepo.AssertExpectations(t)
			mockCache.AssertExpectations(t)
		})
	}
}

func TestSettingsService_CreateRaceUsesExisting(t *testing.T) {
	mockRepo := new(mocks.MockSettingsRepository)
	mockRepo.On("Get", mock.Anything).Return(nil, nil).Once()
	mockRepo.On("Create", mock.Anything, mock.Anything).Return(errors.New("duplicate key")).Once()
	mockRepo.On("Get", mock.Anything).Return(&domain.AppSettings{ID: domain.SettingsID, AcceptingOrders: true}, nil).Once()

	service := NewSettingsService(mockRepo, nil, 0)
	s, err := service.Settings(context.Background())

	require.NoError(t, err)
	assert.True(t, s.AcceptingOrders)
}

func TestSettingsService_Update(t *testing.T) {
	patch := domain.SettingsPatch{AcceptingOrders: boolPtr(true)}

	t.Run("existing record", func(t *testing.T) {
		mockRepo := new(mocks.MockSettingsRepository)
		mockCache := new(mocks.MockCache)
		mockRepo.On("Update", mock.Anything, patch).Return(&domain.AppSettings{ID: domain.SettingsID, AcceptingOrders: true}, nil)
		mockCache.On("Del", mock.Anything, []string{testSettingsKey}).Return(nil)

		service := NewSettingsService(mockRepo, mockCache, time.Second)
		s, err := service.Update(context.Background(), patch)

		require.NoError(t, err)
		assert.True(t, s.AcceptingOrders)
		mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		mockCache.AssertExpectations(t)
	})

	t.Run("missing record is created first", func(t *testing.T) {
		mockRepo := new(mocks.MockSettingsRepository)
		mockRepo.On("Update", mock.Anything, patch).Return(nil, nil).Once()
		mockRepo.On("Create", mock.Anything, mock.Anything).Return(nil).Once()
		mockRepo.On("Update", mock.Anything, patch).Return(&domain.AppSettings{ID: domain.SettingsID, AcceptingOrders: true}, nil).Once()

		service := NewSettingsService(mockRepo, nil, time.Second)
		s, err := service.Update(context.Background(), patch)

		require.NoError(t, err)
		assert.True(t, s.AcceptingOrders)
		mockRepo.AssertExpectations(t)
	})

	t.Run("empty patch", func(t *testing.T) {
		service := NewSettingsService(new(mocks.MockSettingsRepository), nil, time.Second)
		_, err := service.Update(context.Background(), domain.SettingsPatch{})
		assert.ErrorIs(t, err, ErrSettingsUnchanged)
	})

	t.Run("repository error", func(t *testing.T) {
		mockRepo := new(mocks.MockSettingsRepository)
		mockRepo.On("Update", mock.Anything, patch).Return(nil, errors.New("database error"))

		service := NewSettingsService(mockRepo, nil, time.Second)
		_, err := service.Update(context.Background(), patch)
		assert.EqualError(t, err, "database error")
	})
}

func TestSettingsService_Warmup(t *testing.T) {
	mockRepo := new(mocks.MockSettingsRepository)
	mockRepo.On("Get", mock.Anything).Return(&domain.AppSettings{ID: domain.SettingsID}, nil)

	service := NewSettingsService(mockRepo, nil, 0)
	assert.NoError(t, service.Warmup(context.Background()))
	mockRepo.AssertNumberOfCalls(t, "Get", 1)
}
