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

const testOrdersKey = "checkout:orders:" + TestUserID

func TestOrderService_Create(t *testing.T) {
	tests := []struct {
		name          string
		setupMocks    func(*mocks.MockOrderRepository, *mocks.MockCache)
		expectedError string
	}{
		{
			name: "successful create invalidates history",
			setupMocks: func(mockRepo *mocks.MockOrderRepository, mockCache *mocks.MockCache) {
				mockRepo.On("Save", mock.Anything, mock.AnythingOfType("*domain.Order")).Return(nil).Run(func(args mock.Arguments) {
					args.Get(1).(*domain.Order).ID = 1
				})
				mockCache.On("Del", mock.Anything, []string{testOrdersKey}).Return(nil)
			},
		},
		{
			name: "cache failure does not fail create",
			setupMocks: func(mockRepo *mocks.MockOrderRepository, mockCache *mocks.MockCache) {
				mockRepo.On("Save", mock.Anything, mock.Anything).Return(nil)
				mockCache.On("Del", mock.Anything, mock.Anything).Return(errors.New("redis down"))
			},
		},
		{
			name: "database error",
			setupMocks: func(mockRepo *mocks.MockOrderRepository, mockCache *mocks.MockCache) {
				mockRepo.On("Save", mock.Anything, mock.Anything).Return(errors.New("database error"))
			},
			expectedError: "database error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(mocks.MockOrderRepository)
			mockCache := new(mocks.MockCache)
			tt.setupMocks(mockRepo, mockCache)

			service := NewOrderService(mockRepo, mockCache, nil)
			order := &domain.Order{OrderNumber: "VK1-abcdef", UserID: TestUserID}

			err := service.Create(context.Background(), order)

			if tt.expectedError != "" {
				assert.EqualError(t, err, tt.expectedError)
				mockCache.AssertNotCalled(t, "Del", mock.Anything, mock.Anything)
			} else {
				assert.NoError(t, err)
			}
			mockRepo.AssertExpectations(t)
			mockCache.AssertExpectations(t)
		})
	}
}

func TestOrderService_ListForUser(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	history := []domain.Order{
		createMockOrder("VK300-cccccc", TestUserID, domain.StatusShipped, base.Add(2*time.Hour), "Kashmiri Saffron"),
		createMockOrder("VK200-bbbbbb", TestUserID, domain.StatusProcessing, base.Add(time.Hour), "Walnut Kernels", "Almonds"),
		createMockOrder("VK100-aaaaaa", TestUserID, domain.StatusDelivered, base, "Pashmina Shawl"),
	}
	cached, _ := json.Marshal(history)

	tests := []struct {
		name       string
		filter     OrderFilter
		setupMocks func(*mocks.MockOrderRepository, *mocks.MockCache)
		want       []string
		wantErr    bool
	}{
		{
			name: "cache miss loads and caches",
			setupMocks: func(mockRepo *mocks.MockOrderRepository, mockCache *mocks.MockCache) {
				mockCache.On("Get", mock.Anything, testOrdersKey).Return("", nil)
				mockRepo.On("FindByUser", mock.Anything, TestUserID).Return(history, nil)
				mockCache.On("Set", mock.Anything, testOrdersKey, mock.Anything, ordersCacheTTL).Return(nil)
			},
			want: []string{"VK300-cccccc", "VK200-bbbbbb", "VK100-aaaaaa"},
		},
		{
			name:   "cache hit skips repository",
			filter: OrderFilter{Status: "all"},
			setupMocks: func(mockRepo *mocks.MockOrderRepository, mockCache *mocks.MockCache) {
				mockCache.On("Get", mock.Anything, testOrdersKey).Return(string(cached), nil)
			},
			want: []string{"VK300-cccccc", "VK200-bbbbbb", "VK100-aaaaaa"},
		},
		{
			name:   "status filter ignores case",
			filter: OrderFilter{Status: "SHIPPED"},
			setupMocks: func(mockRepo *mocks.MockOrderRepository, mockCache *mocks.MockCache) {
				mockCache.On("Get", mock.Anything, testOrdersKey).Return(string(cached), nil)
			},
			want: []string{"VK300-cccccc"},
		},
		{
			name:   "query matches item name",
			filter: OrderFilter{Query: "walnut"},
			setupMocks: func(mockRepo *mocks.MockOrderRepository, mockCache *mocks.MockCache) {
				mockCache.On("Get", mock.Anything, testOrdersKey).Return(string(cached), nil)
			},
			want: []string{"VK200-bbbbbb"},
		},
		{
			name:   "query matches order number",
			filter: OrderFilter{Query: "vk100"},
			setupMocks: func(mockRepo *mocks.MockOrderRepository, mockCache *mocks.MockCache) {
				mockCache.On("Get", mock.Anything, testOrdersKey).Return(string(cached), nil)
			},
			want: []string{"VK100-aaaaaa"},
		},
		{
			name:   "status and query combine",
			filter: OrderFilter{Status: "processing", Query: "saffron"},
			setupMocks: func(mockRepo *mocks.MockOrderRepository, mockCache *mocks.MockCache) {
				mockCache.On("Get", mock.Anything, testOrdersKey).Return(string(cached), nil)
			},
			want: []string{},
		},
		{
			name: "cache error falls through to repository",
			setupMocks: func(mockRepo *mocks.MockOrderRepository, mockCache *mocks.MockCache) {
				mockCache.On("Get", mock.Anything, testOrdersKey).Return("", errors.New("redis down"))
				mockRepo.On("FindByUser", mock.Anything, TestUserID).Return(history[:1], nil)
				mockCache.On("Set", mock.Anything, testOrdersKey, mock.Anything, ordersCacheTTL).Return(errors.New("redis down"))
			},
			want: []string{"VK300-cccccc"},
		},
		{
			name: "repository error",
			setupMocks: func(mockRepo *mocks.MockOrderRepository, mockCache *mocks.MockCache) {
				mockCache.On("Get", mock.Anything, testOrdersKey).Return("", nil)
				mockRepo.On("FindByUser", mock.Anything, TestUserID).Return(nil, errors.New("database error"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(mocks.MockOrderRepository)
			mockCache := new(mocks.MockCache)
			tt.setupMocks(mockRepo, mockCache)

			service := NewOrderService(mockRepo, mockCache, nil)
			orders, err := service.ListForUser(context.Background(), TestUserID, tt.filter)

			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			got := make([]string, 0, len(orders))
			for _, o := range orders {
				got = append(got, o.OrderNumber)
			}
			assert.Equal(t, tt.want, got)
			mockRepo.AssertExpectations(t)
			mockCache.AssertExpectations(t)
		})
	}
}

func TestOrderService_ListForUser_NoCache(t *testing.T) {
	mockRepo := new(mocks.MockOrderRepository)
	mockRepo.On("FindByUser", mock.Anything, TestUserID).Return([]domain.Order{}, nil)

	service := NewOrderService(mockRepo, nil, nil)
	orders, err := service.ListForUser(context.Background(), TestUserID, OrderFilter{})

	assert.NoError(t, err)
	assert.Empty(t, orders)
}

func TestOrderService_GetForUser(t *testing.T) {
	owned := createMockOrder("VK1-aaaaaa", TestUserID, domain.StatusProcessing, time.Now())

	tests := []struct {
		name          string
		userID        string
		setupMocks    func(*mocks.MockOrderRepository)
		expectedError error
	}{
		{
			name:   "owner reads order",
			userID: TestUserID,
			setupMocks: func(mockRepo *mocks.MockOrderRepository) {
				mockRepo.On("FindByOrderNumber", mock.Anything, "VK1-aaaaaa").Return(&owned, nil)
			},
		},
		{
			name:   "other user sees not found",
			userID: "user-2",
			setupMocks: func(mockRepo *mocks.MockOrderRepository) {
				mockRepo.On("FindByOrderNumber", mock.Anything, "VK1-aaaaaa").Return(&owned, nil)
			},
			expectedError: ErrOrderNotFound,
		},
		{
			name:   "missing order",
			userID: TestUserID,
			setupMocks: func(mockRepo *mocks.MockOrderRepository) {
				mockRepo.On("FindByOrderNumber", mock.Anything, "VK1-aaaaaa").Return(nil, nil)
			},
			expectedError: ErrOrderNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(mocks.MockOrderRepository)
			tt.setupMocks(mockRepo)

			service := NewOrderService(mockRepo, nil, nil)
			o, err := service.GetForUser(context.Background(), tt.userID, "VK1-aaaaaa")

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, o)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "VK1-aaaaaa", o.OrderNumber)
		})
	}
}

func TestOrderService_UpdateStatus(t *testing.T) {
	shipped := createMockOrder("VK1-aaaaaa", TestUserID, domain.StatusShipped, time.Now())

	t.Run("updates and notifies", func(t *testing.T) {
		mockRepo := new(mocks.MockOrderRepository)
		mockCache := new(mocks.MockCache)
		mockPub := new(mocks.MockPublisher)
		mockRepo.On("UpdateStatus", mock.Anything, "VK1-aaaaaa", domain.StatusShipped).Return(&shipped, nil)
		mockCache.On("Del", mock.Anything, []string{testOrdersKey}).Return(nil)
		mockPub.On("Publish", mock.Anything, "email.status_update", mock.MatchedBy(func(n domain.OrderNotification) bool {
			return n.Type == domain.NotifyStatusUpdate && n.OrderData.OrderNumber == "VK1-aaaaaa"
		})).Return(nil)

		notifier := NewNotificationService(mockPub, nil)
		service := NewOrderService(mockRepo, mockCache, notifier)

		o, err := service.UpdateStatus(context.Background(), "VK1-aaaaaa", domain.StatusShipped)
		notifier.Wait()

		require.NoError(t, err)
		assert.Equal(t, domain.StatusShipped, o.Status)
		mockRepo.AssertExpectations(t)
		mockCache.AssertExpectations(t)
		mockPub.AssertExpectations(t)
	})

	t.Run("unknown order", func(t *testing.T) {
		mockRepo := new(mocks.MockOrderRepository)
		mockRepo.On("UpdateStatus", mock.Anything, "VK-none", domain.StatusShipped).Return(nil, nil)

		service := NewOrderService(mockRepo, nil, nil)
		_, err := service.UpdateStatus(context.Background(), "VK-none", domain.StatusShipped)

		assert.ErrorIs(t, err, ErrOrderNotFound)
	})
}
