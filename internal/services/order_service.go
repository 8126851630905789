package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"checkout-service/internal/domain"
	"checkout-service/internal/infra/cache"
	"checkout-service/internal/repository"
)

const ordersCacheTTL = 10 * time.Second

// OrderFilter narrows a user's order history. Status "" or "all" keeps every
// status; Query matches the order number or any item name.
type OrderFilter struct {
	Status string
	Query  string
}

type OrderService struct {
	repo     repository.OrderRepository
	cache    cache.Cache
	notifier OrderNotifier
}

func NewOrderService(r repository.OrderRepository, c cache.Cache, n OrderNotifier) *OrderService {
	return &OrderService{
		repo:     r,
		cache:    c,
		notifier: n,
	}
}

// Create persists a finalized order and drops the owner's cached history.
func (s *OrderService) Create(ctx context.Context, order *domain.Order) error {
	if err := s.repo.Save(ctx, order); err != nil {
		return err
	}
	s.invalidateUser(ctx, order.UserID)
	return nil
}

func (s *OrderService) ListForUser(ctx context.Context, userID string, filter OrderFilter) ([]domain.Order, error) {
	orders, err := s.ordersWithCache(ctx, userID)
	if err != nil {
		return nil, err
	}
	return applyFilter(orders, filter), nil
}

func (s *OrderService) GetForUser(ctx context.Context, userID, orderNumber string) (*domain.Order, error) {
	o, err := s.repo.FindByOrderNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if o == nil || o.UserID != userID {
		return nil, ErrOrderNotFound
	}
	return o, nil
}

func (s *OrderService) UpdateStatus(ctx context.Context, orderNumber string, status domain.OrderStatus) (*domain.Order, error) {
	o, err := s.repo.UpdateStatus(ctx, orderNumber, status)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, ErrOrderNotFound
	}

	s.invalidateUser(ctx, o.UserID)
	if s.notifier != nil {
		s.notifier.StatusUpdated(ctx, o)
	}
	return o, nil
}

func (s *OrderService) ordersWithCache(ctx context.Context, userID string) ([]domain.Order, error) {
	var key string
	if s.cache != nil {
		key = s.cache.GenerateKey("orders", userID)
		cached, err := s.cache.Get(ctx, key)
		if err != nil {
			slog.WarnContext(ctx, "order cache read failed", "user_id", userID, "error", err)
		} else if cached != "" {
			var orders []domain.Order
			if err := json.Unmarshal([]byte(cached), &orders); err == nil {
				return orders, nil
			}
		}
	}

	orders, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(orders); err == nil {
			if err := s.cache.Set(ctx, key, data, ordersCacheTTL); err != nil {
				slog.WarnContext(ctx, "order cache write failed", "user_id", userID, "error", err)
			}
		}
	}
	return orders, nil
}

func (s *OrderService) invalidateUser(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, s.cache.GenerateKey("orders", userID)); err != nil {
		slog.WarnContext(ctx, "order cache invalidation failed", "user_id", userID, "error", err)
	}
}

func applyFilter(orders []domain.Order, f OrderFilter) []domain.Order {
	status := strings.ToLower(strings.TrimSpace(f.Status))
	query := strings.ToLower(strings.TrimSpace(f.Query))

	out := make([]domain.Order, 0, len(orders))
	for _, o := range orders {
		if status != "" && status != "all" && string(o.Status) != status {
			continue
		}
		if query != "" && !matchesQuery(o, query) {
			continue
		}
		out = append(out, o)
	}
	return out
}

func matchesQuery(o domain.Order, query string) bool {
	if strings.Contains(strings.ToLower(o.OrderNumber), query) {
		return true
	}
	for _, it := range o.Items {
		if strings.Contains(strings.ToLower(it.ProductName), query) {
			return true
		}
	}
	return false
}
