package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"checkout-service/internal/domain"
	"checkout-service/internal/infra/metrics"
	rabbit "checkout-service/internal/infra/rabbitmq"

	"golang.org/x/sync/errgroup"
)

// OrderNotifier fires order emails off the caller's path. Implementations
// must not block and must not report errors back.
type OrderNotifier interface {
	OrderPlaced(ctx context.Context, order *domain.Order)
	StatusUpdated(ctx context.Context, order *domain.Order)
}

var _ OrderNotifier = (*NotificationService)(nil)

type NotificationService struct {
	publisher rabbit.PublisherInterface
	metrics   *metrics.CheckoutMetrics
	wg        sync.WaitGroup
}

func NewNotificationService(pub rabbit.PublisherInterface, m *metrics.CheckoutMetrics) *NotificationService {
	return &NotificationService{publisher: pub, metrics: m}
}

func NotificationPattern(kind domain.NotificationKind) string {
	return "email." + string(kind)
}

// Send publishes one notification and returns the broker error, if any.
func (n *NotificationService) Send(ctx context.Context, kind domain.NotificationKind, order *domain.Order) error {
	msg := domain.OrderNotification{Type: kind, OrderData: order}
	if err := n.publisher.Publish(ctx, NotificationPattern(kind), msg); err != nil {
		return fmt.Errorf("send %s for %s: %w", kind, order.OrderNumber, err)
	}
	return nil
}

// OrderPlaced sends the customer confirmation and the admin notice
// concurrently.
func (n *NotificationService) OrderPlaced(ctx context.Context, order *domain.Order) {
	n.fireAndForget(ctx, order, domain.NotifyOrderConfirmation, domain.NotifyAdmin)
}

func (n *NotificationService) StatusUpdated(ctx context.Context, order *domain.Order) {
	n.fireAndForget(ctx, order, domain.NotifyStatusUpdate)
}

func (n *NotificationService) fireAndForget(ctx context.Context, order *domain.Order, kinds ...domain.NotificationKind) {
	ctx = context.WithoutCancel(ctx)
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()

		var g errgroup.Group
		for _, kind := range kinds {
			kind := kind
			g.Go(func() error {
				err := n.Send(ctx, kind, order)
				if err != nil {
					slog.ErrorContext(ctx, "notification failed", "order_number", order.OrderNumber, "kind", kind, "error", err)
					n.metrics.NotificationFailed(string(kind))
					return err
				}
				slog.InfoContext(ctx, "notification sent", "order_number", order.OrderNumber, "kind", kind)
				return nil
			})
		}
		_ = g.Wait()
	}()
}

// Wait blocks until every notification fired so far has finished.
func (n *NotificationService) Wait() {
	n.wg.Wait()
}
