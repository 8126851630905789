package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"checkout-service/internal/domain"
)

// CheckoutService tracks running checkouts so the gateway callback, status
// polls and abandon requests can find them. One user may have only one
// checkout in flight; the workflow itself does not deduplicate.
type CheckoutService struct {
	workflow  *CheckoutWorkflow
	payments  *PaymentCoordinator
	retention time.Duration

	mu       sync.Mutex
	byOrder  map[string]*Execution
	inFlight map[string]string // user id -> order number
}

func NewCheckoutService(w *CheckoutWorkflow, p *PaymentCoordinator, retention time.Duration) *CheckoutService {
	return &CheckoutService{
		workflow:  w,
		payments:  p,
		retention: retention,
		byOrder:   make(map[string]*Execution),
		inFlight:  make(map[string]string),
	}
}

func (s *CheckoutService) Submit(ctx context.Context, in CheckoutInput) (*Execution, error) {
	s.mu.Lock()
	if in.UserID != "" {
		if _, busy := s.inFlight[in.UserID]; busy {
			s.mu.Unlock()
			return nil, ErrCheckoutInFlight
		}
	}
	exec := s.workflow.Start(ctx, in)
	s.byOrder[exec.OrderNumber] = exec
	if in.UserID != "" {
		s.inFlight[in.UserID] = exec.OrderNumber
	}
	s.mu.Unlock()

	go s.release(exec)
	return exec, nil
}

func (s *CheckoutService) release(exec *Execution) {
	<-exec.Done()

	s.mu.Lock()
	if s.inFlight[exec.UserID] == exec.OrderNumber {
		delete(s.inFlight, exec.UserID)
	}
	s.mu.Unlock()

	time.AfterFunc(s.retention, func() {
		s.mu.Lock()
		delete(s.byOrder, exec.OrderNumber)
		s.mu.Unlock()
	})
}

// Lookup returns the checkout only to the user who started it.
func (s *CheckoutService) Lookup(userID, orderNumber string) (*Execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exec, ok := s.byOrder[orderNumber]
	if !ok || exec.UserID != userID {
		return nil, ErrCheckoutNotFound
	}
	return exec, nil
}

// ResolvePayment hands the gateway callback to the waiting payment and
// blocks until the checkout reaches its terminal state. A success that
// arrives once the payment has stopped waiting is still recorded.
func (s *CheckoutService) ResolvePayment(ctx context.Context, userID, orderNumber string, sig Signal) (CheckoutResult, error) {
	exec, err := s.Lookup(userID, orderNumber)
	if err != nil {
		if capturedSignal(sig) {
			slog.ErrorContext(ctx, "CRITICAL: captured payment for unknown checkout",
				"order_number", orderNumber, "payment_id", sig.PaymentID, "gateway_order_id", sig.GatewayOrderID)
		}
		return CheckoutResult{}, err
	}

	err = s.payments.Resolve(orderNumber, sig)
	if errors.Is(err, ErrNoPendingPayment) && capturedSignal(sig) {
		return s.latePayment(ctx, exec, sig)
	}
	if err != nil {
		slog.WarnContext(ctx, "payment signal rejected", "order_number", orderNumber, "event", sig.Kind, "error", err)
		return CheckoutResult{}, err
	}
	return exec.Wait(ctx)
}

func capturedSignal(sig Signal) bool {
	return sig.Kind == SignalSuccess && sig.PaymentID != ""
}

func (s *CheckoutService) latePayment(ctx context.Context, exec *Execution, sig Signal) (CheckoutResult, error) {
	session := exec.Session()
	if session == nil {
		return CheckoutResult{}, ErrNoPendingPayment
	}

	res, err := exec.Wait(ctx)
	if err != nil {
		return CheckoutResult{}, err
	}
	if res.State == StateComplete {
		if res.Order != nil && res.Order.GatewayPaymentID == sig.PaymentID {
			return CheckoutResult{}, ErrNoPendingPayment
		}
		slog.ErrorContext(ctx, "CRITICAL: second payment captured for a placed order",
			"order_number", exec.OrderNumber, "payment_id", sig.PaymentID)
		return CheckoutResult{
			State:   StateFailed,
			Err:     &CheckoutError{Kind: KindPersistenceAfterPayment, Cause: ErrLatePayment},
			Message: contactSupport(domain.Captured(sig.PaymentID, session.GatewayOrderID)),
		}, nil
	}

	outcome := s.payments.Verify(ctx, exec.OrderNumber, session.GatewayOrderID, sig)
	if outcome.Kind != domain.OutcomeCaptured {
		slog.WarnContext(ctx, "late payment signal rejected", "order_number", exec.OrderNumber, "reason", outcome.Reason)
		return CheckoutResult{}, ErrInvalidSignal
	}
	if !exec.claimLatePayment() {
		return CheckoutResult{}, ErrNoPendingPayment
	}
	return s.workflow.RecordLatePayment(ctx, exec, outcome), nil
}

func (s *CheckoutService) Abandon(ctx context.Context, userID, orderNumber string) (CheckoutResult, error) {
	exec, err := s.Lookup(userID, orderNumber)
	if err != nil {
		return CheckoutResult{}, err
	}
	slog.InfoContext(ctx, "checkout abandoned by client", "order_number", orderNumber, "state", exec.State())
	exec.Cancel()
	return exec.Wait(ctx)
}

// Shutdown cancels every checkout still waiting on the gateway.
func (s *CheckoutService) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, exec := range s.byOrder {
		exec.Cancel()
	}
}
