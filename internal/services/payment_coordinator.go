package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"checkout-service/internal/domain"
	"checkout-service/internal/infra"
)

// ToMinorUnits converts a major-unit amount (rupees) to the gateway's
// minor unit (paise).
func ToMinorUnits(amount int64) int64 {
	return amount * 100
}

type Customer struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Contact string `json:"contact"`
}

type PaymentRequest struct {
	Method      domain.PaymentMethod
	Amount      int64 // major units, COD fee already included
	Customer    Customer
	OrderNumber string
	Address     domain.Address
	// Opened is called once the gateway session is ready for the client
	// widget. The payment is already waiting for a signal at that point.
	Opened func(GatewaySession)
}

// GatewaySession is what the client needs to open the payment widget.
type GatewaySession struct {
	Key            string            `json:"key"`
	GatewayOrderID string            `json:"gatewayOrderId"`
	Amount         int64             `json:"amount"`
	Currency       string            `json:"currency"`
	Name           string            `json:"name"`
	Description    string            `json:"description"`
	OrderNumber    string            `json:"orderNumber"`
	Prefill        Customer          `json:"prefill"`
	Notes          map[string]string `json:"notes"`
}

type SignalKind string

const (
	SignalSuccess SignalKind = "success"
	SignalDismiss SignalKind = "dismiss"
	SignalFailure SignalKind = "failure"
)

// Signal is the single terminal callback the gateway widget emits.
type Signal struct {
	Kind           SignalKind `json:"event"`
	PaymentID      string     `json:"paymentId,omitempty"`
	GatewayOrderID string     `json:"gatewayOrderId,omitempty"`
	Signature      string     `json:"signature,omitempty"`
	Reason         string     `json:"reason,omitempty"`
}

func (s Signal) valid() bool {
	switch s.Kind {
	case SignalSuccess, SignalDismiss, SignalFailure:
		return true
	}
	return false
}

type PaymentConfig struct {
	KeySecret      string
	Currency       string
	MerchantName   string
	SessionTimeout time.Duration
}

type PaymentCoordinator struct {
	gateway infra.GatewayClientInterface
	cfg     PaymentConfig

	mu      sync.Mutex
	pending map[string]chan Signal
}

func NewPaymentCoordinator(gw infra.GatewayClientInterface, cfg PaymentConfig) *PaymentCoordinator {
	if cfg.SessionTimeout <= 0 {
		cfg.SessionTimeout = 15 * time.Minute
	}
	return &PaymentCoordinator{
		gateway: gw,
		cfg:     cfg,
		pending: make(map[string]chan Signal),
	}
}

// Pay settles the money side of a checkout. COD returns immediately; online
// payments block until Resolve delivers a signal for the order number, ctx
// is cancelled, or the session times out. Pay never persists anything.
func (c *PaymentCoordinator) Pay(ctx context.Context, req PaymentRequest) domain.PaymentOutcome {
	switch req.Method {
	case domain.PaymentCOD:
		return domain.Dispatched()
	case domain.PaymentOnline:
		return c.payOnline(ctx, req)
	}
	return domain.Failed("unsupported payment method")
}

func (c *PaymentCoordinator) payOnline(ctx context.Context, req PaymentRequest) domain.PaymentOutcome {
	if c.gateway == nil {
		return domain.Failed("gateway unavailable")
	}

	notes := map[string]string{
		"address":     req.Address.String(),
		"orderNumber": req.OrderNumber,
	}
	gwOrder, err := c.gateway.CreateOrder(ctx, infra.GatewayOrderRequest{
		Amount:   ToMinorUnits(req.Amount),
		Currency: c.cfg.Currency,
		Receipt:  req.OrderNumber,
		Notes:    notes,
	})
	if err != nil {
		slog.ErrorContext(ctx, "gateway order creation failed", "order_number", req.OrderNumber, "error", err)
		return domain.Failed("gateway unavailable")
	}

	signals, ok := c.register(req.OrderNumber)
	if !ok {
		return domain.Failed("payment already pending for order")
	}
	defer c.unregister(req.OrderNumber)

	if req.Opened != nil {
		req.Opened(GatewaySession{
			Key:            c.gateway.KeyID(),
			GatewayOrderID: gwOrder.ID,
			Amount:         ToMinorUnits(req.Amount),
			Currency:       c.cfg.Currency,
			Name:           c.cfg.MerchantName,
			Description:    "Order " + req.OrderNumber,
			OrderNumber:    req.OrderNumber,
			Prefill:        req.Customer,
			Notes:          notes,
		})
	}

	timer := time.NewTimer(c.cfg.SessionTimeout)
	defer timer.Stop()

	select {
	case sig := <-signals:
		return c.outcome(ctx, req.OrderNumber, gwOrder.ID, sig)
	case <-ctx.Done():
		if sig, ok := c.closeSession(req.OrderNumber, signals); ok {
			return c.outcome(ctx, req.OrderNumber, gwOrder.ID, sig)
		}
		return domain.Cancelled("checkout abandoned")
	case <-timer.C:
		if sig, ok := c.closeSession(req.OrderNumber, signals); ok {
			return c.outcome(ctx, req.OrderNumber, gwOrder.ID, sig)
		}
		slog.WarnContext(ctx, "payment session expired", "order_number", req.OrderNumber)
		return domain.Cancelled("payment session expired")
	}
}

// closeSession stops accepting signals for orderNumber. A signal Resolve already
// accepted is returned and takes precedence over cancellation or expiry.
func (c *PaymentCoordinator) closeSession(orderNumber string, signals chan Signal) (Signal, bool) {
	c.unregister(orderNumber)
	select {
	case sig := <-signals:
		return sig, true
	default:
		return Signal{}, false
	}
}

// Verify checks a success signal against the gateway order it claims to pay
// for, without a pending payment behind it.
func (c *PaymentCoordinator) Verify(ctx context.Context, orderNumber, gatewayOrderID string, sig Signal) domain.PaymentOutcome {
	if sig.Kind != SignalSuccess {
		return domain.Failed("payment failed")
	}
	return c.outcome(ctx, orderNumber, gatewayOrderID, sig)
}

func (c *PaymentCoordinator) outcome(ctx context.Context, orderNumber, gatewayOrderID string, sig Signal) domain.PaymentOutcome {
	switch sig.Kind {
	case SignalDismiss:
		return domain.Cancelled("payment cancelled")
	case SignalFailure:
		if sig.Reason == "" {
			return domain.Failed("payment failed")
		}
		return domain.Failed(sig.Reason)
	}

	if sig.PaymentID == "" {
		return domain.Failed("missing payment id")
	}
	if sig.GatewayOrderID != "" && sig.GatewayOrderID != gatewayOrderID {
		slog.WarnContext(ctx, "payment for a different gateway order", "order_number", orderNumber, "gateway_order_id", sig.GatewayOrderID)
		return domain.Failed("payment signature mismatch")
	}
	if c.cfg.KeySecret != "" && !infra.VerifyPaymentSignature(c.cfg.KeySecret, gatewayOrderID, sig.PaymentID, sig.Signature) {
		slog.WarnContext(ctx, "payment signature mismatch", "order_number", orderNumber, "payment_id", sig.PaymentID)
		return domain.Failed("payment signature mismatch")
	}
	return domain.Captured(sig.PaymentID, gatewayOrderID)
}

// Resolve delivers the gateway's terminal signal to the payment waiting on
// orderNumber. Only the first signal is accepted, and an accepted signal is
// always the one Pay reports.
func (c *PaymentCoordinator) Resolve(orderNumber string, sig Signal) error {
	if !sig.valid() {
		return ErrInvalidSignal
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.pending[orderNumber]
	if !ok {
		return ErrNoPendingPayment
	}
	delete(c.pending, orderNumber)
	// Buffered and removed from pending above, so this never blocks.
	ch <- sig
	return nil
}

func (c *PaymentCoordinator) Pending(orderNumber string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[orderNumber]
	return ok
}

func (c *PaymentCoordinator) register(orderNumber string) (chan Signal, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.pending[orderNumber]; exists {
		return nil, false
	}
	ch := make(chan Signal, 1)
	c.pending[orderNumber] = ch
	return ch, true
}

func (c *PaymentCoordinator) unregister(orderNumber string) {
	c.mu.Lock()
	delete(c.pending, orderNumber)
	c.mu.Unlock()
}
