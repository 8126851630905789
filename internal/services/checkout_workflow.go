package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"checkout-service/internal/domain"
	"checkout-service/internal/infra/metrics"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type State string

const (
	StateIdle            State = "IDLE"
	StateValidating      State = "VALIDATING"
	StateAwaitingPayment State = "AWAITING_PAYMENT"
	StatePersisting      State = "PERSISTING"
	StateNotifying       State = "NOTIFYING"
	StateComplete        State = "COMPLETE"
	StateFailed          State = "FAILED"
	StateNeedsLogin      State = "NEEDS_LOGIN"
)

func (s State) Terminal() bool {
	return s == StateComplete || s == StateFailed || s == StateNeedsLogin
}

type (
	OrdersGate interface {
		IsAcceptingOrders(ctx context.Context) bool
	}
	Payer interface {
		Pay(ctx context.Context, req PaymentRequest) domain.PaymentOutcome
	}
	OrderCreator interface {
		Create(ctx context.Context, order *domain.Order) error
	}
)

var (
	_ OrdersGate   = (*SettingsService)(nil)
	_ Payer        = (*PaymentCoordinator)(nil)
	_ OrderCreator = (*OrderService)(nil)
)

type CheckoutInput struct {
	UserID        string
	Form          domain.CheckoutForm
	Cart          []domain.CartLine
	PaymentMethod domain.PaymentMethod
}

// CheckoutResult is the terminal report of one workflow run. Message is the
// text shown to the user.
type CheckoutResult struct {
	State   State          `json:"state"`
	Order   *domain.Order  `json:"order,omitempty"`
	Err     *CheckoutError `json:"-"`
	Message string         `json:"message"`
}

type CheckoutWorkflow struct {
	gate     OrdersGate
	pricing  *Pricing
	payments Payer
	orders   OrderCreator
	notifier OrderNotifier
	metrics  *metrics.CheckoutMetrics
	tracer   trace.Tracer

	now            func() time.Time
	newOrderNumber func(time.Time) string
}

func NewCheckoutWorkflow(gate OrdersGate, pricing *Pricing, payments Payer, orders OrderCreator, notifier OrderNotifier, m *metrics.CheckoutMetrics) *CheckoutWorkflow {
	return &CheckoutWorkflow{
		gate:           gate,
		pricing:        pricing,
		payments:       payments,
		orders:         orders,
		notifier:       notifier,
		metrics:        m,
		tracer:         otel.Tracer("checkout-service/services"),
		now:            func() time.Time { return time.Now().UTC() },
		newOrderNumber: NewOrderNumber,
	}
}

// NewOrderNumber returns VK<epoch-millis>-<6 hex>. The random suffix keeps
// two checkouts in the same millisecond apart.
func NewOrderNumber(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return fmt.Sprintf("VK%d-%s", now.UnixMilli(), suffix)
}

// Execution is a handle on one running checkout.
type Execution struct {
	OrderNumber string
	UserID      string
	Method      domain.PaymentMethod
	StartedAt   time.Time

	mu          sync.Mutex
	state       State
	request     *domain.OrderRequest
	session     *GatewaySession
	result      *CheckoutResult
	latePayment bool

	opened chan struct{}
	done   chan struct{}
	cancel context.CancelFunc
}

func (w *CheckoutWorkflow) newExecution(in CheckoutInput) *Execution {
	now := w.now()
	return &Execution{
		OrderNumber: w.newOrderNumber(now),
		UserID:      in.UserID,
		Method:      in.PaymentMethod,
		StartedAt:   now,
		state:       StateIdle,
		opened:      make(chan struct{}),
		done:        make(chan struct{}),
		cancel:      func() {},
	}
}

// Start runs the workflow in the background. The run outlives ctx; it is
// stopped only through Execution.Cancel.
func (w *CheckoutWorkflow) Start(ctx context.Context, in CheckoutInput) *Execution {
	exec := w.newExecution(in)
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	exec.cancel = cancel
	go func() {
		defer cancel()
		w.run(runCtx, exec, in)
	}()
	return exec
}

// Run executes the workflow on the calling goroutine.
func (w *CheckoutWorkflow) Run(ctx context.Context, in CheckoutInput) (*Execution, CheckoutResult) {
	exec := w.newExecution(in)
	return exec, w.run(ctx, exec, in)
}

func (w *CheckoutWorkflow) run(ctx context.Context, exec *Execution, in CheckoutInput) CheckoutResult {
	ctx, span := w.tracer.Start(ctx, "checkout.run", trace.WithAttributes(
		attribute.String("order_number", exec.OrderNumber),
		attribute.String("payment_method", string(in.PaymentMethod)),
	))
	defer span.End()

	res := w.execute(ctx, exec, in)

	kind := ""
	if res.Err != nil {
		kind = string(res.Err.Kind)
		span.SetStatus(codes.Error, res.Err.Error())
	}
	span.SetAttributes(attribute.String("state", string(res.State)))
	w.metrics.ObserveWorkflow(string(res.State), kind, string(in.PaymentMethod), w.now().Sub(exec.StartedAt))

	exec.finish(res)
	return res
}

func (w *CheckoutWorkflow) execute(ctx context.Context, exec *Execution, in CheckoutInput) CheckoutResult {
	log := slog.With("order_number", exec.OrderNumber)

	exec.setState(ctx, StateValidating)
	if in.UserID == "" {
		log.InfoContext(ctx, "checkout needs login")
		return CheckoutResult{
			State:   StateNeedsLogin,
			Err:     &CheckoutError{Kind: KindAuthRequired, Field: CodeUnauthenticated},
			Message: "Please login to place an order",
		}
	}

	if !w.gate.IsAcceptingOrders(ctx) {
		return w.fail(ctx, log, &CheckoutError{Kind: KindOrdersClosed}, "We are not accepting orders right now. Please try again later.")
	}

	if fe := w.validate(ctx, in); fe != nil {
		return w.fail(ctx, log, &CheckoutError{Kind: KindValidation, Field: fe.Code, Cause: fe}, fe.Message)
	}

	totals := w.pricing.Quote(in.Cart, in.PaymentMethod)
	req := domain.OrderRequest{
		OrderNumber:     exec.OrderNumber,
		UserID:          in.UserID,
		CustomerName:    in.Form.CustomerName(),
		Email:           in.Form.Email,
		Phone:           in.Form.Phone,
		Items:           orderItems(in.Cart),
		ShippingAddress: in.Form.ShippingAddress(),
		Subtotal:        totals.Subtotal,
		Tax:             totals.Tax,
		CODFee:          totals.CODFee,
		Total:           totals.Total,
		PaymentMethod:   in.PaymentMethod,
		PaymentStatus:   domain.PaymentPending,
		CreatedAt:       exec.StartedAt,
	}

	exec.setRequest(req)
	exec.setState(ctx, StateAwaitingPayment)
	outcome := w.pay(ctx, exec, req)
	switch outcome.Kind {
	case domain.OutcomeCancelled:
		return w.fail(ctx, log, &CheckoutError{Kind: KindPaymentCancelled, Cause: errors.New(outcome.Reason)}, "Payment cancelled")
	case domain.OutcomeFailed:
		return w.fail(ctx, log, &CheckoutError{Kind: KindPaymentFailed, Cause: errors.New(outcome.Reason)},
			"Failed to initiate payment: "+outcome.Reason)
	}
	return w.settle(ctx, log, exec, req, outcome)
}

// settle records the order for a settled payment and sends the
// notifications.
func (w *CheckoutWorkflow) settle(ctx context.Context, log *slog.Logger, exec *Execution, req domain.OrderRequest, outcome domain.PaymentOutcome) CheckoutResult {
	// The money side is settled; an abandoning client must not stop the
	// order from being recorded.
	persistCtx := context.WithoutCancel(ctx)

	exec.setState(persistCtx, StatePersisting)
	order := req.ToOrder(outcome)
	if err := w.persist(persistCtx, order); err != nil {
		if outcome.Kind == domain.OutcomeCaptured {
			log.ErrorContext(persistCtx, "CRITICAL: payment captured but order not recorded",
				"payment_id", outcome.GatewayPaymentID,
				"gateway_order_id", outcome.GatewayOrderID,
				"total", order.Total,
				"error", err)
			return w.fail(persistCtx, log, &CheckoutError{Kind: KindPersistenceAfterPayment, Cause: err}, contactSupport(outcome))
		}
		return w.fail(persistCtx, log, &CheckoutError{Kind: KindPersistenceNoPayment, Cause: err}, "Failed to place order: Please try again.")
	}

	exec.setState(persistCtx, StateNotifying)
	if w.notifier != nil {
		w.notifier.OrderPlaced(persistCtx, order)
	}

	exec.setState(persistCtx, StateComplete)
	msg := fmt.Sprintf("Order placed successfully! Order ID: %s", order.OrderNumber)
	if outcome.Kind == domain.OutcomeCaptured {
		msg = "Payment successful! Order placed."
	}
	return CheckoutResult{State: StateComplete, Order: order, Message: msg}
}

// RecordLatePayment records the order for a payment the gateway captured
// after the run had stopped waiting for it. The run's terminal result is
// replaced by the returned one.
func (w *CheckoutWorkflow) RecordLatePayment(ctx context.Context, exec *Execution, outcome domain.PaymentOutcome) CheckoutResult {
	log := slog.With("order_number", exec.OrderNumber)
	log.ErrorContext(ctx, "CRITICAL: payment captured after checkout closed",
		"payment_id", outcome.GatewayPaymentID,
		"gateway_order_id", outcome.GatewayOrderID)

	var res CheckoutResult
	if req, ok := exec.Request(); ok {
		res = w.settle(ctx, log, exec, req, outcome)
	} else {
		res = w.fail(ctx, log, &CheckoutError{Kind: KindPersistenceAfterPayment, Cause: ErrLatePayment}, contactSupport(outcome))
	}
	w.metrics.ObserveWorkflow(string(res.State), lateKind(res), string(exec.Method), w.now().Sub(exec.StartedAt))
	exec.amend(res)
	return res
}

func lateKind(res CheckoutResult) string {
	if res.Err == nil {
		return "LATE_PAYMENT"
	}
	return string(res.Err.Kind)
}

func contactSupport(outcome domain.PaymentOutcome) string {
	return fmt.Sprintf("Payment received but order creation failed. Contact support with payment ID %s.", outcome.GatewayPaymentID)
}

func (w *CheckoutWorkflow) validate(ctx context.Context, in CheckoutInput) *FieldError {
	_, span := w.tracer.Start(ctx, "checkout.validate")
	defer span.End()

	if fe := ValidateCheckout(in.Form, in.UserID); fe != nil {
		span.SetAttributes(attribute.String("field", string(fe.Code)))
		return fe
	}
	if fe := ValidateCart(in.Cart); fe != nil {
		span.SetAttributes(attribute.String("field", string(fe.Code)))
		return fe
	}
	return nil
}

func (w *CheckoutWorkflow) pay(ctx context.Context, exec *Execution, req domain.OrderRequest) domain.PaymentOutcome {
	ctx, span := w.tracer.Start(ctx, "checkout.payment", trace.WithAttributes(
		attribute.Int64("amount", req.Total),
	))
	defer span.End()

	outcome := w.payments.Pay(ctx, PaymentRequest{
		Method:      req.PaymentMethod,
		Amount:      req.Total,
		OrderNumber: req.OrderNumber,
		Address:     req.ShippingAddress,
		Customer: Customer{
			Name:    req.CustomerName,
			Email:   req.Email,
			Contact: req.Phone,
		},
		Opened: exec.markOpened,
	})
	span.SetAttributes(attribute.String("outcome", string(outcome.Kind)))
	return outcome
}

func (w *CheckoutWorkflow) persist(ctx context.Context, order *domain.Order) error {
	ctx, span := w.tracer.Start(ctx, "checkout.persist")
	defer span.End()

	if err := w.orders.Create(ctx, order); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

func (w *CheckoutWorkflow) fail(ctx context.Context, log *slog.Logger, cerr *CheckoutError, msg string) CheckoutResult {
	level := slog.LevelInfo
	if cerr.Kind == KindPersistenceNoPayment || cerr.Kind == KindPersistenceAfterPayment {
		level = slog.LevelError
	}
	log.Log(ctx, level, "checkout failed", "state", StateFailed, "kind", cerr.Kind, "error", cerr)
	return CheckoutResult{State: StateFailed, Err: cerr, Message: msg}
}

func (e *Execution) setState(ctx context.Context, s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
	slog.DebugContext(ctx, "checkout state", "order_number", e.OrderNumber, "state", s)
}

func (e *Execution) setRequest(req domain.OrderRequest) {
	e.mu.Lock()
	e.request = &req
	e.mu.Unlock()
}

// Request returns the order the run was about to place, once pricing is done.
func (e *Execution) Request() (domain.OrderRequest, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.request == nil {
		return domain.OrderRequest{}, false
	}
	return *e.request, true
}

// claimLatePayment lets exactly one late payment through per run.
func (e *Execution) claimLatePayment() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.latePayment {
		return false
	}
	e.latePayment = true
	return true
}

func (e *Execution) markOpened(s GatewaySession) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session != nil {
		return
	}
	e.session = &s
	close(e.opened)
}

func (e *Execution) finish(res CheckoutResult) {
	e.mu.Lock()
	e.state = res.State
	e.result = &res
	e.mu.Unlock()
	close(e.done)
}

func (e *Execution) amend(res CheckoutResult) {
	e.mu.Lock()
	e.state = res.State
	e.result = &res
	e.mu.Unlock()
}

func (e *Execution) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Execution) Session() *GatewaySession {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}

// Result returns the terminal result once the run has finished.
func (e *Execution) Result() (CheckoutResult, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.result == nil {
		return CheckoutResult{}, false
	}
	return *e.result, true
}

func (e *Execution) Done() <-chan struct{} {
	return e.done
}

// Cancel abandons the run. A payment still waiting on the gateway resolves
// as cancelled; a settled payment is still recorded.
func (e *Execution) Cancel() {
	e.cancel()
}

// AwaitSession blocks until the gateway session is open or the run has
// finished, whichever comes first. Exactly one of the two return values is
// non-nil when err is nil.
func (e *Execution) AwaitSession(ctx context.Context) (*GatewaySession, *CheckoutResult, error) {
	select {
	case <-e.opened:
		select {
		case <-e.done:
			res, _ := e.Result()
			return nil, &res, nil
		default:
		}
		return e.Session(), nil, nil
	case <-e.done:
		res, _ := e.Result()
		return nil, &res, nil
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
}

func (e *Execution) Wait(ctx context.Context) (CheckoutResult, error) {
	select {
	case <-e.done:
		res, _ := e.Result()
		return res, nil
	case <-ctx.Done():
		return CheckoutResult{}, ctx.Err()
	}
}
