package services

import (
	"context"
	"sync"
	"time"

	"checkout-service/internal/domain"
	"checkout-service/internal/infra"
	"checkout-service/internal/mocks"

	"github.com/stretchr/testify/mock"
)

const (
	TestUserID    = "user-1"
	TestKeyID     = "rzp_test_key"
	TestKeySecret = "rzp_test_secret"
	TestGatewayID = "order_gw_1"
)

func validForm() domain.CheckoutForm {
	return domain.CheckoutForm{
		FirstName: "Asha",
		LastName:  "Rao",
		Email:     "asha@example.com",
		Phone:     "9876543210",
		Address1:  "12 Residency Road",
		City:      "Srinagar",
		Pincode:   "190001",
		State:     "JK",
	}
}

func cart(lines ...domain.CartLine) []domain.CartLine {
	return lines
}

func line(id string, price int64, qty int) domain.CartLine {
	return domain.CartLine{ProductID: id, Name: "Item " + id, UnitPrice: price, Quantity: qty}
}

func createMockOrder(number, user string, status domain.OrderStatus, createdAt time.Time, names ...string) domain.Order {
	o := domain.Order{
		OrderNumber: number,
		UserID:      user,
		Status:      status,
		CreatedAt:   createdAt,
	}
	for _, n := range names {
		o.Items = append(o.Items, domain.OrderItem{ProductName: n, Price: 100, Quantity: 1})
	}
	return o
}

type stubGate bool

func (g stubGate) IsAcceptingOrders(context.Context) bool { return bool(g) }

type recordingCreator struct {
	mu     sync.Mutex
	orders []*domain.Order
	err    error
}

func (r *recordingCreator) Create(_ context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders = append(r.orders, order)
	if r.err != nil {
		return r.err
	}
	order.ID = uint64(len(r.orders))
	return nil
}

func (r *recordingCreator) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.orders)
}

type recordingNotifier struct {
	mu     sync.Mutex
	placed []*domain.Order
}

func (n *recordingNotifier) OrderPlaced(_ context.Context, order *domain.Order) {
	n.mu.Lock()
	n.placed = append(n.placed, order)
	n.mu.Unlock()
}

func (n *recordingNotifier) StatusUpdated(context.Context, *domain.Order) {}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.placed)
}

func newGateway() *mocks.MockGatewayClient {
	gw := new(mocks.MockGatewayClient)
	gw.On("KeyID").Return(TestKeyID).Maybe()
	return gw
}

func expectGatewayOrder(gw *mocks.MockGatewayClient) {
	gw.On("CreateOrder", mock.Anything, mock.AnythingOfType("infra.GatewayOrderRequest")).
		Return(&infra.GatewayOrder{ID: TestGatewayID, Status: "created"}, nil)
}

func newCoordinator(gw infra.GatewayClientInterface, secret string, timeout time.Duration) *PaymentCoordinator {
	return NewPaymentCoordinator(gw, PaymentConfig{
		KeySecret:      secret,
		Currency:       "INR",
		MerchantName:   "Vadi-e-Kashmir",
		SessionTimeout: timeout,
	})
}

func newPricing() *Pricing {
	p, err := NewPricing("0.05", 50)
	if err != nil {
		panic(err)
	}
	return p
}

func successSignal(paymentID string) Signal {
	return Signal{
		Kind:           SignalSuccess,
		PaymentID:      paymentID,
		GatewayOrderID: TestGatewayID,
		Signature:      infra.SignPayment(TestKeySecret, TestGatewayID, paymentID),
	}
}
