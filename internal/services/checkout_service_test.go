package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"checkout-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCheckoutService(f *workflowFixture, retention time.Duration) *CheckoutService {
	return NewCheckoutService(f.workflow, f.payments, retention)
}

func TestCheckoutService_RejectsSecondInFlight(t *testing.T) {
	f := newWorkflowFixture(true)
	expectGatewayOrder(f.gateway)
	svc := newCheckoutService(f, time.Minute)

	exec, err := svc.Submit(context.Background(), onlineInput(line("walnuts", 999, 1)))
	require.NoError(t, err)
	awaitOnline(t, exec)

	_, err = svc.Submit(context.Background(), onlineInput(line("walnuts", 999, 1)))
	assert.ErrorIs(t, err, ErrCheckoutInFlight)

	other := onlineInput(line("walnuts", 999, 1))
	other.UserID = "user-2"
	exec2, err := svc.Submit(context.Background(), other)
	require.NoError(t, err)
	awaitOnline(t, exec2)

	_, err = svc.Abandon(context.Background(), TestUserID, exec.OrderNumber)
	require.NoError(t, err)
	_, err = svc.Abandon(context.Background(), "user-2", exec2.OrderNumber)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		e, err := svc.Submit(context.Background(), codInput(line("saffron", 1000, 2)))
		if err != nil {
			return false
		}
		_, err = e.Wait(context.Background())
		return err == nil
	}, time.Second, 5*time.Millisecond)
}

func TestCheckoutService_ResolvePayment(t *testing.T) {
	f := newWorkflowFixture(true)
	expectGatewayOrder(f.gateway)
	svc := newCheckoutService(f, time.Minute)

	exec, err := svc.Submit(context.Background(), onlineInput(line("walnuts", 999, 1)))
	require.NoError(t, err)
	awaitOnline(t, exec)

	_, err = svc.ResolvePayment(context.Background(), "intruder", exec.OrderNumber, successSignal("pay_1"))
	assert.ErrorIs(t, err, ErrCheckoutNotFound)

	res, err := svc.ResolvePayment(context.Background(), TestUserID, exec.OrderNumber, successSignal("pay_1"))
	require.NoError(t, err)
	assert.Equal(t, StateComplete, res.State)

	_, err = svc.ResolvePayment(context.Background(), TestUserID, exec.OrderNumber, successSignal("pay_1"))
	assert.ErrorIs(t, err, ErrNoPendingPayment)
	assert.Equal(t, 1, f.orders.calls())
}

func TestCheckoutService_LookupExpires(t *testing.T) {
	f := newWorkflowFixture(true)
	svc := newCheckoutService(f, 10*time.Millisecond)

	exec, err := svc.Submit(context.Background(), codInput(line("saffron", 1000, 2)))
	require.NoError(t, err)
	waitResult(t, exec)

	got, err := svc.Lookup(TestUserID, exec.OrderNumber)
	if err == nil {
		assert.Same(t, exec, got)
	}

	assert.Eventually(t, func() bool {
		_, err := svc.Lookup(TestUserID, exec.OrderNumber)
		return err == ErrCheckoutNotFound
	}, time.Second, 5*time.Millisecond)
}

func TestCheckoutService_Shutdown(t *testing.T) {
	f := newWorkflowFixture(true)
	expectGatewayOrder(f.gateway)
	svc := newCheckoutService(f, time.Minute)

	exec, err := svc.Submit(context.Background(), onlineInput(line("walnuts", 999, 1)))
	require.NoError(t, err)
	awaitOnline(t, exec)

	svc.Shutdown()
	res := waitResult(t, exec)
	assert.Equal(t, KindPaymentCancelled, res.Err.Kind)
}

func newExpiringFixture(timeout time.Duration) *workflowFixture {
	f := newWorkflowFixture(true)
	f.payments = newCoordinator(f.gateway, TestKeySecret, timeout)
	f.workflow = NewCheckoutWorkflow(stubGate(true), newPricing(), f.payments, f.orders, f.notifier, nil)
	return f
}

func TestCheckoutService_SuccessAfterExpiryIsRecorded(t *testing.T) {
	f := newExpiringFixture(20 * time.Millisecond)
	expectGatewayOrder(f.gateway)
	svc := newCheckoutService(f, time.Minute)

	exec, err := svc.Submit(context.Background(), onlineInput(line("walnuts", 999, 1)))
	require.NoError(t, err)
	awaitOnline(t, exec)
	expired := waitResult(t, exec)
	require.Equal(t, KindPaymentCancelled, expired.Err.Kind)
	require.Equal(t, 0, f.orders.calls())

	res, err := svc.ResolvePayment(context.Background(), TestUserID, exec.OrderNumber, successSignal("pay_late"))
	require.NoError(t, err)
	assert.Equal(t, StateComplete, res.State)
	require.NotNil(t, res.Order)
	assert.Equal(t, "pay_late", res.Order.GatewayPaymentID)
	assert.Equal(t, domain.PaymentPaid, res.Order.PaymentStatus)
	assert.Equal(t, int64(1049), res.Order.Total)
	assert.Equal(t, 1, f.orders.calls())
	assert.Equal(t, 1, f.notifier.count())

	final, ok := exec.Result()
	require.True(t, ok)
	assert.Equal(t, StateComplete, final.State)
	assert.Equal(t, StateComplete, exec.State())

	_, err = svc.ResolvePayment(context.Background(), TestUserID, exec.OrderNumber, successSignal("pay_late"))
	assert.ErrorIs(t, err, ErrNoPendingPayment)
	assert.Equal(t, 1, f.orders.calls())
}

func TestCheckoutService_LateSuccessRejections(t *testing.T) {
	f := newExpiringFixture(20 * time.Millisecond)
	expectGatewayOrder(f.gateway)
	svc := newCheckoutService(f, time.Minute)

	exec, err := svc.Submit(context.Background(), onlineInput(line("walnuts", 999, 1)))
	require.NoError(t, err)
	awaitOnline(t, exec)
	waitResult(t, exec)

	forged := successSignal("pay_late")
	forged.Signature = "bad"
	_, err = svc.ResolvePayment(context.Background(), TestUserID, exec.OrderNumber, forged)
	assert.ErrorIs(t, err, ErrInvalidSignal)

	_, err = svc.ResolvePayment(context.Background(), TestUserID, exec.OrderNumber, Signal{Kind: SignalDismiss})
	assert.ErrorIs(t, err, ErrNoPendingPayment)

	_, err = svc.ResolvePayment(context.Background(), "intruder", exec.OrderNumber, successSignal("pay_late"))
	assert.ErrorIs(t, err, ErrCheckoutNotFound)

	assert.Equal(t, 0, f.orders.calls())
}

func TestCheckoutService_LateSuccessUnrecordedIsCritical(t *testing.T) {
	f := newExpiringFixture(20 * time.Millisecond)
	f.orders.err = errors.New("database error")
	expectGatewayOrder(f.gateway)
	svc := newCheckoutService(f, time.Minute)

	exec, err := svc.Submit(context.Background(), onlineInput(line("walnuts", 999, 1)))
	require.NoError(t, err)
	awaitOnline(t, exec)
	waitResult(t, exec)

	res, err := svc.ResolvePayment(context.Background(), TestUserID, exec.OrderNumber, successSignal("pay_late"))
	require.NoError(t, err)
	assert.Equal(t, StateFailed, res.State)
	require.NotNil(t, res.Err)
	assert.True(t, res.Err.Critical())
	assert.Contains(t, res.Message, "pay_late")
}

func TestCheckoutService_SecondCaptureForPlacedOrderIsCritical(t *testing.T) {
	f := newWorkflowFixture(true)
	expectGatewayOrder(f.gateway)
	svc := newCheckoutService(f, time.Minute)

	exec, err := svc.Submit(context.Background(), onlineInput(line("walnuts", 999, 1)))
	require.NoError(t, err)
	awaitOnline(t, exec)

	res, err := svc.ResolvePayment(context.Background(), TestUserID, exec.OrderNumber, successSignal("pay_1"))
	require.NoError(t, err)
	require.Equal(t, StateComplete, res.State)

	res, err = svc.ResolvePayment(context.Background(), TestUserID, exec.OrderNumber, successSignal("pay_2"))
	require.NoError(t, err)
	assert.Equal(t, KindPersistenceAfterPayment, res.Err.Kind)
	assert.Contains(t, res.Message, "pay_2")
	assert.Equal(t, 1, f.orders.calls())

	final, _ := exec.Result()
	assert.Equal(t, StateComplete, final.State)
}

func TestCheckoutService_AbandonRacingSuccessNeverLosesPayment(t *testing.T) {
	f := newWorkflowFixture(true)
	expectGatewayOrder(f.gateway)
	svc := newCheckoutService(f, time.Minute)

	const runs = 50
	for i := 0; i < runs; i++ {
		in := onlineInput(line("walnuts", 999, 1))
		in.UserID = fmt.Sprintf("user-%d", i)
		exec, err := svc.Submit(context.Background(), in)
		require.NoError(t, err)
		awaitOnline(t, exec)

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Abandon(context.Background(), in.UserID, exec.OrderNumber)
		}()
		res, err := svc.ResolvePayment(context.Background(), in.UserID, exec.OrderNumber, successSignal("pay_race"))
		wg.Wait()

		require.NoError(t, err, "iteration %d", i)
		require.Equal(t, StateComplete, res.State, "iteration %d", i)
		final, _ := exec.Result()
		require.Equal(t, StateComplete, final.State, "iteration %d", i)
		require.Equal(t, i+1, f.orders.calls())
	}
}
