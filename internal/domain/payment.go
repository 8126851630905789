package domain

type OutcomeKind string

const (
	OutcomeDispatched OutcomeKind = "dispatched"
	OutcomeCaptured   OutcomeKind = "captured"
	OutcomeCancelled  OutcomeKind = "cancelled"
	OutcomeFailed     OutcomeKind = "failed"
)

// PaymentOutcome describes what happened to the money for one checkout.
// GatewayPaymentID is only set for captured payments, Reason only for
// cancelled and failed ones.
type PaymentOutcome struct {
	Kind             OutcomeKind `json:"kind"`
	GatewayPaymentID string      `json:"gatewayPaymentId,omitempty"`
	GatewayOrderID   string      `json:"gatewayOrderId,omitempty"`
	Reason           string      `json:"reason,omitempty"`
}

func Dispatched() PaymentOutcome {
	return PaymentOutcome{Kind: OutcomeDispatched}
}

func Captured(paymentID, gatewayOrderID string) PaymentOutcome {
	return PaymentOutcome{Kind: OutcomeCaptured, GatewayPaymentID: paymentID, GatewayOrderID: gatewayOrderID}
}

func Cancelled(reason string) PaymentOutcome {
	return PaymentOutcome{Kind: OutcomeCancelled, Reason: reason}
}

func Failed(reason string) PaymentOutcome {
	return PaymentOutcome{Kind: OutcomeFailed, Reason: reason}
}

// Proceeds reports whether the order may be persisted after this outcome.
func (o PaymentOutcome) Proceeds() bool {
	return o.Kind == OutcomeCaptured || o.Kind == OutcomeDispatched
}
