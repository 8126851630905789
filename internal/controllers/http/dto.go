package http

import (
	"checkout-service/internal/domain"
	"checkout-service/internal/services"
)

type CheckoutRequest struct {
	Form          domain.CheckoutForm `json:"form"`
	Cart          []domain.CartLine   `json:"cart"`
	PaymentMethod string              `json:"paymentMethod" binding:"required"`
}

type PaymentCallbackRequest struct {
	Event          string `json:"event" binding:"required"`
	PaymentID      string `json:"paymentId"`
	GatewayOrderID string `json:"gatewayOrderId"`
	Signature      string `json:"signature"`
	Reason         string `json:"reason"`
}

func (r PaymentCallbackRequest) Signal() services.Signal {
	return services.Signal{
		Kind:           services.SignalKind(r.Event),
		PaymentID:      r.PaymentID,
		GatewayOrderID: r.GatewayOrderID,
		Signature:      r.Signature,
		Reason:         r.Reason,
	}
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// PaymentPendingResponse is returned while the client must open the
// gateway widget.
type PaymentPendingResponse struct {
	OrderNumber string                   `json:"orderNumber"`
	State       services.State           `json:"state"`
	Session     *services.GatewaySession `json:"session"`
}

type CheckoutResponse struct {
	OrderNumber string             `json:"orderNumber"`
	State       services.State     `json:"state"`
	Message     string             `json:"message"`
	Kind        services.ErrorKind `json:"kind,omitempty"`
	Field       services.FieldCode `json:"field,omitempty"`
	Critical    bool               `json:"critical,omitempty"`
	Retryable   bool               `json:"retryable"`
	Order       *domain.Order      `json:"order,omitempty"`
}

type CheckoutStatusResponse struct {
	OrderNumber string                   `json:"orderNumber"`
	State       services.State           `json:"state"`
	Session     *services.GatewaySession `json:"session,omitempty"`
	Result      *CheckoutResponse        `json:"result,omitempty"`
}

func toCheckoutResponse(orderNumber string, res services.CheckoutResult) CheckoutResponse {
	out := CheckoutResponse{
		OrderNumber: orderNumber,
		State:       res.State,
		Message:     res.Message,
		Order:       res.Order,
	}
	if res.Err != nil {
		out.Kind = res.Err.Kind
		out.Field = res.Err.Field
		out.Critical = res.Err.Critical()
		out.Retryable = res.Err.Retryable()
	}
	return out
}
