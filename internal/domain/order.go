package domain

import (
	"fmt"
	"strings"
	"time"
)

type OrderStatus string

const (
	StatusProcessing OrderStatus = "processing"
	StatusConfirmed  OrderStatus = "confirmed"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

var orderStatuses = []OrderStatus{StatusProcessing, StatusConfirmed, StatusShipped, StatusDelivered, StatusCancelled}

// ParseOrderStatus matches s against the known statuses, ignoring case.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	for _, st := range orderStatuses {
		if strings.EqualFold(string(st), strings.TrimSpace(s)) {
			return st, true
		}
	}
	return "", false
}

type PaymentMethod string

const (
	PaymentOnline PaymentMethod = "online"
	PaymentCOD    PaymentMethod = "cod"
)

// ParsePaymentMethod accepts "online" (or the gateway name "razorpay") and "cod".
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "online", "razorpay":
		return PaymentOnline, nil
	case "cod":
		return PaymentCOD, nil
	}
	return "", fmt.Errorf("unknown payment method %q", s)
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

type Address struct {
	Address1 string `json:"address1" gorm:"size:255;not null"`
	Address2 string `json:"address2,omitempty" gorm:"size:255"`
	City     string `json:"city" gorm:"size:128;not null"`
	State    string `json:"state" gorm:"size:128;not null"`
	Pincode  string `json:"pincode" gorm:"size:16;not null"`
}

// String renders the single-line form passed to the gateway as a note.
func (a Address) String() string {
	return fmt.Sprintf("%s, %s, %s - %s", a.Address1, a.City, a.State, a.Pincode)
}

type OrderItem struct {
	ID          uint64 `json:"-" gorm:"primaryKey;autoIncrement"`
	OrderID     uint64 `json:"-" gorm:"not null;index"`
	ProductID   string `json:"productId" gorm:"size:128;not null"`
	ProductName string `json:"productName" gorm:"size:255;not null"`
	Price       int64  `json:"price" gorm:"not null"`
	Quantity    int    `json:"quantity" gorm:"not null"`
	Image       string `json:"image,omitempty" gorm:"size:512"`
}

func (i OrderItem) LineTotal() int64 {
	return i.Price * int64(i.Quantity)
}

// Order is the persisted record of a successful checkout.
type Order struct {
	ID               uint64        `json:"id" gorm:"primaryKey;autoIncrement"`
	OrderNumber      string        `json:"orderNumber" gorm:"size:64;not null;uniqueIndex"`
	UserID           string        `json:"userId" gorm:"size:128;not null;index"`
	CustomerName     string        `json:"customerName" gorm:"size:255;not null"`
	Email            string        `json:"email" gorm:"size:255;not null"`
	Phone            string        `json:"phone" gorm:"size:32;not null"`
	Items            []OrderItem   `json:"items" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	ShippingAddress  Address       `json:"shippingAddress" gorm:"embedded;embeddedPrefix:ship_"`
	Subtotal         int64         `json:"subtotal" gorm:"not null"`
	Tax              int64         `json:"tax" gorm:"not null"`
	CODFee           int64         `json:"codFee" gorm:"column:cod_fee;not null"`
	Total            int64         `json:"total" gorm:"not null"`
	PaymentMethod    PaymentMethod `json:"paymentMethod" gorm:"size:16;not null"`
	PaymentStatus    PaymentStatus `json:"paymentStatus" gorm:"size:16;not null"`
	Status           OrderStatus   `json:"status" gorm:"size:16;not null;default:'processing'"`
	GatewayPaymentID string        `json:"gatewayPaymentId,omitempty" gorm:"size:128"`
	GatewayOrderID   string        `json:"gatewayOrderId,omitempty" gorm:"size:128"`
	CreatedAt        time.Time     `json:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt"`
}

// OrderRequest is built once per checkout attempt and never mutated.
// Total == Subtotal + Tax + CODFee.
type OrderRequest struct {
	OrderNumber     string
	UserID          string
	CustomerName    string
	Email           string
	Phone           string
	Items           []OrderItem
	ShippingAddress Address
	Subtotal        int64
	Tax             int64
	CODFee          int64
	Total           int64
	PaymentMethod   PaymentMethod
	PaymentStatus   PaymentStatus
	CreatedAt       time.Time
}

// ToOrder finalizes the request against a payment outcome. Captured payments
// are recorded as paid with their gateway identifiers; everything else stays
// pending.
func (r OrderRequest) ToOrder(outcome PaymentOutcome) *Order {
	items := make([]OrderItem, len(r.Items))
	copy(items, r.Items)

	o := &Order{
		OrderNumber:     r.OrderNumber,
		UserID:          r.UserID,
		CustomerName:    r.CustomerName,
		Email:           r.Email,
		Phone:           r.Phone,
		Items:           items,
		ShippingAddress: r.ShippingAddress,
		Subtotal:        r.Subtotal,
		Tax:             r.Tax,
		CODFee:          r.CODFee,
		Total:           r.Total,
		PaymentMethod:   r.PaymentMethod,
		PaymentStatus:   PaymentPending,
		Status:          StatusProcessing,
		CreatedAt:       r.CreatedAt,
	}
	if outcome.Kind == OutcomeCaptured {
		o.PaymentStatus = PaymentPaid
		o.GatewayPaymentID = outcome.GatewayPaymentID
		o.GatewayOrderID = outcome.GatewayOrderID
	}
	return o
}
