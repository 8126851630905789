package domain

type NotificationKind string

const (
	NotifyOrderConfirmation NotificationKind = "order_confirmation"
	NotifyAdmin             NotificationKind = "admin_notification"
	NotifyStatusUpdate      NotificationKind = "status_update"
)

// OrderNotification is the payload handed to the email function.
type OrderNotification struct {
	Type      NotificationKind `json:"type"`
	OrderData *Order           `json:"orderData"`
}
