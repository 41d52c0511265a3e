package enums

// NotificationType classifies in-app notifications.
type NotificationType string

const (
	// NotificationTypeOrderPlaced goes to the buyer on checkout.
	NotificationTypeOrderPlaced NotificationType = "order_placed"
	// NotificationTypeOrderReceived goes to each shop owner with lines in a new order.
	NotificationTypeOrderReceived      NotificationType = "order_received"
	NotificationTypeOrderStatusChanged NotificationType = "order_status_changed"
)

var notificationTypes = values[NotificationType]{
	NotificationTypeOrderPlaced,
	NotificationTypeOrderReceived,
	NotificationTypeOrderStatusChanged,
}

func (n NotificationType) IsValid() bool { return notificationTypes.has(n) }
