package enums

// OrderStatus tracks an order from basket to a terminal state.
type OrderStatus string

const (
	OrderStatusBasket    OrderStatus = "basket"
	OrderStatusNew       OrderStatus = "new"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusAssembled OrderStatus = "assembled"
	OrderStatusSent      OrderStatus = "sent"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCanceled  OrderStatus = "canceled"
)

var orderStatuses = values[OrderStatus]{
	OrderStatusBasket,
	OrderStatusNew,
	OrderStatusConfirmed,
	OrderStatusAssembled,
	OrderStatusSent,
	OrderStatusDelivered,
	OrderStatusCanceled,
}

// orderTransitions lists every allowed next state. A status missing from the
// map, or mapped to an empty list, is terminal.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusBasket:    {OrderStatusNew},
	OrderStatusNew:       {OrderStatusConfirmed, OrderStatusCanceled},
	OrderStatusConfirmed: {OrderStatusAssembled, OrderStatusCanceled},
	OrderStatusAssembled: {OrderStatusSent, OrderStatusCanceled},
	OrderStatusSent:      {OrderStatusDelivered},
	OrderStatusDelivered: {},
	OrderStatusCanceled:  {},
}

func (s OrderStatus) String() string { return string(s) }

func (s OrderStatus) IsValid() bool { return orderStatuses.has(s) }

// IsTerminal reports whether no transition leaves s.
func (s OrderStatus) IsTerminal() bool {
	return s.IsValid() && len(orderTransitions[s]) == 0
}

// IsPlaced reports whether the order has left the basket.
func (s OrderStatus) IsPlaced() bool {
	return s.IsValid() && s != OrderStatusBasket
}

// AllowedTransitions returns a copy of the states reachable from s in one
// step; callers may modify it freely.
func (s OrderStatus) AllowedTransitions() []OrderStatus {
	return append([]OrderStatus{}, orderTransitions[s]...)
}

func (s OrderStatus) CanTransition(next OrderStatus) bool {
	return values[OrderStatus](orderTransitions[s]).has(next)
}

func ParseOrderStatus(value string) (OrderStatus, error) {
	return orderStatuses.parse("order status", value)
}
