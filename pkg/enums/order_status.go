package enums

import "fmt"

// OrderStatus tracks the lifecycle of an order.
type OrderStatus string

const (
	OrderStatusOpen          OrderStatus = "open"
	OrderStatusInPreparation OrderStatus = "in_preparation"
	OrderStatusReady         OrderStatus = "ready"
	OrderStatusClosed        OrderStatus = "closed"
	OrderStatusVoided        OrderStatus = "voided"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusOpen,
	OrderStatusInPreparation,
	OrderStatusReady,
	OrderStatusClosed,
	OrderStatusVoided,
}

// String implements fmt.Stringer.
func (o OrderStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderStatus.
func (o OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the order can no longer be mutated.
func (o OrderStatus) IsTerminal() bool {
	return o == OrderStatusClosed || o == OrderStatusVoided
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
