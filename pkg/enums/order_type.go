package enums

import "fmt"

// OrderType distinguishes how an order entered the system.
type OrderType string

const (
	OrderTypeDineIn   OrderType = "dine_in"
	OrderTypeTakeout  OrderType = "takeout"
	OrderTypeDelivery OrderType = "delivery"
	OrderTypeKiosk    OrderType = "kiosk"
	OrderTypeOnline   OrderType = "online"
)

var validOrderTypes = []OrderType{
	OrderTypeDineIn,
	OrderTypeTakeout,
	OrderTypeDelivery,
	OrderTypeKiosk,
	OrderTypeOnline,
}

// String implements fmt.Stringer.
func (o OrderType) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderType.
func (o OrderType) IsValid() bool {
	for _, candidate := range validOrderTypes {
		if candidate == o {
			return true
		}
	}
	return false
}

// RequiresTable reports whether orders of this type are seated.
func (o OrderType) RequiresTable() bool {
	return o == OrderTypeDineIn
}

// ParseOrderType converts raw input into an OrderType.
func ParseOrderType(value string) (OrderType, error) {
	for _, candidate := range validOrderTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order type %q", value)
}
