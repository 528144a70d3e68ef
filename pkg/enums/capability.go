package enums

import "fmt"

// Capability gates destructive or discounting operations behind staff roles.
type Capability string

const (
	CapabilityVoidSelection Capability = "selection.void"
	CapabilityCompSelection Capability = "selection.comp"
	CapabilityApplyDiscount Capability = "check.discount"
	CapabilityTransferCheck Capability = "check.transfer"
	CapabilityCloseOrder    Capability = "order.close"
)

var validCapabilities = []Capability{
	CapabilityVoidSelection,
	CapabilityCompSelection,
	CapabilityApplyDiscount,
	CapabilityTransferCheck,
	CapabilityCloseOrder,
}

// String implements fmt.Stringer.
func (c Capability) String() string {
	return string(c)
}

// IsValid reports whether the value is a known Capability.
func (c Capability) IsValid() bool {
	for _, candidate := range validCapabilities {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCapability converts raw input into a Capability.
func ParseCapability(value string) (Capability, error) {
	for _, candidate := range validCapabilities {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid capability %q", value)
}
