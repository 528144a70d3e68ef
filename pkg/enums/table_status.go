package enums

import "fmt"

// TableStatus tracks the floor state of a table.
type TableStatus string

const (
	TableStatusAvailable   TableStatus = "available"
	TableStatusOccupied    TableStatus = "occupied"
	TableStatusReserved    TableStatus = "reserved"
	TableStatusDirty       TableStatus = "dirty"
	TableStatusMaintenance TableStatus = "maintenance"
)

var validTableStatuses = []TableStatus{
	TableStatusAvailable,
	TableStatusOccupied,
	TableStatusReserved,
	TableStatusDirty,
	TableStatusMaintenance,
}

var tableTransitions = map[TableStatus][]TableStatus{
	TableStatusAvailable:   {TableStatusOccupied, TableStatusReserved, TableStatusMaintenance},
	TableStatusOccupied:    {TableStatusDirty, TableStatusAvailable},
	TableStatusReserved:    {TableStatusOccupied, TableStatusAvailable},
	TableStatusDirty:       {TableStatusAvailable, TableStatusMaintenance},
	TableStatusMaintenance: {TableStatusAvailable},
}

// String implements fmt.Stringer.
func (t TableStatus) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TableStatus.
func (t TableStatus) IsValid() bool {
	for _, candidate := range validTableStatuses {
		if candidate == t {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether the floor state may move to target.
func (t TableStatus) CanTransitionTo(target TableStatus) bool {
	for _, candidate := range tableTransitions[t] {
		if candidate == target {
			return true
		}
	}
	return false
}

// ParseTableStatus converts raw input into a TableStatus.
func ParseTableStatus(value string) (TableStatus, error) {
	for _, candidate := range validTableStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid table status %q", value)
}
