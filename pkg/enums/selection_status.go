package enums

import "fmt"

// SelectionStatus tracks whether a line item still contributes to totals.
// Voided and comped selections stay on the check for the audit trail.
type SelectionStatus string

const (
	SelectionStatusActive SelectionStatus = "active"
	SelectionStatusVoided SelectionStatus = "voided"
	SelectionStatusComped SelectionStatus = "comped"
)

var validSelectionStatuses = []SelectionStatus{
	SelectionStatusActive,
	SelectionStatusVoided,
	SelectionStatusComped,
}

// String implements fmt.Stringer.
func (s SelectionStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SelectionStatus.
func (s SelectionStatus) IsValid() bool {
	for _, candidate := range validSelectionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// CountsTowardTotal reports whether the selection's extended price is billed.
func (s SelectionStatus) CountsTowardTotal() bool {
	return s == SelectionStatusActive
}

// ParseSelectionStatus converts raw input into a SelectionStatus.
func ParseSelectionStatus(value string) (SelectionStatus, error) {
	for _, candidate := range validSelectionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid selection status %q", value)
}
