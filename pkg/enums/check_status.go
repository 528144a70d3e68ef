package enums

import "fmt"

// CheckStatus tracks the settlement state of a check.
type CheckStatus string

const (
	CheckStatusOpen    CheckStatus = "open"
	CheckStatusSettled CheckStatus = "settled"
	CheckStatusSplit   CheckStatus = "split"
	CheckStatusVoided  CheckStatus = "voided"
)

var validCheckStatuses = []CheckStatus{
	CheckStatusOpen,
	CheckStatusSettled,
	CheckStatusSplit,
	CheckStatusVoided,
}

// String implements fmt.Stringer.
func (c CheckStatus) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CheckStatus.
func (c CheckStatus) IsValid() bool {
	for _, candidate := range validCheckStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

// IsSettled reports whether the check carries no balance due. A split check
// was replaced by its resulting checks and owes nothing itself.
func (c CheckStatus) IsSettled() bool {
	return c == CheckStatusSettled || c == CheckStatusSplit || c == CheckStatusVoided
}

// ParseCheckStatus converts raw input into a CheckStatus.
func ParseCheckStatus(value string) (CheckStatus, error) {
	for _, candidate := range validCheckStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid check status %q", value)
}
