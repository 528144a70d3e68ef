package enums

import "fmt"

// TabStatus tracks the running-tab state machine per check:
// none -> open (with or without a card hold) -> closed.
type TabStatus string

const (
	TabStatusNone   TabStatus = "none"
	TabStatusOpen   TabStatus = "open"
	TabStatusClosed TabStatus = "closed"
)

var validTabStatuses = []TabStatus{
	TabStatusNone,
	TabStatusOpen,
	TabStatusClosed,
}

// String implements fmt.Stringer.
func (t TabStatus) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TabStatus.
func (t TabStatus) IsValid() bool {
	for _, candidate := range validTabStatuses {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTabStatus converts raw input into a TabStatus.
func ParseTabStatus(value string) (TabStatus, error) {
	for _, candidate := range validTabStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid tab status %q", value)
}
