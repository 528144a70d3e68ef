package enums

import "fmt"

// CourseStatus governs when a course's selections reach the kitchen. Firing
// is monotonic; a fired course never returns to held.
type CourseStatus string

const (
	CourseStatusHeld   CourseStatus = "held"
	CourseStatusFired  CourseStatus = "fired"
	CourseStatusServed CourseStatus = "served"
)

var validCourseStatuses = []CourseStatus{
	CourseStatusHeld,
	CourseStatusFired,
	CourseStatusServed,
}

// String implements fmt.Stringer.
func (c CourseStatus) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CourseStatus.
func (c CourseStatus) IsValid() bool {
	for _, candidate := range validCourseStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCourseStatus converts raw input into a CourseStatus.
func ParseCourseStatus(value string) (CourseStatus, error) {
	for _, candidate := range validCourseStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid course status %q", value)
}
