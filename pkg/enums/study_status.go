package enums

import "fmt"

// StudyStatus tracks where a study sits in its recruitment lifecycle.
type StudyStatus string

const (
	StudyStatusRecruiting StudyStatus = "recruiting"
	StudyStatusInProgress StudyStatus = "in_progress"
	StudyStatusCompleted  StudyStatus = "completed"
	StudyStatusClosed     StudyStatus = "closed"
)

var validStudyStatuses = []StudyStatus{
	StudyStatusRecruiting,
	StudyStatusInProgress,
	StudyStatusCompleted,
	StudyStatusClosed,
}

// String implements fmt.Stringer.
func (s StudyStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known StudyStatus.
func (s StudyStatus) IsValid() bool {
	for _, candidate := range validStudyStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions leave this status.
func (s StudyStatus) IsTerminal() bool {
	return s == StudyStatusCompleted || s == StudyStatusClosed
}

// ParseStudyStatus converts raw input into a StudyStatus.
func ParseStudyStatus(value string) (StudyStatus, error) {
	for _, candidate := range validStudyStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid study status %q", value)
}
