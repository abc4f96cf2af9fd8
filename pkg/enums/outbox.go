package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateStudy OutboxAggregateType = "study"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateStudy,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventStudyCreated          OutboxEventType = "study_created"
	EventStudyUpdated          OutboxEventType = "study_updated"
	EventStudyClosed           OutboxEventType = "study_closed"
	EventStudyCompleted        OutboxEventType = "study_completed"
	EventStudyRequestSubmitted OutboxEventType = "study_request_submitted"
	EventStudyRequestApproved  OutboxEventType = "study_request_approved"
	EventStudyRequestRejected  OutboxEventType = "study_request_rejected"
	EventStudyRequestCanceled  OutboxEventType = "study_request_canceled"
	EventStudyMemberWithdrawn  OutboxEventType = "study_member_withdrawn"
	EventStudyMemberKicked     OutboxEventType = "study_member_kicked"
	EventStudyLeaderDelegated  OutboxEventType = "study_leader_delegated"
)

var validOutboxEventTypes = []OutboxEventType{
	EventStudyCreated,
	EventStudyUpdated,
	EventStudyClosed,
	EventStudyCompleted,
	EventStudyRequestSubmitted,
	EventStudyRequestApproved,
	EventStudyRequestRejected,
	EventStudyRequestCanceled,
	EventStudyMemberWithdrawn,
	EventStudyMemberKicked,
	EventStudyLeaderDelegated,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
