package payloads

import (
	"github.com/google/uuid"

	"github.com/wiedu/wiedu-backend/pkg/enums"
)

// StudyCreatedEvent announces a new recruiting study.
type StudyCreatedEvent struct {
	StudyID    uuid.UUID `json:"study_id"`
	LeaderID   uuid.UUID `json:"leader_id"`
	Title      string    `json:"title"`
	Category   string    `json:"category"`
	MaxMembers int       `json:"max_members"`
}

// StudyUpdatedEvent carries the editable fields after an update.
type StudyUpdatedEvent struct {
	StudyID  uuid.UUID `json:"study_id"`
	Title    string    `json:"title"`
	Category string    `json:"category"`
}

// StudyFinishedEvent is used for both study_closed and study_completed.
type StudyFinishedEvent struct {
	StudyID        uuid.UUID         `json:"study_id"`
	PreviousStatus enums.StudyStatus `json:"previous_status"`
	Status         enums.StudyStatus `json:"status"`
	CurrentMembers int               `json:"current_members"`
}

type RequestSubmittedEvent struct {
	RequestID uuid.UUID `json:"request_id"`
	StudyID   uuid.UUID `json:"study_id"`
	UserID    uuid.UUID `json:"user_id"`
}

// RequestApprovedEvent reports the seat count after the new member was admitted.
type RequestApprovedEvent struct {
	RequestID      uuid.UUID         `json:"request_id"`
	StudyID        uuid.UUID         `json:"study_id"`
	UserID         uuid.UUID         `json:"user_id"`
	CurrentMembers int               `json:"current_members"`
	StudyStatus    enums.StudyStatus `json:"study_status"`
}

type RequestRejectedEvent struct {
	RequestID uuid.UUID `json:"request_id"`
	StudyID   uuid.UUID `json:"study_id"`
	UserID    uuid.UUID `json:"user_id"`
	Reason    *string   `json:"reason,omitempty"`
}

type RequestCanceledEvent struct {
	RequestID uuid.UUID `json:"request_id"`
	StudyID   uuid.UUID `json:"study_id"`
	UserID    uuid.UUID `json:"user_id"`
}

// MemberRemovedEvent is used for both study_member_withdrawn and study_member_kicked.
type MemberRemovedEvent struct {
	StudyID        uuid.UUID  `json:"study_id"`
	UserID         uuid.UUID  `json:"user_id"`
	RemovedBy      *uuid.UUID `json:"removed_by,omitempty"`
	CurrentMembers int        `json:"current_members"`
}

type LeaderDelegatedEvent struct {
	StudyID          uuid.UUID `json:"study_id"`
	PreviousLeaderID uuid.UUID `json:"previous_leader_id"`
	NewLeaderID      uuid.UUID `json:"new_leader_id"`
}
