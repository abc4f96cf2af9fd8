package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/wiedu/wiedu-backend/pkg/enums"
	pkgerrors "github.com/wiedu/wiedu-backend/pkg/errors"
)

// StudyRequest is a user's ask to join a study. It is resolved exactly once.
type StudyRequest struct {
	ID           uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	StudyID      uuid.UUID           `gorm:"column:study_id;type:uuid;not null"`
	UserID       uuid.UUID           `gorm:"column:user_id;type:uuid;not null"`
	Message      *string             `gorm:"column:message"`
	Status       enums.RequestStatus `gorm:"column:status;type:request_status;not null"`
	RejectReason *string             `gorm:"column:reject_reason"`
	CreatedAt    time.Time           `gorm:"column:created_at;autoCreateTime"`
	ProcessedAt  *time.Time          `gorm:"column:processed_at"`
}

func (StudyRequest) TableName() string { return "study_requests" }

func (r *StudyRequest) IsPending() bool {
	return r.Status == enums.RequestStatusPending
}

func (r *StudyRequest) IsOwnedBy(userID uuid.UUID) bool {
	return r.UserID == userID
}

// Approve resolves a pending request as approved.
func (r *StudyRequest) Approve(now time.Time) error {
	if err := r.ensurePending(); err != nil {
		return err
	}
	r.Status = enums.RequestStatusApproved
	r.ProcessedAt = &now
	return nil
}

// Reject resolves a pending request as rejected with an optional reason.
func (r *StudyRequest) Reject(reason *string, now time.Time) error {
	if err := r.ensurePending(); err != nil {
		return err
	}
	r.Status = enums.RequestStatusRejected
	r.RejectReason = reason
	r.ProcessedAt = &now
	return nil
}

func (r *StudyRequest) ensurePending() error {
	if r.IsPending() {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeRequestAlreadyProcessed, "request already processed").
		WithDetails(map[string]any{"request_id": r.ID.String(), "status": r.Status})
}
