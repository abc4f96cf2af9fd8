package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wiedu/wiedu-backend/pkg/enums"
	pkgerrors "github.com/wiedu/wiedu-backend/pkg/errors"
)

// Study is a recruitment and execution unit for a group-learning activity.
// It owns the authoritative capacity counters for its roster.
type Study struct {
	ID               uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Title            string            `gorm:"column:title;not null"`
	Description      string            `gorm:"column:description;type:text;not null"`
	Category         string            `gorm:"column:category;not null"`
	CoverImageURL    *string           `gorm:"column:cover_image_url"`
	LeaderID         uuid.UUID         `gorm:"column:leader_id;type:uuid;not null"`
	MaxMembers       int               `gorm:"column:max_members;not null"`
	CurrentMembers   int               `gorm:"column:current_members;not null;default:1"`
	Status           enums.StudyStatus `gorm:"column:status;type:study_status;not null;default:'recruiting'"`
	ParticipationFee decimal.Decimal   `gorm:"column:participation_fee;type:numeric(12,2);not null;default:0"`
	Deposit          decimal.Decimal   `gorm:"column:deposit;type:numeric(12,2);not null;default:0"`
	StartDate        *time.Time        `gorm:"column:start_date"`
	EndDate          *time.Time        `gorm:"column:end_date"`
	CreatedAt        time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (Study) TableName() string { return "studies" }

// IsRecruiting reports whether the study accepts applications.
func (s *Study) IsRecruiting() bool {
	return s.Status == enums.StudyStatusRecruiting
}

// IsFull reports whether every seat is taken.
func (s *Study) IsFull() bool {
	return s.CurrentMembers >= s.MaxMembers
}

// IsLeader reports whether userID currently leads the study.
func (s *Study) IsLeader(userID uuid.UUID) bool {
	return s.LeaderID == userID
}

// IncrementMember takes one seat and starts the study once the last seat is
// filled. Callers must hold the study row lock.
func (s *Study) IncrementMember() {
	s.CurrentMembers++
	if s.CurrentMembers >= s.MaxMembers && s.Status == enums.StudyStatusRecruiting {
		s.Status = enums.StudyStatusInProgress
	}
}

// DecrementMember frees one seat. The leader's seat is never released, and a
// started study does not reopen recruitment.
func (s *Study) DecrementMember() {
	if s.CurrentMembers > 1 {
		s.CurrentMembers--
	}
}

// Close moves the study to CLOSED.
func (s *Study) Close() error {
	return s.finish(enums.StudyStatusClosed)
}

// Complete moves the study to COMPLETED.
func (s *Study) Complete() error {
	return s.finish(enums.StudyStatusCompleted)
}

func (s *Study) finish(target enums.StudyStatus) error {
	if s.Status == target {
		return nil
	}
	if s.Status.IsTerminal() {
		return pkgerrors.New(pkgerrors.CodeStudyFinished, "study already finished").
			WithDetails(map[string]any{"study_id": s.ID.String(), "status": s.Status})
	}
	s.Status = target
	return nil
}

// ChangeLeader replaces the leader reference. Membership rows are swapped by the caller.
func (s *Study) ChangeLeader(newLeaderID uuid.UUID) {
	s.LeaderID = newLeaderID
}
