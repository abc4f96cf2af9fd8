package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/wiedu/wiedu-backend/pkg/enums"
	pkgerrors "github.com/wiedu/wiedu-backend/pkg/errors"
)

// StudyMembership is one user's participation record in one study.
// (study_id, user_id) is unique; the row is reused when a withdrawn user rejoins.
type StudyMembership struct {
	ID          uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	StudyID     uuid.UUID              `gorm:"column:study_id;type:uuid;not null;uniqueIndex:ux_study_memberships_study_user"`
	UserID      uuid.UUID              `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_study_memberships_study_user"`
	Role        enums.MemberRole       `gorm:"column:role;type:member_role;not null"`
	Status      enums.MembershipStatus `gorm:"column:status;type:membership_status;not null"`
	JoinedAt    time.Time              `gorm:"column:joined_at;not null"`
	WithdrawnAt *time.Time             `gorm:"column:withdrawn_at"`
	CreatedAt   time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (StudyMembership) TableName() string { return "study_memberships" }

func (m *StudyMembership) IsActive() bool {
	return m.Status == enums.MembershipStatusActive
}

func (m *StudyMembership) IsLeader() bool {
	return m.Role == enums.MemberRoleLeader
}

// Withdraw marks the membership as withdrawn. The leader must delegate first.
func (m *StudyMembership) Withdraw(now time.Time) error {
	if !m.IsActive() {
		return pkgerrors.New(pkgerrors.CodeNotMember, "membership is not active")
	}
	if m.IsLeader() {
		return pkgerrors.New(pkgerrors.CodeLeaderCannotWithdraw, "the leader must delegate before leaving")
	}
	m.Status = enums.MembershipStatusWithdrawn
	m.WithdrawnAt = &now
	return nil
}

// PromoteToLeader and DemoteToMember only flip the role; they are always applied as a pair.
func (m *StudyMembership) PromoteToLeader() {
	m.Role = enums.MemberRoleLeader
}

func (m *StudyMembership) DemoteToMember() {
	m.Role = enums.MemberRoleMember
}

// Reactivate reopens a withdrawn row as a fresh ACTIVE/MEMBER participation.
func (m *StudyMembership) Reactivate(now time.Time) {
	m.Role = enums.MemberRoleMember
	m.Status = enums.MembershipStatusActive
	m.JoinedAt = now
	m.WithdrawnAt = nil
}
