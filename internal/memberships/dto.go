package memberships

import (
	"time"

	"github.com/google/uuid"

	"github.com/wiedu/wiedu-backend/pkg/db/models"
	"github.com/wiedu/wiedu-backend/pkg/enums"
)

// MemberDTO is one roster entry.
type MemberDTO struct {
	MembershipID uuid.UUID        `json:"membership_id"`
	StudyID      uuid.UUID        `json:"study_id"`
	UserID       uuid.UUID        `json:"user_id"`
	Role         enums.MemberRole `json:"role"`
	JoinedAt     time.Time        `json:"joined_at"`
}

// MembershipCheck answers whether a user currently belongs to a study.
type MembershipCheck struct {
	StudyID  uuid.UUID         `json:"study_id"`
	UserID   uuid.UUID         `json:"user_id"`
	IsMember bool              `json:"is_member"`
	Role     *enums.MemberRole `json:"role,omitempty"`
}

// ToDTO converts a membership row into a roster entry.
func ToDTO(m *models.StudyMembership) *MemberDTO {
	if m == nil {
		return nil
	}
	return &MemberDTO{
		MembershipID: m.ID,
		StudyID:      m.StudyID,
		UserID:       m.UserID,
		Role:         m.Role,
		JoinedAt:     m.JoinedAt,
	}
}

func membersToDTO(rows []models.StudyMembership) []MemberDTO {
	out := make([]MemberDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *ToDTO(&rows[i]))
	}
	return out
}
