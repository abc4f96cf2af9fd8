package studies

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wiedu/wiedu-backend/pkg/db/models"
	"github.com/wiedu/wiedu-backend/pkg/enums"
)

// StudyDTO is the API representation of a study.
type StudyDTO struct {
	ID               uuid.UUID         `json:"id"`
	Title            string            `json:"title"`
	Description      string            `json:"description"`
	Category         string            `json:"category"`
	CoverImageURL    *string           `json:"cover_image_url,omitempty"`
	LeaderID         uuid.UUID         `json:"leader_id"`
	MaxMembers       int               `json:"max_members"`
	CurrentMembers   int               `json:"current_members"`
	Status           enums.StudyStatus `json:"status"`
	Recruiting       bool              `json:"recruiting"`
	ParticipationFee decimal.Decimal   `json:"participation_fee"`
	Deposit          decimal.Decimal   `json:"deposit"`
	StartDate        *time.Time        `json:"start_date,omitempty"`
	EndDate          *time.Time        `json:"end_date,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// MyStudyDTO is a study seen from one of its active members.
type MyStudyDTO struct {
	StudyDTO
	MyRole   enums.MemberRole `json:"my_role"`
	JoinedAt time.Time        `json:"joined_at"`
}

// CreateStudyInput holds creation-time data for a new study.
type CreateStudyInput struct {
	Title            string
	Description      string
	Category         string
	CoverImageURL    *string
	MaxMembers       int
	ParticipationFee *decimal.Decimal
	Deposit          *decimal.Decimal
	StartDate        *time.Time
	EndDate          *time.Time
}

// UpdateStudyInput captures the leader-editable fields. Nil means unchanged.
type UpdateStudyInput struct {
	Title         *string
	Description   *string
	Category      *string
	CoverImageURL *string
}

// ListFilter narrows ListStudies.
type ListFilter struct {
	Status         *enums.StudyStatus
	Category       string
	Keyword        string
	RecruitingOnly bool
}

// ListResult is one page of studies.
type ListResult struct {
	Items      []StudyDTO `json:"items"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

// FromModel maps the persisted study into a DTO.
func FromModel(m *models.Study) *StudyDTO {
	if m == nil {
		return nil
	}
	return &StudyDTO{
		ID:               m.ID,
		Title:            m.Title,
		Description:      m.Description,
		Category:         m.Category,
		CoverImageURL:    m.CoverImageURL,
		LeaderID:         m.LeaderID,
		MaxMembers:       m.MaxMembers,
		CurrentMembers:   m.CurrentMembers,
		Status:           m.Status,
		Recruiting:       m.IsRecruiting(),
		ParticipationFee: m.ParticipationFee,
		Deposit:          m.Deposit,
		StartDate:        m.StartDate,
		EndDate:          m.EndDate,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

func (in CreateStudyInput) toModel(id, leaderID uuid.UUID, now time.Time) *models.Study {
	study := &models.Study{
		ID:             id,
		Title:          in.Title,
		Description:    in.Description,
		Category:       in.Category,
		CoverImageURL:  in.CoverImageURL,
		LeaderID:       leaderID,
		MaxMembers:     in.MaxMembers,
		CurrentMembers: 1,
		Status:         enums.StudyStatusRecruiting,
		StartDate:      in.StartDate,
		EndDate:        in.EndDate,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if in.ParticipationFee != nil {
		study.ParticipationFee = *in.ParticipationFee
	}
	if in.Deposit != nil {
		study.Deposit = *in.Deposit
	}
	return study
}
