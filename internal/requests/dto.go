package requests

import (
	"time"

	"github.com/google/uuid"

	"github.com/wiedu/wiedu-backend/pkg/db/models"
	"github.com/wiedu/wiedu-backend/pkg/enums"
)

// RequestDTO is the API representation of a join request.
type RequestDTO struct {
	ID           uuid.UUID           `json:"id"`
	StudyID      uuid.UUID           `json:"study_id"`
	UserID       uuid.UUID           `json:"user_id"`
	Message      *string             `json:"message,omitempty"`
	Status       enums.RequestStatus `json:"status"`
	RejectReason *string             `json:"reject_reason,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	ProcessedAt  *time.Time          `json:"processed_at,omitempty"`
}

// ListResult is one page of requests.
type ListResult struct {
	Items      []RequestDTO `json:"items"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

// FromModel maps a persisted request to its DTO.
func FromModel(m *models.StudyRequest) *RequestDTO {
	if m == nil {
		return nil
	}
	return &RequestDTO{
		ID:           m.ID,
		StudyID:      m.StudyID,
		UserID:       m.UserID,
		Message:      m.Message,
		Status:       m.Status,
		RejectReason: m.RejectReason,
		CreatedAt:    m.CreatedAt,
		ProcessedAt:  m.ProcessedAt,
	}
}
