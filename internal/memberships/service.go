package memberships

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wiedu/wiedu-backend/pkg/db/models"
	pkgerrors "github.com/wiedu/wiedu-backend/pkg/errors"
)

type studyFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Study, error)
}

type rosterRepository interface {
	FindActive(ctx context.Context, studyID, userID uuid.UUID) (*models.StudyMembership, error)
	ListActive(ctx context.Context, studyID uuid.UUID) ([]models.StudyMembership, error)
}

// Service answers roster questions.
type Service interface {
	ListMembers(ctx context.Context, studyID uuid.UUID) ([]MemberDTO, error)
	CheckMembership(ctx context.Context, studyID, userID uuid.UUID) (*MembershipCheck, error)
}

type service struct {
	repo    rosterRepository
	studies studyFinder
}

// NewService builds the roster service.
func NewService(repo rosterRepository, studies studyFinder) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("membership repository required")
	}
	if studies == nil {
		return nil, fmt.Errorf("study repository required")
	}
	return &service{repo: repo, studies: studies}, nil
}

func (s *service) ListMembers(ctx context.Context, studyID uuid.UUID) ([]MemberDTO, error) {
	if err := s.ensureStudy(ctx, studyID); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListActive(ctx, studyID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list members")
	}
	return membersToDTO(rows), nil
}

// CheckMembership treats a missing row as a normal answer, not an error.
func (s *service) CheckMembership(ctx context.Context, studyID, userID uuid.UUID) (*MembershipCheck, error) {
	if err := s.ensureStudy(ctx, studyID); err != nil {
		return nil, err
	}
	result := &MembershipCheck{StudyID: studyID, UserID: userID}
	membership, err := s.repo.FindActive(ctx, studyID, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return result, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check membership")
	}
	role := membership.Role
	result.IsMember = true
	result.Role = &role
	return result, nil
}

func (s *service) ensureStudy(ctx context.Context, studyID uuid.UUID) error {
	if _, err := s.studies.FindByID(ctx, studyID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeStudyNotFound, "study not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load study")
	}
	return nil
}
