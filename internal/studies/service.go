package studies

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wiedu/wiedu-backend/pkg/db/models"
	"github.com/wiedu/wiedu-backend/pkg/enums"
	pkgerrors "github.com/wiedu/wiedu-backend/pkg/errors"
	"github.com/wiedu/wiedu-backend/pkg/logger"
	"github.com/wiedu/wiedu-backend/pkg/metrics"
	"github.com/wiedu/wiedu-backend/pkg/outbox"
	"github.com/wiedu/wiedu-backend/pkg/outbox/payloads"
	"github.com/wiedu/wiedu-backend/pkg/pagination"
)

const (
	MinMembers        = 2
	MaxMembers        = 100
	maxTitleLen       = 100
	maxDescriptionLen = 5000
	maxCategoryLen    = 50
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type studyRepository interface {
	CreateTx(tx *gorm.DB, study *models.Study) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Study, error)
	LockByID(tx *gorm.DB, id uuid.UUID) (*models.Study, error)
	SaveTx(tx *gorm.DB, study *models.Study) error
	List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.Study, error)
	ListByMember(ctx context.Context, userID uuid.UUID) ([]models.Study, []models.StudyMembership, error)
}

type membershipWriter interface {
	CreateTx(tx *gorm.DB, membership *models.StudyMembership) error
}

// Service exposes study operations.
type Service interface {
	Create(ctx context.Context, leaderID uuid.UUID, input CreateStudyInput) (*StudyDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*StudyDTO, error)
	List(ctx context.Context, filter ListFilter, params pagination.Params) (*ListResult, error)
	ListMine(ctx context.Context, userID uuid.UUID) ([]MyStudyDTO, error)
	Update(ctx context.Context, studyID, actorID uuid.UUID, input UpdateStudyInput) (*StudyDTO, error)
	Close(ctx context.Context, studyID, actorID uuid.UUID) (*StudyDTO, error)
	Complete(ctx context.Context, studyID, actorID uuid.UUID) (*StudyDTO, error)
}

// ServiceParams wires the study service.
type ServiceParams struct {
	DB          txRunner
	Repository  studyRepository
	Memberships membershipWriter
	Outbox      outbox.Emitter
	Metrics     *metrics.LifecycleMetrics
	Logger      *logger.Logger
}

type service struct {
	db          txRunner
	repo        studyRepository
	memberships membershipWriter
	outbox      outbox.Emitter
	metrics     *metrics.LifecycleMetrics
	logg        *logger.Logger
	now         func() time.Time
}

// NewService builds a study service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("study repository required")
	}
	if params.Memberships == nil {
		return nil, fmt.Errorf("memberships repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		db:          params.DB,
		repo:        params.Repository,
		memberships: params.Memberships,
		outbox:      params.Outbox,
		metrics:     params.Metrics,
		logg:        params.Logger,
		now:         time.Now,
	}, nil
}

func (s *service) Create(ctx context.Context, leaderID uuid.UUID, input CreateStudyInput) (_ *StudyDTO, err error) {
	defer func(start time.Time) { s.metrics.Observe("create_study", start, err) }(time.Now())

	if leaderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id required")
	}
	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	input.Category = strings.TrimSpace(input.Category)
	if err := validateCreate(input); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	study := input.toModel(uuid.New(), leaderID, now)
	leader := &models.StudyMembership{
		ID:        uuid.New(),
		StudyID:   study.ID,
		UserID:    leaderID,
		Role:      enums.MemberRoleLeader,
		Status:    enums.MembershipStatusActive,
		JoinedAt:  now,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.CreateTx(tx, study); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create study")
		}
		if err := s.memberships.CreateTx(tx, leader); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create leader membership")
		}
		return s.emit(ctx, tx, enums.EventStudyCreated, study.ID, leaderID, payloads.StudyCreatedEvent{
			StudyID:    study.ID,
			LeaderID:   leaderID,
			Title:      study.Title,
			Category:   study.Category,
			MaxMembers: study.MaxMembers,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithStudyID(ctx, study.ID.String()), "study created")
	return FromModel(study), nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*StudyDTO, error) {
	study, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapStudyLookupErr(err)
	}
	return FromModel(study), nil
}

func (s *service) List(ctx context.Context, filter ListFilter, params pagination.Params) (*ListResult, error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	rows, err := s.repo.List(ctx, filter, params)
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list studies")
	}

	page := pagination.Trim(rows, params.Limit, func(m models.Study) pagination.Cursor {
		return pagination.Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
	})
	items := make([]StudyDTO, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, *FromModel(&page.Items[i]))
	}
	return &ListResult{Items: items, NextCursor: page.NextCursor}, nil
}

func (s *service) ListMine(ctx context.Context, userID uuid.UUID) ([]MyStudyDTO, error) {
	rows, memberships, err := s.repo.ListByMember(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list my studies")
	}
	byID := make(map[uuid.UUID]*models.Study, len(rows))
	for i := range rows {
		byID[rows[i].ID] = &rows[i]
	}
	out := make([]MyStudyDTO, 0, len(memberships))
	for _, m := range memberships {
		study, ok := byID[m.StudyID]
		if !ok {
			continue
		}
		out = append(out, MyStudyDTO{StudyDTO: *FromModel(study), MyRole: m.Role, JoinedAt: m.JoinedAt})
	}
	return out, nil
}

func (s *service) Update(ctx context.Context, studyID, actorID uuid.UUID, input UpdateStudyInput) (_ *StudyDTO, err error) {
	defer func(start time.Time) { s.metrics.Observe("update_study", start, err) }(time.Now())

	if err := validateUpdate(&input); err != nil {
		return nil, err
	}

	var updated *models.Study
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		study, err := s.lockAsLeader(tx, studyID, actorID)
		if err != nil {
			return err
		}
		if study.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStudyFinished, "finished studies cannot be edited")
		}
		if input.Title != nil {
			study.Title = *input.Title
		}
		if input.Description != nil {
			study.Description = *input.Description
		}
		if input.Category != nil {
			study.Category = *input.Category
		}
		if input.CoverImageURL != nil {
			if *input.CoverImageURL == "" {
				study.CoverImageURL = nil
			} else {
				study.CoverImageURL = input.CoverImageURL
			}
		}
		study.UpdatedAt = s.now().UTC()
		if err := s.repo.SaveTx(tx, study); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save study")
		}
		updated = study
		return s.emit(ctx, tx, enums.EventStudyUpdated, study.ID, actorID, payloads.StudyUpdatedEvent{
			StudyID:  study.ID,
			Title:    study.Title,
			Category: study.Category,
		})
	})
	if err != nil {
		return nil, err
	}
	return FromModel(updated), nil
}

func (s *service) Close(ctx context.Context, studyID, actorID uuid.UUID) (_ *StudyDTO, err error) {
	defer func(start time.Time) { s.metrics.Observe("close_study", start, err) }(time.Now())
	return s.finish(ctx, studyID, actorID, enums.StudyStatusClosed)
}

func (s *service) Complete(ctx context.Context, studyID, actorID uuid.UUID) (_ *StudyDTO, err error) {
	defer func(start time.Time) { s.metrics.Observe("complete_study", start, err) }(time.Now())
	return s.finish(ctx, studyID, actorID, enums.StudyStatusCompleted)
}

func (s *service) finish(ctx context.Context, studyID, actorID uuid.UUID, target enums.StudyStatus) (*StudyDTO, error) {
	var result *models.Study
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		study, err := s.lockAsLeader(tx, studyID, actorID)
		if err != nil {
			return err
		}
		previous := study.Status
		if target == enums.StudyStatusClosed {
			err = study.Close()
		} else {
			err = study.Complete()
		}
		if err != nil {
			return err
		}
		result = study
		if previous == study.Status {
			return nil
		}

		study.UpdatedAt = s.now().UTC()
		if err := s.repo.SaveTx(tx, study); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save study")
		}
		eventType := enums.EventStudyCompleted
		if target == enums.StudyStatusClosed {
			eventType = enums.EventStudyClosed
		}
		return s.emit(ctx, tx, eventType, study.ID, actorID, payloads.StudyFinishedEvent{
			StudyID:        study.ID,
			PreviousStatus: previous,
			Status:         study.Status,
			CurrentMembers: study.CurrentMembers,
		})
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"study_id": studyID.String(),
		"actor_id": actorID.String(),
		"status":   result.Status,
	})
	s.logg.Info(logCtx, "study finished")
	return FromModel(result), nil
}

func (s *service) lockAsLeader(tx *gorm.DB, studyID, actorID uuid.UUID) (*models.Study, error) {
	study, err := s.repo.LockByID(tx, studyID)
	if err != nil {
		return nil, mapStudyLookupErr(err)
	}
	if !study.IsLeader(actorID) {
		return nil, pkgerrors.New(pkgerrors.CodeNotStudyLeader, "only the study leader may do this")
	}
	return study, nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, studyID, actorID uuid.UUID, data any) error {
	if err := s.outbox.Emit(ctx, tx, outbox.StudyEvent(eventType, studyID, actorID, data)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "queue outbox event")
	}
	return nil
}

func mapStudyLookupErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeStudyNotFound, "study not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load study")
}

func validateCreate(in CreateStudyInput) error {
	details := map[string]string{}
	if n := utf8.RuneCountInString(in.Title); n == 0 || n > maxTitleLen {
		details["title"] = fmt.Sprintf("must be 1..%d characters", maxTitleLen)
	}
	if utf8.RuneCountInString(in.Description) > maxDescriptionLen {
		details["description"] = fmt.Sprintf("must be at most %d characters", maxDescriptionLen)
	}
	if n := utf8.RuneCountInString(in.Category); n == 0 || n > maxCategoryLen {
		details["category"] = fmt.Sprintf("must be 1..%d characters", maxCategoryLen)
	}
	if in.MaxMembers < MinMembers || in.MaxMembers > MaxMembers {
		details["max_members"] = fmt.Sprintf("must be between %d and %d", MinMembers, MaxMembers)
	}
	if in.ParticipationFee != nil && in.ParticipationFee.IsNegative() {
		details["participation_fee"] = "must not be negative"
	}
	if in.Deposit != nil && in.Deposit.IsNegative() {
		details["deposit"] = "must not be negative"
	}
	if in.StartDate != nil && in.EndDate != nil && in.EndDate.Before(*in.StartDate) {
		details["end_date"] = "must not be before start_date"
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid study").WithDetails(details)
	}
	return nil
}

func validateUpdate(in *UpdateStudyInput) error {
	details := map[string]string{}
	if in.Title != nil {
		trimmed := strings.TrimSpace(*in.Title)
		in.Title = &trimmed
		if n := utf8.RuneCountInString(trimmed); n == 0 || n > maxTitleLen {
			details["title"] = fmt.Sprintf("must be 1..%d characters", maxTitleLen)
		}
	}
	if in.Description != nil {
		trimmed := strings.TrimSpace(*in.Description)
		in.Description = &trimmed
		if utf8.RuneCountInString(trimmed) > maxDescriptionLen {
			details["description"] = fmt.Sprintf("must be at most %d characters", maxDescriptionLen)
		}
	}
	if in.Category != nil {
		trimmed := strings.TrimSpace(*in.Category)
		in.Category = &trimmed
		if n := utf8.RuneCountInString(trimmed); n == 0 || n > maxCategoryLen {
			details["category"] = fmt.Sprintf("must be 1..%d characters", maxCategoryLen)
		}
	}
	if in.Title == nil && in.Description == nil && in.Category == nil && in.CoverImageURL == nil {
		details["body"] = "no editable fields provided"
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid study update").WithDetails(details)
	}
	return nil
}
