package requests

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wiedu/wiedu-backend/pkg/db"
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
	maxMessageLen = 500
	maxReasonLen  = 500
)

const pendingIndex = "ux_study_requests_pending"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type requestRepository interface {
	CreateTx(tx *gorm.DB, request *models.StudyRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.StudyRequest, error)
	FindByIDTx(tx *gorm.DB, id uuid.UUID) (*models.StudyRequest, error)
	ExistsPendingTx(tx *gorm.DB, studyID, userID uuid.UUID) (bool, error)
	ResolveTx(tx *gorm.DB, request *models.StudyRequest) error
	DeleteTx(tx *gorm.DB, id uuid.UUID) error
	ListPending(ctx context.Context, studyID uuid.UUID, params pagination.Params) ([]models.StudyRequest, error)
	ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.StudyRequest, error)
}

type studyRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Study, error)
	LockByID(tx *gorm.DB, id uuid.UUID) (*models.Study, error)
}

type membershipChecker interface {
	ExistsActiveTx(tx *gorm.DB, studyID, userID uuid.UUID) (bool, error)
}

// Service runs the join request workflow. Approval lives in the lifecycle
// coordinator because it also writes the membership ledger.
type Service interface {
	Apply(ctx context.Context, studyID, userID uuid.UUID, message *string) (*RequestDTO, error)
	Reject(ctx context.Context, requestID, leaderID uuid.UUID, reason *string) (*RequestDTO, error)
	Cancel(ctx context.Context, requestID, userID uuid.UUID) error
	ListPending(ctx context.Context, studyID, leaderID uuid.UUID, params pagination.Params) (*ListResult, error)
	ListMine(ctx context.Context, userID uuid.UUID, params pagination.Params) (*ListResult, error)
}

// ServiceParams wires the request service.
type ServiceParams struct {
	DB          txRunner
	Repository  requestRepository
	Studies     studyRepository
	Memberships membershipChecker
	Outbox      outbox.Emitter
	Metrics     *metrics.LifecycleMetrics
	Logger      *logger.Logger
}

type service struct {
	db          txRunner
	repo        requestRepository
	studies     studyRepository
	memberships membershipChecker
	outbox      outbox.Emitter
	metrics     *metrics.LifecycleMetrics
	logg        *logger.Logger
	now         func() time.Time
}

// NewService builds a request service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("request repository required")
	}
	if params.Studies == nil {
		return nil, fmt.Errorf("study repository required")
	}
	if params.Memberships == nil {
		return nil, fmt.Errorf("membership repository required")
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
		studies:     params.Studies,
		memberships: params.Memberships,
		outbox:      params.Outbox,
		metrics:     params.Metrics,
		logg:        params.Logger,
		now:         time.Now,
	}, nil
}

func (s *service) Apply(ctx context.Context, studyID, userID uuid.UUID, message *string) (_ *RequestDTO, err error) {
	defer func(start time.Time) { s.metrics.Observe("apply", start, err) }(time.Now())

	message, err = normalizeText("message", message, maxMessageLen)
	if err != nil {
		return nil, err
	}

	request := &models.StudyRequest{
		ID:        uuid.New(),
		StudyID:   studyID,
		UserID:    userID,
		Message:   message,
		Status:    enums.RequestStatusPending,
		CreatedAt: s.now().UTC(),
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		study, err := s.studies.LockByID(tx, studyID)
		if err != nil {
			return mapLookupErr(err, pkgerrors.CodeStudyNotFound, "study not found")
		}
		if !study.IsRecruiting() {
			return pkgerrors.New(pkgerrors.CodeStudyNotRecruiting, "study is not recruiting")
		}

		member, err := s.memberships.ExistsActiveTx(tx, studyID, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check membership")
		}
		if member {
			return pkgerrors.New(pkgerrors.CodeAlreadyMember, "already a member of this study")
		}

		pending, err := s.repo.ExistsPendingTx(tx, studyID, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check pending request")
		}
		if pending {
			return alreadyRequested()
		}

		if err := s.repo.CreateTx(tx, request); err != nil {
			if db.IsUniqueViolation(err, pendingIndex) {
				return alreadyRequested()
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create request")
		}
		return s.emit(ctx, tx, enums.EventStudyRequestSubmitted, studyID, userID, payloads.RequestSubmittedEvent{
			RequestID: request.ID,
			StudyID:   studyID,
			UserID:    userID,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logCtx(ctx, studyID, request.ID, userID), "study request submitted")
	return FromModel(request), nil
}

func (s *service) Reject(ctx context.Context, requestID, leaderID uuid.UUID, reason *string) (_ *RequestDTO, err error) {
	defer func(start time.Time) { s.metrics.Observe("reject", start, err) }(time.Now())

	reason, err = normalizeText("reason", reason, maxReasonLen)
	if err != nil {
		return nil, err
	}

	var rejected *models.StudyRequest
	err = s.withLockedRequest(ctx, requestID, func(tx *gorm.DB, study *models.Study, request *models.StudyRequest) error {
		if !study.IsLeader(leaderID) {
			return pkgerrors.New(pkgerrors.CodeNotStudyLeader, "only the study leader may reject requests")
		}
		if err := request.Reject(reason, s.now().UTC()); err != nil {
			return err
		}
		if err := s.repo.ResolveTx(tx, request); err != nil {
			return wrapStoreErr(err, "reject request")
		}
		rejected = request
		return s.emit(ctx, tx, enums.EventStudyRequestRejected, study.ID, leaderID, payloads.RequestRejectedEvent{
			RequestID: request.ID,
			StudyID:   study.ID,
			UserID:    request.UserID,
			Reason:    reason,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logCtx(ctx, rejected.StudyID, rejected.ID, leaderID), "study request rejected")
	return FromModel(rejected), nil
}

func (s *service) Cancel(ctx context.Context, requestID, userID uuid.UUID) (err error) {
	defer func(start time.Time) { s.metrics.Observe("cancel", start, err) }(time.Now())

	var studyID uuid.UUID
	err = s.withLockedRequest(ctx, requestID, func(tx *gorm.DB, study *models.Study, request *models.StudyRequest) error {
		if !request.IsOwnedBy(userID) {
			return pkgerrors.New(pkgerrors.CodeNotRequestOwner, "only the requester may cancel this request")
		}
		if !request.IsPending() {
			return pkgerrors.New(pkgerrors.CodeRequestAlreadyProcessed, "request already processed")
		}
		if err := s.repo.DeleteTx(tx, request.ID); err != nil {
			return wrapStoreErr(err, "delete request")
		}
		studyID = study.ID
		return s.emit(ctx, tx, enums.EventStudyRequestCanceled, study.ID, userID, payloads.RequestCanceledEvent{
			RequestID: request.ID,
			StudyID:   study.ID,
			UserID:    userID,
		})
	})
	if err != nil {
		return err
	}

	s.logg.Info(s.logCtx(ctx, studyID, requestID, userID), "study request canceled")
	return nil
}

func (s *service) ListPending(ctx context.Context, studyID, leaderID uuid.UUID, params pagination.Params) (*ListResult, error) {
	study, err := s.studies.FindByID(ctx, studyID)
	if err != nil {
		return nil, mapLookupErr(err, pkgerrors.CodeStudyNotFound, "study not found")
	}
	if !study.IsLeader(leaderID) {
		return nil, pkgerrors.New(pkgerrors.CodeNotStudyLeader, "only the study leader may view pending requests")
	}
	rows, err := s.repo.ListPending(ctx, studyID, params)
	if err != nil {
		return nil, wrapStoreErr(err, "list pending requests")
	}
	return toPage(rows, params.Limit), nil
}

func (s *service) ListMine(ctx context.Context, userID uuid.UUID, params pagination.Params) (*ListResult, error) {
	rows, err := s.repo.ListByUser(ctx, userID, params)
	if err != nil {
		return nil, wrapStoreErr(err, "list my requests")
	}
	return toPage(rows, params.Limit), nil
}

// withLockedRequest locates the request's study, takes the study lock and
// re-reads the request under it before calling fn.
func (s *service) withLockedRequest(ctx context.Context, requestID uuid.UUID, fn func(tx *gorm.DB, study *models.Study, request *models.StudyRequest) error) error {
	initial, err := s.repo.FindByID(ctx, requestID)
	if err != nil {
		return mapLookupErr(err, pkgerrors.CodeRequestNotFound, "request not found")
	}
	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		study, err := s.studies.LockByID(tx, initial.StudyID)
		if err != nil {
			return mapLookupErr(err, pkgerrors.CodeStudyNotFound, "study not found")
		}
		request, err := s.repo.FindByIDTx(tx, requestID)
		if err != nil {
			return mapLookupErr(err, pkgerrors.CodeRequestNotFound, "request not found")
		}
		return fn(tx, study, request)
	})
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, studyID, actorID uuid.UUID, data any) error {
	if err := s.outbox.Emit(ctx, tx, outbox.StudyEvent(eventType, studyID, actorID, data)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "queue outbox event")
	}
	return nil
}

func (s *service) logCtx(ctx context.Context, studyID, requestID, actorID uuid.UUID) context.Context {
	return s.logg.WithFields(ctx, map[string]any{
		"study_id":   studyID.String(),
		"request_id": requestID.String(),
		"actor_id":   actorID.String(),
	})
}

func toPage(rows []models.StudyRequest, limit int) *ListResult {
	page := pagination.Trim(rows, limit, func(m models.StudyRequest) pagination.Cursor {
		return pagination.Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
	})
	items := make([]RequestDTO, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, *FromModel(&page.Items[i]))
	}
	return &ListResult{Items: items, NextCursor: page.NextCursor}
}

func alreadyRequested() error {
	return pkgerrors.New(pkgerrors.CodeAlreadyRequested, "a pending request already exists for this study")
}

func mapLookupErr(err error, code pkgerrors.Code, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(code, msg)
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, msg)
}

// wrapStoreErr keeps typed errors raised by the repository.
func wrapStoreErr(err error, msg string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, msg)
}

func normalizeText(field string, value *string, max int) (*string, error) {
	if value == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(trimmed) > max {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid "+field).
			WithDetails(map[string]string{field: fmt.Sprintf("must be at most %d characters", max)})
	}
	return &trimmed, nil
}
