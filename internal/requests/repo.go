package requests

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wiedu/wiedu-backend/pkg/db/models"
	"github.com/wiedu/wiedu-backend/pkg/enums"
	pkgerrors "github.com/wiedu/wiedu-backend/pkg/errors"
	"github.com/wiedu/wiedu-backend/pkg/pagination"
)

// Repository handles join request persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to request operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateTx(tx *gorm.DB, request *models.StudyRequest) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	if request == nil {
		return fmt.Errorf("request is required")
	}
	if request.ID == uuid.Nil {
		request.ID = uuid.New()
	}
	return tx.Create(request).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.StudyRequest, error) {
	return r.find(r.db.WithContext(ctx), id)
}

// FindByIDTx re-reads a request after the study lock is held.
func (r *Repository) FindByIDTx(tx *gorm.DB, id uuid.UUID) (*models.StudyRequest, error) {
	if tx == nil {
		return nil, gorm.ErrInvalidTransaction
	}
	return r.find(tx, id)
}

func (r *Repository) find(q *gorm.DB, id uuid.UUID) (*models.StudyRequest, error) {
	var request models.StudyRequest
	if err := q.Where("id = ?", id).First(&request).Error; err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *Repository) ExistsPendingTx(tx *gorm.DB, studyID, userID uuid.UUID) (bool, error) {
	if tx == nil {
		return false, gorm.ErrInvalidTransaction
	}
	var count int64
	err := tx.Model(&models.StudyRequest{}).
		Where("study_id = ? AND user_id = ? AND status = ?", studyID, userID, enums.RequestStatusPending).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ResolveTx persists an approve/reject decision. The write only applies while
// the row is still pending, so a request is resolved at most once.
func (r *Repository) ResolveTx(tx *gorm.DB, request *models.StudyRequest) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	if request == nil {
		return fmt.Errorf("request is required")
	}
	res := tx.Model(&models.StudyRequest{}).
		Where("id = ? AND status = ?", request.ID, enums.RequestStatusPending).
		Updates(map[string]any{
			"status":        request.Status,
			"reject_reason": request.RejectReason,
			"processed_at":  request.ProcessedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeRequestAlreadyProcessed, "request already processed")
	}
	return nil
}

// DeleteTx hard-deletes a pending request.
func (r *Repository) DeleteTx(tx *gorm.DB, id uuid.UUID) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	res := tx.Where("id = ? AND status = ?", id, enums.RequestStatusPending).Delete(&models.StudyRequest{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeRequestAlreadyProcessed, "request already processed")
	}
	return nil
}

// ListPending returns a cursor page of the study's pending requests, newest first.
func (r *Repository) ListPending(ctx context.Context, studyID uuid.UUID, params pagination.Params) ([]models.StudyRequest, error) {
	q := r.db.WithContext(ctx).
		Where("study_id = ? AND status = ?", studyID, enums.RequestStatusPending)
	return r.page(q, params)
}

// ListByUser returns a cursor page of every request the user owns.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.StudyRequest, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	return r.page(q, params)
}

func (r *Repository) page(q *gorm.DB, params pagination.Params) ([]models.StudyRequest, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	if cursor != nil {
		q = q.Where("(created_at < ? OR (created_at = ? AND id < ?))", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	var rows []models.StudyRequest
	err = q.Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&rows).Error
	return rows, err
}
