package memberships

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wiedu/wiedu-backend/pkg/db/models"
	"github.com/wiedu/wiedu-backend/pkg/enums"
)

var leaderFirst = fmt.Sprintf("CASE WHEN role = '%s' THEN 0 ELSE 1 END", enums.MemberRoleLeader)

// Repository exposes membership persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repo to the provided GORM connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateTx persists a new membership record inside the caller's transaction.
func (r *Repository) CreateTx(tx *gorm.DB, membership *models.StudyMembership) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	if membership == nil {
		return fmt.Errorf("membership is required")
	}
	if !membership.Role.IsValid() {
		return fmt.Errorf("invalid member role %q", membership.Role)
	}
	if !membership.Status.IsValid() {
		return fmt.Errorf("invalid membership status %q", membership.Status)
	}
	if membership.ID == uuid.Nil {
		membership.ID = uuid.New()
	}
	return tx.Create(membership).Error
}

// FindTx returns the membership row for (study, user) in any status.
func (r *Repository) FindTx(tx *gorm.DB, studyID, userID uuid.UUID) (*models.StudyMembership, error) {
	if tx == nil {
		return nil, gorm.ErrInvalidTransaction
	}
	var membership models.StudyMembership
	if err := tx.Where("study_id = ? AND user_id = ?", studyID, userID).First(&membership).Error; err != nil {
		return nil, err
	}
	return &membership, nil
}

// FindActive returns the ACTIVE membership for (study, user).
func (r *Repository) FindActive(ctx context.Context, studyID, userID uuid.UUID) (*models.StudyMembership, error) {
	var membership models.StudyMembership
	err := r.db.WithContext(ctx).
		Where("study_id = ? AND user_id = ? AND status = ?", studyID, userID, enums.MembershipStatusActive).
		First(&membership).Error
	if err != nil {
		return nil, err
	}
	return &membership, nil
}

// ExistsActiveTx reports whether the user holds an ACTIVE membership in the study.
func (r *Repository) ExistsActiveTx(tx *gorm.DB, studyID, userID uuid.UUID) (bool, error) {
	if tx == nil {
		return false, gorm.ErrInvalidTransaction
	}
	var count int64
	err := tx.Model(&models.StudyMembership{}).
		Where("study_id = ? AND user_id = ? AND status = ?", studyID, userID, enums.MembershipStatusActive).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// SaveTx writes role/status changes for an existing membership.
func (r *Repository) SaveTx(tx *gorm.DB, membership *models.StudyMembership) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	if membership == nil {
		return fmt.Errorf("membership is required")
	}
	return tx.Model(&models.StudyMembership{}).
		Where("id = ?", membership.ID).
		Updates(map[string]any{
			"role":         membership.Role,
			"status":       membership.Status,
			"joined_at":    membership.JoinedAt,
			"withdrawn_at": membership.WithdrawnAt,
			"updated_at":   membership.UpdatedAt,
		}).Error
}

// ListActive returns the active roster, leader first and then by join time.
func (r *Repository) ListActive(ctx context.Context, studyID uuid.UUID) ([]models.StudyMembership, error) {
	var rows []models.StudyMembership
	err := r.db.WithContext(ctx).
		Where("study_id = ? AND status = ?", studyID, enums.MembershipStatusActive).
		Order(leaderFirst).
		Order("joined_at ASC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
