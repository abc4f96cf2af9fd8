package studies

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wiedu/wiedu-backend/pkg/db/models"
	"github.com/wiedu/wiedu-backend/pkg/enums"
	pkgerrors "github.com/wiedu/wiedu-backend/pkg/errors"
	"github.com/wiedu/wiedu-backend/pkg/pagination"
)

// Repository handles study persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to study operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateTx inserts a study row inside tx.
func (r *Repository) CreateTx(tx *gorm.DB, study *models.Study) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	if study == nil {
		return fmt.Errorf("study is required")
	}
	return tx.Create(study).Error
}

// FindByID loads a study by its UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Study, error) {
	var study models.Study
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&study).Error; err != nil {
		return nil, err
	}
	return &study, nil
}

// LockByID loads the study with a row lock held until tx ends. Every write to a
// study's roster or counters goes through this lock.
func (r *Repository) LockByID(tx *gorm.DB, id uuid.UUID) (*models.Study, error) {
	if tx == nil {
		return nil, gorm.ErrInvalidTransaction
	}
	var study models.Study
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&study).Error; err != nil {
		return nil, err
	}
	return &study, nil
}

// SaveTx persists every column of a locked study.
func (r *Repository) SaveTx(tx *gorm.DB, study *models.Study) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	if study == nil {
		return fmt.Errorf("study is required")
	}
	return tx.Save(study).Error
}

// List returns one cursor page of studies, newest first. It fetches one extra
// row so the caller can tell whether another page exists.
func (r *Repository) List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.Study, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	q := r.db.WithContext(ctx).Model(&models.Study{})
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	if filter.RecruitingOnly {
		q = q.Where("status = ?", enums.StudyStatusRecruiting)
	}
	if category := strings.TrimSpace(filter.Category); category != "" {
		q = q.Where("category = ?", category)
	}
	if keyword := strings.ToLower(strings.TrimSpace(filter.Keyword)); keyword != "" {
		like := "%" + keyword + "%"
		q = q.Where("(LOWER(title) LIKE ? OR LOWER(description) LIKE ?)", like, like)
	}
	if cursor != nil {
		q = q.Where("(created_at < ? OR (created_at = ? AND id < ?))", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Study
	err = q.Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&rows).Error
	return rows, err
}

// ListByMember returns the studies where userID holds an ACTIVE membership,
// paired with that membership, most recently joined first.
func (r *Repository) ListByMember(ctx context.Context, userID uuid.UUID) ([]models.Study, []models.StudyMembership, error) {
	var memberships []models.StudyMembership
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, enums.MembershipStatusActive).
		Order("joined_at DESC").
		Find(&memberships).Error; err != nil {
		return nil, nil, err
	}
	if len(memberships) == 0 {
		return nil, nil, nil
	}

	ids := make([]uuid.UUID, 0, len(memberships))
	for _, m := range memberships {
		ids = append(ids, m.StudyID)
	}
	var rows []models.Study
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	return rows, memberships, nil
}

// Invariant check names reported by FindInvariantViolations.
const (
	CheckLeaderCount = "leader_count"
	CheckLeaderMatch = "leader_match"
	CheckMemberCount = "member_count"
	CheckCapacity    = "capacity"
)

// Violation is one study failing one roster invariant.
type Violation struct {
	Check   string
	StudyID uuid.UUID
}

type invariantCheck struct {
	name  string
	query string
	args  []any
}

var invariantChecks = []invariantCheck{
	{
		name: CheckLeaderCount,
		query: `SELECT s.id FROM studies s
			LEFT JOIN study_memberships m
				ON m.study_id = s.id AND m.role = ? AND m.status = ?
			GROUP BY s.id
			HAVING COUNT(m.id) <> 1`,
		args: []any{enums.MemberRoleLeader, enums.MembershipStatusActive},
	},
	{
		name: CheckLeaderMatch,
		query: `SELECT s.id FROM studies s
			JOIN study_memberships m
				ON m.study_id = s.id AND m.role = ? AND m.status = ?
			WHERE m.user_id <> s.leader_id`,
		args: []any{enums.MemberRoleLeader, enums.MembershipStatusActive},
	},
	{
		name: CheckMemberCount,
		query: `SELECT s.id FROM studies s
			LEFT JOIN study_memberships m
				ON m.study_id = s.id AND m.status = ?
			GROUP BY s.id, s.current_members
			HAVING COUNT(m.id) <> s.current_members`,
		args: []any{enums.MembershipStatusActive},
	},
	{
		name:  CheckCapacity,
		query: `SELECT id FROM studies WHERE current_members < 1 OR current_members > max_members`,
	},
}

// FindInvariantViolations reconciles studies against their membership rows.
// It only reads. Every check runs; violations from the checks that succeeded
// are returned together with the combined error of the ones that failed.
func (r *Repository) FindInvariantViolations(ctx context.Context) ([]Violation, error) {
	var (
		out  []Violation
		errs error
	)
	for _, check := range invariantChecks {
		var ids []uuid.UUID
		if err := r.db.WithContext(ctx).Raw(check.query, check.args...).Scan(&ids).Error; err != nil {
			errs = multierr.Append(errs, fmt.Errorf("audit %s: %w", check.name, err))
			continue
		}
		for _, id := range ids {
			out = append(out, Violation{Check: check.name, StudyID: id})
		}
	}
	return out, errs
}
