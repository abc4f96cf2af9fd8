// Package lifecycle applies the transitions that touch a study, its roster and
// its requests together. Every operation holds the study row lock for its whole
// transaction, so capacity and leadership changes on one study are serialized.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wiedu/wiedu-backend/pkg/db/models"
	"github.com/wiedu/wiedu-backend/pkg/enums"
	pkgerrors "github.com/wiedu/wiedu-backend/pkg/errors"
	"github.com/wiedu/wiedu-backend/pkg/logger"
	"github.com/wiedu/wiedu-backend/pkg/metrics"
	"github.com/wiedu/wiedu-backend/pkg/outbox"
	"github.com/wiedu/wiedu-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type studyLocker interface {
	LockByID(tx *gorm.DB, id uuid.UUID) (*models.Study, error)
	SaveTx(tx *gorm.DB, study *models.Study) error
}

type membershipStore interface {
	CreateTx(tx *gorm.DB, membership *models.StudyMembership) error
	FindTx(tx *gorm.DB, studyID, userID uuid.UUID) (*models.StudyMembership, error)
	SaveTx(tx *gorm.DB, membership *models.StudyMembership) error
}

type requestStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.StudyRequest, error)
	FindByIDTx(tx *gorm.DB, id uuid.UUID) (*models.StudyRequest, error)
	ResolveTx(tx *gorm.DB, request *models.StudyRequest) error
}

// Coordinator is the only writer of multi-entity study transitions.
type Coordinator interface {
	Approve(ctx context.Context, requestID, leaderID uuid.UUID) (*ApprovalResult, error)
	Kick(ctx context.Context, studyID, leaderID, targetID uuid.UUID) (*RosterChange, error)
	WithdrawSelf(ctx context.Context, studyID, userID uuid.UUID) (*RosterChange, error)
	Delegate(ctx context.Context, studyID, leaderID, newLeaderID uuid.UUID) (*Delegation, error)
}

// ApprovalResult describes the study right after a request was approved.
type ApprovalResult struct {
	RequestID      uuid.UUID         `json:"request_id"`
	StudyID        uuid.UUID         `json:"study_id"`
	UserID         uuid.UUID         `json:"user_id"`
	CurrentMembers int               `json:"current_members"`
	MaxMembers     int               `json:"max_members"`
	StudyStatus    enums.StudyStatus `json:"study_status"`
}

// RosterChange describes the study right after a member left.
type RosterChange struct {
	StudyID        uuid.UUID `json:"study_id"`
	UserID         uuid.UUID `json:"user_id"`
	CurrentMembers int       `json:"current_members"`
}

// Delegation reports a completed leader swap.
type Delegation struct {
	StudyID          uuid.UUID `json:"study_id"`
	PreviousLeaderID uuid.UUID `json:"previous_leader_id"`
	NewLeaderID      uuid.UUID `json:"new_leader_id"`
}

// Params wires the coordinator.
type Params struct {
	DB          txRunner
	Studies     studyLocker
	Memberships membershipStore
	Requests    requestStore
	Outbox      outbox.Emitter
	Metrics     *metrics.LifecycleMetrics
	Logger      *logger.Logger
}

type coordinator struct {
	db          txRunner
	studies     studyLocker
	memberships membershipStore
	requests    requestStore
	outbox      outbox.Emitter
	metrics     *metrics.LifecycleMetrics
	logg        *logger.Logger
	now         func() time.Time
}

// NewCoordinator validates dependencies and returns a Coordinator.
func NewCoordinator(p Params) (Coordinator, error) {
	if p.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if p.Studies == nil {
		return nil, fmt.Errorf("study repository required")
	}
	if p.Memberships == nil {
		return nil, fmt.Errorf("membership repository required")
	}
	if p.Requests == nil {
		return nil, fmt.Errorf("request repository required")
	}
	if p.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &coordinator{
		db:          p.DB,
		studies:     p.Studies,
		memberships: p.Memberships,
		requests:    p.Requests,
		outbox:      p.Outbox,
		metrics:     p.Metrics,
		logg:        p.Logger,
		now:         time.Now,
	}, nil
}

// Approve admits the requester. The request is resolved, the membership is
// written and the seat is taken in one transaction, or none of it happens.
func (c *coordinator) Approve(ctx context.Context, requestID, leaderID uuid.UUID) (_ *ApprovalResult, err error) {
	defer func(start time.Time) { c.metrics.Observe("approve", start, err) }(time.Now())

	initial, err := c.requests.FindByID(ctx, requestID)
	if err != nil {
		return nil, lookupErr(err, pkgerrors.CodeRequestNotFound, "request not found")
	}

	var result *ApprovalResult
	err = c.db.WithTx(ctx, func(tx *gorm.DB) error {
		study, err := c.lockStudy(tx, initial.StudyID)
		if err != nil {
			return err
		}
		request, err := c.requests.FindByIDTx(tx, requestID)
		if err != nil {
			return lookupErr(err, pkgerrors.CodeRequestNotFound, "request not found")
		}
		if !study.IsLeader(leaderID) {
			return pkgerrors.New(pkgerrors.CodeNotStudyLeader, "only the study leader may approve requests")
		}

		now := c.now().UTC()
		if err := request.Approve(now); err != nil {
			return err
		}
		if study.IsFull() {
			return pkgerrors.New(pkgerrors.CodeStudyFull, "study has no open seats").
				WithDetails(map[string]any{"current_members": study.CurrentMembers, "max_members": study.MaxMembers})
		}
		if !study.IsRecruiting() {
			return pkgerrors.New(pkgerrors.CodeStudyNotRecruiting, "study is not recruiting")
		}

		if err := c.admit(tx, study.ID, request.UserID, now); err != nil {
			return err
		}
		if err := c.requests.ResolveTx(tx, request); err != nil {
			return storeErr(err, "resolve request")
		}
		study.IncrementMember()
		study.UpdatedAt = now
		if err := c.studies.SaveTx(tx, study); err != nil {
			return storeErr(err, "save study")
		}

		result = &ApprovalResult{
			RequestID:      request.ID,
			StudyID:        study.ID,
			UserID:         request.UserID,
			CurrentMembers: study.CurrentMembers,
			MaxMembers:     study.MaxMembers,
			StudyStatus:    study.Status,
		}
		return c.emit(ctx, tx, enums.EventStudyRequestApproved, study.ID, leaderID, payloads.RequestApprovedEvent{
			RequestID:      request.ID,
			StudyID:        study.ID,
			UserID:         request.UserID,
			CurrentMembers: study.CurrentMembers,
			StudyStatus:    study.Status,
		})
	})
	if err != nil {
		return nil, err
	}

	c.logg.Info(c.logCtx(ctx, result.StudyID, leaderID, map[string]any{
		"request_id":      result.RequestID.String(),
		"user_id":         result.UserID.String(),
		"current_members": result.CurrentMembers,
		"study_status":    result.StudyStatus,
	}), "study request approved")
	return result, nil
}

// admit creates the membership row, or reopens the row of a member who left earlier.
func (c *coordinator) admit(tx *gorm.DB, studyID, userID uuid.UUID, now time.Time) error {
	existing, err := c.memberships.FindTx(tx, studyID, userID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return storeErr(c.memberships.CreateTx(tx, &models.StudyMembership{
			ID:        uuid.New(),
			StudyID:   studyID,
			UserID:    userID,
			Role:      enums.MemberRoleMember,
			Status:    enums.MembershipStatusActive,
			JoinedAt:  now,
			CreatedAt: now,
			UpdatedAt: now,
		}), "create membership")
	case err != nil:
		return storeErr(err, "load membership")
	case existing.IsActive():
		return pkgerrors.New(pkgerrors.CodeAlreadyMember, "requester is already a member")
	}
	existing.Reactivate(now)
	existing.UpdatedAt = now
	return storeErr(c.memberships.SaveTx(tx, existing), "reactivate membership")
}

func (c *coordinator) Kick(ctx context.Context, studyID, leaderID, targetID uuid.UUID) (_ *RosterChange, err error) {
	defer func(start time.Time) { c.metrics.Observe("kick", start, err) }(time.Now())

	var change *RosterChange
	err = c.db.WithTx(ctx, func(tx *gorm.DB) error {
		study, err := c.lockStudy(tx, studyID)
		if err != nil {
			return err
		}
		if !study.IsLeader(leaderID) {
			return pkgerrors.New(pkgerrors.CodeNotStudyLeader, "only the study leader may remove members")
		}
		if targetID == study.LeaderID {
			return pkgerrors.New(pkgerrors.CodeCannotKickSelf, "the leader cannot remove themselves")
		}
		removedBy := leaderID
		change, err = c.removeMember(tx, study, targetID)
		if err != nil {
			return err
		}
		return c.emit(ctx, tx, enums.EventStudyMemberKicked, study.ID, leaderID, payloads.MemberRemovedEvent{
			StudyID:        study.ID,
			UserID:         targetID,
			RemovedBy:      &removedBy,
			CurrentMembers: study.CurrentMembers,
		})
	})
	if err != nil {
		return nil, err
	}

	c.logg.Info(c.logCtx(ctx, studyID, leaderID, map[string]any{
		"user_id":         targetID.String(),
		"current_members": change.CurrentMembers,
	}), "study member kicked")
	return change, nil
}

func (c *coordinator) WithdrawSelf(ctx context.Context, studyID, userID uuid.UUID) (_ *RosterChange, err error) {
	defer func(start time.Time) { c.metrics.Observe("withdraw", start, err) }(time.Now())

	var change *RosterChange
	err = c.db.WithTx(ctx, func(tx *gorm.DB) error {
		study, err := c.lockStudy(tx, studyID)
		if err != nil {
			return err
		}
		change, err = c.removeMember(tx, study, userID)
		if err != nil {
			return err
		}
		return c.emit(ctx, tx, enums.EventStudyMemberWithdrawn, study.ID, userID, payloads.MemberRemovedEvent{
			StudyID:        study.ID,
			UserID:         userID,
			CurrentMembers: study.CurrentMembers,
		})
	})
	if err != nil {
		return nil, err
	}

	c.logg.Info(c.logCtx(ctx, studyID, userID, map[string]any{
		"current_members": change.CurrentMembers,
	}), "study member withdrew")
	return change, nil
}

// removeMember withdraws the user's membership and frees the seat on the
// already locked study.
func (c *coordinator) removeMember(tx *gorm.DB, study *models.Study, userID uuid.UUID) (*RosterChange, error) {
	membership, err := c.memberships.FindTx(tx, study.ID, userID)
	if err != nil {
		return nil, lookupErr(err, pkgerrors.CodeNotMember, "user is not a member of this study")
	}
	now := c.now().UTC()
	if err := membership.Withdraw(now); err != nil {
		return nil, err
	}
	membership.UpdatedAt = now
	if err := c.memberships.SaveTx(tx, membership); err != nil {
		return nil, storeErr(err, "save membership")
	}
	study.DecrementMember()
	study.UpdatedAt = now
	if err := c.studies.SaveTx(tx, study); err != nil {
		return nil, storeErr(err, "save study")
	}
	return &RosterChange{StudyID: study.ID, UserID: userID, CurrentMembers: study.CurrentMembers}, nil
}

// Delegate swaps leadership. The two membership roles and studies.leader_id are
// written in one transaction so a study never shows zero or two leaders.
func (c *coordinator) Delegate(ctx context.Context, studyID, leaderID, newLeaderID uuid.UUID) (_ *Delegation, err error) {
	defer func(start time.Time) { c.metrics.Observe("delegate", start, err) }(time.Now())

	if leaderID == newLeaderID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "new leader must be a different member")
	}

	var delegation *Delegation
	err = c.db.WithTx(ctx, func(tx *gorm.DB) error {
		study, err := c.lockStudy(tx, studyID)
		if err != nil {
			return err
		}
		if !study.IsLeader(leaderID) {
			return pkgerrors.New(pkgerrors.CodeNotStudyLeader, "only the study leader may delegate")
		}

		next, err := c.memberships.FindTx(tx, study.ID, newLeaderID)
		if err != nil {
			return lookupErr(err, pkgerrors.CodeNewLeaderMustBeMember, "new leader must be a member of this study")
		}
		if !next.IsActive() {
			return pkgerrors.New(pkgerrors.CodeCannotDelegateToWithdrawn, "new leader has left this study")
		}
		current, err := c.memberships.FindTx(tx, study.ID, study.LeaderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load leader membership")
		}

		now := c.now().UTC()
		current.DemoteToMember()
		current.UpdatedAt = now
		next.PromoteToLeader()
		next.UpdatedAt = now
		if err := c.memberships.SaveTx(tx, current); err != nil {
			return storeErr(err, "demote leader")
		}
		if err := c.memberships.SaveTx(tx, next); err != nil {
			return storeErr(err, "promote leader")
		}
		previous := study.LeaderID
		study.ChangeLeader(newLeaderID)
		study.UpdatedAt = now
		if err := c.studies.SaveTx(tx, study); err != nil {
			return storeErr(err, "save study")
		}

		delegation = &Delegation{StudyID: study.ID, PreviousLeaderID: previous, NewLeaderID: newLeaderID}
		return c.emit(ctx, tx, enums.EventStudyLeaderDelegated, study.ID, leaderID, payloads.LeaderDelegatedEvent{
			StudyID:          study.ID,
			PreviousLeaderID: previous,
			NewLeaderID:      newLeaderID,
		})
	})
	if err != nil {
		return nil, err
	}

	c.logg.Info(c.logCtx(ctx, studyID, leaderID, map[string]any{
		"new_leader_id": newLeaderID.String(),
	}), "study leader delegated")
	return delegation, nil
}

func (c *coordinator) lockStudy(tx *gorm.DB, studyID uuid.UUID) (*models.Study, error) {
	study, err := c.studies.LockByID(tx, studyID)
	if err != nil {
		return nil, lookupErr(err, pkgerrors.CodeStudyNotFound, "study not found")
	}
	return study, nil
}

func (c *coordinator) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, studyID, actorID uuid.UUID, data any) error {
	if err := c.outbox.Emit(ctx, tx, outbox.StudyEvent(eventType, studyID, actorID, data)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "queue outbox event")
	}
	return nil
}

func (c *coordinator) logCtx(ctx context.Context, studyID, actorID uuid.UUID, fields map[string]any) context.Context {
	fields["study_id"] = studyID.String()
	fields["actor_id"] = actorID.String()
	return c.logg.WithFields(ctx, fields)
}

func lookupErr(err error, code pkgerrors.Code, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(code, msg)
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, msg)
}

// storeErr passes typed errors through and wraps everything else as internal.
func storeErr(err error, msg string) error {
	if err == nil {
		return nil
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, msg)
}
