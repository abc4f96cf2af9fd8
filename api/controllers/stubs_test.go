package controllers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wiedu/wiedu-backend/api/middleware"
	"github.com/wiedu/wiedu-backend/internal/lifecycle"
	"github.com/wiedu/wiedu-backend/internal/memberships"
	"github.com/wiedu/wiedu-backend/internal/requests"
	"github.com/wiedu/wiedu-backend/internal/studies"
	"github.com/wiedu/wiedu-backend/pkg/logger"
	"github.com/wiedu/wiedu-backend/pkg/pagination"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

// newRequest builds a request carrying the caller id and chi URL params.
func newRequest(method, target, body string, userID uuid.UUID, params map[string]string) *http.Request {
	var reader io.Reader = http.NoBody
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	ctx := req.Context()
	if userID != uuid.Nil {
		ctx = middleware.WithUserID(ctx, userID.String())
	}
	routeCtx := chi.NewRouteContext()
	for k, v := range params {
		routeCtx.URLParams.Add(k, v)
	}
	ctx = context.WithValue(ctx, chi.RouteCtxKey, routeCtx)
	return req.WithContext(ctx)
}

type stubStudies struct {
	createFn   func(ctx context.Context, leaderID uuid.UUID, input studies.CreateStudyInput) (*studies.StudyDTO, error)
	getFn      func(ctx context.Context, id uuid.UUID) (*studies.StudyDTO, error)
	listFn     func(ctx context.Context, filter studies.ListFilter, params pagination.Params) (*studies.ListResult, error)
	listMineFn func(ctx context.Context, userID uuid.UUID) ([]studies.MyStudyDTO, error)
	updateFn   func(ctx context.Context, studyID, actorID uuid.UUID, input studies.UpdateStudyInput) (*studies.StudyDTO, error)
	closeFn    func(ctx context.Context, studyID, actorID uuid.UUID) (*studies.StudyDTO, error)
}

func (s *stubStudies) Create(ctx context.Context, leaderID uuid.UUID, input studies.CreateStudyInput) (*studies.StudyDTO, error) {
	return s.createFn(ctx, leaderID, input)
}

func (s *stubStudies) Get(ctx context.Context, id uuid.UUID) (*studies.StudyDTO, error) {
	return s.getFn(ctx, id)
}

func (s *stubStudies) List(ctx context.Context, filter studies.ListFilter, params pagination.Params) (*studies.ListResult, error) {
	return s.listFn(ctx, filter, params)
}

func (s *stubStudies) ListMine(ctx context.Context, userID uuid.UUID) ([]studies.MyStudyDTO, error) {
	return s.listMineFn(ctx, userID)
}

func (s *stubStudies) Update(ctx context.Context, studyID, actorID uuid.UUID, input studies.UpdateStudyInput) (*studies.StudyDTO, error) {
	return s.updateFn(ctx, studyID, actorID, input)
}

func (s *stubStudies) Close(ctx context.Context, studyID, actorID uuid.UUID) (*studies.StudyDTO, error) {
	return s.closeFn(ctx, studyID, actorID)
}

func (s *stubStudies) Complete(ctx context.Context, studyID, actorID uuid.UUID) (*studies.StudyDTO, error) {
	return s.closeFn(ctx, studyID, actorID)
}

type stubRequests struct {
	applyFn       func(ctx context.Context, studyID, userID uuid.UUID, message *string) (*requests.RequestDTO, error)
	rejectFn      func(ctx context.Context, requestID, leaderID uuid.UUID, reason *string) (*requests.RequestDTO, error)
	cancelFn      func(ctx context.Context, requestID, userID uuid.UUID) error
	listPendingFn func(ctx context.Context, studyID, leaderID uuid.UUID, params pagination.Params) (*requests.ListResult, error)
	listMineFn    func(ctx context.Context, userID uuid.UUID, params pagination.Params) (*requests.ListResult, error)
}

func (s *stubRequests) Apply(ctx context.Context, studyID, userID uuid.UUID, message *string) (*requests.RequestDTO, error) {
	return s.applyFn(ctx, studyID, userID, message)
}

func (s *stubRequests) Reject(ctx context.Context, requestID, leaderID uuid.UUID, reason *string) (*requests.RequestDTO, error) {
	return s.rejectFn(ctx, requestID, leaderID, reason)
}

func (s *stubRequests) Cancel(ctx context.Context, requestID, userID uuid.UUID) error {
	return s.cancelFn(ctx, requestID, userID)
}

func (s *stubRequests) ListPending(ctx context.Context, studyID, leaderID uuid.UUID, params pagination.Params) (*requests.ListResult, error) {
	return s.listPendingFn(ctx, studyID, leaderID, params)
}

func (s *stubRequests) ListMine(ctx context.Context, userID uuid.UUID, params pagination.Params) (*requests.ListResult, error) {
	return s.listMineFn(ctx, userID, params)
}

type stubMemberships struct {
	listFn  func(ctx context.Context, studyID uuid.UUID) ([]memberships.MemberDTO, error)
	checkFn func(ctx context.Context, studyID, userID uuid.UUID) (*memberships.MembershipCheck, error)
}

func (s *stubMemberships) ListMembers(ctx context.Context, studyID uuid.UUID) ([]memberships.MemberDTO, error) {
	return s.listFn(ctx, studyID)
}

func (s *stubMemberships) CheckMembership(ctx context.Context, studyID, userID uuid.UUID) (*memberships.MembershipCheck, error) {
	return s.checkFn(ctx, studyID, userID)
}

type stubCoordinator struct {
	approveFn  func(ctx context.Context, requestID, leaderID uuid.UUID) (*lifecycle.ApprovalResult, error)
	kickFn     func(ctx context.Context, studyID, leaderID, targetID uuid.UUID) (*lifecycle.RosterChange, error)
	withdrawFn func(ctx context.Context, studyID, userID uuid.UUID) (*lifecycle.RosterChange, error)
	delegateFn func(ctx context.Context, studyID, leaderID, newLeaderID uuid.UUID) (*lifecycle.Delegation, error)
}

func (s *stubCoordinator) Approve(ctx context.Context, requestID, leaderID uuid.UUID) (*lifecycle.ApprovalResult, error) {
	return s.approveFn(ctx, requestID, leaderID)
}

func (s *stubCoordinator) Kick(ctx context.Context, studyID, leaderID, targetID uuid.UUID) (*lifecycle.RosterChange, error) {
	return s.kickFn(ctx, studyID, leaderID, targetID)
}

func (s *stubCoordinator) WithdrawSelf(ctx context.Context, studyID, userID uuid.UUID) (*lifecycle.RosterChange, error) {
	return s.withdrawFn(ctx, studyID, userID)
}

func (s *stubCoordinator) Delegate(ctx context.Context, studyID, leaderID, newLeaderID uuid.UUID) (*lifecycle.Delegation, error) {
	return s.delegateFn(ctx, studyID, leaderID, newLeaderID)
}
