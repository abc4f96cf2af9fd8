package studies

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wiedu/wiedu-backend/internal/memberships"
	"github.com/wiedu/wiedu-backend/pkg/db"
	"github.com/wiedu/wiedu-backend/pkg/db/dbtest"
	"github.com/wiedu/wiedu-backend/pkg/db/models"
	"github.com/wiedu/wiedu-backend/pkg/enums"
	pkgerrors "github.com/wiedu/wiedu-backend/pkg/errors"
	"github.com/wiedu/wiedu-backend/pkg/logger"
	"github.com/wiedu/wiedu-backend/pkg/outbox"
	"github.com/wiedu/wiedu-backend/pkg/pagination"
)

type testEnv struct {
	client *db.Client
	svc    Service
	events *outbox.Repository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	client := dbtest.Open(t)
	events := outbox.NewRepository(client.DB())
	svc, err := NewService(ServiceParams{
		DB:          client,
		Repository:  NewRepository(client.DB()),
		Memberships: memberships.NewRepository(client.DB()),
		Outbox:      outbox.NewService(events, nil),
		Logger:      logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &testEnv{client: client, svc: svc, events: events}
}

func (e *testEnv) eventTypes(t *testing.T, studyID uuid.UUID) []enums.OutboxEventType {
	t.Helper()
	rows, err := e.events.ListByAggregate(context.Background(), enums.AggregateStudy, studyID, 100)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	out := make([]enums.OutboxEventType, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.EventType)
	}
	return out
}

func countEvents(types []enums.OutboxEventType, want enums.OutboxEventType) int {
	n := 0
	for _, et := range types {
		if et == want {
			n++
		}
	}
	return n
}

func validInput() CreateStudyInput {
	fee := decimal.RequireFromString("15000")
	return CreateStudyInput{
		Title:            "  Go concurrency reading group ",
		Description:      "weekly chapters",
		Category:         "programming",
		MaxMembers:       5,
		ParticipationFee: &fee,
	}
}

func TestCreateStudyAddsLeaderMembership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	leaderID := uuid.New()

	dto, err := env.svc.Create(ctx, leaderID, validInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if dto.Title != "Go concurrency reading group" {
		t.Fatalf("expected trimmed title, got %q", dto.Title)
	}
	if dto.Status != enums.StudyStatusRecruiting || dto.CurrentMembers != 1 || dto.LeaderID != leaderID {
		t.Fatalf("unexpected study %+v", dto)
	}
	if !dto.ParticipationFee.Equal(decimal.NewFromInt(15000)) {
		t.Fatalf("unexpected fee %s", dto.ParticipationFee)
	}

	var membership models.StudyMembership
	if err := env.client.DB().Where("study_id = ? AND user_id = ?", dto.ID, leaderID).First(&membership).Error; err != nil {
		t.Fatalf("load leader membership: %v", err)
	}
	if membership.Role != enums.MemberRoleLeader || membership.Status != enums.MembershipStatusActive {
		t.Fatalf("unexpected leader membership %+v", membership)
	}
	if got := countEvents(env.eventTypes(t, dto.ID), enums.EventStudyCreated); got != 1 {
		t.Fatalf("expected one study_created event, got %d", got)
	}

	fetched, err := env.svc.Get(ctx, dto.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if fetched.ID != dto.ID {
		t.Fatalf("expected %s, got %s", dto.ID, fetched.ID)
	}
}

func TestCreateStudyValidation(t *testing.T) {
	env := newTestEnv(t)
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	before := start.Add(-24 * time.Hour)
	negative := decimal.NewFromInt(-1)

	cases := map[string]func(in *CreateStudyInput){
		"empty title":      func(in *CreateStudyInput) { in.Title = "   " },
		"long title":       func(in *CreateStudyInput) { in.Title = strings.Repeat("a", 101) },
		"missing category": func(in *CreateStudyInput) { in.Category = "" },
		"one seat":         func(in *CreateStudyInput) { in.MaxMembers = 1 },
		"too many seats":   func(in *CreateStudyInput) { in.MaxMembers = 101 },
		"negative deposit": func(in *CreateStudyInput) { in.Deposit = &negative },
		"end before start": func(in *CreateStudyInput) { in.StartDate, in.EndDate = &start, &before },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := validInput()
			mutate(&in)
			if _, err := env.svc.Create(context.Background(), uuid.New(), in); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestGetStudyNotFound(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.svc.Get(context.Background(), uuid.New()); !pkgerrors.IsCode(err, pkgerrors.CodeStudyNotFound) {
		t.Fatalf("expected study not found, got %v", err)
	}
}

func TestUpdateStudyLeaderOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	leaderID := uuid.New()
	dto, err := env.svc.Create(ctx, leaderID, validInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	title := "Renamed"
	if _, err := env.svc.Update(ctx, dto.ID, uuid.New(), UpdateStudyInput{Title: &title}); !pkgerrors.IsCode(err, pkgerrors.CodeNotStudyLeader) {
		t.Fatalf("expected not leader, got %v", err)
	}

	updated, err := env.svc.Update(ctx, dto.ID, leaderID, UpdateStudyInput{Title: &title})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != "Renamed" || updated.Category != dto.Category {
		t.Fatalf("unexpected update result %+v", updated)
	}

	if _, err := env.svc.Update(ctx, dto.ID, leaderID, UpdateStudyInput{}); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for empty update, got %v", err)
	}

	if _, err := env.svc.Close(ctx, dto.ID, leaderID); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := env.svc.Update(ctx, dto.ID, leaderID, UpdateStudyInput{Title: &title}); !pkgerrors.IsCode(err, pkgerrors.CodeStudyFinished) {
		t.Fatalf("expected finished study error, got %v", err)
	}
}

func TestCloseAndCompleteTransitions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	leaderID := uuid.New()
	dto, err := env.svc.Create(ctx, leaderID, validInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := env.svc.Close(ctx, dto.ID, uuid.New()); !pkgerrors.IsCode(err, pkgerrors.CodeNotStudyLeader) {
		t.Fatalf("expected not leader, got %v", err)
	}

	closed, err := env.svc.Close(ctx, dto.ID, leaderID)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if closed.Status != enums.StudyStatusClosed || closed.Recruiting {
		t.Fatalf("unexpected closed study %+v", closed)
	}

	if _, err := env.svc.Close(ctx, dto.ID, leaderID); err != nil {
		t.Fatalf("second close should be a no-op: %v", err)
	}
	if _, err := env.svc.Complete(ctx, dto.ID, leaderID); !pkgerrors.IsCode(err, pkgerrors.CodeStudyFinished) {
		t.Fatalf("expected finished error, got %v", err)
	}

	if got := countEvents(env.eventTypes(t, dto.ID), enums.EventStudyClosed); got != 1 {
		t.Fatalf("expected exactly one study_closed event, got %d", got)
	}
}

func TestListStudiesFiltersAndPaginates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	leaderID := uuid.New()

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		in := validInput()
		in.Title = "Algorithms " + string(rune('A'+i))
		dto, err := env.svc.Create(ctx, leaderID, in)
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		ids = append(ids, dto.ID)
	}
	other := validInput()
	other.Title = "Korean grammar"
	other.Category = "language"
	if _, err := env.svc.Create(ctx, leaderID, other); err != nil {
		t.Fatalf("create other: %v", err)
	}
	if _, err := env.svc.Close(ctx, ids[0], leaderID); err != nil {
		t.Fatalf("close: %v", err)
	}

	page, err := env.svc.List(ctx, ListFilter{Keyword: "algorithms"}, pagination.Params{Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Items) != 2 || page.NextCursor == "" {
		t.Fatalf("expected a full first page with cursor, got %d items cursor=%q", len(page.Items), page.NextCursor)
	}
	rest, err := env.svc.List(ctx, ListFilter{Keyword: "algorithms"}, pagination.Params{Limit: 2, Cursor: page.NextCursor})
	if err != nil {
		t.Fatalf("list next: %v", err)
	}
	if len(rest.Items) != 1 || rest.NextCursor != "" {
		t.Fatalf("expected last page of one, got %d cursor=%q", len(rest.Items), rest.NextCursor)
	}

	recruiting, err := env.svc.List(ctx, ListFilter{Category: "programming", RecruitingOnly: true}, pagination.Params{Limit: 10})
	if err != nil {
		t.Fatalf("list recruiting: %v", err)
	}
	if len(recruiting.Items) != 2 {
		t.Fatalf("expected 2 recruiting programming studies, got %d", len(recruiting.Items))
	}

	if _, err := env.svc.List(ctx, ListFilter{}, pagination.Params{Cursor: "%%%"}); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for bad cursor, got %v", err)
	}
}

func TestListMyStudies(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	leaderID := uuid.New()
	dto, err := env.svc.Create(ctx, leaderID, validInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	mine, err := env.svc.ListMine(ctx, leaderID)
	if err != nil {
		t.Fatalf("list mine: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != dto.ID || mine[0].MyRole != enums.MemberRoleLeader {
		t.Fatalf("unexpected my studies %+v", mine)
	}

	none, err := env.svc.ListMine(ctx, uuid.New())
	if err != nil {
		t.Fatalf("list mine for stranger: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no studies, got %d", len(none))
	}
}
