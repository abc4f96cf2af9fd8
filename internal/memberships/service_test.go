package memberships

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/wiedu/wiedu-backend/internal/studies"
	"github.com/wiedu/wiedu-backend/pkg/db/dbtest"
	"github.com/wiedu/wiedu-backend/pkg/enums"
	pkgerrors "github.com/wiedu/wiedu-backend/pkg/errors"
)

func TestCheckMembership(t *testing.T) {
	client := dbtest.Open(t)
	svc, err := NewService(NewRepository(client.DB()), studies.NewRepository(client.DB()))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ctx := context.Background()
	leaderID := uuid.New()
	study := dbtest.SeedStudy(t, client, leaderID, 4)

	check, err := svc.CheckMembership(ctx, study.ID, leaderID)
	if err != nil {
		t.Fatalf("check leader: %v", err)
	}
	if !check.IsMember || check.Role == nil || *check.Role != enums.MemberRoleLeader {
		t.Fatalf("expected leader membership, got %+v", check)
	}

	stranger, err := svc.CheckMembership(ctx, study.ID, uuid.New())
	if err != nil {
		t.Fatalf("check stranger: %v", err)
	}
	if stranger.IsMember || stranger.Role != nil {
		t.Fatalf("expected no membership, got %+v", stranger)
	}

	if _, err := svc.CheckMembership(ctx, uuid.New(), leaderID); !pkgerrors.IsCode(err, pkgerrors.CodeStudyNotFound) {
		t.Fatalf("expected study not found, got %v", err)
	}
}

func TestListMembersLeaderFirst(t *testing.T) {
	client := dbtest.Open(t)
	svc, err := NewService(NewRepository(client.DB()), studies.NewRepository(client.DB()))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	leaderID := uuid.New()
	study := dbtest.SeedStudy(t, client, leaderID, 4)
	memberID := uuid.New()
	dbtest.SeedMember(t, client, study.ID, memberID, enums.MemberRoleMember)

	members, err := svc.ListMembers(context.Background(), study.ID)
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}
	if members[0].UserID != leaderID || members[0].Role != enums.MemberRoleLeader {
		t.Fatalf("expected leader first, got %+v", members[0])
	}
	if members[1].UserID != memberID {
		t.Fatalf("unexpected second member %+v", members[1])
	}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	if _, err := NewService(nil, nil); err == nil {
		t.Fatal("expected error for missing repository")
	}
}
