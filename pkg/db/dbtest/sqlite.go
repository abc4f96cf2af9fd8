// Package dbtest opens throwaway sqlite databases carrying the study schema.
package dbtest

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/wiedu/wiedu-backend/pkg/db"
	"github.com/wiedu/wiedu-backend/pkg/db/models"
	"github.com/wiedu/wiedu-backend/pkg/enums"
)

// Schema mirrors the postgres migrations with sqlite column types.
var Schema = []string{
	`CREATE TABLE studies (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		cover_image_url TEXT,
		leader_id TEXT NOT NULL,
		max_members INTEGER NOT NULL,
		current_members INTEGER NOT NULL DEFAULT 1,
		status TEXT NOT NULL DEFAULT 'recruiting',
		participation_fee TEXT NOT NULL DEFAULT '0',
		deposit TEXT NOT NULL DEFAULT '0',
		start_date DATETIME,
		end_date DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE study_memberships (
		id TEXT PRIMARY KEY,
		study_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		role TEXT NOT NULL,
		status TEXT NOT NULL,
		joined_at DATETIME NOT NULL,
		withdrawn_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME,
		CONSTRAINT ux_study_memberships_study_user UNIQUE (study_id, user_id)
	)`,
	`CREATE TABLE study_requests (
		id TEXT PRIMARY KEY,
		study_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		message TEXT,
		status TEXT NOT NULL,
		reject_reason TEXT,
		created_at DATETIME,
		processed_at DATETIME
	)`,
	`CREATE UNIQUE INDEX ux_study_requests_pending ON study_requests(study_id, user_id) WHERE status = 'pending'`,
	`CREATE TABLE outbox_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload BLOB NOT NULL,
		created_at DATETIME,
		published_at DATETIME,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT
	)`,
	`CREATE TABLE outbox_dlq (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload_json BLOB NOT NULL,
		error_reason TEXT NOT NULL,
		error_message TEXT,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		failed_at DATETIME,
		created_at DATETIME
	)`,
}

// Open returns a client on a fresh in-memory database. The pool is pinned to
// one connection so concurrent transactions run one after another, the same
// way row locks order them on postgres.
func Open(t testing.TB) *db.Client {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := "file:" + name + "_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	for _, stmt := range Schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}

	t.Cleanup(func() { _ = sqlDB.Close() })
	return db.FromGorm(conn)
}

// SeedStudy inserts a recruiting study led by leaderID together with the
// leader's membership row.
func SeedStudy(t testing.TB, client *db.Client, leaderID uuid.UUID, maxMembers int) *models.Study {
	t.Helper()

	now := time.Now().UTC()
	study := &models.Study{
		ID:             uuid.New(),
		Title:          "Go study " + leaderID.String()[:8],
		Category:       "programming",
		LeaderID:       leaderID,
		MaxMembers:     maxMembers,
		CurrentMembers: 1,
		Status:         enums.StudyStatusRecruiting,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := client.DB().Create(study).Error; err != nil {
		t.Fatalf("seed study: %v", err)
	}
	SeedMember(t, client, study.ID, leaderID, enums.MemberRoleLeader)
	return study
}

// SeedMember inserts an ACTIVE membership row without touching the study counter.
func SeedMember(t testing.TB, client *db.Client, studyID, userID uuid.UUID, role enums.MemberRole) *models.StudyMembership {
	t.Helper()

	now := time.Now().UTC()
	membership := &models.StudyMembership{
		ID:        uuid.New(),
		StudyID:   studyID,
		UserID:    userID,
		Role:      role,
		Status:    enums.MembershipStatusActive,
		JoinedAt:  now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := client.DB().Create(membership).Error; err != nil {
		t.Fatalf("seed membership: %v", err)
	}
	return membership
}
