package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/wiedu/wiedu-backend/internal/studies"
	"github.com/wiedu/wiedu-backend/pkg/db/dbtest"
	"github.com/wiedu/wiedu-backend/pkg/db/models"
	"github.com/wiedu/wiedu-backend/pkg/enums"
	"github.com/wiedu/wiedu-backend/pkg/metrics"
)

func TestStudyAuditFindsEachViolation(t *testing.T) {
	client := dbtest.Open(t)
	db := client.DB()

	clean := dbtest.SeedStudy(t, client, uuid.New(), 4)
	dbtest.SeedMember(t, client, clean.ID, uuid.New(), enums.MemberRoleMember)
	require.NoError(t, db.Model(&models.Study{}).Where("id = ?", clean.ID).Update("current_members", 2).Error)

	drifted := dbtest.SeedStudy(t, client, uuid.New(), 4)
	require.NoError(t, db.Model(&models.Study{}).Where("id = ?", drifted.ID).Update("current_members", 3).Error)

	mismatched := dbtest.SeedStudy(t, client, uuid.New(), 4)
	require.NoError(t, db.Model(&models.Study{}).Where("id = ?", mismatched.ID).Update("leader_id", uuid.New()).Error)

	leaderless := dbtest.SeedStudy(t, client, uuid.New(), 4)
	require.NoError(t, db.Model(&models.StudyMembership{}).Where("study_id = ?", leaderless.ID).
		Update("role", enums.MemberRoleMember).Error)

	overfull := dbtest.SeedStudy(t, client, uuid.New(), 2)
	require.NoError(t, db.Model(&models.Study{}).Where("id = ?", overfull.ID).Update("current_members", 3).Error)

	violations, err := studies.NewRepository(db).FindInvariantViolations(context.Background())
	require.NoError(t, err)

	found := map[string]map[uuid.UUID]bool{}
	for _, v := range violations {
		if found[v.Check] == nil {
			found[v.Check] = map[uuid.UUID]bool{}
		}
		found[v.Check][v.StudyID] = true
		require.NotEqual(t, clean.ID, v.StudyID, "clean study reported for %s", v.Check)
	}
	require.True(t, found[studies.CheckMemberCount][drifted.ID])
	require.True(t, found[studies.CheckLeaderMatch][mismatched.ID])
	require.True(t, found[studies.CheckLeaderCount][leaderless.ID])
	require.True(t, found[studies.CheckCapacity][overfull.ID])
}

func TestStudyAuditJobRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	auditor := fakeAuditor{violations: []studies.Violation{
		{Check: studies.CheckCapacity, StudyID: uuid.New()},
		{Check: studies.CheckCapacity, StudyID: uuid.New()},
		{Check: studies.CheckLeaderCount, StudyID: uuid.New()},
	}}
	job, err := NewStudyAuditJob(StudyAuditJobParams{
		Logger:  testLogger(),
		Auditor: auditor,
		Metrics: metrics.NewAuditMetrics(reg),
	})
	require.NoError(t, err)
	require.Equal(t, "study-invariant-audit", job.Name())
	require.NoError(t, job.Run(context.Background()))

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Equal(t, float64(2), counterValue(families, "study_invariant_violations_total", "check", studies.CheckCapacity))
	require.Equal(t, float64(1), counterValue(families, "study_invariant_violations_total", "check", studies.CheckLeaderCount))
}

func TestStudyAuditJobPropagatesError(t *testing.T) {
	job, err := NewStudyAuditJob(StudyAuditJobParams{
		Logger:  testLogger(),
		Auditor: fakeAuditor{err: errors.New("db down")},
	})
	require.NoError(t, err)
	require.Error(t, job.Run(context.Background()))
}

func TestStudyAuditJobCountsPartialResultsOnError(t *testing.T) {
	reg := prometheus.NewRegistry()
	auditor := fakeAuditor{
		violations: []studies.Violation{{Check: studies.CheckCapacity, StudyID: uuid.New()}},
		err:        errors.New("audit leader_count: db down"),
	}
	job, err := NewStudyAuditJob(StudyAuditJobParams{
		Logger:  testLogger(),
		Auditor: auditor,
		Metrics: metrics.NewAuditMetrics(reg),
	})
	require.NoError(t, err)
	require.Error(t, job.Run(context.Background()))

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Equal(t, float64(1), counterValue(families, "study_invariant_violations_total", "check", studies.CheckCapacity))
}

type fakeAuditor struct {
	violations []studies.Violation
	err        error
}

func (f fakeAuditor) FindInvariantViolations(context.Context) ([]studies.Violation, error) {
	return f.violations, f.err
}
