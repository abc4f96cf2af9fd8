package cron

import (
	"context"
	"fmt"

	"github.com/wiedu/wiedu-backend/internal/studies"
	"github.com/wiedu/wiedu-backend/pkg/logger"
	"github.com/wiedu/wiedu-backend/pkg/metrics"
)

var auditChecks = []string{
	studies.CheckLeaderCount,
	studies.CheckLeaderMatch,
	studies.CheckMemberCount,
	studies.CheckCapacity,
}

type invariantAuditor interface {
	FindInvariantViolations(ctx context.Context) ([]studies.Violation, error)
}

type StudyAuditJobParams struct {
	Logger  *logger.Logger
	Auditor invariantAuditor
	Metrics *metrics.AuditMetrics
}

// NewStudyAuditJob reports studies whose counters or leader disagree with
// their membership rows. It never repairs anything.
func NewStudyAuditJob(params StudyAuditJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Auditor == nil {
		return nil, fmt.Errorf("study auditor required")
	}
	return &studyAuditJob{
		logg:    params.Logger,
		auditor: params.Auditor,
		metrics: params.Metrics,
	}, nil
}

type studyAuditJob struct {
	logg    *logger.Logger
	auditor invariantAuditor
	metrics *metrics.AuditMetrics
}

func (j *studyAuditJob) Name() string { return "study-invariant-audit" }

func (j *studyAuditJob) Run(ctx context.Context) error {
	violations, auditErr := j.auditor.FindInvariantViolations(ctx)

	counts := make(map[string]int, len(auditChecks))
	for _, v := range violations {
		counts[v.Check]++
		logCtx := j.logg.WithFields(ctx, map[string]any{
			"study_id": v.StudyID.String(),
			"check":    v.Check,
		})
		j.logg.Warn(logCtx, "study invariant violated")
	}
	for _, check := range auditChecks {
		j.metrics.AddViolations(check, counts[check])
	}

	if auditErr != nil {
		j.logg.Error(j.logg.WithField(ctx, "violations", len(violations)), "study audit incomplete", auditErr)
		return fmt.Errorf("study audit: %w", auditErr)
	}
	j.logg.Info(j.logg.WithField(ctx, "violations", len(violations)), "study audit complete")
	return nil
}
