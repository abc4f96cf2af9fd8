package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	pkgerrors "github.com/wiedu/wiedu-backend/pkg/errors"
)

const outcomeOK = "ok"

// LifecycleMetrics counts study operations by outcome and times them.
type LifecycleMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewLifecycleMetrics registers the study operation metrics on reg.
func NewLifecycleMetrics(reg prometheus.Registerer) *LifecycleMetrics {
	if reg == nil {
		return &LifecycleMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "study",
		Name:      "operations_total",
		Help:      "Study operations by outcome (ok or error code).",
	}, []string{"operation", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "study",
		Name:      "operation_duration_seconds",
		Help:      "Duration of study operations, including lock wait.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
	reg.MustRegister(operations, duration)
	return &LifecycleMetrics{operations: operations, duration: duration}
}

// Observe records one finished operation. Use it with defer and a named error.
func (m *LifecycleMetrics) Observe(operation string, start time.Time, err error) {
	if m == nil || m.operations == nil {
		return
	}
	op := normalizeLabel(operation)
	m.operations.WithLabelValues(op, Outcome(err)).Inc()
	m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// Outcome maps an error to a bounded label value.
func Outcome(err error) string {
	if err == nil {
		return outcomeOK
	}
	if typed := pkgerrors.As(err); typed != nil {
		return string(typed.Code())
	}
	return string(pkgerrors.CodeInternal)
}

// AuditMetrics counts invariant violations found by the study audit.
type AuditMetrics struct {
	violations *prometheus.CounterVec
}

func NewAuditMetrics(reg prometheus.Registerer) *AuditMetrics {
	if reg == nil {
		return &AuditMetrics{}
	}
	violations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "study_invariant_violations_total",
		Help: "Studies found violating a roster invariant.",
	}, []string{"check"})
	reg.MustRegister(violations)
	return &AuditMetrics{violations: violations}
}

// AddViolations adds n violations for check.
func (m *AuditMetrics) AddViolations(check string, n int) {
	if m == nil || m.violations == nil || n <= 0 {
		return
	}
	m.violations.WithLabelValues(normalizeLabel(check)).Add(float64(n))
}
