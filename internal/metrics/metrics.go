// Package metrics registers the planner collectors with the controller-runtime
// registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"

	"github.com/okapi-platform/okapi/api/v1alpha1"
)

// Install outcomes.
const (
	OutcomeSuccess   = "success"
	OutcomeUserError = "user_error"
	OutcomeError     = "error"
)

var (
	plannerInstallTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "okapi_planner_install_total",
			Help: "Number of install plans computed by outcome.",
		},
		[]string{"outcome"},
	)

	plannerIterations = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "okapi_planner_iterations",
			Help:    "Fixup passes needed to reach a stable plan.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 8),
		},
	)

	plannerPlanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "okapi_planner_plan_duration_seconds",
			Help:    "Time taken to compute an install plan.",
			Buckets: prometheus.DefBuckets,
		},
	)

	plannerActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "okapi_planner_actions_total",
			Help: "Number of planned actions by action.",
		},
		[]string{"action"},
	)
)

func init() {
	metrics.Registry.MustRegister(
		plannerInstallTotal,
		plannerIterations,
		plannerPlanDuration,
		plannerActionsTotal,
	)
}

// ObservePlan records one planning call. Iterations and actions are only
// recorded for successful plans.
func ObservePlan(outcome string, elapsed time.Duration, iterations int, actions []v1alpha1.TenantModuleDescriptor) {
	plannerInstallTotal.WithLabelValues(outcome).Inc()
	plannerPlanDuration.Observe(elapsed.Seconds())
	if outcome != OutcomeSuccess {
		return
	}
	plannerIterations.Observe(float64(iterations))
	for _, tm := range actions {
		plannerActionsTotal.WithLabelValues(string(tm.Action)).Inc()
	}
}
