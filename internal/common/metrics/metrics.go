// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Zeebe job workers
var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)
)

// Tracking
var (
	TouchpointsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "touchpoints_recorded_total",
			Help: "Touchpoints recorded by type",
		},
		[]string{"type"},
	)

	ConversionsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversions_recorded_total",
			Help: "Conversions recorded by event type",
		},
		[]string{"event_type"},
	)

	ConversionValue = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversion_value_total",
			Help: "Sum of conversion values by currency",
		},
		[]string{"currency"},
	)

	LeadScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lead_score",
			Help:    "Distribution of recomputed lead scores",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)

	StageTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "journey_stage_transitions_total",
			Help: "Journey stage transitions by target stage",
		},
		[]string{"to"},
	)
)

// Workflow engine
var (
	WorkflowExecutionsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_executions_started_total",
			Help: "Workflow executions started",
		},
		[]string{"workflow_id"},
	)

	WorkflowExecutionsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_executions_finished_total",
			Help: "Workflow executions reaching a terminal state",
		},
		[]string{"workflow_id", "status"},
	)

	WorkflowTriggersSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_triggers_skipped_total",
			Help: "Workflow triggers rejected before an execution was created",
		},
		[]string{"reason"},
	)

	ActionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "workflow_action_duration_seconds",
			Help: "Duration of workflow action execution",
		},
		[]string{"action_type"},
	)

	ActionFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_action_failures_total",
			Help: "Workflow action failures by type and error code",
		},
		[]string{"action_type", "error_code"},
	)
)

// Scheduler
var (
	SweepRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_sweep_runs_total",
			Help: "Periodic sweep runs by job and outcome",
		},
		[]string{"job", "outcome"},
	)

	ContinuationsFired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduler_continuations_fired_total",
			Help: "Wait continuations claimed and resumed",
		},
	)
)
