// internal/common/camunda/worker.go
package camunda

import (
	"context"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"go.opentelemetry.io/otel/trace"

	"lead-automation/internal/common/config"
	"lead-automation/internal/common/errors"
	"lead-automation/internal/common/logger"
	"lead-automation/internal/common/metrics"
	"lead-automation/internal/common/observability"
)

// JobExecutor runs the business logic of one task type over the job's
// variables and returns the variables to complete the job with.
type JobExecutor interface {
	TaskType() string
	Execute(ctx context.Context, variables map[string]interface{}) (map[string]interface{}, error)
}

type WorkerConfig struct {
	Enabled       bool
	MaxJobsActive int
	Timeout       time.Duration
}

func (c WorkerConfig) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxJobsActive <= 0 {
		return fmt.Errorf("max_jobs_active must be positive")
	}
	return nil
}

// ConfigFor reads the workers.<name> section. Missing sections default to
// an enabled worker with five active jobs and a 30s timeout.
func ConfigFor(workers map[string]config.WorkerConfig, name string) WorkerConfig {
	cfg := WorkerConfig{Enabled: true, MaxJobsActive: 5, Timeout: 30 * time.Second}
	wc, ok := workers[name]
	if !ok {
		return cfg
	}
	cfg.Enabled = wc.Enabled
	if wc.MaxJobsActive > 0 {
		cfg.MaxJobsActive = wc.MaxJobsActive
	}
	if wc.Timeout > 0 {
		cfg.Timeout = time.Duration(wc.Timeout) * time.Millisecond
	}
	return cfg
}

// Worker adapts a JobExecutor to a Zeebe job worker: metrics, a span per
// job, completion with the executor's output and failure reporting through
// errors.ErrorHandler.
type Worker struct {
	client    *Client
	executor  JobExecutor
	config    WorkerConfig
	logger    logger.Logger
	errors    *errors.ErrorHandler
	obs       *observability.Observability
	jobWorker worker.JobWorker
}

func NewWorker(client *Client, executor JobExecutor, cfg WorkerConfig, obs *observability.Observability, log logger.Logger) (*Worker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", executor.TaskType(), err)
	}
	scoped := log.WithFields(map[string]interface{}{"worker": executor.TaskType()})
	return &Worker{
		client:   client,
		executor: executor,
		config:   cfg,
		logger:   scoped,
		errors:   errors.NewErrorHandler(scoped),
		obs:      obs,
	}, nil
}

func (w *Worker) Handle(client worker.JobClient, job entities.Job) {
	taskType := w.executor.TaskType()
	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(taskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(taskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), w.config.Timeout)
	defer cancel()

	if w.obs != nil {
		var span trace.Span
		ctx, span = w.obs.StartSpan(ctx, taskType, map[string]string{
			"job.key":              fmt.Sprint(job.GetKey()),
			"process.instance.key": fmt.Sprint(job.GetProcessInstanceKey()),
		})
		defer span.End()
	}

	w.logger.Info("Processing job", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	output, err := w.run(ctx, job)
	if err != nil {
		code := string(errors.Normalize(err).Code)
		metrics.WorkerJobsFailed.WithLabelValues(taskType, code).Inc()
		w.record(ctx, start, "failed")
		w.errors.HandleJobError(ctx, client, job, err)
		return
	}

	if err := w.complete(ctx, client, job, output); err != nil {
		w.logger.Error("Failed to complete job", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		w.record(ctx, start, "failed")
		return
	}

	metrics.WorkerJobsCompleted.WithLabelValues(taskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(taskType).Observe(time.Since(start).Seconds())
	w.record(ctx, start, "completed")
}

func (w *Worker) run(ctx context.Context, job entities.Job) (map[string]interface{}, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("failed to parse job variables: %v", err))
	}
	return w.executor.Execute(ctx, variables)
}

func (w *Worker) complete(ctx context.Context, client worker.JobClient, job entities.Job, output map[string]interface{}) error {
	request, err := client.NewCompleteJobCommand().JobKey(job.GetKey()).VariablesFromMap(output)
	if err != nil {
		return err
	}
	_, err = w.client.ExecuteWithRetry(ctx, func(ctx context.Context) (interface{}, error) {
		return request.Send(ctx)
	}, "complete-job")
	return err
}

func (w *Worker) record(ctx context.Context, start time.Time, status string) {
	if w.obs == nil {
		return
	}
	w.obs.RecordJobProcessed(ctx, w.executor.TaskType(), status)
	w.obs.RecordJobDuration(ctx, w.executor.TaskType(), time.Since(start), status)
}

// Open starts polling for jobs. A disabled worker is never opened.
func (w *Worker) Open() {
	if !w.config.Enabled {
		w.logger.Info("Worker is disabled, skipping registration", nil)
		return
	}
	w.jobWorker = w.client.GetClient().NewJobWorker().
		JobType(w.executor.TaskType()).
		Handler(w.Handle).
		MaxJobsActive(w.config.MaxJobsActive).
		Timeout(w.config.Timeout).
		Name(fmt.Sprintf("%s-worker", w.executor.TaskType())).
		Open()

	w.logger.Info("Worker registered with Camunda", map[string]interface{}{
		"maxJobsActive": w.config.MaxJobsActive,
		"timeout":       w.config.Timeout.String(),
	})
}

func (w *Worker) Close() {
	if w.jobWorker != nil {
		w.logger.Info("Shutting down worker gracefully", nil)
		w.jobWorker.Close()
		w.jobWorker.AwaitClose()
		w.jobWorker = nil
	}
}

func (w *Worker) TaskType() string {
	return w.executor.TaskType()
}
