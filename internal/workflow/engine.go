// internal/workflow/engine.go
// Package workflow runs marketing-automation workflows for leads. Each
// execution is a cooperative state machine that runs synchronously until it
// reaches a wait action, then suspends until its continuation fires.
package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"lead-automation/internal/actions"
	"lead-automation/internal/common/errors"
	"lead-automation/internal/common/locks"
	"lead-automation/internal/common/logger"
	"lead-automation/internal/common/metrics"
	"lead-automation/internal/condition"
	"lead-automation/internal/models"
	"lead-automation/internal/store"
)

// Repository is the persistence the engine needs.
type Repository interface {
	store.LeadStore
	store.WorkflowStore
	store.ExecutionStore
	store.SegmentStore
}

// Scheduler persists wait continuations keyed by execution id.
type Scheduler interface {
	Schedule(ctx context.Context, executionID string, at time.Time) error
	ScheduleIfAbsent(ctx context.Context, executionID string, at time.Time) (bool, error)
	Cancel(ctx context.Context, executionID string) error
}

// SplitTester assigns a lead to a variant of an A/B test.
type SplitTester interface {
	Assign(ctx context.Context, testID, leadID string) (string, error)
}

// Collaborators are the outbound integrations actions call into.
type Collaborators struct {
	Email       actions.EmailSender
	Tasks       actions.TaskCreator
	Webhooks    actions.WebhookDispatcher
	Assignments actions.AssignmentNotifier
	SplitTests  SplitTester
}

// RetryPolicy bounds retries of one action type. Only retryable errors are
// retried; the delay doubles after every attempt.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
}

type Options struct {
	Retries map[models.ActionType]RetryPolicy
	// LeadLocks serializes lead mutations. Share it with every component
	// that writes leads.
	LeadLocks *locks.KeyedMutex
}

type Engine struct {
	repo      Repository
	scheduler Scheduler
	collab    Collaborators
	retries   map[models.ActionType]RetryPolicy

	leadLocks    *locks.KeyedMutex
	execLocks    *locks.KeyedMutex
	triggerLocks *locks.KeyedMutex
	runs         *runRegistry
	pools        *roundRobin

	logger logger.Logger
	now    func() time.Time
	newID  func() string
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewEngine(repo Repository, scheduler Scheduler, collab Collaborators, opts Options, log logger.Logger) *Engine {
	leadLocks := opts.LeadLocks
	if leadLocks == nil {
		leadLocks = locks.NewKeyedMutex()
	}
	return &Engine{
		repo:         repo,
		scheduler:    scheduler,
		collab:       collab,
		retries:      opts.Retries,
		leadLocks:    leadLocks,
		execLocks:    locks.NewKeyedMutex(),
		triggerLocks: locks.NewKeyedMutex(),
		runs:         newRunRegistry(),
		pools:        newRoundRobin(),
		logger:       log.WithFields(map[string]interface{}{"component": "workflow-engine"}),
		now:          time.Now,
		newID:        uuid.NewString,
		sleep:        sleepContext,
	}
}

// TriggerWorkflow starts an execution of the workflow for the lead and runs
// it until it completes, fails or suspends. It returns nil without error
// when the workflow is inactive, the lead has reached the execution limit
// or the lead is inside the cooldown window.
func (e *Engine) TriggerWorkflow(ctx context.Context, workflowID, leadID string, data map[string]interface{}) (*models.WorkflowExecution, error) {
	wf, err := e.repo.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if _, err := e.repo.GetLead(ctx, leadID); err != nil {
		return nil, err
	}

	log := e.logger.WithFields(map[string]interface{}{
		"workflowId": workflowID,
		"leadId":     leadID,
	})

	if !wf.Active {
		e.skip(log, "inactive")
		return nil, nil
	}

	exec, reason, err := e.admit(ctx, wf, leadID, data)
	if err != nil {
		return nil, err
	}
	if exec == nil {
		e.skip(log, reason)
		return nil, nil
	}

	if err := e.repo.UpdateAnalytics(ctx, wf.ID, func(a *models.WorkflowAnalytics) {
		a.TotalExecutions++
	}); err != nil {
		log.Warn("Failed to update workflow analytics", map[string]interface{}{"error": err.Error()})
	}
	metrics.WorkflowExecutionsStarted.WithLabelValues(wf.ID).Inc()
	log.Info("Workflow execution started", map[string]interface{}{"executionId": exec.ID})

	if err := e.run(ctx, exec.ID, exec.Generation); err != nil {
		return nil, err
	}
	return e.repo.GetExecution(ctx, exec.ID)
}

// admit applies the execution limit and cooldown and creates the execution
// with a snapshot of the workflow's actions and conditions. Both checks and
// the insert happen under one (workflow, lead) lock.
func (e *Engine) admit(ctx context.Context, wf *models.Workflow, leadID string, data map[string]interface{}) (*models.WorkflowExecution, string, error) {
	unlock := e.triggerLocks.Lock(wf.ID + ":" + leadID)
	defer unlock()

	prior, err := e.repo.ListExecutions(ctx, store.ExecutionFilter{WorkflowID: wf.ID, LeadID: leadID})
	if err != nil {
		return nil, "", err
	}

	now := e.now()
	if max := wf.Settings.MaxExecutionsPerContact; max > 0 && len(prior) >= max {
		return nil, "max_executions", nil
	}
	if cooldown := wf.Settings.Cooldown(); cooldown > 0 && len(prior) > 0 {
		var latest time.Time
		for _, p := range prior {
			if p.StartedAt.After(latest) {
				latest = p.StartedAt
			}
		}
		if now.Sub(latest) < cooldown {
			return nil, "cooldown", nil
		}
	}

	exec := &models.WorkflowExecution{
		ID:            e.newID(),
		WorkflowID:    wf.ID,
		LeadID:        leadID,
		Status:        models.ExecutionRunning,
		ExecutionData: map[string]interface{}{},
		TriggerData:   models.CloneMap(data),
		Actions:       append([]models.Action(nil), wf.Actions...),
		Conditions:    append([]models.Condition(nil), wf.Conditions...),
		Generation:    1,
		StartedAt:     now,
		UpdatedAt:     now,
	}
	e.runs.start(exec.ID, exec.Generation)
	if err := e.repo.CreateExecution(ctx, exec); err != nil {
		e.runs.stop(exec.ID, exec.Generation)
		return nil, "", err
	}
	return exec, "", nil
}

func (e *Engine) skip(log logger.Logger, reason string) {
	metrics.WorkflowTriggersSkipped.WithLabelValues(reason).Inc()
	log.Debug("Workflow trigger skipped", map[string]interface{}{"reason": reason})
}

// run drives the execution loop from the current action index for the
// loop generation gen. It returns only store errors; action failures are
// recorded on the execution. The loop stops once the execution stops
// running, starts waiting or is taken over by a newer generation.
func (e *Engine) run(ctx context.Context, executionID string, gen int) error {
	defer e.stopRun(executionID, gen)

	var wf *models.Workflow
	for {
		exec, ok, err := e.next(ctx, executionID, gen)
		if err != nil || !ok {
			return err
		}
		if wf == nil {
			if wf, err = e.repo.GetWorkflow(ctx, exec.WorkflowID); err != nil {
				return err
			}
		}
		actions, conditions := exec.Actions, exec.Conditions
		if actions == nil {
			// Executions stored without a snapshot follow the live definition.
			actions, conditions = wf.Actions, wf.Conditions
		}

		if exec.CurrentActionIndex >= len(actions) {
			return e.complete(ctx, wf, executionID, gen, "")
		}

		action := actions[exec.CurrentActionIndex]
		if !action.Active {
			if err := e.advance(ctx, executionID, gen, exec.CurrentActionIndex, nil); err != nil {
				return err
			}
			continue
		}

		if len(conditions) > 0 {
			lead, err := e.repo.GetLead(ctx, exec.LeadID)
			if err != nil {
				return err
			}
			if !condition.All(conditionRecord(lead, exec), conditions) {
				return e.complete(ctx, wf, executionID, gen, "conditions_unmet")
			}
		}

		if wait, ok := action.Config.(models.WaitConfig); ok {
			return e.suspend(ctx, wf, exec, gen, action, wait)
		}

		start := e.now()
		output, actErr := e.dispatch(ctx, wf, exec, action)
		e.recordActionStats(ctx, wf.ID, action, e.now().Sub(start), actErr)
		if actErr != nil {
			return e.fail(ctx, wf, executionID, gen, action, actErr)
		}
		if err := e.advance(ctx, executionID, gen, exec.CurrentActionIndex, output); err != nil {
			return err
		}
	}
}

// next loads the execution at the top of the loop and reports whether loop
// gen may run another action. A loop that stops is unregistered under the
// execution lock, so ResumeExecution either sees it still active or starts
// a new one.
func (e *Engine) next(ctx context.Context, executionID string, gen int) (*models.WorkflowExecution, bool, error) {
	runnable := false
	exec, _, err := e.mutate(ctx, executionID, func(x *models.WorkflowExecution) (bool, error) {
		runnable = x.Generation == gen && x.Status == models.ExecutionRunning && x.WaitingUntil == nil
		if !runnable {
			e.runs.stop(executionID, gen)
		}
		return false, nil
	})
	return exec, runnable, err
}

// startRun takes over x for a new loop. Call it inside a mutation.
func (e *Engine) startRun(x *models.WorkflowExecution) int {
	x.Generation++
	e.runs.start(x.ID, x.Generation)
	return x.Generation
}

func (e *Engine) stopRun(executionID string, gen int) {
	unlock := e.execLocks.Lock(executionID)
	defer unlock()
	e.runs.stop(executionID, gen)
}

// conditionRecord is the lead record plus the execution's own data, so
// workflow conditions can reference prior action outputs.
func conditionRecord(lead *models.Lead, exec *models.WorkflowExecution) map[string]interface{} {
	record := lead.Record()
	record["execution"] = exec.ExecutionData
	record["trigger"] = exec.TriggerData
	return record
}

// advance moves past the action at index and merges its output. An
// execution cancelled, failed or taken over meanwhile is left untouched.
func (e *Engine) advance(ctx context.Context, executionID string, gen, index int, output map[string]interface{}) error {
	_, _, err := e.mutate(ctx, executionID, func(exec *models.WorkflowExecution) (bool, error) {
		if exec.Status.Terminal() || exec.Generation != gen || exec.CurrentActionIndex != index {
			return false, nil
		}
		exec.CurrentActionIndex++
		if exec.ExecutionData == nil {
			exec.ExecutionData = map[string]interface{}{}
		}
		for k, v := range output {
			exec.ExecutionData[k] = v
		}
		return true, nil
	})
	return err
}

func (e *Engine) suspend(ctx context.Context, wf *models.Workflow, exec *models.WorkflowExecution, gen int, action models.Action, wait models.WaitConfig) error {
	resumeAt := e.now().Add(time.Duration(wait.Minutes) * time.Minute)
	index := exec.CurrentActionIndex

	_, changed, err := e.mutate(ctx, exec.ID, func(x *models.WorkflowExecution) (bool, error) {
		if x.Status != models.ExecutionRunning || x.Generation != gen || x.CurrentActionIndex != index {
			return false, nil
		}
		x.CurrentActionIndex++
		x.WaitingUntil = &resumeAt
		return true, nil
	})
	if err != nil || !changed {
		return err
	}

	if err := e.scheduler.Schedule(ctx, exec.ID, resumeAt); err != nil {
		return e.fail(ctx, wf, exec.ID, gen, action, errors.NewSchedulerFailedError(err))
	}

	e.logger.Info("Workflow execution waiting", map[string]interface{}{
		"executionId": exec.ID,
		"workflowId":  wf.ID,
		"resumeAt":    resumeAt.UTC().Format(time.RFC3339),
	})
	return nil
}

func (e *Engine) complete(ctx context.Context, wf *models.Workflow, executionID string, gen int, reason string) error {
	var elapsed time.Duration
	_, changed, err := e.mutate(ctx, executionID, func(exec *models.WorkflowExecution) (bool, error) {
		if exec.Status != models.ExecutionRunning || exec.Generation != gen {
			return false, nil
		}
		now := e.now()
		exec.Status = models.ExecutionCompleted
		exec.CompletedAt = &now
		exec.WaitingUntil = nil
		if reason != "" {
			if exec.ExecutionData == nil {
				exec.ExecutionData = map[string]interface{}{}
			}
			exec.ExecutionData["completionReason"] = reason
		}
		elapsed = now.Sub(exec.StartedAt)
		return true, nil
	})
	if err != nil || !changed {
		return err
	}

	if err := e.repo.UpdateAnalytics(ctx, wf.ID, func(a *models.WorkflowAnalytics) {
		a.CompletedExecutions++
		a.AverageCompletionSeconds += (elapsed.Seconds() - a.AverageCompletionSeconds) / float64(a.CompletedExecutions)
	}); err != nil {
		e.logger.Warn("Failed to update workflow analytics", map[string]interface{}{"workflowId": wf.ID, "error": err.Error()})
	}
	metrics.WorkflowExecutionsFinished.WithLabelValues(wf.ID, string(models.ExecutionCompleted)).Inc()

	fields := map[string]interface{}{"executionId": executionID, "workflowId": wf.ID}
	if reason != "" {
		fields["reason"] = reason
	}
	e.logger.Info("Workflow execution completed", fields)
	return nil
}

func (e *Engine) fail(ctx context.Context, wf *models.Workflow, executionID string, gen int, action models.Action, cause error) error {
	stdErr := errors.Normalize(cause)
	_, changed, err := e.mutate(ctx, executionID, func(exec *models.WorkflowExecution) (bool, error) {
		if exec.Status.Terminal() || exec.Generation != gen {
			return false, nil
		}
		now := e.now()
		exec.Errors = append(exec.Errors, models.ExecutionError{
			ActionID:   action.ID,
			ActionType: action.Type(),
			Code:       string(stdErr.Code),
			Message:    stdErr.Error(),
			OccurredAt: now,
		})
		exec.Status = models.ExecutionFailed
		exec.CompletedAt = &now
		exec.WaitingUntil = nil
		return true, nil
	})
	if err != nil || !changed {
		return err
	}

	if err := e.repo.UpdateAnalytics(ctx, wf.ID, func(a *models.WorkflowAnalytics) {
		a.FailedExecutions++
	}); err != nil {
		e.logger.Warn("Failed to update workflow analytics", map[string]interface{}{"workflowId": wf.ID, "error": err.Error()})
	}
	metrics.ActionFailures.WithLabelValues(string(action.Type()), string(stdErr.Code)).Inc()
	metrics.WorkflowExecutionsFinished.WithLabelValues(wf.ID, string(models.ExecutionFailed)).Inc()

	e.logger.Error("Workflow execution failed", map[string]interface{}{
		"executionId": executionID,
		"workflowId":  wf.ID,
		"actionId":    action.ID,
		"actionType":  string(action.Type()),
		"errorCode":   string(stdErr.Code),
		"error":       stdErr.Error(),
	})
	return nil
}

func (e *Engine) recordActionStats(ctx context.Context, workflowID string, action models.Action, d time.Duration, actErr error) {
	metrics.ActionDuration.WithLabelValues(string(action.Type())).Observe(d.Seconds())

	key := action.ID
	if key == "" {
		key = string(action.Type())
	}
	ms := float64(d) / float64(time.Millisecond)
	err := e.repo.UpdateAnalytics(ctx, workflowID, func(a *models.WorkflowAnalytics) {
		if a.ActionStats == nil {
			a.ActionStats = map[string]*models.ActionStats{}
		}
		s, ok := a.ActionStats[key]
		if !ok {
			s = &models.ActionStats{}
			a.ActionStats[key] = s
		}
		s.ExecutionCount++
		if actErr == nil {
			s.SuccessCount++
		} else {
			s.FailureCount++
		}
		s.AverageDurationMs += (ms - s.AverageDurationMs) / float64(s.ExecutionCount)
	})
	if err != nil {
		e.logger.Warn("Failed to record action stats", map[string]interface{}{"workflowId": workflowID, "error": err.Error()})
	}
}

// mutate applies fn to a freshly loaded execution under the execution lock
// and saves it when fn reports a change.
func (e *Engine) mutate(ctx context.Context, executionID string, fn func(*models.WorkflowExecution) (bool, error)) (*models.WorkflowExecution, bool, error) {
	unlock := e.execLocks.Lock(executionID)
	defer unlock()

	exec, err := e.repo.GetExecution(ctx, executionID)
	if err != nil {
		return nil, false, err
	}
	changed, err := fn(exec)
	if err != nil || !changed {
		return exec, false, err
	}
	exec.UpdatedAt = e.now()
	if err := e.repo.UpdateExecution(ctx, exec); err != nil {
		return nil, false, err
	}
	return exec, true, nil
}

// Continue resumes an execution whose continuation fired. It also picks up
// a running execution whose previous loop stopped on a store error, so a
// continuation retried after a failure still drives the execution. Paused
// and finished executions, and executions with a loop active in this
// process, are left alone.
func (e *Engine) Continue(ctx context.Context, executionID string) error {
	gen := 0
	_, _, err := e.mutate(ctx, executionID, func(exec *models.WorkflowExecution) (bool, error) {
		if exec.Status != models.ExecutionRunning || e.runs.active(executionID) {
			return false, nil
		}
		exec.WaitingUntil = nil
		gen = e.startRun(exec)
		return true, nil
	})
	if err != nil {
		e.runs.stop(executionID, gen)
		return err
	}
	if gen == 0 {
		e.logger.Debug("Continuation ignored", map[string]interface{}{"executionId": executionID})
		return nil
	}
	metrics.ContinuationsFired.Inc()
	return e.run(ctx, executionID, gen)
}

// PauseExecution moves a running execution to paused. An action already in
// progress finishes first.
func (e *Engine) PauseExecution(ctx context.Context, executionID string) (*models.WorkflowExecution, error) {
	exec, _, err := e.mutate(ctx, executionID, func(exec *models.WorkflowExecution) (bool, error) {
		if exec.Status != models.ExecutionRunning {
			return false, errors.NewInvalidStateTransitionError(executionID, string(exec.Status), string(models.ExecutionPaused))
		}
		exec.Status = models.ExecutionPaused
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("Workflow execution paused", map[string]interface{}{"executionId": executionID})
	return exec, nil
}

// ResumeExecution moves a paused execution back to running. A wait that has
// not elapsed yet is handed back to the scheduler. A loop still finishing
// the action that was in progress when the execution was paused carries on
// from it; otherwise a new loop starts at the current index.
func (e *Engine) ResumeExecution(ctx context.Context, executionID string) (*models.WorkflowExecution, error) {
	gen := 0
	exec, _, err := e.mutate(ctx, executionID, func(exec *models.WorkflowExecution) (bool, error) {
		if exec.Status != models.ExecutionPaused {
			return false, errors.NewInvalidStateTransitionError(executionID, string(exec.Status), string(models.ExecutionRunning))
		}
		exec.Status = models.ExecutionRunning
		if exec.WaitingUntil != nil && exec.WaitingUntil.After(e.now()) {
			return true, nil
		}
		if e.runs.active(executionID) {
			return true, nil
		}
		exec.WaitingUntil = nil
		gen = e.startRun(exec)
		return true, nil
	})
	if err != nil {
		e.runs.stop(executionID, gen)
		return nil, err
	}
	e.logger.Info("Workflow execution resumed", map[string]interface{}{"executionId": executionID})

	if exec.WaitingUntil != nil {
		if err := e.scheduler.Schedule(ctx, executionID, *exec.WaitingUntil); err != nil {
			return nil, errors.NewSchedulerFailedError(err)
		}
		return exec, nil
	}
	if gen == 0 {
		return exec, nil
	}
	if err := e.run(ctx, executionID, gen); err != nil {
		return nil, err
	}
	return e.repo.GetExecution(ctx, executionID)
}

// CancelExecution stops a running or paused execution for good.
func (e *Engine) CancelExecution(ctx context.Context, executionID string) (*models.WorkflowExecution, error) {
	exec, _, err := e.mutate(ctx, executionID, func(exec *models.WorkflowExecution) (bool, error) {
		if exec.Status != models.ExecutionRunning && exec.Status != models.ExecutionPaused {
			return false, errors.NewInvalidStateTransitionError(executionID, string(exec.Status), string(models.ExecutionCancelled))
		}
		now := e.now()
		exec.Status = models.ExecutionCancelled
		exec.CompletedAt = &now
		exec.WaitingUntil = nil
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	if err := e.scheduler.Cancel(ctx, executionID); err != nil {
		e.logger.Warn("Failed to remove pending continuation", map[string]interface{}{
			"executionId": executionID,
			"error":       err.Error(),
		})
	}
	if err := e.repo.UpdateAnalytics(ctx, exec.WorkflowID, func(a *models.WorkflowAnalytics) {
		a.CancelledExecutions++
	}); err != nil {
		e.logger.Warn("Failed to update workflow analytics", map[string]interface{}{"workflowId": exec.WorkflowID, "error": err.Error()})
	}
	metrics.WorkflowExecutionsFinished.WithLabelValues(exec.WorkflowID, string(models.ExecutionCancelled)).Inc()
	e.logger.Info("Workflow execution cancelled", map[string]interface{}{"executionId": executionID})
	return exec, nil
}

// GetExecution returns the stored execution.
func (e *Engine) GetExecution(ctx context.Context, executionID string) (*models.WorkflowExecution, error) {
	return e.repo.GetExecution(ctx, executionID)
}

// RecoverStalled queues running executions that nothing is driving: a wait
// that elapsed more than stallAfter ago without its continuation firing, or
// a loop that stopped on a store error and has not moved for stallAfter.
// Entries already queued or leased are kept. It returns how many
// executions were queued.
func (e *Engine) RecoverStalled(ctx context.Context, stallAfter time.Duration) (int, error) {
	running, err := e.repo.ListExecutions(ctx, store.ExecutionFilter{Status: models.ExecutionRunning})
	if err != nil {
		return 0, err
	}
	now := e.now()
	queued := 0
	for _, x := range running {
		if e.runs.active(x.ID) {
			continue
		}
		idleSince := x.UpdatedAt
		if x.WaitingUntil != nil {
			idleSince = *x.WaitingUntil
		}
		if now.Sub(idleSince) < stallAfter {
			continue
		}
		added, err := e.scheduler.ScheduleIfAbsent(ctx, x.ID, now)
		if err != nil {
			return queued, err
		}
		if added {
			queued++
			e.logger.Warn("Stalled execution requeued", map[string]interface{}{
				"executionId": x.ID,
				"workflowId":  x.WorkflowID,
				"idleSince":   idleSince.UTC().Format(time.RFC3339),
			})
		}
	}
	return queued, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// runRegistry records which executions have a loop active in this process
// and the generation of that loop.
type runRegistry struct {
	mu    sync.Mutex
	loops map[string]int
}

func newRunRegistry() *runRegistry {
	return &runRegistry{loops: map[string]int{}}
}

func (r *runRegistry) start(executionID string, gen int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loops[executionID] = gen
}

func (r *runRegistry) stop(executionID string, gen int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loops[executionID] == gen {
		delete(r.loops, executionID)
	}
}

func (r *runRegistry) active(executionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.loops[executionID]
	return ok
}
