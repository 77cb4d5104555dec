// internal/scheduler/sweeper.go
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"lead-automation/internal/common/logger"
	"lead-automation/internal/common/metrics"
)

// Job is a periodic sweep.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

type job struct {
	Job
	running atomic.Bool
}

// Sweeper runs jobs on fixed intervals. A job never overlaps itself: a tick
// that arrives while the previous run is still going is skipped, and across
// instances only the holder of the job's lease runs it.
type Sweeper struct {
	locker  Locker
	lockTTL time.Duration
	logger  logger.Logger

	mu   sync.Mutex
	jobs map[string]*job
	wg   sync.WaitGroup
}

func NewSweeper(locker Locker, lockTTL time.Duration, log logger.Logger) *Sweeper {
	if locker == nil {
		locker = LocalLocker{}
	}
	if lockTTL <= 0 {
		lockTTL = time.Minute
	}
	return &Sweeper{
		locker:  locker,
		lockTTL: lockTTL,
		logger:  log.WithFields(map[string]interface{}{"component": "sweeper"}),
		jobs:    map[string]*job{},
	}
}

func (s *Sweeper) Add(j Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[j.Name] = &job{Job: j}
}

// Start launches one ticker goroutine per job. They stop when ctx is done.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		j := j
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			ticker := time.NewTicker(j.Interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					_, _ = s.RunOnce(ctx, j.Name)
				}
			}
		}()
		s.logger.Info("Sweep scheduled", map[string]interface{}{
			"job":      j.Name,
			"interval": j.Interval.String(),
		})
	}
}

// Wait blocks until every ticker goroutine has returned.
func (s *Sweeper) Wait() {
	s.wg.Wait()
}

// RunOnce runs the named job now unless it is already running here or
// elsewhere. It reports whether the job ran.
func (s *Sweeper) RunOnce(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return false, nil
	}

	if !j.running.CompareAndSwap(false, true) {
		metrics.SweepRuns.WithLabelValues(name, "overlap").Inc()
		s.logger.Debug("Sweep still running, tick skipped", map[string]interface{}{"job": name})
		return false, nil
	}
	defer j.running.Store(false)

	release, acquired, err := s.locker.Acquire(ctx, name, s.lockTTL)
	if err != nil {
		metrics.SweepRuns.WithLabelValues(name, "lock_error").Inc()
		s.logger.Warn("Sweep lock unavailable", map[string]interface{}{"job": name, "error": err.Error()})
		return false, err
	}
	if !acquired {
		metrics.SweepRuns.WithLabelValues(name, "locked").Inc()
		return false, nil
	}
	defer release()

	start := time.Now()
	if err := j.Run(ctx); err != nil {
		metrics.SweepRuns.WithLabelValues(name, "error").Inc()
		s.logger.Error("Sweep failed", map[string]interface{}{
			"job":   name,
			"error": err.Error(),
		})
		return true, err
	}
	metrics.SweepRuns.WithLabelValues(name, "ok").Inc()
	s.logger.Debug("Sweep finished", map[string]interface{}{
		"job":        name,
		"durationMs": time.Since(start).Milliseconds(),
	})
	return true, nil
}
