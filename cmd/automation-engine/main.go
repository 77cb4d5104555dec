// cmd/automation-engine/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"lead-automation/internal/abtest"
	"lead-automation/internal/attribution"
	"lead-automation/internal/common/camunda"
	"lead-automation/internal/common/config"
	"lead-automation/internal/common/locks"
	"lead-automation/internal/common/logger"
	"lead-automation/internal/common/observability"
	"lead-automation/internal/journey"
	"lead-automation/internal/scheduler"
	"lead-automation/internal/scoring"
	"lead-automation/internal/tracking"
	"lead-automation/internal/workflow"
	"lead-automation/pkg/registry"

	br "lead-automation/internal/workers/analytics/build-report"
	ce "lead-automation/internal/workers/automation/control-execution"
	tw "lead-automation/internal/workers/automation/trigger-workflow"
	rc "lead-automation/internal/workers/tracking/record-conversion"
	rt "lead-automation/internal/workers/tracking/record-touchpoint"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	bootLog := logger.New("info", "console")

	cfg, err := config.Load()
	if err != nil {
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting automation engine...",
		zap.String("environment", cfg.App.Environment),
		zap.String("store", cfg.Engine.Store),
	)

	obs := observability.New(cfg.App.Name, log)
	defer obs.Shutdown()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// --- Storage ---
	infra, err := connectInfrastructure(ctx, cfg, zapLog)
	if err != nil {
		zapLog.Fatal("infrastructure initialization failed", zap.Error(err))
	}
	defer infra.Close()

	// --- Core services ---
	leadLocks := locks.NewKeyedMutex()
	collab, err := buildCollaborators(ctx, cfg, log)
	if err != nil {
		zapLog.Fatal("action integrations failed", zap.Error(err))
	}
	tests := abtest.NewService(infra.store, log)
	collab.SplitTests = tests

	engine := workflow.NewEngine(infra.store, infra.queue, collab, workflow.Options{
		Retries:   retryPolicies(cfg.Engine.ActionRetries),
		LeadLocks: leadLocks,
	}, log)

	rules := scoring.NewRuleSet(nil)
	if path := cfg.Engine.DefinitionsPath; path != "" {
		defs, err := registry.LoadDefinitions(path)
		if err != nil {
			zapLog.Fatal("definitions load failed", zap.String("path", path), zap.Error(err))
		}
		_, warnings := defs.Check()
		for _, w := range warnings {
			zapLog.Warn("definitions warning", zap.String("detail", w))
		}
		if err := defs.Seed(ctx, infra.store); err != nil {
			zapLog.Fatal("definitions seed failed", zap.Error(err))
		}
		rules.Replace(defs.ScoringRules)
		zapLog.Info("Definitions loaded",
			zap.Int("scoringRules", len(defs.ScoringRules)),
			zap.Int("workflows", len(defs.Workflows)),
			zap.Int("abTests", len(defs.ABTests)),
			zap.Int("segments", len(defs.Segments)),
		)
	}

	tracker := tracking.NewService(tracking.Dependencies{
		Repo:        infra.store,
		Scorer:      scoring.NewEngine(rules, log),
		Tracker:     journey.NewTracker(log),
		Attribution: attribution.NewCalculator(time.Duration(cfg.Engine.AttributionHalfLifeDays * float64(24*time.Hour))),
		Events:      engine,
		Tests:       tests,
		Indexer:     infra.indexer,
		LeadLocks:   leadLocks,
		Logger:      log,
	})

	// --- Periodic sweeps ---
	sweeper := scheduler.NewSweeper(infra.locker, millis(cfg.Scheduler.LockTTL), log)
	drainer := scheduler.NewDrainer(infra.queue, engine, 100, log)
	sweeper.Add(scheduler.Job{
		Name:     "continuations",
		Interval: millis(cfg.Scheduler.ContinuationInterval),
		Run:      drainer.Drain,
	})
	sweeper.Add(scheduler.Job{
		Name:     "stalled-executions",
		Interval: millis(cfg.Scheduler.RecoveryInterval),
		Run: func(ctx context.Context) error {
			_, err := engine.RecoverStalled(ctx, millis(cfg.Scheduler.StallAfter))
			return err
		},
	})
	sweeper.Add(scheduler.Job{
		Name:     "scheduled-workflows",
		Interval: millis(cfg.Scheduler.ScheduledCampaignInterval),
		Run: func(ctx context.Context) error {
			_, err := engine.DispatchScheduled(ctx)
			return err
		},
	})
	sweeper.Add(scheduler.Job{
		Name:     "segments",
		Interval: millis(cfg.Scheduler.SegmentInterval),
		Run: func(ctx context.Context) error {
			_, err := tracker.RecomputeSegments(ctx)
			return err
		},
	})
	sweeper.Start(ctx)

	// --- Zeebe workers ---
	var zeebe *camunda.Client
	var workers []*camunda.Worker
	if cfg.Camunda.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			zeebe, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
				GatewayAddress:         cfg.Camunda.BrokerAddress,
				UsePlaintextConnection: true,
				ConnectionTimeout:      10 * time.Second,
				RequestTimeout:         millis(cfg.Camunda.RequestTimeout),
			})
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		zapLog.Info("Zeebe client connected successfully")

		executors := []struct {
			key      string
			executor camunda.JobExecutor
		}{
			{rt.ConfigKey, rt.NewHandler(tracker, log)},
			{rc.ConfigKey, rc.NewHandler(tracker, log)},
			{tw.ConfigKey, tw.NewHandler(engine, log)},
			{ce.ConfigKey, ce.NewHandler(engine, log)},
			{br.ConfigKey, br.NewHandler(tracker, engine, tests, log)},
		}
		for _, e := range executors {
			w, err := camunda.NewWorker(zeebe, e.executor, camunda.ConfigFor(cfg.Workers, e.key), obs, log)
			if err != nil {
				zapLog.Fatal("failed to create worker", zap.String("taskType", e.executor.TaskType()), zap.Error(err))
			}
			w.Open()
			workers = append(workers, w)
		}
		zapLog.Info("All workers registered", zap.Int("count", len(workers)))
	} else {
		zapLog.Info("Camunda disabled, running sweeps only")
	}

	// --- Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "healthy", nil)
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		checkCtx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		failures := infra.Check(checkCtx)
		if zeebe != nil {
			if err := zeebe.HealthCheck(checkCtx); err != nil {
				failures["zeebe"] = err.Error()
			}
		}
		if len(failures) > 0 {
			writeStatus(w, http.StatusServiceUnavailable, "not_ready", failures)
			return
		}
		writeStatus(w, http.StatusOK, "ready", nil)
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Close()
	}
	stop()
	sweeper.Wait()

	if zeebe != nil {
		if err := zeebe.Close(); err != nil {
			zapLog.Error("Error closing Zeebe client", zap.Error(err))
		}
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping HTTP server", zap.Error(err))
	}
	zapLog.Info("Shutdown complete")
}

func writeStatus(w http.ResponseWriter, code int, status string, failures map[string]string) {
	body := map[string]interface{}{
		"status": status,
		"time":   time.Now().Format(time.RFC3339),
	}
	if len(failures) > 0 {
		body["failures"] = failures
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
