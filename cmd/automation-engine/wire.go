// cmd/automation-engine/wire.go
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"go.uber.org/zap"

	"lead-automation/internal/actions"
	awsclient "lead-automation/internal/common/aws"
	"lead-automation/internal/common/config"
	"lead-automation/internal/common/database"
	"lead-automation/internal/common/logger"
	"lead-automation/internal/common/zoho"
	"lead-automation/internal/models"
	"lead-automation/internal/scheduler"
	"lead-automation/internal/search"
	"lead-automation/internal/store"
	"lead-automation/internal/store/memory"
	"lead-automation/internal/store/postgres"
	"lead-automation/internal/tracking"
	"lead-automation/internal/workflow"
)

// infrastructure holds the storage backends selected by configuration.
// Optional backends are nil when not configured.
type infrastructure struct {
	store   store.Store
	queue   scheduler.Queue
	locker  scheduler.Locker
	indexer tracking.Indexer

	pg    *database.PostgresClient
	redis *database.RedisClient
	es    *database.ElasticsearchClient
}

func connectInfrastructure(ctx context.Context, cfg *config.Config, log *zap.Logger) (*infrastructure, error) {
	infra := &infrastructure{}

	switch cfg.Engine.Store {
	case "postgres":
		err := retryWithBackoff(func() error {
			var err error
			infra.pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return infra.pg.Ping(ctx)
		}, 15, 2*time.Second, log, "PostgreSQL connection")
		if err != nil {
			return nil, err
		}
		if err := infra.pg.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("postgres schema: %w", err)
		}
		infra.store = postgres.New(infra.pg)
		log.Info("PostgreSQL connected successfully")
	case "memory":
		infra.store = memory.New()
	default:
		return nil, fmt.Errorf("unknown engine store %q", cfg.Engine.Store)
	}

	if cfg.Database.Redis.Address != "" {
		err := retryWithBackoff(func() error {
			var err error
			infra.redis, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return infra.redis.Ping(ctx)
		}, 10, 2*time.Second, log, "Redis connection")
		if err != nil {
			return nil, err
		}
		infra.queue = scheduler.NewRedisQueue(infra.redis.Client, cfg.Scheduler.QueueKey).WithLease(millis(cfg.Scheduler.ClaimLease))
		infra.locker = scheduler.NewRedisLocker(infra.redis.Client, "")
		log.Info("Redis connected successfully")
	} else {
		infra.queue = scheduler.NewMemoryQueue().WithLease(millis(cfg.Scheduler.ClaimLease))
		infra.locker = scheduler.LocalLocker{}
		log.Info("Redis not configured, continuations are kept in memory")
	}

	if len(cfg.Database.Elasticsearch.Addresses) > 0 {
		err := retryWithBackoff(func() error {
			var err error
			infra.es, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return infra.es.Ping(ctx)
		}, 15, 2*time.Second, log, "Elasticsearch connection")
		if err != nil {
			return nil, err
		}
		index := cfg.Database.Elasticsearch.TouchpointIndex
		if err := infra.es.EnsureIndex(ctx, index, search.TouchpointMapping); err != nil {
			return nil, fmt.Errorf("elasticsearch index: %w", err)
		}
		infra.indexer = search.NewTouchpointIndexer(infra.es.Client, index, logger.NewZapAdapter(log))
		log.Info("Elasticsearch connected successfully", zap.String("index", index))
	}

	return infra, nil
}

// Check pings every configured backend and returns the failures by name.
func (i *infrastructure) Check(ctx context.Context) map[string]string {
	failures := map[string]string{}
	if i.pg != nil {
		if err := i.pg.Ping(ctx); err != nil {
			failures["postgres"] = err.Error()
		}
	}
	if i.redis != nil {
		if err := i.redis.Ping(ctx); err != nil {
			failures["redis"] = err.Error()
		}
	}
	if i.es != nil {
		if err := i.es.Ping(ctx); err != nil {
			failures["elasticsearch"] = err.Error()
		}
	}
	return failures
}

func (i *infrastructure) Close() {
	if i.redis != nil {
		i.redis.Close()
	}
	if i.pg != nil {
		i.pg.Close()
	}
}

// buildCollaborators picks an implementation for every outbound action.
// Integrations that are not configured fall back to logging the request.
func buildCollaborators(ctx context.Context, cfg *config.Config, log logger.Logger) (workflow.Collaborators, error) {
	var collab workflow.Collaborators
	integ := cfg.Integrations

	needAWS := (integ.Email.Provider == "ses" && integ.AWS.SES.Enabled) ||
		(integ.AWS.SNS.Enabled && integ.AWS.SNS.AssignmentTopic != "")
	var awsCfg aws.Config
	if needAWS {
		var err error
		awsCfg, err = awsclient.LoadConfig(ctx, integ.AWS.Region)
		if err != nil {
			return collab, fmt.Errorf("aws config: %w", err)
		}
	}

	from := integ.Email.DefaultFrom
	if from == "" {
		from = integ.AWS.SES.FromEmail
	}
	switch {
	case integ.Email.Provider == "ses" && integ.AWS.SES.Enabled:
		collab.Email = actions.NewSESEmailSender(awsclient.NewSESClient(awsCfg), from, log)
	case integ.Email.Provider == "smtp" && integ.SMTP.Host != "":
		collab.Email = actions.NewSMTPEmailSender(actions.SMTPConfig{
			Host:        integ.SMTP.Host,
			Port:        integ.SMTP.Port,
			Username:    integ.SMTP.Username,
			Password:    integ.SMTP.Password,
			UseTLS:      integ.SMTP.UseTLS,
			DefaultFrom: from,
		}, log)
	default:
		collab.Email = actions.NewLogEmailSender(log)
	}

	if integ.AWS.SNS.Enabled && integ.AWS.SNS.AssignmentTopic != "" {
		collab.Assignments = actions.NewSNSAssignmentNotifier(awsclient.NewSNSClient(awsCfg), integ.AWS.SNS.AssignmentTopic, log)
	} else {
		collab.Assignments = actions.NewLogAssignmentNotifier(log)
	}

	webhookTimeout := millis(integ.Webhook.Timeout)
	if webhookTimeout <= 0 {
		webhookTimeout = 10 * time.Second
	}
	if integ.Zoho.AuthToken != "" {
		crm := zoho.NewCRMClient(integ.Zoho.BaseURL, integ.Zoho.AuthToken, webhookTimeout)
		collab.Tasks = actions.NewZohoTaskCreator(crm, log)
	} else {
		collab.Tasks = actions.NewLogTaskCreator(log)
	}

	collab.Webhooks = actions.NewHTTPWebhookDispatcher(webhookTimeout, log)
	return collab, nil
}

func retryPolicies(in map[string]config.ActionRetryConfig) map[models.ActionType]workflow.RetryPolicy {
	out := make(map[models.ActionType]workflow.RetryPolicy, len(in))
	for actionType, rc := range in {
		out[models.ActionType(actionType)] = workflow.RetryPolicy{
			MaxAttempts:  rc.MaxAttempts,
			InitialDelay: millis(rc.InitialDelayMs),
		}
	}
	return out
}
