// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App          AppConfig               `mapstructure:"app"`
	Server       ServerConfig            `mapstructure:"server"`
	Camunda      CamundaConfig           `mapstructure:"camunda"`
	Database     DatabaseConfig          `mapstructure:"database"`
	Workers      map[string]WorkerConfig `mapstructure:"workers"`
	Engine       EngineConfig            `mapstructure:"engine"`
	Scheduler    SchedulerConfig         `mapstructure:"scheduler"`
	Integrations IntegrationConfig       `mapstructure:"integrations"`
	Logging      LoggingConfig           `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"ssl_mode"`
}

// GetDSN builds a lib/pq connection string.
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses       []string `mapstructure:"addresses"`
	Username        string   `mapstructure:"username"`
	Password        string   `mapstructure:"password"`
	TouchpointIndex string   `mapstructure:"touchpoint_index"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every job worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"`
}

// --- Engine ---

// EngineConfig tunes the tracking, scoring and workflow core.
type EngineConfig struct {
	// Store selects the repository backend: "memory" or "postgres".
	Store                   string                       `mapstructure:"store"`
	DefinitionsPath         string                       `mapstructure:"definitions_path"`
	AttributionHalfLifeDays float64                      `mapstructure:"attribution_half_life_days"`
	ActionRetries           map[string]ActionRetryConfig `mapstructure:"action_retries"`
}

// ActionRetryConfig is the bounded retry policy for one action type.
type ActionRetryConfig struct {
	MaxAttempts    int `mapstructure:"max_attempts"`
	InitialDelayMs int `mapstructure:"initial_delay_ms"`
}

// SchedulerConfig holds the periodic sweep intervals, in milliseconds.
type SchedulerConfig struct {
	ContinuationInterval      int    `mapstructure:"continuation_interval"`
	ScheduledCampaignInterval int    `mapstructure:"scheduled_campaign_interval"`
	SegmentInterval           int    `mapstructure:"segment_interval"`
	LockTTL                   int    `mapstructure:"lock_ttl"`
	QueueKey                  string `mapstructure:"queue_key"`
	// ClaimLease is how long a claimed continuation stays hidden from other
	// drainers before it is handed out again.
	ClaimLease       int `mapstructure:"claim_lease"`
	RecoveryInterval int `mapstructure:"recovery_interval"`
	// StallAfter is how long a running execution may sit idle before the
	// recovery sweep queues it again.
	StallAfter int `mapstructure:"stall_after"`
}

// --- Integrations ---

// IntegrationConfig holds settings for the outbound action collaborators.
type IntegrationConfig struct {
	Email struct {
		// Provider is "ses" or "smtp".
		Provider    string `mapstructure:"provider"`
		DefaultFrom string `mapstructure:"default_from"`
	} `mapstructure:"email"`

	AWS struct {
		Region string `mapstructure:"region"`
		SES    struct {
			Enabled   bool   `mapstructure:"enabled"`
			FromEmail string `mapstructure:"from_email"`
		} `mapstructure:"ses"`
		SNS struct {
			Enabled         bool   `mapstructure:"enabled"`
			AssignmentTopic string `mapstructure:"assignment_topic_arn"`
		} `mapstructure:"sns"`
	} `mapstructure:"aws"`

	SMTP struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		Username string `mapstructure:"username"`
		Password string `mapstructure:"password"`
		UseTLS   bool   `mapstructure:"use_tls"`
	} `mapstructure:"smtp"`

	Zoho struct {
		BaseURL   string `mapstructure:"base_url"`
		AuthToken string `mapstructure:"oauth_token"`
	} `mapstructure:"zoho"`

	Webhook struct {
		Timeout int `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"webhook"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
