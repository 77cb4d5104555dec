// internal/common/config/loader_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  redis:
    address: localhost:6379
workers:
  record-touchpoint:
    enabled: true
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Engine.Store)
	assert.Equal(t, 7.0, cfg.Engine.AttributionHalfLifeDays)
	assert.Equal(t, 60000, cfg.Scheduler.ContinuationInterval)
	assert.Equal(t, 3600000, cfg.Scheduler.SegmentInterval)
	assert.Equal(t, "automation:continuations", cfg.Scheduler.QueueKey)
	assert.Equal(t, 300000, cfg.Scheduler.ClaimLease)
	assert.Equal(t, 900000, cfg.Scheduler.StallAfter)
	assert.Equal(t, "ses", cfg.Integrations.Email.Provider)
	assert.Equal(t, "touchpoints", cfg.Database.Elasticsearch.TouchpointIndex)
	assert.Equal(t, 8080, cfg.Server.Port)

	worker := cfg.Workers["record-touchpoint"]
	assert.True(t, worker.Enabled)
	assert.Equal(t, 5, worker.MaxJobsActive)
	assert.Equal(t, 30000, worker.Timeout)
	assert.Equal(t, 3, worker.MaxRetries)
}

func TestLoadFromFile_ExpandsEnvPlaceholders(t *testing.T) {
	t.Setenv("TEST_ZOHO_TOKEN", "token-123")
	path := writeConfig(t, `
database:
  redis:
    address: localhost:6379
integrations:
  zoho:
    oauth_token: ${TEST_ZOHO_TOKEN}
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "token-123", cfg.Integrations.Zoho.AuthToken)
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		errMsg string
	}{
		{
			name:   "missing redis",
			body:   "engine:\n  store: memory\n",
			errMsg: "database.redis.address is required",
		},
		{
			name:   "postgres store without host",
			body:   "engine:\n  store: postgres\ndatabase:\n  redis:\n    address: x:1\n",
			errMsg: "database.postgres.host is required",
		},
		{
			name:   "unknown store",
			body:   "engine:\n  store: mongo\ndatabase:\n  redis:\n    address: x:1\n",
			errMsg: "engine.store must be memory or postgres",
		},
		{
			name:   "camunda without broker",
			body:   "camunda:\n  enabled: true\ndatabase:\n  redis:\n    address: x:1\n",
			errMsg: "camunda.broker_address is required",
		},
		{
			name:   "unknown email provider",
			body:   "integrations:\n  email:\n    provider: pigeon\ndatabase:\n  redis:\n    address: x:1\n",
			errMsg: "integrations.email.provider must be ses or smtp",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestGetWorkerConfig_FallsBackToDefaults(t *testing.T) {
	cfg := &Config{Workers: map[string]WorkerConfig{}}

	worker := GetWorkerConfig(cfg, "unknown")
	assert.True(t, worker.Enabled)
	assert.Equal(t, 5, worker.MaxJobsActive)
	assert.True(t, IsWorkerEnabled(cfg, "unknown"))
	assert.Equal(t, 1500*time.Millisecond, GetDuration(1500))
}

func TestPostgresConfig_GetDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "leads", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=leads sslmode=disable", p.GetDSN())
}
