package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "release", cfg.Server.Mode)

	assert.True(t, cfg.HealthCheck.Enabled)
	assert.Equal(t, 60*time.Second, cfg.HealthCheck.Interval)
	assert.Equal(t, 10*time.Second, cfg.HealthCheck.Timeout)
	assert.InDelta(t, 0.8, cfg.HealthCheck.AlertThreshold, 1e-9)

	assert.True(t, cfg.Failover.Enabled)
	assert.Equal(t, 3, cfg.Failover.ConsecutiveFailureLimit)
	assert.Equal(t, 5*time.Minute, cfg.Failover.RecoveryInterval)
	assert.Equal(t, 3, cfg.Failover.MaxRetries)
	assert.Equal(t, time.Second, cfg.Failover.RetryDelay)
	assert.Equal(t, 30*time.Second, cfg.Failover.AttemptTimeout)

	assert.InDelta(t, 0.4, cfg.Scoring.PriorityWeight, 1e-9)
	assert.InDelta(t, 30, cfg.Scoring.HealthyBonus, 1e-9)
	assert.InDelta(t, -50, cfg.Scoring.UnhealthyPenalty, 1e-9)
	assert.InDelta(t, 5, cfg.Scoring.RegionBonus, 1e-9)

	assert.True(t, cfg.Metrics.Enabled)
}

func TestEnvironmentOverride(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("HEALTH_ALERT_THRESHOLD", "0.9")
	t.Setenv("FAILOVER_MAX_RETRIES", "5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.InDelta(t, 0.9, cfg.HealthCheck.AlertThreshold, 1e-9)
	assert.Equal(t, 5, cfg.Failover.MaxRetries)
}

func TestGetDSN(t *testing.T) {
	db := DatabaseConfig{
		Host:     "db.internal",
		Port:     "5432",
		User:     "router",
		Password: "secret",
		Name:     "proxy_router",
		SSLMode:  "require",
	}

	dsn := db.GetDSN()
	assert.Contains(t, dsn, "host=db.internal")
	assert.Contains(t, dsn, "dbname=proxy_router")
	assert.Contains(t, dsn, "sslmode=require")
}
