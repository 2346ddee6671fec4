package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Agent.APIKey = "sk-test"
	return cfg
}

func TestValidate_DefaultsWithKeyAreValid(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_MissingAPIKey(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_key")
}

func TestValidate_InvalidProvider(t *testing.T) {
	cfg := validConfig()
	cfg.Agent.Provider = "gemini"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider")
}

func TestValidate_PostgresRequiresDSN(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Driver = "postgres"
	cfg.Database.DSN = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dsn")
}

func TestValidate_RedisRequiresAddr(t *testing.T) {
	cfg := validConfig()
	cfg.Cache.Backend = "redis"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis_addr")
}

func TestValidate_AggregatesErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Agent.ID = ""
	cfg.Agent.Model = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "agent id")
	assert.Contains(t, err.Error(), "model")
	assert.Contains(t, err.Error(), "api_key")
}

func TestApprovalDurations(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "5m0s", cfg.ApprovalPollInterval().String())
	assert.Equal(t, "24h0m0s", cfg.ApprovalTTL().String())
}
