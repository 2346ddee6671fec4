package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Config is the full daemon configuration.
type Config struct {
	Agent Agent `json:"agent" mapstructure:"agent"`

	Database  Database  `json:"database" mapstructure:"database"`
	Cache     Cache     `json:"cache" mapstructure:"cache"`
	Approval  Approval  `json:"approval" mapstructure:"approval"`
	Retention Retention `json:"retention" mapstructure:"retention"`
	Metrics   Metrics   `json:"metrics" mapstructure:"metrics"`
	Logging   Logging   `json:"logging" mapstructure:"logging"`

	// DataDir holds the sqlite database, logs, and pid file.
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// Agent configures the hosted agent and its model provider.
type Agent struct {
	ID          string `json:"id" mapstructure:"id"`
	Name        string `json:"name" mapstructure:"name"`
	PersonaPath string `json:"persona_path" mapstructure:"persona_path"`

	Provider    string  `json:"provider" mapstructure:"provider"` // openai, anthropic
	APIKey      string  `json:"api_key" mapstructure:"api_key"`
	Model       string  `json:"model" mapstructure:"model"`
	Temperature float64 `json:"temperature" mapstructure:"temperature"`
	MaxTokens   int     `json:"max_tokens" mapstructure:"max_tokens"`

	// ConversationLength bounds the composed message window.
	ConversationLength int `json:"conversation_length" mapstructure:"conversation_length"`
	// MaxContinuations bounds consecutive continuation responses.
	MaxContinuations int `json:"max_continuations" mapstructure:"max_continuations"`
}

// Database configures the relational store and its resilience wrapper.
type Database struct {
	Driver string `json:"driver" mapstructure:"driver"` // sqlite, postgres
	DSN    string `json:"dsn" mapstructure:"dsn"`

	MaxOpenConns    int `json:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int `json:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime int `json:"conn_max_lifetime" mapstructure:"conn_max_lifetime"` // seconds

	RetryMaxAttempts int `json:"retry_max_attempts" mapstructure:"retry_max_attempts"`
	RetryBaseDelayMs int `json:"retry_base_delay_ms" mapstructure:"retry_base_delay_ms"`

	BreakerThreshold    int `json:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetTimeout int `json:"breaker_reset_timeout" mapstructure:"breaker_reset_timeout"` // seconds
}

// Cache configures the key-value side of persistence.
type Cache struct {
	Backend string `json:"backend" mapstructure:"backend"` // memory, redis, db

	RedisAddr     string `json:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword string `json:"redis_password" mapstructure:"redis_password"`
	RedisDB       int    `json:"redis_db" mapstructure:"redis_db"`
}

// Approval configures the human-approval poll loop.
type Approval struct {
	PollInterval int `json:"poll_interval" mapstructure:"poll_interval"` // seconds
	TTLHours     int `json:"ttl_hours" mapstructure:"ttl_hours"`
}

// Retention bounds per-user message history.
type Retention struct {
	MaxMessageAgeDays int `json:"max_message_age_days" mapstructure:"max_message_age_days"`
	MaxMessageCount   int `json:"max_message_count" mapstructure:"max_message_count"`
}

// Metrics configures the Prometheus endpoint.
type Metrics struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Addr    string `json:"addr" mapstructure:"addr"`
}

// Logging configures the zerolog output.
type Logging struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// DefaultConfig returns a config with default values.
func DefaultConfig() *Config {
	return &Config{
		Agent: Agent{
			ID:                 "reverie",
			Name:               "Reverie",
			Provider:           "openai",
			Model:              "gpt-4o",
			Temperature:        0.7,
			MaxTokens:          1024,
			ConversationLength: 32,
			MaxContinuations:   3,
		},
		Database: Database{
			Driver:              "sqlite",
			MaxOpenConns:        10,
			MaxIdleConns:        5,
			ConnMaxLifetime:     300,
			RetryMaxAttempts:    3,
			RetryBaseDelayMs:    100,
			BreakerThreshold:    5,
			BreakerResetTimeout: 30,
		},
		Cache: Cache{
			Backend: "db",
		},
		Approval: Approval{
			PollInterval: 300,
			TTLHours:     24,
		},
		Retention: Retention{
			MaxMessageAgeDays: 30,
			MaxMessageCount:   200,
		},
		Metrics: Metrics{
			Enabled: false,
			Addr:    "127.0.0.1:9090",
		},
		Logging: Logging{
			Level:     "info",
			Redaction: true,
		},
	}
}

// ApprovalPollInterval returns the poll interval as a duration.
func (c *Config) ApprovalPollInterval() time.Duration {
	return time.Duration(c.Approval.PollInterval) * time.Second
}

// ApprovalTTL returns the task time-to-live as a duration.
func (c *Config) ApprovalTTL() time.Duration {
	return time.Duration(c.Approval.TTLHours) * time.Hour
}

// String returns a JSON representation of the config.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is usable.
func (c *Config) Validate() error {
	var errs []string

	if c.Agent.ID == "" {
		errs = append(errs, "agent id is required")
	}
	if c.Agent.Name == "" {
		errs = append(errs, "agent name is required")
	}
	switch c.Agent.Provider {
	case "openai", "anthropic":
	default:
		errs = append(errs, fmt.Sprintf("invalid provider %q (must be: openai, anthropic)", c.Agent.Provider))
	}
	if c.Agent.APIKey == "" {
		errs = append(errs, "agent api_key is required")
	}
	if c.Agent.Model == "" {
		errs = append(errs, "agent model is required")
	}
	if c.Agent.ConversationLength <= 0 {
		errs = append(errs, "conversation_length must be positive")
	}

	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("invalid database driver %q (must be: sqlite, postgres)", c.Database.Driver))
	}
	if c.Database.Driver == "postgres" && c.Database.DSN == "" {
		errs = append(errs, "database dsn is required for postgres")
	}

	switch c.Cache.Backend {
	case "memory", "db":
	case "redis":
		if c.Cache.RedisAddr == "" {
			errs = append(errs, "redis_addr is required for the redis cache backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("invalid cache backend %q (must be: memory, redis, db)", c.Cache.Backend))
	}

	if c.Approval.PollInterval <= 0 {
		errs = append(errs, "approval poll_interval must be positive")
	}
	if c.Approval.TTLHours <= 0 {
		errs = append(errs, "approval ttl_hours must be positive")
	}
	if c.Retention.MaxMessageCount <= 0 {
		errs = append(errs, "retention max_message_count must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %s", joinErrors(errs))
	}
	return nil
}

func joinErrors(errs []string) string {
	out := errs[0]
	for _, e := range errs[1:] {
		out += "; " + e
	}
	return out
}
