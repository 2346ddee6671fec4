package store

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/hollowaylab/reverie/pkg/resilience"
)

// Config holds database connection settings.
type Config struct {
	Driver          string // sqlite, postgres
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectTimeout  time.Duration

	Retry   resilience.RetryConfig
	Breaker resilience.BreakerConfig

	Logger zerolog.Logger
}

// DefaultConfig returns connection settings suitable for a single host.
func DefaultConfig() Config {
	return Config{
		Driver:          "sqlite",
		DSN:             "reverie.db",
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: 30 * time.Minute,
		ConnectTimeout:  5 * time.Second,
		Retry:           resilience.DefaultRetryConfig(),
		Breaker:         resilience.DefaultBreakerConfig(),
	}
}

// Store provides typed CRUD over the persistence backend. Every durable
// operation flows through the resilience guard (circuit breaker wrapping
// retry).
type Store struct {
	db      *gorm.DB
	breaker *resilience.Breaker
	retry   resilience.RetryConfig
	logger  zerolog.Logger

	onBreakerChange func(resilience.BreakerState)
}

// Open connects to the configured backend, bounds the pool, verifies
// connectivity, and migrates the schema.
func Open(cfg Config) (*Store, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "", "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access connection pool: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx := context.Background()
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(pingCtx, cfg.ConnectTimeout)
		defer cancel()
	}
	if err := sqlDB.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("failed to verify database connectivity: %w", err)
	}

	if err := db.AutoMigrate(
		&Account{}, &Room{}, &Participant{}, &Memory{},
		&Goal{}, &Relationship{}, &CacheEntry{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	s := &Store{
		db:      db,
		breaker: resilience.NewBreaker(cfg.Breaker),
		retry:   cfg.Retry,
		logger:  cfg.Logger,
	}
	s.breaker.OnStateChange(func(state resilience.BreakerState) {
		s.logger.Warn().Str("state", state.String()).Msg("Database circuit breaker changed state")
		if s.onBreakerChange != nil {
			s.onBreakerChange(state)
		}
	})

	s.logger.Info().Str("driver", cfg.Driver).Msg("Store opened")
	return s, nil
}

// OnBreakerChange registers a hook for breaker transitions (metrics).
func (s *Store) OnBreakerChange(fn func(resilience.BreakerState)) {
	s.onBreakerChange = fn
}

// BreakerState exposes the current breaker mode.
func (s *Store) BreakerState() resilience.BreakerState {
	return s.breaker.State()
}

// guard wraps a durable operation as circuitBreaker(retry(op)).
func (s *Store) guard(ctx context.Context, name string, op func() error) error {
	err := resilience.Guard(ctx, s.breaker, s.retry, op)
	if err != nil {
		s.logger.Debug().Err(err).Str("op", name).Msg("Durable operation failed")
	}
	return err
}

// Close drains the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to access connection pool: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	s.logger.Info().Msg("Store closed")
	return nil
}
