package evaluators

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/hollowaylab/reverie/pkg/state"
	"github.com/hollowaylab/reverie/pkg/store"
)

// RetentionStore is the slice of the Memory Store retention cleanup needs.
type RetentionStore interface {
	DeleteMemoriesBefore(ctx context.Context, typ, userID string, cutoff time.Time) (int64, error)
	TrimMemoriesToCount(ctx context.Context, typ, userID string, max int) (int64, error)
}

// RetentionConfig bounds how much message history one user may retain.
type RetentionConfig struct {
	MaxMessageAge   time.Duration
	MaxMessageCount int
}

// DefaultRetentionConfig keeps thirty days and at most 200 messages per
// user.
func DefaultRetentionConfig() RetentionConfig {
	return RetentionConfig{
		MaxMessageAge:   30 * 24 * time.Hour,
		MaxMessageCount: 200,
	}
}

// RetentionEvaluator purges a user's messages beyond the configured age
// and count bounds, across all rooms. Cleanup failures are logged and
// never block the turn.
type RetentionEvaluator struct {
	store  RetentionStore
	cfg    RetentionConfig
	logger zerolog.Logger

	now func() time.Time
}

// NewRetentionEvaluator constructs the retention cleaner.
func NewRetentionEvaluator(s RetentionStore, cfg RetentionConfig, logger zerolog.Logger) *RetentionEvaluator {
	if cfg.MaxMessageAge <= 0 {
		cfg.MaxMessageAge = DefaultRetentionConfig().MaxMessageAge
	}
	if cfg.MaxMessageCount <= 0 {
		cfg.MaxMessageCount = DefaultRetentionConfig().MaxMessageCount
	}
	return &RetentionEvaluator{store: s, cfg: cfg, logger: logger, now: time.Now}
}

func (e *RetentionEvaluator) Name() string { return "retention" }

// Validate amortizes cleanup: it runs only when the room's message count
// is an exact multiple of ten.
func (e *RetentionEvaluator) Validate(_ context.Context, _ *store.Memory, st *state.State) (bool, error) {
	return st.MessageCount > 0 && st.MessageCount%10 == 0, nil
}

// Run applies the age bound then the count bound for the message author.
func (e *RetentionEvaluator) Run(ctx context.Context, msg *store.Memory, st *state.State) error {
	logger := e.logger.With().
		Str("user_id", msg.UserID).
		Str("room_id", st.RoomID).
		Logger()

	cutoff := e.now().Add(-e.cfg.MaxMessageAge)
	expired, err := e.store.DeleteMemoriesBefore(ctx, store.TableMessages, msg.UserID, cutoff)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to delete expired messages")
	} else if expired > 0 {
		logger.Debug().Int64("removed", expired).Msg("Deleted expired messages")
	}

	trimmed, err := e.store.TrimMemoriesToCount(ctx, store.TableMessages, msg.UserID, e.cfg.MaxMessageCount)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to trim message history")
	} else if trimmed > 0 {
		logger.Debug().Int64("removed", trimmed).Msg("Trimmed message history")
	}

	return nil
}
